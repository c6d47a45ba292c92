// Package llm implements translate.Provider on top of
// github.com/mozilla-ai/any-llm-go, so any chat-completion backend (OpenAI,
// Anthropic, Gemini, Ollama, Mistral, Groq and friends) can serve as the
// translation engine. Useful where the Google Translation API is not an
// option or where glossary-heavy prompting beats generic MT.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/translate"
)

// Compile-time assertion that Provider satisfies translate.Provider.
var _ translate.Provider = (*Provider)(nil)

const systemPrompt = "You are a translation engine for live speech. " +
	"Translate the user's text exactly, preserving tone and register. " +
	"Reply with the translation only: no quotes, no commentary, no notes."

// Provider implements translate.Provider by prompting a chat model.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// New creates a Provider backed by the named any-llm backend.
//
// backendName is one of: "openai", "anthropic", "gemini", "ollama",
// "mistral", "groq". Without an API key option the backend falls back to its
// usual environment variable (OPENAI_API_KEY and so on).
func New(backendName, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if backendName == "" {
		return nil, errors.New("llm translate: backendName must not be empty")
	}
	if model == "" {
		return nil, errors.New("llm translate: model must not be empty")
	}
	backend, err := createBackend(backendName, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm translate: create %q backend: %w", backendName, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

func createBackend(name string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(name) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported backend %q; supported: openai, anthropic, gemini, ollama, mistral, groq", name)
	}
}

// Translate prompts the model with one utterance and returns the trimmed
// completion.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", nil
	}

	resp, err := p.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt},
			{Role: anyllmlib.RoleUser, Content: buildPrompt(req)},
		},
	})
	if err != nil {
		return "", &translate.Error{Provider: "llm", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &translate.Error{Provider: "llm", Err: errors.New("empty choices in response")}
	}

	out := cleanCompletion(resp.Choices[0].Message.ContentString())
	if out == "" {
		return "", &translate.Error{Provider: "llm", Err: errors.New("model returned no translation")}
	}
	return out, nil
}

// buildPrompt phrases one translation request. Language names stay as codes;
// models handle ISO codes reliably and it keeps the prompt stable.
func buildPrompt(req translate.Request) string {
	if req.SourceLang == "" {
		return fmt.Sprintf("Translate into %s:\n%s", req.TargetLang, req.Text)
	}
	return fmt.Sprintf("Translate from %s into %s:\n%s", req.SourceLang, req.TargetLang, req.Text)
}

// cleanCompletion trims whitespace and strips one pair of wrapping quotes,
// which chat models add despite instructions often enough to matter.
func cleanCompletion(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
