// Package google implements translate.Provider on the Google Cloud
// Translation v2 API. Credentials come from Application Default Credentials.
package google

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	gtranslate "cloud.google.com/go/translate"
	"golang.org/x/text/language"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/translate"
)

// Compile-time assertion that Provider satisfies translate.Provider.
var _ translate.Provider = (*Provider)(nil)

// Provider implements translate.Provider against Google Cloud Translation.
type Provider struct {
	client *gtranslate.Client
}

// New creates a Provider. The caller must call Close when done.
func New(ctx context.Context) (*Provider, error) {
	client, err := gtranslate.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google translate: create client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Translate translates one utterance. The v2 API HTML-escapes its output
// (apostrophes arrive as &#39;), so the result is unescaped before it can
// reach a synthesis request.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", nil
	}

	target, err := language.Parse(req.TargetLang)
	if err != nil {
		return "", &translate.Error{Provider: "google",
			Err: fmt.Errorf("bad target language %q: %w", req.TargetLang, err)}
	}

	opts := &gtranslate.Options{}
	if req.SourceLang != "" {
		source, err := language.Parse(req.SourceLang)
		if err != nil {
			return "", &translate.Error{Provider: "google",
				Err: fmt.Errorf("bad source language %q: %w", req.SourceLang, err)}
		}
		opts.Source = source
	}

	results, err := p.client.Translate(ctx, []string{req.Text}, target, opts)
	if err != nil {
		return "", &translate.Error{Provider: "google", Err: err}
	}
	if len(results) == 0 {
		return "", &translate.Error{Provider: "google", Err: errors.New("empty result set")}
	}
	return html.UnescapeString(results[0].Text), nil
}
