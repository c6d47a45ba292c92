// Package openai implements tts.Provider on the OpenAI speech API via the
// official Go SDK. PCM output from the API is fixed at 24 kHz mono; the
// result is resampled when the request asks for a different rate.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/Illakiya-ilios/voxlate/pkg/audio"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/tts"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// The speech endpoint emits PCM at this rate only.
const outputSampleRate = 24000

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini-tts"

// Provider implements tts.Provider using the OpenAI speech endpoint.
type Provider struct {
	client oai.Client
	model  string
}

// Option is a functional option for configuring a Provider.
type Option func(*config)

type config struct {
	baseURL string
	model   string
}

// WithBaseURL overrides the API base URL, for proxies and tests.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = u }
}

// WithModel selects the speech model. Defaults to [DefaultModel].
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// New creates a Provider authenticated with the given API key.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
	}
	cfg := &config{model: DefaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Synthesize renders one utterance. The voice ID must be one of the OpenAI
// voice names ("alloy", "nova", ...).
func (p *Provider) Synthesize(ctx context.Context, req tts.SpeechRequest) (tts.Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return tts.Result{}, &tts.Error{Provider: "openai", Err: errors.New("empty text")}
	}
	voice := req.Voice.ID
	if voice == "" {
		voice = "alloy"
	}

	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          req.Text,
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if req.Voice.SpeakingRate > 0 {
		params.Speed = param.NewOpt(req.Voice.SpeakingRate)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return tts.Result{}, &tts.Error{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Result{}, &tts.Error{Provider: "openai", Err: fmt.Errorf("read audio: %w", err)}
	}

	sampleRate := outputSampleRate
	if req.SampleRate > 0 && req.SampleRate != sampleRate {
		pcm = audio.ResampleMono16(pcm, sampleRate, req.SampleRate)
		sampleRate = req.SampleRate
	}
	return tts.Result{PCM: pcm, SampleRate: sampleRate}, nil
}

// ListVoices returns the fixed voice set the speech endpoint accepts.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	names := []string{"alloy", "ash", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"}
	voices := make([]tts.VoiceProfile, len(names))
	for i, n := range names {
		voices[i] = tts.VoiceProfile{ID: n, Name: n}
	}
	return voices, nil
}
