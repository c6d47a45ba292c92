// Package coqui implements tts.Provider against a locally running Coqui TTS
// server (the `tts-server` HTTP frontend). The server returns WAV; the
// container is stripped so callers get raw PCM at whatever rate the loaded
// model produces.
package coqui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Illakiya-ilios/voxlate/pkg/audio"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/tts"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider against a Coqui tts-server instance.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a Provider talking to the server at baseURL, e.g.
// "http://localhost:5002".
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("coqui: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize renders one utterance via GET /api/tts. The voice ID maps to
// the server's speaker_id; models with a single speaker ignore it. The
// model's native output rate is resampled to the requested rate when they
// differ.
func (p *Provider) Synthesize(ctx context.Context, req tts.SpeechRequest) (tts.Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return tts.Result{}, &tts.Error{Provider: "coqui", Err: errors.New("empty text")}
	}

	q := url.Values{}
	q.Set("text", req.Text)
	if req.Voice.ID != "" {
		q.Set("speaker_id", req.Voice.ID)
	}
	if req.Voice.Language != "" {
		q.Set("language_id", req.Voice.Language)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tts?"+q.Encode(), nil)
	if err != nil {
		return tts.Result{}, &tts.Error{Provider: "coqui", Err: err}
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return tts.Result{}, &tts.Error{Provider: "coqui", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Result{}, &tts.Error{Provider: "coqui",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))}
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Result{}, &tts.Error{Provider: "coqui", Err: fmt.Errorf("read audio: %w", err)}
	}
	pcm, format, err := audio.ReadWAV(bytes.NewReader(wav))
	if err != nil {
		return tts.Result{}, &tts.Error{Provider: "coqui", Err: fmt.Errorf("decode response: %w", err)}
	}
	if format.Channels == 2 {
		pcm = audio.StereoToMono(pcm)
	}

	sampleRate := format.SampleRate
	if req.SampleRate > 0 && req.SampleRate != sampleRate {
		pcm = audio.ResampleMono16(pcm, sampleRate, req.SampleRate)
		sampleRate = req.SampleRate
	}
	return tts.Result{PCM: pcm, SampleRate: sampleRate}, nil
}

// ListVoices is not exposed by the plain tts-server API; the configured
// speaker IDs are whatever the loaded model supports.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	return nil, &tts.Error{Provider: "coqui", Err: errors.New("voice listing not supported")}
}
