// Package elevenlabs implements tts.Provider on the ElevenLabs HTTP API.
// Synthesis requests raw PCM output (pcm_16000) so no decoding is needed
// before playback.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/tts"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_flash_v2_5"
)

// Provider implements tts.Provider against the ElevenLabs REST API.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithModel sets the model ID. Defaults to "eleven_flash_v2_5".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a Provider authenticated with the given API key.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesisRequest is the JSON body for the text-to-speech endpoint.
type synthesisRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// pcmRate maps our sample rate to the ElevenLabs output_format parameter.
// Only rates the API offers for raw PCM are accepted.
func pcmRate(sampleRate int) (string, error) {
	switch sampleRate {
	case 16000, 22050, 24000, 44100:
		return "pcm_" + strconv.Itoa(sampleRate), nil
	default:
		return "", fmt.Errorf("unsupported PCM sample rate %d", sampleRate)
	}
}

// Synthesize renders one utterance via POST /v1/text-to-speech/{voice_id}.
func (p *Provider) Synthesize(ctx context.Context, req tts.SpeechRequest) (tts.Result, error) {
	if req.Voice.ID == "" {
		return tts.Result{}, &tts.Error{Provider: "elevenlabs", Err: errors.New("voice ID is required")}
	}
	sampleRate := req.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	format, err := pcmRate(sampleRate)
	if err != nil {
		return tts.Result{}, &tts.Error{Provider: "elevenlabs", Err: err}
	}

	body := synthesisRequest{
		Text:    req.Text,
		ModelID: p.model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           req.Voice.SpeakingRate,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return tts.Result{}, &tts.Error{Provider: "elevenlabs", Err: fmt.Errorf("encode request: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", p.baseURL, req.Voice.ID, format)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return tts.Result{}, &tts.Error{Provider: "elevenlabs", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return tts.Result{}, &tts.Error{Provider: "elevenlabs", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Result{}, &tts.Error{Provider: "elevenlabs",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))}
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Result{}, &tts.Error{Provider: "elevenlabs", Err: fmt.Errorf("read audio: %w", err)}
	}
	return tts.Result{PCM: pcm, SampleRate: sampleRate}, nil
}

// voicesResponse mirrors the subset of GET /v1/voices we consume.
type voicesResponse struct {
	Voices []struct {
		VoiceID string `json:"voice_id"`
		Name    string `json:"name"`
		Labels  struct {
			Language string `json:"language"`
		} `json:"labels"`
	} `json:"voices"`
}

// ListVoices returns the account's voice catalogue.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, &tts.Error{Provider: "elevenlabs", Err: err}
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &tts.Error{Provider: "elevenlabs", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &tts.Error{Provider: "elevenlabs", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var decoded voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &tts.Error{Provider: "elevenlabs", Err: fmt.Errorf("decode voices: %w", err)}
	}

	voices := make([]tts.VoiceProfile, 0, len(decoded.Voices))
	for _, v := range decoded.Voices {
		voices = append(voices, tts.VoiceProfile{
			ID:       v.VoiceID,
			Name:     v.Name,
			Language: v.Labels.Language,
		})
	}
	return voices, nil
}
