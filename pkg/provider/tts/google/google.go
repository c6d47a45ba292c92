// Package google implements tts.Provider on the Google Cloud Text-to-Speech
// v1 API. Credentials come from Application Default Credentials.
package google

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"

	"github.com/Illakiya-ilios/voxlate/pkg/audio"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/tts"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider against Google Cloud Text-to-Speech.
type Provider struct {
	client *texttospeech.Client
}

// New creates a Provider. The caller must call Close when done.
func New(ctx context.Context) (*Provider, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google tts: create client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Close releases the underlying gRPC client.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Synthesize renders one utterance as LINEAR16 at the requested sample rate.
// The service wraps LINEAR16 output in a WAV container, which is stripped
// here so callers get raw PCM.
func (p *Provider) Synthesize(ctx context.Context, req tts.SpeechRequest) (tts.Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return tts.Result{}, &tts.Error{Provider: "googletts", Err: errors.New("empty text")}
	}
	if req.Voice.ID == "" {
		return tts.Result{}, &tts.Error{Provider: "googletts", Err: errors.New("voice ID is required")}
	}

	sampleRate := req.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	languageCode := req.Voice.Language
	if languageCode == "" {
		languageCode = languageFromVoiceID(req.Voice.ID)
	}

	resp, err := p.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: languageCode,
			Name:         req.Voice.ID,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: int32(sampleRate),
			SpeakingRate:    req.Voice.SpeakingRate,
			Pitch:           req.Voice.Pitch,
		},
	})
	if err != nil {
		return tts.Result{}, &tts.Error{Provider: "googletts", Err: err}
	}

	pcm, format, err := audio.ReadWAV(bytes.NewReader(resp.GetAudioContent()))
	if err != nil {
		return tts.Result{}, &tts.Error{Provider: "googletts", Err: fmt.Errorf("decode response: %w", err)}
	}
	return tts.Result{PCM: pcm, SampleRate: format.SampleRate}, nil
}

// ListVoices returns the service's voice catalogue.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	resp, err := p.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{})
	if err != nil {
		return nil, &tts.Error{Provider: "googletts", Err: err}
	}
	voices := make([]tts.VoiceProfile, 0, len(resp.GetVoices()))
	for _, v := range resp.GetVoices() {
		lang := ""
		if codes := v.GetLanguageCodes(); len(codes) > 0 {
			lang = codes[0]
		}
		voices = append(voices, tts.VoiceProfile{
			ID:       v.GetName(),
			Name:     v.GetName(),
			Language: lang,
		})
	}
	return voices, nil
}

// languageFromVoiceID recovers the language code embedded in Google voice
// names ("fr-FR-Neural2-B" -> "fr-FR").
func languageFromVoiceID(id string) string {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return id
}
