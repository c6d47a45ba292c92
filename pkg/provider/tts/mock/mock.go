// Package mock provides a scripted tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/tts"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider with canned behavior.
type Provider struct {
	// PCM is returned from every Synthesize call. Defaults to a short
	// non-empty clip when nil.
	PCM []byte

	// Err, when set, makes every Synthesize call fail.
	Err error

	// Voices is returned from ListVoices.
	Voices []tts.VoiceProfile

	mu       sync.Mutex
	requests []tts.SpeechRequest
}

// Synthesize records the request and returns the canned PCM.
func (p *Provider) Synthesize(_ context.Context, req tts.SpeechRequest) (tts.Result, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.Err != nil {
		return tts.Result{}, p.Err
	}
	pcm := p.PCM
	if pcm == nil {
		pcm = []byte{0, 0, 0, 0}
	}
	rate := req.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	return tts.Result{PCM: pcm, SampleRate: rate}, nil
}

// ListVoices returns the canned voice list.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Voices, nil
}

// Requests returns every recorded synthesis request in call order.
func (p *Provider) Requests() []tts.SpeechRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tts.SpeechRequest(nil), p.requests...)
}
