package resilience

import (
	"context"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// multiple synthesis backends, each behind its own breaker.
type TTSFallback struct {
	chain *Chain[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg ChainConfig) *TTSFallback {
	return &TTSFallback{chain: NewChain(primary, primaryName, cfg)}
}

// AddFallback registers an additional synthesis backend.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.chain.Add(name, provider)
}

// Providers returns the backend names in failover order.
func (f *TTSFallback) Providers() []string { return f.chain.Names() }

// Synthesize renders one utterance with the first healthy backend. When a
// fallback serves the request, its voice catalogue may differ from the
// primary's; the configured voice ID is passed through unchanged.
func (f *TTSFallback) Synthesize(ctx context.Context, req tts.SpeechRequest) (tts.Result, error) {
	return Call(f.chain, func(p tts.Provider) (tts.Result, error) {
		return p.Synthesize(ctx, req)
	})
}

// ListVoices returns available voices from the first healthy backend.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return Call(f.chain, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}
