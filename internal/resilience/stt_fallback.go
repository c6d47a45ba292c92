package resilience

import (
	"context"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across
// multiple recognition backends, each behind its own breaker.
type STTFallback struct {
	chain *Chain[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg ChainConfig) *STTFallback {
	return &STTFallback{chain: NewChain(primary, primaryName, cfg)}
}

// AddFallback registers an additional recognition backend. Fallbacks are
// tried in the order they are added, after the primary.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.chain.Add(name, provider)
}

// Providers returns the backend names in failover order.
func (f *STTFallback) Providers() []string { return f.chain.Names() }

// StartStream opens a streaming transcription session against the first
// healthy backend. Once a session is open, frames flow to that backend only;
// failover applies per session, not per frame.
func (f *STTFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return Call(f.chain, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}
