package resilience

import (
	"context"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/translate"
)

// TranslateFallback implements [translate.Provider] with automatic failover
// across multiple translation backends. Each backend has its own breaker, so
// a rate-limited or outaged primary stops being tried until its cooldown
// elapses.
type TranslateFallback struct {
	chain *Chain[translate.Provider]
}

var _ translate.Provider = (*TranslateFallback)(nil)

// NewTranslateFallback creates a [TranslateFallback] with primary as the
// preferred backend.
func NewTranslateFallback(primary translate.Provider, primaryName string, cfg ChainConfig) *TranslateFallback {
	return &TranslateFallback{chain: NewChain(primary, primaryName, cfg)}
}

// AddFallback registers an additional translation backend.
func (f *TranslateFallback) AddFallback(name string, provider translate.Provider) {
	f.chain.Add(name, provider)
}

// Providers returns the backend names in failover order.
func (f *TranslateFallback) Providers() []string { return f.chain.Names() }

// Translate translates one utterance with the first healthy backend.
func (f *TranslateFallback) Translate(ctx context.Context, req translate.Request) (string, error) {
	return Call(f.chain, func(p translate.Provider) (string, error) {
		return p.Translate(ctx, req)
	})
}
