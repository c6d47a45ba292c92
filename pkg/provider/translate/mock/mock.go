// Package mock provides a scripted translate.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/translate"
)

// Compile-time assertion that Provider satisfies translate.Provider.
var _ translate.Provider = (*Provider)(nil)

// Provider implements translate.Provider with canned behavior.
type Provider struct {
	// Translations maps source text to the canned result. Unmapped text
	// falls back to Transform, then to echoing the input.
	Translations map[string]string

	// Transform, when set, computes the result for unmapped text.
	Transform func(req translate.Request) string

	// Err, when set, makes every call fail.
	Err error

	// Delay blocks each call until the channel yields, letting tests control
	// completion order across concurrent jobs. Nil means no delay.
	Delay chan struct{}

	mu       sync.Mutex
	requests []translate.Request
}

// Translate records the request and returns the scripted result.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (string, error) {
	if p.Delay != nil {
		select {
		case <-p.Delay:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.Err != nil {
		return "", p.Err
	}
	if out, ok := p.Translations[req.Text]; ok {
		return out, nil
	}
	if p.Transform != nil {
		return p.Transform(req), nil
	}
	return req.Text, nil
}

// Requests returns every recorded request in call order.
func (p *Provider) Requests() []translate.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]translate.Request(nil), p.requests...)
}
