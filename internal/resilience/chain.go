package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when every provider in a [Chain] failed or was
// resting behind an open breaker.
var ErrExhausted = errors.New("resilience: every provider in the chain failed")

// ChainConfig configures the per-provider breaker a [Chain] creates for each
// backend it holds.
type ChainConfig struct {
	Breaker BreakerConfig
}

// link pairs one backend with its breaker.
type link[T any] struct {
	name     string
	provider T
	breaker  *Breaker
}

// Chain holds a primary provider and its configured fallbacks, each behind
// its own [Breaker]. Calls walk the chain in registration order and return
// the first success, so one utterance at most costs one slow failure per
// unhealthy backend, and an open breaker costs nothing at all.
//
// The type parameter is the provider interface being chained (stt.Provider,
// translate.Provider, tts.Provider).
type Chain[T any] struct {
	links []link[T]
	cfg   ChainConfig
}

// NewChain creates a [Chain] with primary as its first backend. Fallbacks
// are registered with [Chain.Add]. Register all backends before the first
// call; Add is not synchronized against Call.
func NewChain[T any](primary T, name string, cfg ChainConfig) *Chain[T] {
	c := &Chain[T]{cfg: cfg}
	c.Add(name, primary)
	return c
}

// Add appends a backend to the end of the chain.
func (c *Chain[T]) Add(name string, provider T) {
	bc := c.cfg.Breaker
	bc.Provider = name
	c.links = append(c.links, link[T]{
		name:     name,
		provider: provider,
		breaker:  NewBreaker(bc),
	})
}

// Names returns the backend names in the order they are tried.
func (c *Chain[T]) Names() []string {
	names := make([]string, len(c.links))
	for i, l := range c.links {
		names[i] = l.name
	}
	return names
}

// Call walks the chain until one backend serves the request. Backends with
// an open breaker are skipped. When the whole chain fails the returned error
// wraps [ErrExhausted] together with the last backend's error.
//
// Call is a package-level function because Go methods cannot introduce the
// result type parameter.
func Call[T, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var (
		lastName string
		lastErr  error
		zero     R
	)
	for i := range c.links {
		l := &c.links[i]
		var result R
		err := l.breaker.Do(func() error {
			var callErr error
			result, callErr = fn(l.provider)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastName, lastErr = l.name, err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping resting provider", "provider", l.name)
		} else {
			slog.Warn("provider failed, trying next in chain",
				"provider", l.name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %s: %v", ErrExhausted, lastName, lastErr)
}
