// Package resilience keeps the translation pipeline alive when a cloud
// provider degrades. A [Breaker] guards each configured speech, translation
// or synthesis backend and stops sending utterances to one that keeps
// failing; a [Chain] tries backends in configured order so a rate-limited
// or outaged primary is bypassed in favour of the next healthy one.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] while the provider is being
// rested after repeated failures.
var ErrBreakerOpen = errors.New("resilience: provider breaker is open")

// BreakerState is the operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed forwards every call. The normal state.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls with [ErrBreakerOpen] until the cooldown
	// elapses. Entered after too many consecutive failures.
	BreakerOpen

	// BreakerHalfOpen lets probe calls through after the cooldown. Enough
	// probe successes close the breaker again; any probe failure re-opens it.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. The defaults suit per-utterance provider
// calls: a meeting produces an utterance every few seconds, so a short
// cooldown retries the provider before listeners lose much of the
// conversation.
type BreakerConfig struct {
	// Provider labels the guarded backend in log output.
	Provider string

	// Trip is the number of consecutive failures that opens the breaker.
	// Default 3.
	Trip int

	// Cooldown is how long an open breaker rests the provider before
	// probing it again. Default 15s.
	Cooldown time.Duration

	// Probes is the number of consecutive probe successes required to close
	// a half-open breaker. Default 2.
	Probes int
}

// Breaker shields a single provider backend. After Trip consecutive
// failures it opens and fails fast, letting a [Chain] move on to the next
// backend without paying the primary's timeout on every utterance.
type Breaker struct {
	provider string
	trip     int
	cooldown time.Duration
	probes   int
	now      func() time.Time

	mu        sync.Mutex
	state     BreakerState
	streak    int // consecutive failures while closed
	probeWins int // consecutive probe successes while half-open
	openedAt  time.Time
}

// NewBreaker creates a closed [Breaker]. Zero config fields take defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Trip <= 0 {
		cfg.Trip = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 2
	}
	return &Breaker{
		provider: cfg.Provider,
		trip:     cfg.Trip,
		cooldown: cfg.Cooldown,
		probes:   cfg.Probes,
		now:      time.Now,
	}
}

// Do runs the provider call if the breaker allows it. While open and inside
// the cooldown it returns [ErrBreakerOpen] without invoking fn. Once the
// cooldown has elapsed the breaker goes half-open and fn runs as a probe.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.state == BreakerOpen {
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.state = BreakerHalfOpen
		b.probeWins = 0
		slog.Info("probing provider after cooldown", "provider", b.provider)
	}
	probing := b.state == BreakerHalfOpen
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(probing)
	} else {
		b.onSuccess(probing)
	}
	return err
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(probing bool) {
	if probing {
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.probeWins = 0
		slog.Warn("provider probe failed, resting it again",
			"provider", b.provider, "cooldown", b.cooldown)
		return
	}
	b.streak++
	if b.state == BreakerClosed && b.streak >= b.trip {
		b.state = BreakerOpen
		b.openedAt = b.now()
		slog.Warn("provider breaker opened",
			"provider", b.provider, "consecutive_failures", b.streak)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess(probing bool) {
	if probing {
		b.probeWins++
		if b.probeWins >= b.probes {
			b.state = BreakerClosed
			b.streak = 0
			b.probeWins = 0
			slog.Info("provider recovered, breaker closed", "provider", b.provider)
		}
		return
	}
	b.streak = 0
}

// State reports the breaker's mode. An open breaker whose cooldown has
// elapsed reports [BreakerHalfOpen]; the stored transition happens on the
// next [Breaker.Do].
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.streak = 0
	b.probeWins = 0
}
