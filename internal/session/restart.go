package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Default restart parameters.
const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Restarter watches for session failures and automatically restarts the
// session with exponential backoff. Wire [Restarter.NotifyFailure] into
// [ControllerConfig.OnFailure] and call [Restarter.Monitor] once at startup.
//
// A restart cycle gives up when the retry budget is exhausted, or when a
// session turns out to be active again because the user restarted manually.
//
// All methods are safe for concurrent use.
type Restarter struct {
	start      func(ctx context.Context, direction string) error
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration

	done     chan struct{}
	stopOnce sync.Once
	failed   chan string // carries the direction of the failed session
}

// RestarterConfig configures a [Restarter].
type RestarterConfig struct {
	// Start opens a new session in the given direction. Typically
	// [Controller.Start].
	Start func(ctx context.Context, direction string) error

	// MaxRetries is the maximum number of restart attempts per failure before
	// giving up. Defaults to 10 if zero.
	MaxRetries int

	// Backoff is the initial delay between attempts. Doubles each attempt up
	// to MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff is the upper limit on the backoff duration. Defaults to 30s
	// if zero.
	MaxBackoff time.Duration
}

// NewRestarter creates a new [Restarter] with the given configuration.
func NewRestarter(cfg RestarterConfig) *Restarter {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	return &Restarter{
		start:      cfg.Start,
		maxRetries: maxRetries,
		backoff:    backoff,
		maxBackoff: maxBackoff,
		done:       make(chan struct{}),
		failed:     make(chan string, 1),
	}
}

// Monitor starts watching for failures in a background goroutine.
func (r *Restarter) Monitor(ctx context.Context) {
	go r.monitorLoop(ctx)
}

// NotifyFailure signals that the session in the given direction died and
// should be restarted. Safe to call multiple times; only the first call per
// restart cycle has effect.
func (r *Restarter) NotifyFailure(direction string) {
	select {
	case r.failed <- direction:
	default:
		// Already signalled; avoid blocking.
	}
}

// Stop halts monitoring. Safe to call multiple times.
func (r *Restarter) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
}

// monitorLoop waits for failure notifications and attempts restarts.
func (r *Restarter) monitorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case direction := <-r.failed:
			r.attemptRestart(ctx, direction)
		}
	}
}

// attemptRestart tries to restart the session with exponential backoff.
func (r *Restarter) attemptRestart(ctx context.Context, direction string) {
	currentBackoff := r.backoff

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-time.After(currentBackoff):
		}

		slog.Info("attempting session restart",
			"direction", direction,
			"attempt", attempt,
			"max_retries", r.maxRetries,
			"backoff", currentBackoff,
		)

		err := r.start(ctx, direction)
		if err == nil {
			slog.Info("session restart successful", "direction", direction, "attempt", attempt)
			return
		}
		if errors.Is(err, ErrAlreadyActive) {
			// The user beat us to it; nothing left to restore.
			slog.Info("session already restarted manually", "direction", direction)
			return
		}

		slog.Warn("session restart attempt failed",
			"direction", direction,
			"attempt", attempt,
			"error", err,
		)

		currentBackoff *= 2
		if currentBackoff > r.maxBackoff {
			currentBackoff = r.maxBackoff
		}
	}

	slog.Error("session restart failed after max retries",
		"direction", direction,
		"max_retries", r.maxRetries,
	)
}
