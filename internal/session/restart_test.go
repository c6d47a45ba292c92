package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// countingStart records restart attempts and fails until succeedAfter calls.
type countingStart struct {
	mu           sync.Mutex
	calls        []string
	succeedAfter int
	err          error
}

func (s *countingStart) start(_ context.Context, direction string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, direction)
	if len(s.calls) <= s.succeedAfter {
		if s.err != nil {
			return s.err
		}
		return errors.New("still down")
	}
	return nil
}

func (s *countingStart) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func waitForCalls(t *testing.T, s *countingStart, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("restart calls = %d, want at least %d", s.count(), n)
}

func TestRestarterRestartsAfterFailure(t *testing.T) {
	t.Parallel()

	starter := &countingStart{}
	r := NewRestarter(RestarterConfig{
		Start:   starter.start,
		Backoff: time.Millisecond,
	})
	defer r.Stop()
	r.Monitor(context.Background())

	r.NotifyFailure("fr-en")

	waitForCalls(t, starter, 1)
	starter.mu.Lock()
	got := starter.calls[0]
	starter.mu.Unlock()
	if got != "fr-en" {
		t.Errorf("restarted direction = %q, want %q", got, "fr-en")
	}
}

func TestRestarterBacksOffAndRetries(t *testing.T) {
	t.Parallel()

	starter := &countingStart{succeedAfter: 2}
	r := NewRestarter(RestarterConfig{
		Start:      starter.start,
		Backoff:    time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
	})
	defer r.Stop()
	r.Monitor(context.Background())

	r.NotifyFailure("fr-en")

	waitForCalls(t, starter, 3)
}

func TestRestarterGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	starter := &countingStart{succeedAfter: 100}
	r := NewRestarter(RestarterConfig{
		Start:      starter.start,
		MaxRetries: 3,
		Backoff:    time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
	})
	defer r.Stop()
	r.Monitor(context.Background())

	r.NotifyFailure("fr-en")

	waitForCalls(t, starter, 3)
	time.Sleep(50 * time.Millisecond)
	if got := starter.count(); got != 3 {
		t.Errorf("restart calls = %d, want exactly 3", got)
	}
}

func TestRestarterStandsDownWhenSessionIsBack(t *testing.T) {
	t.Parallel()

	starter := &countingStart{succeedAfter: 100, err: ErrAlreadyActive}
	r := NewRestarter(RestarterConfig{
		Start:      starter.start,
		MaxRetries: 5,
		Backoff:    time.Millisecond,
	})
	defer r.Stop()
	r.Monitor(context.Background())

	r.NotifyFailure("fr-en")

	waitForCalls(t, starter, 1)
	time.Sleep(50 * time.Millisecond)
	if got := starter.count(); got != 1 {
		t.Errorf("restart calls = %d, want 1 after manual restart", got)
	}
}

func TestRestarterCoalescesNotifications(t *testing.T) {
	t.Parallel()

	r := NewRestarter(RestarterConfig{Start: (&countingStart{}).start})
	defer r.Stop()

	// Without the monitor draining, repeated notifications collapse into one
	// pending restart cycle.
	r.NotifyFailure("fr-en")
	r.NotifyFailure("fr-en")
	r.NotifyFailure("fr-en")

	if got := len(r.failed); got != 1 {
		t.Errorf("pending restart cycles = %d, want 1", got)
	}
}
