// Package history persists translated utterances so past sessions can be
// reviewed. The canonical implementation is the PostgreSQL-backed [Postgres]
// store; [Memory] keeps everything in process for tests and for deployments
// that run without a database.
package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Utterance is one completed translation as it went through the pipeline.
type Utterance struct {
	ID             int64
	SessionID      string
	Direction      string
	SourceText     string
	TranslatedText string
	SourceLang     string
	TargetLang     string
	CreatedAt      time.Time
}

// Store records utterances and serves them back in reverse chronological
// order. Implementations must be safe for concurrent use.
type Store interface {
	// Write appends an utterance. A zero CreatedAt is replaced with the
	// current time.
	Write(ctx context.Context, u Utterance) error

	// Recent returns up to limit utterances, newest first. When sessionID is
	// empty, utterances from all sessions are returned.
	Recent(ctx context.Context, sessionID string, limit int) ([]Utterance, error)

	// Close releases any resources held by the store.
	Close() error
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	items  []Utterance
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

// Write appends an utterance.
func (m *Memory) Write(_ context.Context, u Utterance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.ID = m.nextID
	m.nextID++
	m.items = append(m.items, u)
	return nil
}

// Recent returns up to limit utterances, newest first.
func (m *Memory) Recent(_ context.Context, sessionID string, limit int) ([]Utterance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Utterance
	for _, u := range m.items {
		if sessionID != "" && u.SessionID != sessionID {
			continue
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
