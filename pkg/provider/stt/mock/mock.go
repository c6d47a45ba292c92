// Package mock provides a scripted stt.Provider for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/stt"
)

// Compile-time assertions.
var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*Session)(nil)
)

// Provider implements stt.Provider. Each StartStream call hands out a fresh
// [Session] that the test drives via EmitPartial, EmitFinal and Fail.
type Provider struct {
	// StartErr, when set, makes StartStream fail.
	StartErr error

	mu       sync.Mutex
	sessions []*Session
}

// StartStream returns a new scripted session.
func (p *Provider) StartStream(_ context.Context, _ stt.StreamConfig) (stt.SessionHandle, error) {
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	s := NewSession()
	p.mu.Lock()
	p.sessions = append(p.sessions, s)
	p.mu.Unlock()
	return s, nil
}

// Sessions returns every session handed out so far.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Session(nil), p.sessions...)
}

// Last returns the most recently opened session, or nil.
func (p *Provider) Last() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		return nil
	}
	return p.sessions[len(p.sessions)-1]
}

// OpenSessions counts sessions that have not been closed.
func (p *Provider) OpenSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.sessions {
		if !s.Closed() {
			n++
		}
	}
	return n
}

// Session implements stt.SessionHandle with test-controlled output.
type Session struct {
	results chan stt.Transcript

	mu     sync.Mutex
	sent   [][]byte
	closed bool

	// SendErr, when set, makes the next SendAudio call fail.
	SendErr error

	closeOnce sync.Once
}

// NewSession creates an open session with a buffered result channel.
func NewSession() *Session {
	return &Session{
		results: make(chan stt.Transcript, 64),
	}
}

// SendAudio records the chunk.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock stt: session is closed")
	}
	if s.SendErr != nil {
		return s.SendErr
	}
	s.sent = append(s.sent, append([]byte(nil), chunk...))
	return nil
}

// Sent returns every chunk delivered via SendAudio, in order.
func (s *Session) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

func (s *Session) Results() <-chan stt.Transcript { return s.results }

// EmitPartial pushes an interim transcript to the session consumer.
func (s *Session) EmitPartial(text string) {
	s.results <- stt.Transcript{Text: text}
}

// EmitFinal pushes a final transcript to the session consumer.
func (s *Session) EmitFinal(text string) {
	s.results <- stt.Transcript{Text: text, IsFinal: true}
}

// Fail simulates the provider-side stream dying: the result channel closes
// without Close having been called.
func (s *Session) Fail() {
	s.closeOnce.Do(func() {
		close(s.results)
	})
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close marks the session closed and closes the result channel.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.closeOnce.Do(func() {
		close(s.results)
	})
	return nil
}
