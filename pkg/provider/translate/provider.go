// Package translate defines the provider interface for text translation
// backends.
//
// Implementations must be safe for concurrent use; the dispatcher calls
// Translate from many utterance goroutines at once.
package translate

import (
	"context"
	"fmt"
)

// Request is one translation unit, usually a single final utterance.
type Request struct {
	// Text is the source text.
	Text string

	// SourceLang is the ISO-639 source language code ("fr"). Empty lets the
	// provider detect the language.
	SourceLang string

	// TargetLang is the ISO-639 target language code ("en").
	TargetLang string
}

// Provider is the abstraction over any translation backend.
//
// Translate returns plain text: implementations are responsible for decoding
// any transport escaping (the Google v2 API returns HTML entities) before
// the text reaches synthesis.
type Provider interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// Error reports a failed translation. The dispatcher treats it as a per-job
// failure: the utterance is reported and skipped, nothing else stops.
type Error struct {
	// Provider names the backend, e.g. "google" or "llm".
	Provider string

	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("translate: %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
