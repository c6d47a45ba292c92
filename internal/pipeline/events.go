// Package pipeline turns final transcripts into spoken translations.
//
// The [Aggregator] sits between the speech recognizer and the [Dispatcher]:
// it corrects glossary terms, filters blanks and consecutive duplicates, and
// hands each surviving utterance to the dispatcher. The dispatcher runs the
// translate, synthesize and play stages in a goroutine per utterance so a
// long sentence never blocks the next one.
package pipeline

import "context"

// Translation is a completed source/target text pair.
type Translation struct {
	Source     string
	Target     string
	SourceLang string
	TargetLang string
}

// Job is one utterance on its way through translate, synthesize and play.
type Job struct {
	// Generation identifies the recognition session the utterance came from.
	Generation uint64

	// SessionID is the persistent identifier recorded in history.
	SessionID string

	// Direction is the configured direction name, e.g. "fr-en".
	Direction string

	// Text is the corrected final transcript.
	Text string

	SourceLang string
	TargetLang string
}

// Notifier receives pipeline progress events. The web layer implements it to
// push events to connected clients; gen carries the recognition generation so
// stale events from a stopped session can be discarded.
//
// Implementations must not block: notifications are called from recognition
// and job goroutines.
type Notifier interface {
	// Ready signals that capture and recognition are up.
	Ready(gen uint64)

	// Transcript delivers an interim or final transcript.
	Transcript(gen uint64, text string, final bool)

	// Translating signals that an utterance entered the translation stage.
	Translating(gen uint64)

	// Translated delivers a finished translation.
	Translated(gen uint64, tr Translation)

	// Error reports a per-utterance failure. The session keeps running.
	Error(gen uint64, msg string)

	// Status reports session state changes.
	Status(active bool, direction string)
}

// NopNotifier discards all events.
type NopNotifier struct{}

var _ Notifier = NopNotifier{}

func (NopNotifier) Ready(uint64)                    {}
func (NopNotifier) Transcript(uint64, string, bool) {}
func (NopNotifier) Translating(uint64)              {}
func (NopNotifier) Translated(uint64, Translation)  {}
func (NopNotifier) Error(uint64, string)            {}
func (NopNotifier) Status(bool, string)             {}

// Sink plays synthesized audio. The device-backed implementation lives in
// pkg/audio/device; tests substitute their own.
type Sink interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}
