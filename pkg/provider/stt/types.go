package stt

import "time"

// Transcript is a single recognition result, partial or final.
type Transcript struct {
	// Text is the transcribed speech.
	Text string

	// IsFinal marks a committed result. Final transcripts drive translation;
	// partials only update the live view.
	IsFinal bool

	// Confidence is the provider's score in [0.0, 1.0], zero when the
	// provider does not report one.
	Confidence float64

	// Timestamp marks when the utterance started, relative to session start.
	// Zero when the provider does not report timing.
	Timestamp time.Duration
}
