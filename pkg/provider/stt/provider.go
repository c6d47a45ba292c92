// Package stt defines the provider interface for speech recognition backends.
//
// A provider wraps a streaming transcription service (Google Cloud Speech,
// Deepgram) or a local model (whisper.cpp). The central abstraction is
// [SessionHandle]: once opened, a session accepts raw PCM chunks and emits a
// single ordered stream of [Transcript] values. Low-latency partials update
// the live view; finals drive translation. One stream rather than one per
// kind, so a partial can never be observed after the final that supersedes
// it.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"fmt"
)

// StreamConfig describes the audio format and recognition hints for a new
// streaming session.
type StreamConfig struct {
	// SampleRate is the PCM sample rate in Hz. The live pipeline captures at
	// 16000, which every supported provider accepts.
	SampleRate int

	// Channels is the channel count; 1 is what recognition services want.
	Channels int

	// Language is the BCP-47 recognition language (e.g. "fr-FR", "en-US").
	Language string

	// InterimResults asks the provider for partial hypotheses. When false,
	// Results only carries finals.
	InterimResults bool

	// Punctuate enables automatic punctuation where the provider supports it.
	Punctuate bool
}

// SessionHandle is an open streaming transcription session.
//
// Callers must Close the handle when done; failing to do so leaks goroutines
// and network connections inside the provider. All methods are safe for
// concurrent use.
type SessionHandle interface {
	// SendAudio delivers one chunk of little-endian int16 PCM matching the
	// StreamConfig format. Chunks are forwarded in call order. Calling
	// SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Results emits transcripts in recognition order, partials and finals
	// interleaved exactly as the provider produced them. IsFinal
	// distinguishes the two. Closed when the session ends.
	Results() <-chan Transcript

	// Close flushes pending audio, terminates the stream and closes the
	// result channel. Calling Close more than once is safe.
	Close() error
}

// Provider is the abstraction over any streaming recognition backend.
type Provider interface {
	// StartStream opens a session with the given format. The handle is ready
	// to accept audio immediately. The session ends when ctx is cancelled,
	// Close is called, or the provider-side stream fails.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

// BatchConfig describes a one-shot transcription request over a complete
// recording, as used by the offline dubbing pipeline.
type BatchConfig struct {
	SampleRate int
	Channels   int
	Language   string
}

// BatchTranscriber transcribes a complete PCM recording in one call.
// Providers that support offline use implement it alongside [Provider].
type BatchTranscriber interface {
	Transcribe(ctx context.Context, pcm []byte, cfg BatchConfig) (string, error)
}

// RecognitionError reports a failed or torn-down recognition stream. The
// session controller reacts by stopping the active session; the process
// keeps running.
type RecognitionError struct {
	// Provider names the backend, e.g. "google" or "deepgram".
	Provider string

	Err error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("stt: %s stream failed: %v", e.Provider, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }
