// Package tts defines the provider interface for speech synthesis backends.
//
// A provider wraps a synthesis service (Google Cloud TTS, ElevenLabs, OpenAI)
// or a local server (Coqui). Synthesis is one-shot: the dispatcher hands over
// a complete translated utterance and receives raw PCM back, ready for the
// output device.
//
// Implementations must be safe for concurrent use; overlapping utterances
// synthesize in parallel.
package tts

import (
	"context"
	"fmt"
)

// VoiceProfile selects and shapes a synthesis voice. Profiles are configured
// per target language ("fr" speaks with fr-FR-Neural2-B, "en" with
// en-US-Neural2-D by default).
type VoiceProfile struct {
	// ID is the provider-specific voice identifier, e.g. "en-US-Neural2-D"
	// for Google or an ElevenLabs voice UUID.
	ID string

	// Name is the human-readable voice name, when the provider reports one.
	Name string

	// Language is the BCP-47 tag the voice speaks.
	Language string

	// SpeakingRate scales speed; 1.0 is normal, 0 means provider default.
	SpeakingRate float64

	// Pitch shifts pitch in semitones where the provider supports it.
	Pitch float64
}

// SpeechRequest is one synthesis unit.
type SpeechRequest struct {
	// Text is the plain text to speak. Any transport escaping must already
	// be decoded.
	Text string

	// Voice selects the voice.
	Voice VoiceProfile

	// SampleRate is the desired PCM output rate in Hz. Providers that only
	// emit a fixed rate return Result.SampleRate accordingly.
	SampleRate int
}

// Result is synthesized audio: mono little-endian int16 PCM.
type Result struct {
	PCM        []byte
	SampleRate int
}

// Provider is the abstraction over any synthesis backend.
type Provider interface {
	// Synthesize renders one utterance. The returned PCM is complete; there
	// is no streaming contract.
	Synthesize(ctx context.Context, req SpeechRequest) (Result, error)

	// ListVoices returns the provider's current voice catalogue.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}

// Error reports a failed synthesis. The dispatcher treats it as a per-job
// failure: the utterance is reported and skipped, nothing else stops.
type Error struct {
	// Provider names the backend, e.g. "googletts" or "elevenlabs".
	Provider string

	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tts: %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
