// Package audio defines the PCM frame type, format helpers and the bounded
// frame queue that connects realtime capture callbacks to the recognition
// feeder.
package audio

import "time"

// Frame is a single block of PCM audio moving through the pipeline. Capture
// produces one Frame per device callback (~100 ms at the default config).
type Frame struct {
	// Data holds little-endian int16 PCM samples.
	Data []byte

	// SampleRate in Hz (16000 for speech recognition).
	SampleRate int

	// Channels: 1 for mono capture, 2 for stereo devices before downmix.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
