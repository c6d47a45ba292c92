// Package whisper implements stt.BatchTranscriber on the whisper.cpp CGO
// bindings, for offline dubbing without any cloud dependency. The whisper.cpp
// static library (libwhisper.a) and headers must be available at link time
// via LIBRARY_PATH and C_INCLUDE_PATH.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/Illakiya-ilios/voxlate/pkg/audio"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/stt"
)

// Compile-time assertion that Transcriber satisfies stt.BatchTranscriber.
var _ stt.BatchTranscriber = (*Transcriber)(nil)

// Whisper models are trained on 16 kHz audio.
const modelSampleRate = 16000

// Transcriber loads a whisper.cpp model once and transcribes complete
// recordings with it. Each Transcribe call runs on a fresh whisper context,
// so concurrent calls are safe; the model itself is shared.
type Transcriber struct {
	model whisperlib.Model
}

// New loads the ggml model at modelPath. The caller must call Close when the
// transcriber is no longer needed.
func New(modelPath string) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	return &Transcriber{model: model}, nil
}

// Close releases the model.
func (t *Transcriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// Transcribe runs whisper.cpp over the whole recording and returns the
// concatenated segment text. Input that is not mono 16 kHz is converted
// before inference.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte, cfg stt.BatchConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = modelSampleRate
	}
	if channels > 1 {
		pcm = audio.StereoToMono(pcm)
	}
	if sampleRate != modelSampleRate {
		pcm = audio.ResampleMono16(pcm, sampleRate, modelSampleRate)
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if lang := shortLanguage(cfg.Language); lang != "" {
		if err := wctx.SetLanguage(lang); err != nil {
			return "", fmt.Errorf("whisper: set language %q: %w", lang, err)
		}
	}

	if err := wctx.Process(pcmToFloat32(pcm), nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// shortLanguage reduces a BCP-47 tag to the two-letter code whisper.cpp
// expects ("fr-FR" -> "fr").
func shortLanguage(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return strings.ToLower(tag[:i])
	}
	return strings.ToLower(tag)
}

// pcmToFloat32 converts little-endian int16 PCM to float32 samples in
// [-1.0, 1.0]. A trailing odd byte is ignored.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return samples
}
