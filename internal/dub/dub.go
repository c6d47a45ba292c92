// Package dub implements the offline dubbing pipeline: take a video or audio
// file, transcribe the speech, translate it, synthesize the translation and
// write the dubbed audio out, optionally muxed back under the original video.
//
// Unlike the live pipeline there is no latency pressure here, so the whole
// recording is transcribed in one batch call and synthesis runs with bounded
// parallelism over text chunks.
package dub

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Illakiya-ilios/voxlate/pkg/audio"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/stt"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/translate"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/tts"
)

// defaultConcurrency bounds parallel synthesis requests per dub run.
const defaultConcurrency = 3

// Config wires a Dubber.
type Config struct {
	Transcriber stt.BatchTranscriber
	Translator  translate.Provider
	Synthesizer tts.Provider

	// Voice speaks the dubbed audio.
	Voice tts.VoiceProfile

	// SampleRate of the intermediate and output audio. Default 16000.
	SampleRate int

	// Concurrency bounds parallel synthesis requests. Default 3.
	Concurrency int

	// FFmpegPath overrides the ffmpeg binary. Default "ffmpeg" from PATH.
	FFmpegPath string
}

// Request describes one dubbing run.
type Request struct {
	// InputPath is the source video or audio file.
	InputPath string

	// OutputPath is where the result is written. With MuxVideo it is the
	// dubbed video; otherwise a WAV file of the dubbed audio.
	OutputPath string

	// SourceLang is the BCP-47 recognition language of the original speech.
	SourceLang string

	// TargetLang is the ISO-639 target language code.
	TargetLang string

	// MuxVideo replaces the input's audio track with the dubbed audio and
	// writes the combined file to OutputPath. Requires a video input.
	MuxVideo bool
}

// Result summarises a completed dub.
type Result struct {
	Transcript  string
	Translation string
	Chunks      int
	Duration    time.Duration
}

// Dubber runs offline dubbing jobs. Safe for concurrent use; each Dub call
// works in its own temp directory.
type Dubber struct {
	cfg Config
}

// NewDubber creates a Dubber.
func NewDubber(cfg Config) *Dubber {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	return &Dubber{cfg: cfg}
}

// Dub runs the full pipeline for one file.
func (d *Dubber) Dub(ctx context.Context, req Request) (*Result, error) {
	workDir, err := os.MkdirTemp("", "voxlate-dub-*")
	if err != nil {
		return nil, fmt.Errorf("dub: create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	pcm, err := d.extractAudio(ctx, req.InputPath, workDir)
	if err != nil {
		return nil, err
	}

	slog.Info("transcribing", "input", req.InputPath, "bytes", len(pcm))
	transcript, err := d.cfg.Transcriber.Transcribe(ctx, pcm, stt.BatchConfig{
		SampleRate: d.cfg.SampleRate,
		Channels:   1,
		Language:   req.SourceLang,
	})
	if err != nil {
		return nil, fmt.Errorf("dub: transcribe: %w", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, fmt.Errorf("dub: no speech recognized in %s", req.InputPath)
	}

	slog.Info("translating", "chars", len(transcript), "target", req.TargetLang)
	translation, err := d.cfg.Translator.Translate(ctx, translate.Request{
		Text:       transcript,
		SourceLang: shortLang(req.SourceLang),
		TargetLang: req.TargetLang,
	})
	if err != nil {
		return nil, fmt.Errorf("dub: translate: %w", err)
	}
	translation = strings.TrimSpace(translation)

	chunks := SplitText(translation, maxChunkLen)
	slog.Info("synthesizing", "chunks", len(chunks))
	dubbed, err := d.synthesizeChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	if req.MuxVideo {
		dubbedWAV := filepath.Join(workDir, "dubbed.wav")
		if err := writeWAVFile(dubbedWAV, dubbed, d.cfg.SampleRate); err != nil {
			return nil, err
		}
		if err := d.muxAudio(ctx, req.InputPath, dubbedWAV, req.OutputPath); err != nil {
			return nil, err
		}
	} else {
		if err := writeWAVFile(req.OutputPath, dubbed, d.cfg.SampleRate); err != nil {
			return nil, err
		}
	}

	frame := audio.Frame{Data: dubbed, SampleRate: d.cfg.SampleRate, Channels: 1}
	return &Result{
		Transcript:  transcript,
		Translation: translation,
		Chunks:      len(chunks),
		Duration:    frame.Duration(),
	}, nil
}

// synthesizeChunks renders all chunks with bounded parallelism and joins the
// audio in chunk order.
func (d *Dubber) synthesizeChunks(ctx context.Context, chunks []string) ([]byte, error) {
	parts := make([][]byte, len(chunks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			res, err := d.cfg.Synthesizer.Synthesize(gctx, tts.SpeechRequest{
				Text:       chunk,
				Voice:      d.cfg.Voice,
				SampleRate: d.cfg.SampleRate,
			})
			if err != nil {
				return fmt.Errorf("dub: synthesize chunk %d: %w", i, err)
			}
			pcm := res.PCM
			if res.SampleRate != d.cfg.SampleRate {
				pcm = audio.ResampleMono16(pcm, res.SampleRate, d.cfg.SampleRate)
			}
			mu.Lock()
			parts[i] = pcm
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bytes.Join(parts, nil), nil
}

// extractAudio pulls the audio track out of the input as mono 16-bit PCM at
// the configured rate, using ffmpeg.
func (d *Dubber) extractAudio(ctx context.Context, inputPath, workDir string) ([]byte, error) {
	wavPath := filepath.Join(workDir, "extracted.wav")
	cmd := exec.CommandContext(ctx, d.cfg.FFmpegPath,
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(d.cfg.SampleRate),
		"-ac", "1",
		wavPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("dub: ffmpeg extract: %w: %s", err, lastLine(stderr.String()))
	}

	f, err := os.Open(wavPath)
	if err != nil {
		return nil, fmt.Errorf("dub: open extracted audio: %w", err)
	}
	defer f.Close()

	pcm, format, err := audio.ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("dub: parse extracted audio: %w", err)
	}
	if format.Channels != 1 {
		pcm = audio.StereoToMono(pcm)
	}
	if format.SampleRate != d.cfg.SampleRate {
		pcm = audio.ResampleMono16(pcm, format.SampleRate, d.cfg.SampleRate)
	}
	return pcm, nil
}

// muxAudio replaces the input's audio track with dubbedWAV, copying the video
// stream untouched.
func (d *Dubber) muxAudio(ctx context.Context, inputPath, dubbedWAV, outputPath string) error {
	cmd := exec.CommandContext(ctx, d.cfg.FFmpegPath,
		"-y",
		"-i", inputPath,
		"-i", dubbedWAV,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("dub: ffmpeg mux: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func writeWAVFile(path string, pcm []byte, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dub: create %s: %w", path, err)
	}
	defer f.Close()
	if err := audio.WriteWAV(f, pcm, sampleRate, 1); err != nil {
		return fmt.Errorf("dub: write %s: %w", path, err)
	}
	return nil
}

// shortLang reduces a BCP-47 tag to its ISO-639 base ("fr-FR" -> "fr").
func shortLang(tag string) string {
	base, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(base)
}

// lastLine returns the final non-empty line of s, which for ffmpeg is
// usually the actual error.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
