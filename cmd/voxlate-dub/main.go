// Command voxlate-dub dubs a recorded video or audio file into another
// language: transcribe, translate, synthesize, and write the result out,
// optionally muxed back under the original video track.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Illakiya-ilios/voxlate/internal/config"
	"github.com/Illakiya-ilios/voxlate/internal/dub"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/stt"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/tts"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	input := flag.String("in", "", "input video or audio file (required)")
	output := flag.String("out", "", "output file (required)")
	sourceLang := flag.String("source-lang", "", "BCP-47 recognition language of the original speech, e.g. fr-FR (required)")
	targetLang := flag.String("target-lang", "", "ISO-639 target language code, e.g. en (required)")
	mux := flag.Bool("mux", false, "replace the input's audio track and write the combined video to -out")
	voiceID := flag.String("voice", "", "synthesis voice ID (default: the configured voice for the target language)")
	flag.Parse()

	if *input == "" || *output == "" || *sourceLang == "" || *targetLang == "" {
		flag.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxlate-dub: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxlate-dub: %v\n", err)
		}
		return 1
	}
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := config.DefaultRegistry()

	transcriber, err := buildTranscriber(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to build batch transcriber", "err", err)
		return 1
	}
	translator, err := reg.CreateTranslate(ctx, cfg.Providers.Translate)
	if err != nil {
		slog.Error("failed to build translate provider", "err", err)
		return 1
	}
	synthesizer, err := reg.CreateTTS(ctx, cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to build tts provider", "err", err)
		return 1
	}

	dubber := dub.NewDubber(dub.Config{
		Transcriber: transcriber,
		Translator:  translator,
		Synthesizer: synthesizer,
		Voice:       pickVoice(cfg, *targetLang, *voiceID),
		SampleRate:  cfg.Audio.SampleRate,
	})

	res, err := dubber.Dub(ctx, dub.Request{
		InputPath:  *input,
		OutputPath: *output,
		SourceLang: *sourceLang,
		TargetLang: *targetLang,
		MuxVideo:   *mux,
	})
	if err != nil {
		slog.Error("dub failed", "err", err)
		return 1
	}

	slog.Info("dub complete",
		"output", *output,
		"chunks", res.Chunks,
		"audio_duration", res.Duration,
		"transcript_chars", len(res.Transcript),
	)
	return 0
}

// buildTranscriber prefers the dedicated batch_stt provider and falls back to
// the live STT provider when it also supports batch transcription.
func buildTranscriber(ctx context.Context, cfg *config.Config, reg *config.Registry) (stt.BatchTranscriber, error) {
	if cfg.Providers.BatchSTT.Name != "" {
		return reg.CreateBatchSTT(ctx, cfg.Providers.BatchSTT)
	}
	live, err := reg.CreateSTT(ctx, cfg.Providers.STT)
	if err != nil {
		return nil, err
	}
	batch, ok := live.(stt.BatchTranscriber)
	if !ok {
		return nil, fmt.Errorf("stt provider %q does not support batch transcription; configure providers.batch_stt", cfg.Providers.STT.Name)
	}
	return batch, nil
}

// pickVoice resolves the synthesis voice: an explicit -voice flag wins, then
// the configured voice for the target language.
func pickVoice(cfg *config.Config, targetLang, voiceID string) tts.VoiceProfile {
	if voiceID != "" {
		return tts.VoiceProfile{ID: voiceID, Language: targetLang}
	}
	if v, ok := cfg.Voices[targetLang]; ok {
		return tts.VoiceProfile{
			ID:           v.VoiceID,
			Language:     targetLang,
			SpeakingRate: v.SpeakingRate,
			Pitch:        v.PitchShift,
		}
	}
	return tts.VoiceProfile{Language: targetLang}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
