package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Illakiya-ilios/voxlate/internal/history"
	"github.com/Illakiya-ilios/voxlate/internal/observe"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/translate"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/tts"
)

// defaultMaxConcurrent bounds overlapping utterance jobs per dispatcher.
const defaultMaxConcurrent = 4

// DispatcherConfig wires one Dispatcher.
type DispatcherConfig struct {
	Translator  translate.Provider
	Synthesizer tts.Provider

	// Sink plays the synthesized PCM.
	Sink Sink

	// Voices maps target language codes to voice profiles. Lookup tries the
	// exact code, then the base language ("en" for "en-US"), then
	// DefaultVoice.
	Voices       map[string]tts.VoiceProfile
	DefaultVoice tts.VoiceProfile

	// SampleRate is the PCM rate requested from synthesis. Default 16000.
	SampleRate int

	// MaxConcurrent bounds overlapping jobs. Default 4.
	MaxConcurrent int

	// History, when set, records each completed translation. Failures are
	// logged and do not affect the utterance.
	History history.Store

	Notifier Notifier
	Metrics  *observe.Metrics
}

// Dispatcher runs translation jobs. Dispatch never blocks the caller: each
// job gets its own goroutine and a semaphore bounds how many run at once.
// Errors in one job never touch another; a failed utterance is reported and
// dropped.
type Dispatcher struct {
	cfg DispatcherConfig
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	return &Dispatcher{
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Dispatch schedules one utterance. ctx should outlive the recognition
// session: stopping a session does not cancel utterances already in flight.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.sem.Acquire(ctx, 1); err != nil {
			slog.Warn("job abandoned before start", "generation", job.Generation, "err", err)
			return
		}
		defer d.sem.Release(1)
		d.run(ctx, job)
	}()
}

// Wait blocks until every dispatched job has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, job Job) {
	m := d.cfg.Metrics
	m.InflightJobs.Add(ctx, 1)
	defer m.InflightJobs.Add(ctx, -1)

	jobStart := time.Now()
	defer observe.RecordStage(ctx, m.JobDuration, jobStart)

	d.cfg.Notifier.Translating(job.Generation)

	start := time.Now()
	translated, err := d.cfg.Translator.Translate(ctx, translate.Request{
		Text:       job.Text,
		SourceLang: job.SourceLang,
		TargetLang: job.TargetLang,
	})
	if err != nil {
		m.RecordJobError(ctx, "translate")
		slog.Error("translation failed", "generation", job.Generation, "err", err)
		d.cfg.Notifier.Error(job.Generation, "translation failed")
		return
	}
	observe.RecordStage(ctx, m.TranslateDuration, start)

	translated = strings.TrimSpace(translated)
	if translated == "" {
		slog.Warn("translation empty, skipping", "generation", job.Generation, "text", job.Text)
		return
	}

	d.cfg.Notifier.Translated(job.Generation, Translation{
		Source:     job.Text,
		Target:     translated,
		SourceLang: job.SourceLang,
		TargetLang: job.TargetLang,
	})

	if d.cfg.History != nil {
		if err := d.cfg.History.Write(ctx, history.Utterance{
			SessionID:      job.SessionID,
			Direction:      job.Direction,
			SourceText:     job.Text,
			TranslatedText: translated,
			SourceLang:     job.SourceLang,
			TargetLang:     job.TargetLang,
		}); err != nil {
			slog.Warn("history write failed", "err", err)
		}
	}

	start = time.Now()
	result, err := d.cfg.Synthesizer.Synthesize(ctx, tts.SpeechRequest{
		Text:       translated,
		Voice:      d.voiceFor(job.TargetLang),
		SampleRate: d.cfg.SampleRate,
	})
	if err != nil {
		m.RecordJobError(ctx, "synthesize")
		slog.Error("synthesis failed", "generation", job.Generation, "err", err)
		d.cfg.Notifier.Error(job.Generation, "speech synthesis failed")
		return
	}
	observe.RecordStage(ctx, m.SynthesisDuration, start)

	start = time.Now()
	if err := d.cfg.Sink.Play(ctx, result.PCM, result.SampleRate); err != nil {
		m.RecordJobError(ctx, "play")
		slog.Error("playback failed", "generation", job.Generation, "err", err)
		d.cfg.Notifier.Error(job.Generation, "audio playback failed")
		return
	}
	observe.RecordStage(ctx, m.PlaybackDuration, start)
}

// voiceFor resolves the voice for a target language, falling back from the
// exact tag to the base language to the configured default.
func (d *Dispatcher) voiceFor(lang string) tts.VoiceProfile {
	if v, ok := d.cfg.Voices[lang]; ok {
		return v
	}
	if base, _, found := strings.Cut(lang, "-"); found {
		if v, ok := d.cfg.Voices[base]; ok {
			return v
		}
	}
	return d.cfg.DefaultVoice
}
