// Package app wires all voxlate subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context ends, and Shutdown tears
// everything down in reverse order.
//
// For testing, inject doubles via functional options (WithHistory,
// WithCaptureOpener, WithSink). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Illakiya-ilios/voxlate/internal/config"
	"github.com/Illakiya-ilios/voxlate/internal/health"
	"github.com/Illakiya-ilios/voxlate/internal/history"
	"github.com/Illakiya-ilios/voxlate/internal/observe"
	"github.com/Illakiya-ilios/voxlate/internal/pipeline"
	"github.com/Illakiya-ilios/voxlate/internal/resilience"
	"github.com/Illakiya-ilios/voxlate/internal/session"
	"github.com/Illakiya-ilios/voxlate/internal/transcript"
	"github.com/Illakiya-ilios/voxlate/internal/transcript/phonetic"
	"github.com/Illakiya-ilios/voxlate/internal/web"
	"github.com/Illakiya-ilios/voxlate/pkg/audio"
	"github.com/Illakiya-ilios/voxlate/pkg/audio/device"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/stt"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/translate"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Populated by
// main.go via the config registry.
type Providers struct {
	STT       stt.Provider
	Translate translate.Provider
	TTS       tts.Provider

	// Fallbacks are tried after the primary of the same kind, in slice
	// order. Slices rather than maps: failover order is part of the config.
	STTFallbacks       []NamedSTT
	TranslateFallbacks []NamedTranslate
	TTSFallbacks       []NamedTTS
}

// NamedSTT pairs a fallback recognition provider with its configured name.
type NamedSTT struct {
	Name     string
	Provider stt.Provider
}

// NamedTranslate pairs a fallback translation provider with its configured name.
type NamedTranslate struct {
	Name     string
	Provider translate.Provider
}

// NamedTTS pairs a fallback synthesis provider with its configured name.
type NamedTTS struct {
	Name     string
	Provider tts.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics    *observe.Metrics
	store      history.Store
	corrector  *transcript.Corrector
	backend    *device.Backend
	hub        *web.Hub
	dispatcher *pipeline.Dispatcher
	controller *session.Controller
	restarter  *session.Restarter
	server     *web.Server

	// test injection points
	openCapture func(deliver func(audio.Frame)) (io.Closer, error)
	sink        pipeline.Sink

	// jobCtx spans dispatched utterance jobs; cancelled in Shutdown after
	// the dispatcher drains.
	jobCtx    context.Context
	jobCancel context.CancelFunc

	// closers are called in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithHistory injects an utterance store instead of creating one from config.
func WithHistory(s history.Store) Option {
	return func(a *App) { a.store = s }
}

// WithCaptureOpener injects the capture opener. Together with WithSink it
// keeps New from touching real audio hardware.
func WithCaptureOpener(open func(deliver func(audio.Frame)) (io.Closer, error)) Option {
	return func(a *App) { a.openCapture = open }
}

// WithSink injects the playback sink.
func WithSink(s pipeline.Sink) Option {
	return func(a *App) { a.sink = s }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go, populated via the config registry.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		metrics:   observe.DefaultMetrics(),
		hub:       web.NewHub(),
	}
	for _, o := range opts {
		o(a)
	}
	a.jobCtx, a.jobCancel = context.WithCancel(context.Background())

	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}
	a.initCorrector()
	if err := a.initAudio(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init audio: %w", err)
	}
	a.initPipeline()
	a.initController()
	a.initServer()

	return a, nil
}

func (a *App) initHistory(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	if dsn := a.cfg.History.PostgresDSN; dsn != "" {
		pg, err := history.NewPostgres(ctx, dsn)
		if err != nil {
			return err
		}
		a.store = pg
		a.closers = append(a.closers, pg.Close)
		slog.Info("utterance history backed by postgres")
		return nil
	}
	a.store = history.NewMemory()
	slog.Info("utterance history kept in memory only")
	return nil
}

func (a *App) initCorrector() {
	if len(a.cfg.Glossary.Terms) == 0 {
		return
	}
	a.corrector = transcript.NewCorrector(phonetic.New(), a.cfg.Glossary.Terms)
	slog.Info("glossary correction enabled", "terms", len(a.cfg.Glossary.Terms))
}

// initAudio opens the device backend unless both the capture opener and the
// sink were injected.
func (a *App) initAudio() error {
	if a.openCapture != nil && a.sink != nil {
		return nil
	}

	backend, err := device.NewBackend()
	if err != nil {
		return err
	}
	a.backend = backend
	a.closers = append(a.closers, backend.Close)

	if a.openCapture == nil {
		audioCfg := a.cfg.Audio
		a.openCapture = func(deliver func(audio.Frame)) (io.Closer, error) {
			return backend.OpenCapture(device.CaptureConfig{
				Device:      audioCfg.InputDevice,
				SampleRate:  audioCfg.SampleRate,
				Channels:    1,
				FrameMillis: audioCfg.FrameMillis,
			}, deliver)
		}
	}
	if a.sink == nil {
		player, err := backend.NewPlayer(device.PlayerConfig{Device: a.cfg.Audio.OutputDevice})
		if err != nil {
			return err
		}
		a.sink = player
	}
	return nil
}

// initPipeline wraps the providers in failover groups and builds the
// dispatcher. Even a lone primary gains circuit breaker protection from the
// wrapping.
func (a *App) initPipeline() {
	chainCfg := resilience.ChainConfig{}

	translator := resilience.NewTranslateFallback(a.providers.Translate, a.cfg.Providers.Translate.Name, chainCfg)
	for _, fb := range a.providers.TranslateFallbacks {
		translator.AddFallback(fb.Name, fb.Provider)
	}
	synthesizer := resilience.NewTTSFallback(a.providers.TTS, a.cfg.Providers.TTS.Name, chainCfg)
	for _, fb := range a.providers.TTSFallbacks {
		synthesizer.AddFallback(fb.Name, fb.Provider)
	}
	if len(a.providers.TranslateFallbacks) > 0 {
		slog.Info("translation failover chain", "providers", translator.Providers())
	}
	if len(a.providers.TTSFallbacks) > 0 {
		slog.Info("synthesis failover chain", "providers", synthesizer.Providers())
	}

	a.dispatcher = pipeline.NewDispatcher(pipeline.DispatcherConfig{
		Translator:    translator,
		Synthesizer:   synthesizer,
		Sink:          a.sink,
		Voices:        a.voiceProfiles(),
		DefaultVoice:  a.defaultVoice(),
		SampleRate:    a.cfg.Audio.SampleRate,
		MaxConcurrent: a.cfg.Pipeline.MaxConcurrentJobs,
		History:       a.store,
		Notifier:      a.hub,
		Metrics:       a.metrics,
	})
}

func (a *App) initController() {
	recognizer := resilience.NewSTTFallback(a.providers.STT, a.cfg.Providers.STT.Name, resilience.ChainConfig{})
	for _, fb := range a.providers.STTFallbacks {
		recognizer.AddFallback(fb.Name, fb.Provider)
	}
	if len(a.providers.STTFallbacks) > 0 {
		slog.Info("recognition failover chain", "providers", recognizer.Providers())
	}

	directions := make(map[string]session.Direction, len(a.cfg.Directions))
	for name, dir := range a.cfg.Directions {
		directions[name] = session.Direction{
			SourceLang:  dir.SourceLang,
			TargetLang:  dir.TargetLang,
			Recognition: dir.RecognitionLanguage,
		}
	}

	a.restarter = session.NewRestarter(session.RestarterConfig{
		Start: func(ctx context.Context, direction string) error {
			return a.controller.Start(ctx, direction)
		},
	})

	a.controller = session.NewController(session.ControllerConfig{
		Directions:    directions,
		Recognizer:    recognizer,
		OpenCapture:   a.openCapture,
		Dispatch:      a.dispatcher.Dispatch,
		JobCtx:        a.jobCtx,
		Corrector:     a.corrector,
		SampleRate:    a.cfg.Audio.SampleRate,
		Channels:      1,
		QueueCapacity: a.cfg.Audio.QueueCapacity,
		OnFailure:     a.restarter.NotifyFailure,
		Notifier:      a.hub,
		Metrics:       a.metrics,
	})
	a.restarter.Monitor(a.jobCtx)
}

func (a *App) initServer() {
	checks := []health.Check{health.History(a.store)}
	if a.backend != nil {
		checks = append(checks, health.AudioDevices(a.backend))
	}

	serverCfg := web.ServerConfig{
		Addr:             a.cfg.Server.ListenAddr,
		Control:          a.controller,
		DefaultDirection: a.cfg.DefaultDirection,
		Hub:              a.hub,
		History:          a.store,
		RecentLimit:      a.cfg.History.RecentLimit,
		Health:           health.New(checks...),
		SessionCtx:       a.jobCtx,
		Metrics:          a.metrics,
	}
	if tls := a.cfg.Server.TLS; tls != nil {
		serverCfg.CertFile = tls.CertFile
		serverCfg.KeyFile = tls.KeyFile
	}
	a.server = web.NewServer(serverCfg)
}

// voiceProfiles converts configured voices to synthesis profiles.
func (a *App) voiceProfiles() map[string]tts.VoiceProfile {
	voices := make(map[string]tts.VoiceProfile, len(a.cfg.Voices))
	for lang, v := range a.cfg.Voices {
		voices[lang] = tts.VoiceProfile{
			ID:           v.VoiceID,
			Language:     lang,
			SpeakingRate: v.SpeakingRate,
			Pitch:        v.PitchShift,
		}
	}
	return voices
}

// defaultVoice picks the voice for the default direction's target language,
// falling back to any configured voice.
func (a *App) defaultVoice() tts.VoiceProfile {
	if dir, ok := a.cfg.Directions[a.cfg.DefaultDirection]; ok {
		if v, ok := a.cfg.Voices[dir.TargetLang]; ok {
			return tts.VoiceProfile{ID: v.VoiceID, Language: dir.TargetLang, SpeakingRate: v.SpeakingRate, Pitch: v.PitchShift}
		}
	}
	for lang, v := range a.cfg.Voices {
		return tts.VoiceProfile{ID: v.VoiceID, Language: lang, SpeakingRate: v.SpeakingRate, Pitch: v.PitchShift}
	}
	return tts.VoiceProfile{}
}

// Controller exposes the session controller, mainly for tests.
func (a *App) Controller() *session.Controller { return a.controller }

// Hub exposes the event hub.
func (a *App) Hub() *web.Hub { return a.hub }

// Run serves HTTP until ctx is cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	err := a.server.Run(ctx)
	a.Shutdown()
	return err
}

// HandleConfigChange applies hot-reloadable settings from a config reload.
// Safe to call from the config watcher goroutine.
func (a *App) HandleConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)

	if d.GlossaryChanged && a.corrector != nil {
		a.corrector.SetGlossary(d.NewGlossary)
		slog.Info("glossary reloaded", "terms", len(d.NewGlossary))
	}
	if d.VoicesChanged {
		slog.Warn("voice changes require a restart to take effect")
	}
}

// Shutdown stops the live session, waits for in-flight utterance jobs and
// releases all resources. Idempotent.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		a.restarter.Stop()
		if err := a.controller.Stop(); err != nil && !errors.Is(err, session.ErrNotActive) {
			slog.Warn("stopping session during shutdown", "err", err)
		}
		a.dispatcher.Wait()
		a.jobCancel()
		a.closeAll()
		slog.Info("shutdown complete")
	})
}

func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("closing subsystem", "err", err)
		}
	}
	a.closers = nil
}
