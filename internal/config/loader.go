package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":       {"google", "deepgram"},
	"batch_stt": {"google", "whisper"},
	"translate": {"google", "llm"},
	"tts":       {"google", "elevenlabs", "coqui", "openai"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is negative", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameMillis < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_millis %d is negative", cfg.Audio.FrameMillis))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("batch_stt", cfg.Providers.BatchSTT.Name)
	validateProviderName("translate", cfg.Providers.Translate.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// Fallback chains
	errs = append(errs, validateFallbacks("stt", cfg.Providers.STT)...)
	errs = append(errs, validateFallbacks("translate", cfg.Providers.Translate)...)
	errs = append(errs, validateFallbacks("tts", cfg.Providers.TTS)...)

	// Directions
	if len(cfg.Directions) == 0 {
		errs = append(errs, errors.New("directions must declare at least one direction"))
	}
	for name, dir := range cfg.Directions {
		prefix := fmt.Sprintf("directions[%q]", name)
		if dir.SourceLang == "" {
			errs = append(errs, fmt.Errorf("%s.source_lang is required", prefix))
		}
		if dir.TargetLang == "" {
			errs = append(errs, fmt.Errorf("%s.target_lang is required", prefix))
		}
		if dir.RecognitionLanguage == "" {
			errs = append(errs, fmt.Errorf("%s.recognition_language is required", prefix))
		}
	}
	if cfg.DefaultDirection != "" {
		if _, ok := cfg.Directions[cfg.DefaultDirection]; !ok {
			errs = append(errs, fmt.Errorf("default_direction %q is not declared in directions", cfg.DefaultDirection))
		}
	}

	// Voices
	for lang, voice := range cfg.Voices {
		prefix := fmt.Sprintf("voices[%q]", lang)
		if voice.VoiceID == "" {
			errs = append(errs, fmt.Errorf("%s.voice_id is required", prefix))
		}
		if voice.SpeakingRate != 0 {
			if voice.SpeakingRate < 0.5 || voice.SpeakingRate > 2.0 {
				errs = append(errs, fmt.Errorf("%s.speaking_rate %.2f is out of range [0.5, 2.0]", prefix, voice.SpeakingRate))
			}
		}
		if voice.PitchShift < -10 || voice.PitchShift > 10 {
			errs = append(errs, fmt.Errorf("%s.pitch_shift %.2f is out of range [-10, 10]", prefix, voice.PitchShift))
		}
	}

	// Every configured direction should have a voice to speak with.
	for name, dir := range cfg.Directions {
		if _, ok := cfg.Voices[dir.TargetLang]; !ok {
			slog.Warn("no voice configured for direction target; synthesis will use the provider default",
				"direction", name,
				"target_lang", dir.TargetLang,
			)
		}
	}

	// History
	if cfg.History.PostgresDSN == "" {
		slog.Warn("history.postgres_dsn is empty; utterance history will not survive restarts")
	}
	if cfg.History.RecentLimit < 0 {
		errs = append(errs, fmt.Errorf("history.recent_limit %d is negative", cfg.History.RecentLimit))
	}

	return errors.Join(errs...)
}

// validateFallbacks checks the fallback chain of one primary provider entry.
func validateFallbacks(kind string, entry ProviderEntry) []error {
	var errs []error
	for i, fb := range entry.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d].name is required", kind, i))
			continue
		}
		validateProviderName(kind, fb.Name)
		if len(fb.Fallbacks) > 0 {
			slog.Warn("nested fallbacks are ignored; declare them all on the primary",
				"kind", kind,
				"name", fb.Name,
			)
		}
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
