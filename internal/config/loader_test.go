package config

import (
	"strings"
	"testing"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
audio:
  input_device: "USB Microphone"
  sample_rate: 16000
  frame_millis: 100
providers:
  stt:
    name: google
    model: latest_long
  translate:
    name: google
    fallbacks:
      - name: llm
        model: gpt-4o-mini
  tts:
    name: google
directions:
  fr-en:
    source_lang: fr
    target_lang: en
    recognition_language: fr-FR
  en-fr:
    source_lang: en
    target_lang: fr
    recognition_language: en-US
default_direction: fr-en
voices:
  en:
    voice_id: en-US-Neural2-D
  fr:
    voice_id: fr-FR-Neural2-B
    speaking_rate: 1.1
glossary:
  terms: [Kubernetes, Grafana]
history:
  postgres_dsn: "postgres://voxlate@localhost/voxlate"
  recent_limit: 100
`

func TestLoadFromReaderValid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Audio.InputDevice != "USB Microphone" {
		t.Errorf("InputDevice = %q", cfg.Audio.InputDevice)
	}
	if cfg.Providers.STT.Model != "latest_long" {
		t.Errorf("STT model = %q", cfg.Providers.STT.Model)
	}
	dir, ok := cfg.Directions["fr-en"]
	if !ok {
		t.Fatal("direction fr-en missing")
	}
	if dir.RecognitionLanguage != "fr-FR" {
		t.Errorf("recognition language = %q", dir.RecognitionLanguage)
	}
	if cfg.Voices["fr"].SpeakingRate != 1.1 {
		t.Errorf("fr speaking rate = %v", cfg.Voices["fr"].SpeakingRate)
	}
	if len(cfg.Glossary.Terms) != 2 {
		t.Errorf("glossary terms = %v", cfg.Glossary.Terms)
	}
	fbs := cfg.Providers.Translate.Fallbacks
	if len(fbs) != 1 || fbs[0].Name != "llm" || fbs[0].Model != "gpt-4o-mini" {
		t.Errorf("translate fallbacks = %+v", fbs)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  listen_addr: ":8080"
  bogus_field: true
directions:
  fr-en: {source_lang: fr, target_lang: en, recognition_language: fr-FR}
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unknown field was accepted")
	}
}

func TestLoadFromReaderRejectsInvalidYAML(t *testing.T) {
	t.Parallel()

	if _, err := LoadFromReader(strings.NewReader("{{not yaml")); err == nil {
		t.Fatal("invalid yaml was accepted")
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Server.LogLevel = "verbose" },
			want:   "server.log_level",
		},
		{
			name:   "missing source lang",
			mutate: func(c *Config) { c.Directions["fr-en"] = DirectionConfig{TargetLang: "en", RecognitionLanguage: "fr-FR"} },
			want:   "source_lang",
		},
		{
			name:   "missing recognition language",
			mutate: func(c *Config) { c.Directions["fr-en"] = DirectionConfig{SourceLang: "fr", TargetLang: "en"} },
			want:   "recognition_language",
		},
		{
			name:   "unknown default direction",
			mutate: func(c *Config) { c.DefaultDirection = "de-en" },
			want:   "default_direction",
		},
		{
			name:   "no directions",
			mutate: func(c *Config) { c.Directions = nil },
			want:   "directions",
		},
		{
			name:   "voice without id",
			mutate: func(c *Config) { c.Voices["en"] = VoiceConfig{SpeakingRate: 1.0} },
			want:   "voice_id",
		},
		{
			name:   "speaking rate out of range",
			mutate: func(c *Config) { c.Voices["en"] = VoiceConfig{VoiceID: "x", SpeakingRate: 3.0} },
			want:   "speaking_rate",
		},
		{
			name:   "pitch out of range",
			mutate: func(c *Config) { c.Voices["en"] = VoiceConfig{VoiceID: "x", PitchShift: 11} },
			want:   "pitch_shift",
		},
		{
			name:   "negative recent limit",
			mutate: func(c *Config) { c.History.RecentLimit = -1 },
			want:   "recent_limit",
		},
		{
			name: "fallback without name",
			mutate: func(c *Config) {
				c.Providers.Translate.Fallbacks = []ProviderEntry{{Model: "gpt-4o-mini"}}
			},
			want: "fallbacks[0].name",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	if err := Validate(Default()); err != nil {
		t.Errorf("Validate(Default()) = %v", err)
	}
}
