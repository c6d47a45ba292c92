package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// GlossaryChanged is true when the glossary term list changed; the
	// corrector can swap terms without restarting the session.
	GlossaryChanged bool
	NewGlossary     []string

	// VoicesChanged is true when any voice mapping changed. New voices apply
	// to utterances dispatched after the reload.
	VoicesChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !slices.Equal(old.Glossary.Terms, new.Glossary.Terms) {
		d.GlossaryChanged = true
		d.NewGlossary = new.Glossary.Terms
	}

	if len(old.Voices) != len(new.Voices) {
		d.VoicesChanged = true
	} else {
		for lang, oldVoice := range old.Voices {
			if newVoice, ok := new.Voices[lang]; !ok || newVoice != oldVoice {
				d.VoicesChanged = true
				break
			}
		}
	}

	return d
}
