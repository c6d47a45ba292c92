package config

import "testing"

func TestDiffDetectsLogLevel(t *testing.T) {
	t.Parallel()

	old := Default()
	updated := Default()
	updated.Server.LogLevel = LogDebug

	d := Diff(old, updated)
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Errorf("diff = %+v, want log level change to debug", d)
	}
	if d.GlossaryChanged || d.VoicesChanged {
		t.Errorf("diff reported unrelated changes: %+v", d)
	}
}

func TestDiffDetectsGlossary(t *testing.T) {
	t.Parallel()

	old := Default()
	old.Glossary.Terms = []string{"Kubernetes"}
	updated := Default()
	updated.Glossary.Terms = []string{"Kubernetes", "Grafana"}

	d := Diff(old, updated)
	if !d.GlossaryChanged {
		t.Error("glossary change not detected")
	}
	if len(d.NewGlossary) != 2 {
		t.Errorf("NewGlossary = %v", d.NewGlossary)
	}
}

func TestDiffDetectsVoices(t *testing.T) {
	t.Parallel()

	old := Default()
	updated := Default()
	updated.Voices["en"] = VoiceConfig{VoiceID: "en-US-Neural2-A"}

	d := Diff(old, updated)
	if !d.VoicesChanged {
		t.Error("voice change not detected")
	}
}

func TestDiffNoChanges(t *testing.T) {
	t.Parallel()

	d := Diff(Default(), Default())
	if d.LogLevelChanged || d.GlossaryChanged || d.VoicesChanged {
		t.Errorf("diff of identical configs = %+v", d)
	}
}
