package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

const watcherYAMLv1 = `
server:
  log_level: info
directions:
  fr-en: {source_lang: fr, target_lang: en, recognition_language: fr-FR}
glossary:
  terms: [Kubernetes]
`

const watcherYAMLv2 = `
server:
  log_level: debug
directions:
  fr-en: {source_lang: fr, target_lang: en, recognition_language: fr-FR}
glossary:
  terms: [Kubernetes, Grafana]
`

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// Nudge mtime so the poll's quick check notices the rewrite even on
	// filesystems with coarse timestamps.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, watcherYAMLv1)

	var mu sync.Mutex
	var got *Config
	onChange := func(_, new *Config) {
		mu.Lock()
		got = new
		mu.Unlock()
	}

	w, err := NewWatcher(path, onChange, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if lvl := w.Current().Server.LogLevel; lvl != LogInfo {
		t.Fatalf("initial log level = %q", lvl)
	}

	writeConfigFile(t, path, watcherYAMLv2)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		loaded := got
		mu.Unlock()
		if loaded != nil {
			if loaded.Server.LogLevel != LogDebug {
				t.Errorf("reloaded log level = %q", loaded.Server.LogLevel)
			}
			if len(loaded.Glossary.Terms) != 2 {
				t.Errorf("reloaded glossary = %v", loaded.Glossary.Terms)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("onChange never fired")
}

func TestWatcherKeepsOldConfigOnInvalidUpdate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, watcherYAMLv1)

	w, err := NewWatcher(path, nil, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeConfigFile(t, path, "server:\n  log_level: bogus\n")

	time.Sleep(200 * time.Millisecond)
	if lvl := w.Current().Server.LogLevel; lvl != LogInfo {
		t.Errorf("Current() log level = %q, want the last valid config", lvl)
	}
}

func TestNewWatcherFailsOnMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("NewWatcher accepted a missing file")
	}
}
