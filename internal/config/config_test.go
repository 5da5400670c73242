package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	m := NewManager()
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := m.Get()
	want := *DefaultConfig()
	if got != want {
		t.Errorf("got %+v, want defaults %+v", got, want)
	}

	if _, err := os.Stat(ConfigPath()); err != nil {
		t.Errorf("expected config file to be created: %v", err)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	path := filepath.Join(home, ".config", "pixcore", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"cache_cap_entries": 5, "bogus_field": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	if err := m.Load(); err != nil {
		t.Fatalf("Load should not return error on parse failure: %v", err)
	}
	if m.ParseError() == nil {
		t.Error("expected a stored parse error for unknown field")
	}
	if got := m.Get(); got != *DefaultConfig() {
		t.Errorf("expected fallback to defaults, got %+v", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	m := NewManager()
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}
	cfg := m.Get()
	cfg.WorkerPoolSize = 8
	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}

	m2 := NewManager()
	if err := m2.Load(); err != nil {
		t.Fatal(err)
	}
	if got := m2.Get(); got.WorkerPoolSize != 8 {
		t.Errorf("got WorkerPoolSize=%d, want 8", got.WorkerPoolSize)
	}
}
