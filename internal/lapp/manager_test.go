package lapp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestManagerDiscoverRegistersSubdirectories(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"alpha", "beta"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	// A stray file alongside the lapp directories must be ignored.
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing stray file: %v", err)
	}

	m := NewManager(root)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	names := m.List()
	if len(names) != 2 {
		t.Fatalf("expected 2 lapps, got %v", names)
	}
}

func TestManagerLappNotFound(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, err := m.Lapp("missing"); !errors.Is(err, ErrLappNotFound) {
		t.Fatalf("expected ErrLappNotFound, got %v", err)
	}
}

func TestManagerCheckEnabledAndAllow(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	if err := os.Mkdir(filepath.Join(root, "demo"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := m.InsertLapp("demo"); err != nil {
		t.Fatalf("InsertLapp: %v", err)
	}
	l, err := m.Lapp("demo")
	if err != nil {
		t.Fatalf("Lapp: %v", err)
	}

	if err := m.CheckEnabledAndAllow(l); !errors.Is(err, ErrLappNotEnabled) {
		t.Fatalf("expected ErrLappNotEnabled, got %v", err)
	}

	if err := m.MutateSettings(l, func(s *Settings) {
		s.Enabled = true
		s.Required.Add(PermissionHTTP)
		s.allow(PermissionHTTP)
	}); err != nil {
		t.Fatalf("MutateSettings: %v", err)
	}

	if err := m.CheckEnabledAndAllow(l, PermissionHTTP); err != nil {
		t.Fatalf("expected http to be allowed, got %v", err)
	}
	var denied *PermissionDeniedError
	if err := m.CheckEnabledAndAllow(l, PermissionDatabase); !errors.As(err, &denied) {
		t.Fatalf("expected a PermissionDeniedError, got %v", err)
	}

	reloaded, err := LoadSettings(l.RootDir)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if !reloaded.Enabled || !reloaded.HasAllowed(PermissionHTTP) {
		t.Fatalf("expected MutateSettings to have persisted, got %+v", reloaded)
	}
}

func TestManagerRunServiceIfNeededRequiresLoadedLapp(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	if err := os.Mkdir(filepath.Join(root, "demo"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := m.InsertLapp("demo"); err != nil {
		t.Fatalf("InsertLapp: %v", err)
	}
	l, err := m.Lapp("demo")
	if err != nil {
		t.Fatalf("Lapp: %v", err)
	}
	if _, err := m.RunServiceIfNeeded(nil, l, nil); !errors.Is(err, ErrLappNotLoaded) {
		t.Fatalf("expected ErrLappNotLoaded, got %v", err)
	}
}
