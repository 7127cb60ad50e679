package lapp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"laplace/internal/security"
)

func TestAllowOnlyGrantsRequiredPermissions(t *testing.T) {
	s := DefaultSettings("demo", NewPermissionSet(PermissionHTTP, PermissionDatabase))

	if changed := s.allow(PermissionSleep); changed {
		t.Fatal("allowing an undeclared permission must be a no-op")
	}
	if s.HasAllowed(PermissionSleep) {
		t.Fatal("undeclared permission must not be granted")
	}

	if changed := s.allow(PermissionHTTP); !changed {
		t.Fatal("allowing a declared permission should report a change")
	}
	if !s.HasAllowed(PermissionHTTP) {
		t.Fatal("expected http to be granted")
	}

	if changed := s.allow(PermissionHTTP); changed {
		t.Fatal("allowing an already-granted permission should report no change")
	}
}

func TestDenyRevokesGrant(t *testing.T) {
	s := DefaultSettings("demo", NewPermissionSet(PermissionHTTP))
	s.allow(PermissionHTTP)
	if changed := s.deny(PermissionHTTP); !changed {
		t.Fatal("expected deny to report a change")
	}
	if s.HasAllowed(PermissionHTTP) {
		t.Fatal("expected http to no longer be granted")
	}
	if changed := s.deny(PermissionHTTP); changed {
		t.Fatal("denying an already-absent permission should report no change")
	}
}

func TestSaveLoadSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := DefaultSettings("demo", NewPermissionSet(PermissionHTTP, PermissionDatabase, PermissionSleep))
	s.Enabled = true
	s.allow(PermissionHTTP)
	s.allow(PermissionDatabase)
	s.DatabaseEnabled = true
	s.DatabasePath = "custom/demo.db"
	s.HTTPAllowedHosts = []string{"example.com"}
	s.HTTPAllowedMethods = []string{"GET", "POST"}
	s.HTTPTimeoutMS = 5000
	s.GossipsubTopics = []string{"demo.updates"}

	if err := SaveSettings(dir, s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	loaded, err := LoadSettings(dir)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}

	if loaded.Name != s.Name || loaded.Enabled != s.Enabled {
		t.Fatalf("application fields mismatch: got %+v", loaded)
	}
	if !loaded.HasAllowed(PermissionHTTP) || !loaded.HasAllowed(PermissionDatabase) {
		t.Fatal("expected granted permissions to survive round trip")
	}
	if loaded.HasAllowed(PermissionSleep) {
		t.Fatal("sleep was never granted and must not appear allowed")
	}
	if len(loaded.HTTPAllowedHosts) != 1 || loaded.HTTPAllowedHosts[0] != "example.com" {
		t.Fatalf("unexpected allowed hosts: %v", loaded.HTTPAllowedHosts)
	}
	if loaded.DatabasePath != "custom/demo.db" {
		t.Fatalf("expected database path to round trip, got %q", loaded.DatabasePath)
	}
	if loaded.HTTPTimeoutMS != 5000 {
		t.Fatalf("expected http timeout to round trip, got %d", loaded.HTTPTimeoutMS)
	}
	if len(loaded.GossipsubTopics) != 1 || loaded.GossipsubTopics[0] != "demo.updates" {
		t.Fatalf("unexpected gossipsub topics: %v", loaded.GossipsubTopics)
	}
}

func TestLoadSettingsClampsAllowedToRequired(t *testing.T) {
	dir := t.TempDir()
	raw := `
[application]
name = "demo"
enabled = true

[permissions]
required = ["http"]
allowed = ["http", "database"]
`
	if err := os.WriteFile(filepath.Join(dir, settingsFileName), []byte(raw), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	loaded, err := LoadSettings(dir)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if !loaded.HasAllowed(PermissionHTTP) {
		t.Fatal("http is required and allowed, expected granted")
	}
	if loaded.Allowed.Has(PermissionDatabase) {
		t.Fatal("database was not required, must be clamped out of allowed")
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadSettings(dir)
	if !os.IsNotExist(err) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}

func TestAccessTokenRoundTripsPlaintextWithoutSettingsKey(t *testing.T) {
	dir := t.TempDir()
	s := DefaultSettings("demo", NewPermissionSet())
	s.AccessToken = "plain-token"

	if err := SaveSettings(dir, s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	loaded, err := LoadSettings(dir)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if loaded.AccessToken != "plain-token" {
		t.Fatalf("expected plaintext round trip, got %q", loaded.AccessToken)
	}
}

func TestAccessTokenSealedOnDiskWithSettingsKey(t *testing.T) {
	SetSettingsKey(security.DeriveKey("test-passphrase"))
	defer SetSettingsKey(nil)

	dir := t.TempDir()
	s := DefaultSettings("demo", NewPermissionSet())
	s.AccessToken = "s3cr3t-token"

	if err := SaveSettings(dir, s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, settingsFileName))
	if err != nil {
		t.Fatalf("reading config.toml: %v", err)
	}
	if strings.Contains(string(raw), "s3cr3t-token") {
		t.Fatal("expected the access_token to not appear in plaintext on disk")
	}

	loaded, err := LoadSettings(dir)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if loaded.AccessToken != "s3cr3t-token" {
		t.Fatalf("expected the token to decrypt back to its original value, got %q", loaded.AccessToken)
	}
}
