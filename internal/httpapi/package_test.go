package httpapi

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func buildZip(t *testing.T, files map[string]string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip.Create(%s): %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestExtractLarWritesFilesUnderLappsDir(t *testing.T) {
	lappsDir := t.TempDir()
	archive := buildZip(t, map[string]string{
		"demo/config.toml":       "[application]\nname = \"demo\"\n",
		"demo/demo_server.wasm":  "binary-stub",
		"demo/static/index.html": "<html></html>",
	})

	name, err := ExtractLar(lappsDir, archive, int64(archive.Len()))
	if err != nil {
		t.Fatalf("ExtractLar: %v", err)
	}
	if name != "demo" {
		t.Fatalf("expected lapp name demo, got %s", name)
	}

	for _, rel := range []string{"config.toml", "demo_server.wasm", filepath.Join("static", "index.html")} {
		path := filepath.Join(lappsDir, "demo", rel)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to exist: %v", path, err)
		}
	}
}

func TestExtractLarRejectsNonEmptyDestination(t *testing.T) {
	lappsDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(lappsDir, "demo"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(lappsDir, "demo", "config.toml"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	archive := buildZip(t, map[string]string{"demo/config.toml": "[application]\n"})
	if _, err := ExtractLar(lappsDir, archive, int64(archive.Len())); err == nil {
		t.Fatal("expected an error extracting over a non-empty destination")
	}
}

func TestExtractLarRejectsMultipleTopLevelDirs(t *testing.T) {
	lappsDir := t.TempDir()
	archive := buildZip(t, map[string]string{
		"demo/config.toml":  "[application]\n",
		"other/config.toml": "[application]\n",
	})
	if _, err := ExtractLar(lappsDir, archive, int64(archive.Len())); err == nil {
		t.Fatal("expected an error for an archive with more than one top-level directory")
	}
}

func TestExtractLarRejectsPathEscape(t *testing.T) {
	lappsDir := t.TempDir()
	archive := buildZip(t, map[string]string{
		"../escape/config.toml": "[application]\n",
	})
	if _, err := ExtractLar(lappsDir, archive, int64(archive.Len())); err == nil {
		t.Fatal("expected an error for an archive entry escaping its root")
	}
}
