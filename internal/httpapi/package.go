package httpapi

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExtractLar extracts a `.lar` (or plain `.zip`) archive rooted at
// `<lapp_name>/` into lappsDir, spec.md §6. Extraction is rejected outright
// if the destination directory already contains any files, so a re-upload
// never silently clobbers a running lapp's data.
//
// archive/zip is the standard library's own format reader; no pack example
// reaches for a third-party zip library for this narrow a need (documented
// in DESIGN.md as a stdlib justification).
func ExtractLar(lappsDir string, r io.ReaderAt, size int64) (lappName string, err error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("httpapi: opening archive: %w", err)
	}
	if len(zr.File) == 0 {
		return "", fmt.Errorf("httpapi: archive is empty")
	}

	lappName, err = archiveRootName(zr.File)
	if err != nil {
		return "", err
	}

	destRoot := filepath.Join(lappsDir, lappName)
	if entries, statErr := os.ReadDir(destRoot); statErr == nil && len(entries) > 0 {
		return "", fmt.Errorf("httpapi: %s already exists and is not empty", destRoot)
	}

	for _, f := range zr.File {
		if err := extractOne(lappsDir, f); err != nil {
			return "", err
		}
	}
	return lappName, nil
}

// archiveRootName validates that every entry in files lives under a single
// top-level `<lapp_name>/` directory and returns that name.
func archiveRootName(files []*zip.File) (string, error) {
	var root string
	for _, f := range files {
		name := filepath.ToSlash(f.Name)
		parts := strings.SplitN(name, "/", 2)
		top := parts[0]
		if top == "" || top == "." || top == ".." {
			return "", fmt.Errorf("httpapi: archive entry %q escapes its root", f.Name)
		}
		if root == "" {
			root = top
		} else if root != top {
			return "", fmt.Errorf("httpapi: archive has more than one top-level directory (%q and %q)", root, top)
		}
	}
	if root == "" {
		return "", fmt.Errorf("httpapi: archive has no top-level directory")
	}
	return root, nil
}

// extractOne writes a single zip entry under lappsDir, rejecting any path
// that would escape it via ".." components (zip-slip).
func extractOne(lappsDir string, f *zip.File) error {
	cleaned := filepath.Clean(filepath.FromSlash(f.Name))
	destPath := filepath.Join(lappsDir, cleaned)
	if !strings.HasPrefix(destPath, filepath.Clean(lappsDir)+string(os.PathSeparator)) {
		return fmt.Errorf("httpapi: archive entry %q escapes the lapps directory", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(destPath, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("httpapi: creating %s: %w", filepath.Dir(destPath), err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("httpapi: opening archive entry %q: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm()|0o600)
	if err != nil {
		return fmt.Errorf("httpapi: creating %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("httpapi: writing %s: %w", destPath, err)
	}
	return nil
}
