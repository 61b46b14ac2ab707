// Package export writes the note collection out as a zip archive.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yash-srivastava19/canopy/internal/display"
	"github.com/yash-srivastava19/canopy/internal/notes"
)

// Archive builds a zip holding one markdown file per note. Trashed notes go
// under trash/, the rest under notes/. File names come from note titles and
// are made unique.
func Archive(ctx context.Context, list []notes.Note) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	used := make(map[string]int)

	for _, n := range list {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := "notes"
		if n.Deleted {
			dir = "trash"
		}
		name := uniqueName(used, dir+"/"+FileName(n))

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: n.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("export: add %s: %w", name, err)
		}
		if _, err := w.Write([]byte(notes.Encode(n))); err != nil {
			return nil, fmt.Errorf("export: write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("export: finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName derives a file name from the note's title.
func FileName(n notes.Note) string {
	s := strings.ToLower(display.Title(n.Content))
	var out strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			out.WriteRune('-')
		}
	}
	result := strings.Trim(out.String(), "-")
	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	if result == "" || result == "new-note" {
		result = n.ID
	}
	return result + ".md"
}

func uniqueName(used map[string]int, name string) string {
	used[name]++
	if used[name] == 1 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), used[name], ext)
}

// WriteFile writes data to path through a temp file in the same directory.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".canopy-export-*")
	if err != nil {
		return fmt.Errorf("export: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("export: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: rename: %w", err)
	}
	return nil
}
