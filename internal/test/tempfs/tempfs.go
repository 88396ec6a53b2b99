// Package tempfs writes fixture file trees to temporary directories.
package tempfs

import (
	"os"
	"path/filepath"
	"testing"
)

// WithTempFS writes files (slash-separated relative path -> content) below a
// fresh temporary directory and calls f with its root. The directory is
// removed when the test finishes.
func WithTempFS(t *testing.T, files map[string]string, f func(t *testing.T, root string)) {
	t.Helper()
	f(t, Write(t, files))
}

// Write is like WithTempFS but returns the root instead of calling back.
func Write(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}
