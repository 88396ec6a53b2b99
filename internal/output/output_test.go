package output_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tildeio/routerbuild/internal/output"
	"github.com/tildeio/routerbuild/internal/test/tempfs"
	"github.com/tildeio/routerbuild/internal/tree"
)

func TestWrite(t *testing.T) {
	cases := []struct {
		note     string
		existing map[string]string
		files    map[string]string
	}{
		{
			note:  "fresh directory",
			files: map[string]string{"modules/core.js": "core", "tests/tests.js": "tests"},
		},
		{
			note:     "stale files are removed",
			existing: map[string]string{"dist/modules/old.js": "old", "dist/vendor/vendor.js": "v0"},
			files:    map[string]string{"vendor/vendor.js": "v1"},
		},
		{
			note:     "empty tree",
			existing: map[string]string{"dist/a.js": "a"},
			files:    map[string]string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			root := tempfs.Write(t, tc.existing)
			dist := filepath.Join(root, "dist")

			if err := output.Write(tree.MapFS(tc.files), dist); err != nil {
				t.Fatal(err)
			}

			snap, err := tree.Snapshot(os.DirFS(dist))
			if err != nil {
				t.Fatal(err)
			}
			act := make(map[string]string, len(snap))
			for p, bs := range snap {
				act[p] = string(bs)
			}
			if diff := cmp.Diff(tc.files, act); diff != "" {
				t.Fatalf("(-want,+got)\n%s", diff)
			}

			entries, err := os.ReadDir(root)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 1 || entries[0].Name() != "dist" {
				t.Fatalf("expected only the output directory to remain, got %v", entries)
			}
		})
	}
}
