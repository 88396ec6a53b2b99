package tree_test

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/tildeio/routerbuild/internal/tree"
)

func TestFilesSorted(t *testing.T) {
	fsys := tree.MapFS(map[string]string{
		"b.js":     "b",
		"a/z.js":   "z",
		"a.js":     "a",
		"a/b/c.js": "c",
	})
	act, err := tree.Files(fsys)
	if err != nil {
		t.Fatal(err)
	}
	exp := []string{"a.js", "a/b/c.js", "a/z.js", "b.js"}
	if diff := cmp.Diff(exp, act); diff != "" {
		t.Errorf("files: (-want,+got)\n%s", diff)
	}
}

func TestRemap(t *testing.T) {
	src := tree.MapFS(map[string]string{
		"dist/rsvp.es.js": "export default 1;\n",
		"dist/other.js":   "other",
	})
	fsys := tree.Remap(src, map[string]string{
		"vendor/rsvp.js": "dist/rsvp.es.js",
	})

	if err := fstest.TestFS(fsys, "vendor/rsvp.js"); err != nil {
		t.Fatal(err)
	}

	bs, err := fs.ReadFile(fsys, "vendor/rsvp.js")
	if err != nil {
		t.Fatal(err)
	}
	if exp, act := "export default 1;\n", string(bs); exp != act {
		t.Fatalf("expected %q, got %q", exp, act)
	}

	fi, err := fs.Stat(fsys, "vendor/rsvp.js")
	if err != nil {
		t.Fatal(err)
	}
	if exp, act := "rsvp.js", fi.Name(); exp != act {
		t.Fatalf("expected name %q, got %q", exp, act)
	}

	if _, err := fsys.Open("dist/other.js"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
}

func TestRemapEmpty(t *testing.T) {
	fsys := tree.Remap(tree.Empty(), nil)
	files, err := tree.Files(fsys)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %v", files)
	}
	ok, err := tree.ContainsFiles(fsys)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected empty tree")
	}
}

func TestGlobs(t *testing.T) {
	cases := []struct {
		note     string
		patterns []string
		path     string
		exp      bool
	}{
		{note: "double star matches nested", patterns: []string{"**/*.js"}, path: "router/core.js", exp: true},
		{note: "double star matches root", patterns: []string{"**/*.js"}, path: "core.js", exp: true},
		{note: "single star stays in dir", patterns: []string{"*.js"}, path: "router/core.js", exp: false},
		{note: "exact name", patterns: []string{"index.html"}, path: "index.html", exp: true},
		{note: "inner double star matches zero dirs", patterns: []string{"a/**/b.js"}, path: "a/b.js", exp: true},
		{note: "inner double star matches many dirs", patterns: []string{"a/**/b.js"}, path: "a/x/y/b.js", exp: true},
		{note: "other extension", patterns: []string{"**/*.js"}, path: "qunit.css", exp: false},
		{note: "no patterns", patterns: nil, path: "a.js", exp: false},
	}
	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			m, err := tree.CompileGlobs(tc.patterns)
			if err != nil {
				t.Fatal(err)
			}
			if act := m.Match(tc.path); act != tc.exp {
				t.Fatalf("expected %v, got %v", tc.exp, act)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	src := tree.MapFS(map[string]string{
		"qunit.js":     "js",
		"qunit.css":    "css",
		"qunit.min.js": "min",
		"README.md":    "readme",
	})
	fsys, err := tree.Filter(src, []string{"qunit.*"}, []string{"*.min.js"})
	if err != nil {
		t.Fatal(err)
	}
	act, err := tree.Files(fsys)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"qunit.css", "qunit.js"}, act); diff != "" {
		t.Errorf("files: (-want,+got)\n%s", diff)
	}

	if _, err := tree.Filter(src, []string{"[unclosed"}, nil); err == nil {
		t.Fatal("expected error for invalid glob")
	}
}

func TestDigest(t *testing.T) {
	a := tree.MapFS(map[string]string{"a.js": "1", "b.js": "2"})
	b := tree.MapFS(map[string]string{"b.js": "2", "a.js": "1"})
	c := tree.MapFS(map[string]string{"a.js": "1", "b.js": "3"})

	da, err := tree.Digest(a)
	if err != nil {
		t.Fatal(err)
	}
	db, err := tree.Digest(b)
	if err != nil {
		t.Fatal(err)
	}
	dc, err := tree.Digest(c)
	if err != nil {
		t.Fatal(err)
	}
	if da != db {
		t.Errorf("expected equal digests, got %x and %x", da, db)
	}
	if da == dc {
		t.Errorf("expected different digests, got %x twice", da)
	}
}

func TestIsDir(t *testing.T) {
	fsys := tree.MapFS(map[string]string{"router/core.js": "x"})
	for path, exp := range map[string]bool{"router": true, "router/core.js": false, "missing": false} {
		act, err := tree.IsDir(fsys, path)
		if err != nil {
			t.Fatal(err)
		}
		if act != exp {
			t.Errorf("%s: expected %v, got %v", path, exp, act)
		}
	}
}

func TestTrace(t *testing.T) {
	var lines []string
	logf := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}
	fsys := tree.Trace(tree.MapFS(map[string]string{"a/b.js": "abc"}), logf)

	if _, err := fs.ReadFile(fsys, "a/b.js"); err != nil {
		t.Fatal(err)
	}
	if _, err := fsys.Open("missing"); err == nil {
		t.Fatal("expected error")
	}

	exp := []string{"open a/b.js (3 bytes)", "open missing: open missing: file does not exist"}
	if diff := cmp.Diff(exp, lines); diff != "" {
		t.Fatalf("(-want,+got)\n%s", diff)
	}
}
