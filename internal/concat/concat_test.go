package concat_test

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/tildeio/routerbuild/internal/builderr"
	"github.com/tildeio/routerbuild/internal/concat"
	"github.com/tildeio/routerbuild/internal/tree"
)

func TestConcat(t *testing.T) {
	cases := []struct {
		note  string
		files map[string]string
		opts  concat.Options
		exp   string
	}{
		{
			note:  "lexicographic order",
			files: map[string]string{"b.js": "B;\n", "a.js": "A;\n"},
			opts:  concat.Options{Include: []string{"**/*.js"}, OutputFile: "out.js"},
			exp:   "A;\nB;\n",
		},
		{
			note: "nested paths sort by full path",
			files: map[string]string{
				"router/transition.js": "3",
				"router.js":            "1",
				"router/core.js":       "2",
				"route-recognizer.js":  "0",
			},
			opts: concat.Options{Include: []string{"**/*.js"}, OutputFile: "tests/router.amd.js"},
			exp:  "0123",
		},
		{
			note:  "no separator added",
			files: map[string]string{"a.js": "A", "b.js": "B"},
			opts:  concat.Options{Include: []string{"*.js"}, OutputFile: "out.js"},
			exp:   "AB",
		},
		{
			note:  "non-matching files skipped",
			files: map[string]string{"a.js": "A", "a.js.map": "MAP", "index.html": "HTML"},
			opts:  concat.Options{Include: []string{"**/*.js"}, OutputFile: "out.js"},
			exp:   "A",
		},
		{
			note:  "exclude",
			files: map[string]string{"a.js": "A", "b.js": "B"},
			opts:  concat.Options{Include: []string{"**/*.js"}, Exclude: []string{"b.js"}, OutputFile: "out.js"},
			exp:   "A",
		},
		{
			note:  "header and footer",
			files: map[string]string{"a.js": "A"},
			opts:  concat.Options{Include: []string{"**/*.js"}, OutputFile: "out.js", Header: "(function(){\n", Footer: "})();\n"},
			exp:   "(function(){\nA})();\n",
		},
		{
			note:  "allow empty",
			files: map[string]string{"a.css": "A"},
			opts:  concat.Options{Include: []string{"**/*.js"}, OutputFile: "out.js", AllowEmpty: true},
			exp:   "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			out, err := concat.Concat(tree.MapFS(tc.files), tc.opts)
			if err != nil {
				t.Fatal(err)
			}
			files, err := tree.Files(out)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]string{tc.opts.OutputFile}, files); diff != "" {
				t.Fatalf("files: (-want,+got)\n%s", diff)
			}
			bs, err := fs.ReadFile(out, tc.opts.OutputFile)
			if err != nil {
				t.Fatal(err)
			}
			if act := string(bs); act != tc.exp {
				t.Fatalf("expected %q, got %q", tc.exp, act)
			}
		})
	}
}

// shuffledFS lists directory entries in reverse order, like a filesystem
// whose enumeration order is not sorted.
type shuffledFS struct{ fstest.MapFS }

func (s shuffledFS) ReadDir(name string) ([]fs.DirEntry, error) {
	entries, err := s.MapFS.ReadDir(name)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func TestConcatIgnoresEnumerationOrder(t *testing.T) {
	fsys := shuffledFS{fstest.MapFS{
		"a.js":   {Data: []byte("a")},
		"b.js":   {Data: []byte("b")},
		"c/d.js": {Data: []byte("d")},
	}}
	out, err := concat.Concat(fsys, concat.Options{Include: []string{"**/*.js"}, OutputFile: "all.js"})
	if err != nil {
		t.Fatal(err)
	}
	bs, err := fs.ReadFile(out, "all.js")
	if err != nil {
		t.Fatal(err)
	}
	if exp, act := "abd", string(bs); exp != act {
		t.Fatalf("expected %q, got %q", exp, act)
	}
}

func TestConcatNoMatch(t *testing.T) {
	_, err := concat.Concat(tree.MapFS(map[string]string{"a.ts": "x"}), concat.Options{
		Include:    []string{"**/*.js"},
		OutputFile: "tests/tests.js",
	})
	var noMatch *builderr.NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("expected NoMatchError, got %v", err)
	}
	if exp, act := "tests/tests.js", noMatch.OutputFile; exp != act {
		t.Fatalf("expected output %q, got %q", exp, act)
	}
}

func TestConcatInvalidOptions(t *testing.T) {
	fsys := tree.MapFS(map[string]string{"a.js": "x"})
	for note, opts := range map[string]concat.Options{
		"missing output":  {Include: []string{"*.js"}},
		"missing include": {OutputFile: "out.js"},
		"invalid output":  {Include: []string{"*.js"}, OutputFile: "../out.js"},
	} {
		t.Run(note, func(t *testing.T) {
			if _, err := concat.Concat(fsys, opts); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
