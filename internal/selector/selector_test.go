package selector_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tildeio/routerbuild/internal/builderr"
	"github.com/tildeio/routerbuild/internal/selector"
	"github.com/tildeio/routerbuild/internal/tree"
)

func TestSelect(t *testing.T) {
	input := tree.MapFS(map[string]string{
		"router/x.js":           "x",
		"router/sub/y.js":       "y",
		"router.js":             "root",
		"other/z.js":            "z",
		"dist/rsvp.es.js":       "rsvp",
		"dist/rsvp.js":          "rsvp umd",
		"tests/index.html":      "<html>",
		"tests/router-test.ts":  "test",
		"tests/helpers/util.ts": "util",
	})

	cases := []struct {
		note string
		opts selector.Options
		exp  map[string]string
	}{
		{
			note: "source and dest dir",
			opts: selector.Options{SourceDir: "router", DestDir: "modules"},
			exp: map[string]string{
				"modules/x.js":     "x",
				"modules/sub/y.js": "y",
			},
		},
		{
			note: "everything by default",
			opts: selector.Options{},
			exp: map[string]string{
				"router/x.js":           "x",
				"router/sub/y.js":       "y",
				"router.js":             "root",
				"other/z.js":            "z",
				"dist/rsvp.es.js":       "rsvp",
				"dist/rsvp.js":          "rsvp umd",
				"tests/index.html":      "<html>",
				"tests/router-test.ts":  "test",
				"tests/helpers/util.ts": "util",
			},
		},
		{
			note: "include exact file, dest dir",
			opts: selector.Options{SourceDir: "tests", Include: []string{"index.html"}, DestDir: "tests"},
			exp:  map[string]string{"tests/index.html": "<html>"},
		},
		{
			note: "include glob",
			opts: selector.Options{SourceDir: "tests", Include: []string{"**/*.ts"}},
			exp: map[string]string{
				"router-test.ts":  "test",
				"helpers/util.ts": "util",
			},
		},
		{
			note: "exclude after include",
			opts: selector.Options{SourceDir: "tests", Include: []string{"**/*.ts"}, Exclude: []string{"helpers/**"}},
			exp:  map[string]string{"router-test.ts": "test"},
		},
		{
			note: "dest path renames survivors only",
			opts: selector.Options{
				SourceDir: "dist",
				Include:   []string{"rsvp.es.js"},
				DestPath:  func(string) string { return "rsvp.js" },
			},
			exp: map[string]string{"rsvp.js": "rsvp"},
		},
		{
			note: "slashes are normalized",
			opts: selector.Options{SourceDir: "/router/", DestDir: "cjs/"},
			exp: map[string]string{
				"cjs/x.js":     "x",
				"cjs/sub/y.js": "y",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			out, err := selector.Select(input, tc.opts)
			if err != nil {
				t.Fatal(err)
			}
			snap, err := tree.Snapshot(out)
			if err != nil {
				t.Fatal(err)
			}
			act := make(map[string]string, len(snap))
			for k, v := range snap {
				act[k] = string(v)
			}
			if diff := cmp.Diff(tc.exp, act); diff != "" {
				t.Errorf("select: (-want,+got)\n%s", diff)
			}
		})
	}
}

func TestSelectMissingSourceDir(t *testing.T) {
	input := tree.MapFS(map[string]string{"router/x.js": "x"})

	_, err := selector.Select(input, selector.Options{SourceDir: "lib"})
	var resErr *builderr.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	if exp, act := "lib", resErr.Path; exp != act {
		t.Fatalf("expected path %q, got %q", exp, act)
	}

	// a file is not a directory
	_, err = selector.Select(input, selector.Options{SourceDir: "router/x.js"})
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
}

func TestSelectEmptySourceDir(t *testing.T) {
	input := tree.MapFS(map[string]string{"router/x.js": "x"})

	// nothing matches the include list: valid, empty result
	out, err := selector.Select(input, selector.Options{SourceDir: "router", Include: []string{"*.ts"}})
	if err != nil {
		t.Fatal(err)
	}
	ok, err := tree.ContainsFiles(out)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected empty tree")
	}
}

func TestSelectInvalidGlob(t *testing.T) {
	input := tree.MapFS(map[string]string{"router/x.js": "x"})
	if _, err := selector.Select(input, selector.Options{Include: []string{"[x"}}); err == nil {
		t.Fatal("expected error")
	}
}
