package builderr_test

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/tildeio/routerbuild/internal/builderr"
)

func TestNodeErrorUnwrap(t *testing.T) {
	stage := &builderr.TranspileError{Path: "router/core.js", Msg: "unresolved import \"../../x\""}
	err := fmt.Errorf("build: %w", &builderr.NodeError{Node: "lib-amd", Err: stage})

	var nodeErr *builderr.NodeError
	if !errors.As(err, &nodeErr) {
		t.Fatalf("expected NodeError in chain, got %v", err)
	}
	if exp, act := "lib-amd", nodeErr.Node; exp != act {
		t.Fatalf("expected node %q, got %q", exp, act)
	}

	var transpileErr *builderr.TranspileError
	if !errors.As(err, &transpileErr) {
		t.Fatalf("expected TranspileError in chain, got %v", err)
	}
	if exp, act := "router/core.js", builderr.Path(err); exp != act {
		t.Fatalf("expected path %q, got %q", exp, act)
	}
	if exp, act := "transpile", builderr.Kind(err); exp != act {
		t.Fatalf("expected kind %q, got %q", exp, act)
	}
}

func TestMessages(t *testing.T) {
	cases := []struct {
		note string
		err  error
		exp  string
	}{
		{
			note: "resolution with cause",
			err:  &builderr.ResolutionError{Name: "rsvp", Path: "node_modules/rsvp/package.json", Err: fs.ErrNotExist},
			exp:  `cannot resolve "rsvp" (at node_modules/rsvp/package.json): file does not exist`,
		},
		{
			note: "resolution of directory",
			err:  &builderr.ResolutionError{Name: "router"},
			exp:  `cannot resolve "router"`,
		},
		{
			note: "merge conflict",
			err:  &builderr.MergeConflictError{Path: "vendor/vendor.js", Inputs: [2]int{3, 5}},
			exp:  "merge conflict on vendor/vendor.js between inputs 3 and 5",
		},
		{
			note: "compile",
			err:  &builderr.CompileError{Path: "router/core.ts", Messages: []string{"1:4 Expected \";\""}},
			exp:  `compile router/core.ts: 1:4 Expected ";"`,
		},
		{
			note: "no match",
			err:  &builderr.NoMatchError{Patterns: []string{"**/*.js"}, OutputFile: "tests/tests.js"},
			exp:  "no files matched [**/*.js] for tests/tests.js",
		},
		{
			note: "node",
			err:  &builderr.NodeError{Node: "vendor:rsvp", Err: &builderr.ResolutionError{Name: "rsvp"}},
			exp:  `node vendor:rsvp: cannot resolve "rsvp"`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			if act := tc.err.Error(); act != tc.exp {
				t.Fatalf("expected %q, got %q", tc.exp, act)
			}
		})
	}
}
