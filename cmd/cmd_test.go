package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tildeio/routerbuild/internal/test/tempfs"
)

var project = map[string]string{
	"lib/router/core.ts":   "export const core: string = \"core\";\n",
	"tests/index.html":     "<html></html>",
	"tests/router-test.ts": "import { core } from \"router/core\";\nQUnit.test(core, function () {});\n",

	"node_modules/rsvp/package.json":                            `{"module": "rsvp.es.js"}`,
	"node_modules/rsvp/rsvp.es.js":                              "export default {};\n",
	"node_modules/route-recognizer/package.json":                `{"module": "dist/route-recognizer.es.js"}`,
	"node_modules/route-recognizer/dist/route-recognizer.es.js": "export default {};\n",
	"node_modules/backburner.js/package.json":                   `{"jsnext:main": "dist/es6/backburner.js"}`,
	"node_modules/backburner.js/dist/es6/backburner.js":         "export default {};\n",
	"node_modules/loader.js/package.json":                       `{"main": "dist/loader.js"}`,
	"node_modules/loader.js/dist/loader.js":                     "var loader;\n",
	"node_modules/qunit/package.json":                           `{"main": "qunit/qunit.js"}`,
	"node_modules/qunit/qunit/qunit.js":                         "var QUnit;\n",
	"node_modules/qunit/qunit/qunit.css":                        "body {}\n",
}

func run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	return runContext(t, t.Context(), args...)
}

func runContext(t *testing.T, ctx context.Context, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})
	code := Execute(ctx)
	return stdout.String(), stderr.String(), code
}

// resetFlags restores every flag to its default, since the commands and
// their flag values are package state shared by all tests.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestBuildCommand(t *testing.T) {
	root := tempfs.Write(t, project)
	dist := filepath.Join(root, "dist")
	metricsFile := filepath.Join(root, "build.prom")

	_, stderr, code := run(t, "build", "--project", root, "--output", dist, "--metrics-file", metricsFile, "--log-level", "warn")
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, stderr)
	}

	for _, f := range []string{"modules/core.js", "cjs/core.js", "tests/router.amd.js", "tests/tests.js", "tests/index.html", "vendor/vendor.js", "vendor/loader.js", "vendor/qunit.js"} {
		if _, err := os.Stat(filepath.Join(dist, f)); err != nil {
			t.Errorf("expected %s: %v", f, err)
		}
	}

	bs, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(bs), "routerbuild_build_count") {
		t.Errorf("expected build metrics, got:\n%s", bs)
	}
}

func TestBuildCommandFailure(t *testing.T) {
	files := maps.Clone(project)
	files["lib/router/bad.ts"] = "export const = ;\n"
	root := tempfs.Write(t, files)
	dist := filepath.Join(root, "dist")

	_, stderr, code := run(t, "build", "--project", root, "--output", dist, "--log-level", "error")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "compile error") {
		t.Errorf("expected a compile error, got: %s", stderr)
	}
	if _, err := os.Stat(dist); !os.IsNotExist(err) {
		t.Errorf("expected no output directory, got %v", err)
	}
}

func TestBuildCommandConfig(t *testing.T) {
	root := tempfs.Write(t, project)
	cfg := filepath.Join(root, "routerbuild.yaml")
	if err := os.WriteFile(cfg, []byte("library:\n  es_dir: es\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	dist := filepath.Join(root, "out")

	_, stderr, code := run(t, "build", "--project", root, "--config", "routerbuild.yaml", "--output", dist, "--log-level", "warn")
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(dist, "es/core.js")); err != nil {
		t.Fatal(err)
	}
}

func TestExecuteAfterCancelledRun(t *testing.T) {
	root := tempfs.Write(t, project)

	ctx, cancel := context.WithCancel(t.Context())
	t.Run("first", func(t *testing.T) {
		_, stderr, code := runContext(t, ctx, "build", "--project", root, "--output", filepath.Join(root, "first"), "--log-level", "warn")
		if code != 0 {
			t.Fatalf("expected exit code 0, got %d: %s", code, stderr)
		}
	})
	cancel()

	_, stderr, code := run(t, "build", "--project", root, "--output", filepath.Join(root, "second"), "--log-level", "warn")
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(root, "second", "modules/core.js")); err != nil {
		t.Fatal(err)
	}
}

func TestGraphCommand(t *testing.T) {
	root := tempfs.Write(t, project)
	stdout, stderr, code := run(t, "graph", "--project", root)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, stderr)
	}
	for _, want := range []string{"compile-lib", "vendor:rsvp", "tests-bundle"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %s in:\n%s", want, stdout)
		}
	}
}

func TestSchemaCommand(t *testing.T) {
	stdout, stderr, code := run(t, "schema")
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, stderr)
	}
	if !json.Valid([]byte(stdout)) {
		t.Fatalf("expected JSON, got:\n%s", stdout)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, code := run(t, "schema", "--log-level", "loud")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}
