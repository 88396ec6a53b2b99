package compiler

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tildeio/routerbuild/internal/builderr"
	"github.com/tildeio/routerbuild/internal/tree"
)

// Command compiles by running an external tsc-compatible program. The
// input tree is staged into a temporary directory; `{in}` and `{out}` in
// Args are replaced by the staging and output directories.
type Command struct {
	Path string
	Args []string
	Env  []string
}

var _ Compiler = Command{}

// Tsc returns a Command running the TypeScript compiler found at path.
func Tsc(path string) Command {
	return Command{
		Path: path,
		Args: []string{
			"--rootDir", "{in}",
			"--outDir", "{out}",
			"--module", "es2015",
			"--target", "es2017",
			"--moduleResolution", "node",
			"--skipLibCheck",
		},
	}
}

// Compile implements Compiler.
func (c Command) Compile(ctx context.Context, fsys fs.FS) (fs.FS, error) {
	tmp, err := os.MkdirTemp("", "routerbuild-tsc-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	in, out := filepath.Join(tmp, "in"), filepath.Join(tmp, "out")
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, err
	}

	paths, err := tree.Files(fsys)
	if err != nil {
		return nil, err
	}
	var sources []string
	for _, p := range paths {
		if !IsSource(p) && !strings.HasSuffix(p, ".d.ts") {
			continue
		}
		bs, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, &builderr.CompileError{Path: p, Err: err}
		}
		dst := filepath.Join(in, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(dst, bs, 0o644); err != nil {
			return nil, err
		}
		if IsSource(p) {
			sources = append(sources, dst)
		}
	}
	if len(sources) == 0 {
		return tree.Empty(), nil
	}

	args := make([]string, 0, len(c.Args)+len(sources))
	for _, a := range c.Args {
		a = strings.ReplaceAll(a, "{in}", in)
		a = strings.ReplaceAll(a, "{out}", out)
		args = append(args, a)
	}
	args = append(args, sources...)

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return nil, &builderr.CompileError{
			Path:     ".",
			Messages: nonEmptyLines(output.String()),
			Err:      fmt.Errorf("%s: %w", filepath.Base(c.Path), err),
		}
	}

	result, err := tree.Snapshot(os.DirFS(out))
	if err != nil {
		return nil, err
	}
	for p := range result {
		if !strings.HasSuffix(p, ".js") {
			delete(result, p)
		}
	}
	return tree.BytesFS(result), nil
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
