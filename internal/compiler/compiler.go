// Package compiler turns trees of TypeScript sources into trees of plain
// JavaScript with the same layout. Type checking is out of scope; a
// compiler only has to strip types and keep ES module syntax intact.
package compiler

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/tildeio/routerbuild/internal/builderr"
	"github.com/tildeio/routerbuild/internal/tree"
)

// Compiler compiles a tree of typed sources. The result maps every `.ts`
// file (declaration files excepted) to a `.js` file at the same relative
// path. Failures are *builderr.CompileError.
type Compiler interface {
	Compile(ctx context.Context, fsys fs.FS) (fs.FS, error)
}

// ESBuild compiles in-process with esbuild's TypeScript loader.
type ESBuild struct {
	// TsconfigRaw is passed to esbuild verbatim, e.g. to set
	// `verbatimModuleSyntax`. Default: none.
	TsconfigRaw string
}

var _ Compiler = ESBuild{}

// Compile implements Compiler.
func (c ESBuild) Compile(ctx context.Context, fsys fs.FS) (fs.FS, error) {
	paths, err := tree.Files(fsys)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(paths))
	for _, p := range paths {
		if !IsSource(p) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, &builderr.CompileError{Path: p, Err: err}
		}
		res := api.Transform(string(src), api.TransformOptions{
			Loader:      api.LoaderTS,
			Sourcefile:  p,
			Target:      api.ESNext,
			Format:      api.FormatDefault,
			TsconfigRaw: c.TsconfigRaw,
			LogLevel:    api.LogLevelSilent,
		})
		if len(res.Errors) > 0 {
			return nil, &builderr.CompileError{Path: p, Messages: Messages(res.Errors)}
		}
		out[OutputPath(p)] = res.Code
	}
	return tree.BytesFS(out), nil
}

// IsSource reports whether p is compiled: TypeScript, not a declaration file.
func IsSource(p string) bool {
	return strings.HasSuffix(p, ".ts") && !strings.HasSuffix(p, ".d.ts")
}

// OutputPath maps a source path to its compiled path.
func OutputPath(p string) string {
	return strings.TrimSuffix(p, path.Ext(p)) + ".js"
}

// Messages renders esbuild messages as "line:column text".
func Messages(msgs []api.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			out = append(out, fmt.Sprintf("%d:%d %s", m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		out = append(out, m.Text)
	}
	return out
}
