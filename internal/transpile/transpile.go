// Package transpile rewrites ES modules into AMD or CommonJS modules.
//
// Each `.js` file of the input tree is first lowered to the configured
// platform target (esbuild), then parsed (tree-sitter) so that its
// top-level import and export statements can be replaced by the target
// format's wrapper. Program logic is left alone: exports become live getters
// on the exports object and imported bindings become member accesses on the
// dependency. Files that are not JavaScript pass through unchanged.
package transpile

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/tildeio/routerbuild/internal/builderr"
	"github.com/tildeio/routerbuild/internal/tree"
)

// Format is a target module format.
type Format int

const (
	AMD Format = iota
	CJS
)

func (f Format) String() string {
	switch f {
	case AMD:
		return "amd"
	case CJS:
		return "cjs"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Options is the closed set of transpile settings, the module descriptor.
type Options struct {
	// Format selects the module wrapper. Default: AMD.
	Format Format

	// Targets lists the platforms the output must run on, as esbuild
	// targets ("es2015") or engines ("chrome58", "node6", "ie11"). It only
	// decides which syntax is lowered, never the wrapper shape.
	// Default: no lowering.
	Targets []string

	// Resolver maps import specifiers to module ids. Default: AMDResolve
	// for AMD, Identity for CJS.
	Resolver Resolver
}

func (o Options) resolver() Resolver {
	if o.Resolver != nil {
		return o.Resolver
	}
	if o.Format == AMD {
		return AMDResolve
	}
	return Identity
}

// Transpile rewrites every `.js` file of fsys. Failures are
// *builderr.TranspileError naming the offending file.
func Transpile(ctx context.Context, fsys fs.FS, opts Options) (fs.FS, error) {
	lower, err := newLowerer(opts.Targets)
	if err != nil {
		return nil, err
	}
	paths, err := tree.Files(fsys)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bs, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, &builderr.TranspileError{Path: p, Err: err}
		}
		if !strings.HasSuffix(p, ".js") {
			out[p] = bs
			continue
		}
		if bs, err = lower.lower(p, bs); err != nil {
			return nil, err
		}
		if out[p], err = File(ctx, p, bs, opts); err != nil {
			return nil, err
		}
	}
	return tree.BytesFS(out), nil
}

// File rewrites a single, already lowered, ES module found at path p.
func File(ctx context.Context, p string, src []byte, opts Options) ([]byte, error) {
	m, err := parse(ctx, p, src)
	if err != nil {
		return nil, err
	}
	defer m.close()

	id := ModuleID(p)
	if err := m.analyze(id, opts.Format, opts.resolver()); err != nil {
		return nil, err
	}
	body, err := m.rewrite()
	if err != nil {
		return nil, err
	}
	switch opts.Format {
	case AMD:
		return m.wrapAMD(id, body), nil
	case CJS:
		return m.wrapCJS(body), nil
	}
	return nil, &builderr.TranspileError{Path: p, Msg: fmt.Sprintf("unsupported format %v", opts.Format)}
}

// ModuleID returns the module id of the file at p: its path without the
// `.js` extension.
func ModuleID(p string) string {
	return strings.TrimSuffix(p, ".js")
}
