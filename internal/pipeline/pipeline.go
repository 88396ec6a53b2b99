// Package pipeline wires the tree stages into the router build graph and
// runs it.
//
// The graph is static. Library and test sources are compiled once; the
// compiled library fans out into an ES module view, a CommonJS view and a
// concatenated AMD bundle, while external packages are located through the
// injected locator, transpiled and concatenated into the vendor bundle. All
// branches are merged into a single output tree in a fixed order where later
// branches win.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/tildeio/routerbuild/internal/builderr"
	"github.com/tildeio/routerbuild/internal/compiler"
	"github.com/tildeio/routerbuild/internal/concat"
	"github.com/tildeio/routerbuild/internal/config"
	"github.com/tildeio/routerbuild/internal/locator"
	"github.com/tildeio/routerbuild/internal/logging"
	"github.com/tildeio/routerbuild/internal/merger"
	"github.com/tildeio/routerbuild/internal/metrics"
	"github.com/tildeio/routerbuild/internal/progress"
	"github.com/tildeio/routerbuild/internal/selector"
	"github.com/tildeio/routerbuild/internal/transpile"
	"github.com/tildeio/routerbuild/internal/tree"
)

const (
	NodeCompileLib      = "compile-lib"
	NodeCompileTests    = "compile-tests"
	NodeLibES           = "lib-es"
	NodeLibCJSTranspile = "lib-cjs-transpile"
	NodeLibCJS          = "lib-cjs"
	NodeLibAMD          = "lib-amd"
	NodeLibAMDBundle    = "lib-amd-bundle"
	NodeTestsAMD        = "tests-amd"
	NodeTestsBundle     = "tests-bundle"
	NodeVendorMerge     = "vendor-merge"
	NodeVendorBundle    = "vendor-bundle"
	NodeTestsHTML       = "tests-html"
	NodeOutput          = "output"
)

func VendorNode(name string) string      { return "vendor:" + name }
func PassthroughNode(name string) string { return "passthrough:" + name }

var errNoLocator = errors.New("no package locator configured")

// bundleInputs selects what the concatenations pick up.
var bundleInputs = []string{"**/*.js"}

type Pipeline struct {
	project  fs.FS
	cfg      *config.Config
	locate   locator.Func
	compiler compiler.Compiler
	log      *logging.Logger
	bar      *progress.Bar
	trace    bool
}

// New returns a pipeline over the project tree with the default
// configuration and the in-process compiler. A locator must be set before
// building.
func New(project fs.FS) *Pipeline {
	return &Pipeline{
		project:  project,
		cfg:      config.Default(),
		compiler: compiler.ESBuild{},
	}
}

func (p *Pipeline) WithConfig(cfg *config.Config) *Pipeline {
	p.cfg = cfg
	return p
}

func (p *Pipeline) WithLocator(f locator.Func) *Pipeline {
	p.locate = f
	return p
}

func (p *Pipeline) WithCompiler(c compiler.Compiler) *Pipeline {
	p.compiler = c
	return p
}

func (p *Pipeline) WithLogger(log *logging.Logger) *Pipeline {
	p.log = log
	return p
}

func (p *Pipeline) WithProgress(bar *progress.Bar) *Pipeline {
	p.bar = bar
	return p
}

func (p *Pipeline) WithTrace(trace bool) *Pipeline {
	p.trace = trace
	return p
}

// Build runs the whole graph and returns the output tree. On failure no
// tree is returned and the error is a *builderr.NodeError naming the first
// failing node.
func (p *Pipeline) Build(ctx context.Context) (fs.FS, error) {
	t0 := time.Now()
	metrics.BuildCount.Inc()
	metrics.LastBuildStart.SetToCurrentTime()
	defer func() {
		metrics.BuildDuration.Observe(time.Since(t0).Seconds())
		metrics.LastBuildEnd.SetToCurrentTime()
	}()

	out, err := p.build(ctx)
	if err != nil {
		metrics.BuildFailed.WithLabelValues(builderr.Kind(err)).Inc()
		return nil, err
	}
	files, err := tree.Files(out)
	if err != nil {
		return nil, err
	}
	metrics.OutputFiles.Set(float64(len(files)))
	p.log.Infof("built %d files in %v", len(files), time.Since(t0).Round(time.Millisecond))
	return out, nil
}

func (p *Pipeline) build(ctx context.Context) (fs.FS, error) {
	g, err := p.Graph()
	if err != nil {
		return nil, err
	}
	results, err := g.Run(ctx)
	if err != nil {
		return nil, err
	}
	return results[NodeOutput], nil
}

// Graph returns the wired, not yet executed, build graph.
func (p *Pipeline) Graph() (*Graph, error) {
	if p.locate == nil {
		return nil, errNoLocator
	}
	if p.cfg == nil {
		p.cfg = config.Default()
	}
	cfg := p.cfg

	g := NewGraph().
		WithWorkers(cfg.WorkerCount()).
		WithLogger(p.log).
		WithProgress(p.bar).
		WithTrace(p.trace)

	// 1. Compile.
	g.Add(NodeCompileLib, nil, p.compileDir(cfg.Library.SourceDir))
	g.Add(NodeCompileTests, nil, p.compileDir(cfg.Tests.SourceDir))

	// 2. Library ES and CommonJS views.
	g.Add(NodeLibES, []string{NodeCompileLib}, selectNode(selector.Options{
		SourceDir: cfg.Library.Package,
		DestDir:   cfg.Library.ESDir,
	}))
	g.Add(NodeLibCJSTranspile, []string{NodeCompileLib}, transpileNode(transpile.Options{
		Format:  transpile.CJS,
		Targets: cfg.Targets.CJS,
	}))
	g.Add(NodeLibCJS, []string{NodeLibCJSTranspile}, selectNode(selector.Options{
		SourceDir: cfg.Library.Package,
		DestDir:   cfg.Library.CJSDir,
	}))

	// 3. Library AMD bundle. Module ids keep the package directory, so
	// router/core.js is defined as "router/core".
	amd := transpile.Options{Format: transpile.AMD, Targets: cfg.Targets.AMD}
	g.Add(NodeLibAMD, []string{NodeCompileLib}, transpileNode(amd))
	g.Add(NodeLibAMDBundle, []string{NodeLibAMD}, concatNode(concat.Options{
		Include:    bundleInputs,
		OutputFile: cfg.Library.AMDBundle,
	}))

	// 4. Test bundle.
	g.Add(NodeTestsAMD, []string{NodeCompileTests}, transpileNode(amd))
	g.Add(NodeTestsBundle, []string{NodeTestsAMD}, concatNode(concat.Options{
		Include:    bundleInputs,
		OutputFile: cfg.Tests.Bundle,
	}))

	// 5. Vendor bundle.
	vendorNodes := make([]string, 0, len(cfg.Vendor.Packages))
	for _, pkg := range cfg.Vendor.Packages {
		name := VendorNode(pkg.Name)
		g.Add(name, nil, p.vendorNode(pkg, amd))
		vendorNodes = append(vendorNodes, name)
	}
	g.Add(NodeVendorMerge, vendorNodes, mergeNode(merger.Options{Strict: cfg.Merge.Strict}))
	g.Add(NodeVendorBundle, []string{NodeVendorMerge}, concatNode(concat.Options{
		Include:    bundleInputs,
		OutputFile: cfg.Vendor.Bundle,
		AllowEmpty: len(cfg.Vendor.Packages) == 0,
	}))

	// 6. Passthrough copies and the final merge. Order is precedence.
	passthrough := make([]string, 0, len(cfg.Passthrough))
	for _, pkg := range cfg.Passthrough {
		name := PassthroughNode(pkg.Name)
		g.Add(name, nil, p.passthroughNode(pkg))
		passthrough = append(passthrough, name)
	}
	g.Add(NodeTestsHTML, nil, p.projectNode(selector.Options{
		SourceDir: cfg.Tests.SourceDir,
		Include:   cfg.Tests.Static,
		DestDir:   cfg.Tests.DestDir,
	}))

	final := []string{NodeLibES, NodeLibCJS, NodeLibAMDBundle}
	final = append(final, passthrough...)
	final = append(final, NodeVendorBundle, NodeTestsHTML, NodeTestsBundle)
	g.Add(NodeOutput, final, mergeNode(merger.Options{Strict: cfg.Merge.Strict}))

	return g, nil
}

func (p *Pipeline) compileDir(dir string) NodeFunc {
	return func(ctx context.Context, _ []fs.FS) (fs.FS, error) {
		src, err := selector.Select(p.project, selector.Options{SourceDir: dir})
		if err != nil {
			return nil, err
		}
		return p.compiler.Compile(ctx, src)
	}
}

func (p *Pipeline) projectNode(opts selector.Options) NodeFunc {
	return func(context.Context, []fs.FS) (fs.FS, error) {
		t, err := selector.Select(p.project, opts)
		if err != nil {
			return nil, err
		}
		return materialize(t)
	}
}

func (p *Pipeline) vendorNode(pkg config.Package, opts transpile.Options) NodeFunc {
	return func(ctx context.Context, _ []fs.FS) (fs.FS, error) {
		t, err := p.packageTree(pkg.Name, pkg.Fields, selector.Options{Include: pkg.Files})
		if err != nil {
			return nil, err
		}
		if pkg.Rename != "" {
			files, err := tree.Files(t)
			if err != nil {
				return nil, &builderr.ResolutionError{Name: pkg.Name, Err: err}
			}
			if len(files) > 1 {
				return nil, &builderr.ResolutionError{
					Name: pkg.Name,
					Err:  fmt.Errorf("%d files selected but only one can be renamed to %s", len(files), pkg.Rename),
				}
			}
			t, err = selector.Select(t, selector.Options{DestPath: func(string) string { return pkg.Rename }})
			if err != nil {
				return nil, err
			}
		}
		return transpile.Transpile(ctx, t, opts)
	}
}

func (p *Pipeline) passthroughNode(pkg config.Passthrough) NodeFunc {
	return func(context.Context, []fs.FS) (fs.FS, error) {
		return p.packageTree(pkg.Name, pkg.Fields, selector.Options{
			Include: pkg.Files,
			DestDir: pkg.DestDir,
		})
	}
}

// packageTree selects from the directory holding the package's
// distributable file. The selection is read into memory so that the
// result does not change if the package does.
func (p *Pipeline) packageTree(name string, fields []string, opts selector.Options) (fs.FS, error) {
	dist, err := p.locate(name, fields)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(dist)
	t, err := selector.Select(os.DirFS(dir), opts)
	if err != nil {
		return nil, err
	}
	ok, err := tree.ContainsFiles(t)
	if err != nil {
		return nil, &builderr.ResolutionError{Name: name, Path: dir, Err: err}
	}
	if !ok {
		return nil, &builderr.ResolutionError{Name: name, Path: dir, Err: fmt.Errorf("no files matching %v", opts.Include)}
	}
	return materialize(t)
}

func selectNode(opts selector.Options) NodeFunc {
	return func(_ context.Context, in []fs.FS) (fs.FS, error) {
		return selector.Select(in[0], opts)
	}
}

func transpileNode(opts transpile.Options) NodeFunc {
	return func(ctx context.Context, in []fs.FS) (fs.FS, error) {
		return transpile.Transpile(ctx, in[0], opts)
	}
}

func concatNode(opts concat.Options) NodeFunc {
	return func(_ context.Context, in []fs.FS) (fs.FS, error) {
		return concat.Concat(in[0], opts)
	}
}

func mergeNode(opts merger.Options) NodeFunc {
	return func(_ context.Context, in []fs.FS) (fs.FS, error) {
		return merger.Merge(in, opts)
	}
}

func materialize(t fs.FS) (fs.FS, error) {
	m, err := tree.Snapshot(t)
	if err != nil {
		return nil, err
	}
	return tree.BytesFS(m), nil
}
