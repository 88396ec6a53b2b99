// Package locator finds the distributable files of installed packages.
//
// The pipeline never looks packages up on its own: it is handed a Func,
// which makes the lookup replaceable in tests.
package locator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/tildeio/routerbuild/internal/builderr"
)

// Func maps a package name and a preference-ordered list of package.json
// fields to the absolute path of the package's distributable file.
// Failures are *builderr.ResolutionError.
type Func func(name string, fields []string) (string, error)

// DefaultFields prefers the ES module build over the main entry point.
var DefaultFields = []string{"module", "main"}

// defaultMain is what Node loads when a package.json names no entry point.
const defaultMain = "index.js"

// NodeModules returns a Func resolving packages from the node_modules
// directories of root and its ancestors, nearest first.
func NodeModules(root string) Func {
	return func(name string, fields []string) (string, error) {
		if len(fields) == 0 {
			fields = DefaultFields
		}
		pkgRoot, err := findPackage(root, name)
		if err != nil {
			return "", err
		}
		manifest := filepath.Join(pkgRoot, "package.json")
		bs, err := os.ReadFile(manifest)
		if err != nil {
			return "", &builderr.ResolutionError{Name: name, Path: manifest, Err: err}
		}
		doc, err := oj.Parse(bs)
		if err != nil {
			return "", &builderr.ResolutionError{Name: name, Path: manifest, Err: fmt.Errorf("invalid package.json: %w", err)}
		}

		entry := ""
		for _, f := range fields {
			if s, ok := jp.C(f).First(doc).(string); ok && s != "" {
				entry = s
				break
			}
		}
		if entry == "" {
			entry = defaultMain
		}

		dist := filepath.Join(pkgRoot, filepath.FromSlash(entry))
		if _, err := os.Stat(dist); err != nil {
			return "", &builderr.ResolutionError{Name: name, Path: dist, Err: err}
		}
		return dist, nil
	}
}

func findPackage(root, name string) (string, error) {
	dir, err := filepath.Abs(root)
	if err != nil {
		return "", &builderr.ResolutionError{Name: name, Err: err}
	}
	first := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
	for {
		candidate := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
		fi, err := os.Stat(filepath.Join(candidate, "package.json"))
		switch {
		case err == nil && !fi.IsDir():
			return candidate, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", &builderr.ResolutionError{Name: name, Path: candidate, Err: err}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &builderr.ResolutionError{Name: name, Path: first, Err: fs.ErrNotExist}
		}
		dir = parent
	}
}

// Static returns a Func serving fixed answers, keyed by package name.
// Unknown names fail with a ResolutionError.
func Static(paths map[string]string) Func {
	return func(name string, _ []string) (string, error) {
		p, ok := paths[name]
		if !ok {
			return "", &builderr.ResolutionError{Name: name, Err: fs.ErrNotExist}
		}
		return p, nil
	}
}
