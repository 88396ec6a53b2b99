// Package selector projects a subset of a tree into a new tree, optionally
// moving it below another directory or renaming files one by one.
package selector

import (
	"io/fs"
	"path"
	"strings"

	"github.com/tildeio/routerbuild/internal/builderr"
	"github.com/tildeio/routerbuild/internal/tree"
)

// Options is the closed set of selection settings. The zero value selects
// every file of the input tree at its original path.
type Options struct {
	// SourceDir restricts candidates to files below this directory and
	// strips it from their paths. It must exist in the input tree; an empty
	// directory is fine. Default: the tree root.
	SourceDir string

	// DestDir is prepended to every selected path. Default: the tree root.
	DestDir string

	// Include lists exact paths or globs, relative to SourceDir, that a
	// candidate must match. Default: all candidates pass.
	Include []string

	// Exclude lists globs, relative to SourceDir, removing candidates after
	// Include was applied. Default: nothing is excluded.
	Exclude []string

	// DestPath, when set, computes the final destination of each selected
	// file from its path relative to SourceDir, replacing the DestDir
	// computation. It only renames, it never filters.
	DestPath func(relPath string) string
}

// Select returns the view of fsys described by opts. Contents are read from
// fsys lazily; only the directory structure is walked up front.
func Select(fsys fs.FS, opts Options) (fs.FS, error) {
	src := clean(opts.SourceDir)
	if src != "." {
		ok, err := tree.IsDir(fsys, src)
		if err != nil {
			return nil, &builderr.ResolutionError{Name: src, Path: src, Err: err}
		}
		if !ok {
			return nil, &builderr.ResolutionError{Name: src, Path: src, Err: fs.ErrNotExist}
		}
	}

	include, err := tree.CompileGlobs(opts.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := tree.CompileGlobs(opts.Exclude)
	if err != nil {
		return nil, err
	}

	sub := fsys
	if src != "." {
		if sub, err = fs.Sub(fsys, src); err != nil {
			return nil, err
		}
	}
	paths, err := tree.Files(sub)
	if err != nil {
		return nil, err
	}

	dst := clean(opts.DestDir)
	files := make(map[string]string, len(paths))
	for _, rel := range paths {
		if !include.Empty() && !include.Match(rel) {
			continue
		}
		if exclude.Match(rel) {
			continue
		}
		to := path.Join(dst, rel)
		if opts.DestPath != nil {
			to = clean(opts.DestPath(rel))
		}
		files[to] = path.Join(src, rel)
	}
	return tree.Remap(fsys, files), nil
}

func clean(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}
	return path.Clean(p)
}
