// Package tree holds the virtual file tree helpers every pipeline stage is
// built on. A tree is a plain [fs.FS] whose regular files are its entries;
// directories only exist to hold files and are synthesized where needed.
// Stages never modify a tree they were handed, they return a new one.
package tree

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"testing/fstest"

	"github.com/cespare/xxhash/v2"
)

// MapFS returns an in-memory tree with the given string contents.
func MapFS(m map[string]string) fs.FS {
	m0 := make(map[string]*fstest.MapFile, len(m))
	for p, f := range m {
		m0[p] = &fstest.MapFile{Data: []byte(f), Mode: 0o644}
	}
	return fstest.MapFS(m0)
}

// BytesFS returns an in-memory tree with the given contents. The map is not
// copied; callers must not modify it afterwards.
func BytesFS(m map[string][]byte) fs.FS {
	m0 := make(map[string]*fstest.MapFile, len(m))
	for p, f := range m {
		m0[p] = &fstest.MapFile{Data: f, Mode: 0o644}
	}
	return fstest.MapFS(m0)
}

// Empty returns a tree without files.
func Empty() fs.FS {
	return fstest.MapFS{}
}

// Files returns the paths of all regular files in fsys, sorted
// lexicographically. The order never depends on the order the underlying
// filesystem lists directories in.
func Files(fsys fs.FS) ([]string, error) {
	var paths []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)
	return paths, nil
}

// Snapshot reads every file of fsys into memory.
func Snapshot(fsys fs.FS) (map[string][]byte, error) {
	paths, err := Files(fsys)
	if err != nil {
		return nil, err
	}
	m := make(map[string][]byte, len(paths))
	for _, p := range paths {
		bs, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, err
		}
		m[p] = bs
	}
	return m, nil
}

// ContainsFiles returns true if the given fs.FS contains any files, and false otherwise.
func ContainsFiles(fsys fs.FS) (bool, error) {
	// errFound is a sentinel error used to stop the walk when a file is found.
	errFound := os.ErrExist

	err := fs.WalkDir(fsys, ".", func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			// Found a file, so return a special error to stop the walk.
			return errFound
		}
		return nil
	})
	if err == errFound {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, err
}

// IsDir reports whether name exists in fsys and is a directory.
func IsDir(fsys fs.FS, name string) (bool, error) {
	fi, err := fs.Stat(fsys, name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	}
	return fi.IsDir(), nil
}

// Digest hashes the paths and contents of all files of fsys in path order.
// Two trees with the same digest are byte-identical with overwhelming
// probability.
func Digest(fsys fs.FS) (uint64, error) {
	paths, err := Files(fsys)
	if err != nil {
		return 0, err
	}
	h := xxhash.New()
	for _, p := range paths {
		bs, err := fs.ReadFile(fsys, p)
		if err != nil {
			return 0, err
		}
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(bs)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64(), nil
}
