// The directory handling here is based on testing/fstest, go1.25.2:
// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// Altered to serve a fixed table of renamed files out of another fs.FS.

package tree

import (
	"io"
	"io/fs"
	"path"
	"slices"
	"time"
)

// A RemapFS exposes selected files of an underlying [fs.FS] under new paths.
//
// The table maps destination paths to source paths. Parent directories of
// the destinations are synthesized. File contents are only read from the
// source when a file is opened, so building a RemapFS is cheap.
type RemapFS struct {
	src   fs.FS
	files map[string]string
	dirs  map[string][]string
}

var (
	_ fs.FS         = (*RemapFS)(nil)
	_ fs.ReadFileFS = (*RemapFS)(nil)
)

// Remap returns a view of src in which every entry of files (destination ->
// source) appears at its destination path. The map is copied.
func Remap(src fs.FS, files map[string]string) *RemapFS {
	r := &RemapFS{
		src:   src,
		files: make(map[string]string, len(files)),
		dirs:  map[string][]string{".": nil},
	}
	for dst, from := range files {
		r.files[dst] = from
		r.addParents(dst)
	}
	for dir := range r.dirs {
		slices.Sort(r.dirs[dir])
		r.dirs[dir] = slices.Compact(r.dirs[dir])
	}
	return r
}

func (r *RemapFS) addParents(name string) {
	for {
		dir, elem := path.Dir(name), path.Base(name)
		r.dirs[dir] = append(r.dirs[dir], elem)
		if dir == "." {
			return
		}
		if _, ok := r.dirs[dir]; ok && len(r.dirs[dir]) > 1 {
			// parents of dir were added when dir was first seen
			return
		}
		name = dir
	}
}

// Open opens the named file or synthesized directory.
func (r *RemapFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if from, ok := r.files[name]; ok {
		f, err := r.src.Open(from)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: unwrapPathError(err)}
		}
		return &remapFile{File: f, name: path.Base(name)}, nil
	}
	children, ok := r.dirs[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	list := make([]remapEntry, 0, len(children))
	for _, child := range children {
		full := child
		if name != "." {
			full = name + "/" + child
		}
		e := remapEntry{name: child}
		if from, ok := r.files[full]; ok {
			e.src, e.from = r.src, from
		}
		list = append(list, e)
	}
	return &remapDir{path: name, info: dirInfo{name: path.Base(name)}, entry: list}, nil
}

// ReadFile reads the named file from the underlying source.
func (r *RemapFS) ReadFile(name string) ([]byte, error) {
	from, ok := r.files[name]
	if !ok {
		if _, isDir := r.dirs[name]; isDir {
			return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
		}
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	bs, err := fs.ReadFile(r.src, from)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: unwrapPathError(err)}
	}
	return bs, nil
}

func unwrapPathError(err error) error {
	if pe, ok := err.(*fs.PathError); ok {
		return pe.Err
	}
	return err
}

// remapFile is a source file reporting its destination base name.
type remapFile struct {
	fs.File
	name string
}

func (f *remapFile) Stat() (fs.FileInfo, error) {
	fi, err := f.File.Stat()
	if err != nil {
		return nil, err
	}
	return renamedInfo{FileInfo: fi, name: f.name}, nil
}

type renamedInfo struct {
	fs.FileInfo
	name string
}

func (i renamedInfo) Name() string { return i.name }

// dirInfo describes a synthesized directory.
type dirInfo struct {
	name string
}

func (i dirInfo) Name() string               { return i.name }
func (dirInfo) Size() int64                  { return 0 }
func (dirInfo) Mode() fs.FileMode            { return fs.ModeDir | 0o555 }
func (dirInfo) Type() fs.FileMode            { return fs.ModeDir }
func (dirInfo) ModTime() time.Time           { return time.Time{} }
func (dirInfo) IsDir() bool                  { return true }
func (dirInfo) Sys() any                     { return nil }
func (i dirInfo) Info() (fs.FileInfo, error) { return i, nil }

func (i dirInfo) String() string {
	return fs.FormatFileInfo(i)
}

// remapEntry implements fs.DirEntry. Entries backed by a source file stat it
// lazily; the others are synthesized directories.
type remapEntry struct {
	name string
	src  fs.FS
	from string
}

func (e *remapEntry) Name() string { return e.name }
func (e *remapEntry) IsDir() bool  { return e.src == nil }

func (e *remapEntry) Type() fs.FileMode {
	if e.IsDir() {
		return fs.ModeDir
	}
	return 0
}

func (e *remapEntry) Info() (fs.FileInfo, error) {
	if e.IsDir() {
		return dirInfo{name: e.name}, nil
	}
	fi, err := fs.Stat(e.src, e.from)
	if err != nil {
		return nil, err
	}
	return renamedInfo{FileInfo: fi, name: e.name}, nil
}

func (e *remapEntry) String() string {
	return fs.FormatDirEntry(e)
}

// A remapDir is a directory fs.File (so also a fs.ReadDirFile) open for reading.
type remapDir struct {
	path   string
	info   dirInfo
	entry  []remapEntry
	offset int
}

func (d *remapDir) Stat() (fs.FileInfo, error) { return d.info, nil }
func (*remapDir) Close() error                 { return nil }
func (d *remapDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.path, Err: fs.ErrInvalid}
}

func (d *remapDir) ReadDir(count int) ([]fs.DirEntry, error) {
	n := len(d.entry) - d.offset
	if n == 0 && count > 0 {
		return nil, io.EOF
	}
	if count > 0 && n > count {
		n = count
	}
	list := make([]fs.DirEntry, n)
	for i := range list {
		list[i] = &d.entry[d.offset+i]
	}
	d.offset += n
	return list, nil
}
