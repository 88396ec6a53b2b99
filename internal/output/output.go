// Package output publishes a built tree to a directory on disk.
package output

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/tildeio/routerbuild/internal/tree"
)

// Write replaces dir with the contents of fsys. The files are first written
// to a staging directory next to dir, which is then renamed into place, so a
// reader never observes a partially written output. Files in dir that are
// not part of fsys are gone afterwards.
func Write(fsys fs.FS, dir string) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	parent, base := filepath.Dir(dir), filepath.Base(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	return publish(osfs.New(parent), fsys, base)
}

func publish(bfs billy.Filesystem, fsys fs.FS, base string) error {
	staging, err := util.TempDir(bfs, ".", "."+base+"-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	if ch, ok := bfs.(billy.Change); ok {
		if err := ch.Chmod(staging, 0o755); err != nil {
			_ = util.RemoveAll(bfs, staging)
			return err
		}
	}

	if err := copyTree(bfs, fsys, staging); err != nil {
		_ = util.RemoveAll(bfs, staging)
		return err
	}

	var old string
	if _, err := bfs.Stat(base); err == nil {
		old = staging + ".old"
		if err := bfs.Rename(base, old); err != nil {
			_ = util.RemoveAll(bfs, staging)
			return err
		}
	}
	if err := bfs.Rename(staging, base); err != nil {
		if old != "" {
			_ = bfs.Rename(old, base)
		}
		_ = util.RemoveAll(bfs, staging)
		return err
	}
	if old != "" {
		return util.RemoveAll(bfs, old)
	}
	return nil
}

func copyTree(bfs billy.Filesystem, fsys fs.FS, dir string) error {
	files, err := tree.Files(fsys)
	if err != nil {
		return err
	}
	if err := bfs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, p := range files {
		bs, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if err := util.WriteFile(bfs, path.Join(dir, p), bs, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
	}
	return nil
}
