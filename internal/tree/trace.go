package tree

import (
	"io/fs"
)

type traceFS struct {
	fsys fs.FS
	logf func(format string, args ...any)
}

// Trace returns a view of fsys that reports every Open to logf.
func Trace(fsys fs.FS, logf func(format string, args ...any)) fs.FS {
	return &traceFS{fsys: fsys, logf: logf}
}

func (t *traceFS) Open(name string) (fs.File, error) {
	f, err := t.fsys.Open(name)
	if err != nil {
		t.logf("open %s: %v", name, err)
		return nil, err
	}
	switch fi, err := f.Stat(); {
	case err != nil:
		t.logf("open %s: stat: %v", name, err)
	case fi.IsDir():
		t.logf("open %s/", name)
	default:
		t.logf("open %s (%d bytes)", name, fi.Size())
	}
	return f, nil
}
