// Package concat joins the files of a tree into a single bundle file.
//
// Files are concatenated in lexicographic path order, never in the order a
// directory walk happens to produce them, so the bundle is reproducible.
// No separator is inserted: each input must terminate itself.
package concat

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/tildeio/routerbuild/internal/builderr"
	"github.com/tildeio/routerbuild/internal/tree"
)

// Options is the closed set of concatenation settings.
type Options struct {
	// Include lists the globs selecting input files. Required.
	Include []string

	// Exclude lists globs removing files matched by Include. Default: none.
	Exclude []string

	// OutputFile is the path of the single file in the result. Required.
	OutputFile string

	// AllowEmpty turns a concatenation matching nothing into an empty
	// output file instead of a NoMatchError. Default: false.
	AllowEmpty bool

	// Header and Footer are written before the first and after the last
	// input. Default: empty.
	Header, Footer string
}

// Concat returns a tree holding only opts.OutputFile.
func Concat(fsys fs.FS, opts Options) (fs.FS, error) {
	out := strings.Trim(opts.OutputFile, "/")
	if out == "" || !fs.ValidPath(out) {
		return nil, fmt.Errorf("invalid output file %q", opts.OutputFile)
	}
	if len(opts.Include) == 0 {
		return nil, fmt.Errorf("concat %s: no include patterns", out)
	}
	inputs, err := tree.Filter(fsys, opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}
	paths, err := tree.Files(inputs)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(opts.Header)
	for _, p := range paths { // sorted
		bs, err := fs.ReadFile(inputs, p)
		if err != nil {
			return nil, fmt.Errorf("concat %s: %w", out, err)
		}
		buf.Write(bs)
	}
	if len(paths) == 0 && !opts.AllowEmpty {
		return nil, &builderr.NoMatchError{Patterns: opts.Include, OutputFile: path.Clean(out)}
	}
	buf.WriteString(opts.Footer)

	return tree.BytesFS(map[string][]byte{path.Clean(out): buf.Bytes()}), nil
}
