package tree

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/gobwas/glob"
)

// A Matcher matches slash-separated tree paths against a set of glob
// patterns. `*` does not cross directory boundaries, `**` does, and a
// `**/` segment also matches zero directories, so `**/*.js` matches `a.js`.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// CompileGlobs compiles patterns into a Matcher. An empty pattern list
// yields a Matcher that matches nothing; see Matcher.Empty.
func CompileGlobs(patterns []string) (*Matcher, error) {
	m := &Matcher{patterns: patterns}
	for _, p := range patterns {
		for _, variant := range expandDoubleStar(p) {
			g, err := glob.Compile(variant, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid glob %q: %w", p, err)
			}
			m.globs = append(m.globs, g)
		}
	}
	return m, nil
}

// expandDoubleStar returns p plus every variant of p with one or more of its
// `**/` segments removed.
func expandDoubleStar(p string) []string {
	i := strings.Index(p, "**/")
	if i < 0 || (i > 0 && p[i-1] != '/') {
		return []string{p}
	}
	var out []string
	for _, rest := range expandDoubleStar(p[i+3:]) {
		out = append(out, p[:i+3]+rest, p[:i]+rest)
	}
	return out
}

// Empty reports whether the Matcher was built without patterns.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// Match reports whether name matches any of the patterns.
func (m *Matcher) Match(name string) bool {
	if m == nil {
		return false
	}
	for _, g := range m.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Filter returns the view of fsys holding only the files matched by include
// (all files when include is empty) and not matched by exclude.
func Filter(fsys fs.FS, include, exclude []string) (*RemapFS, error) {
	inc, err := CompileGlobs(include)
	if err != nil {
		return nil, err
	}
	exc, err := CompileGlobs(exclude)
	if err != nil {
		return nil, err
	}
	paths, err := Files(fsys)
	if err != nil {
		return nil, err
	}
	files := make(map[string]string, len(paths))
	for _, p := range paths {
		if (inc.Empty() || inc.Match(p)) && !exc.Match(p) {
			files[p] = p
		}
	}
	return Remap(fsys, files), nil
}
