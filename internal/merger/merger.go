// Package merger unions several trees into one.
//
// Inputs are ordered. When two inputs declare the same path, the entry of
// the later input wins. The same holds when a later input has a file where
// an earlier one has a directory (or the other way round): everything the
// earlier input had at or below that path is dropped. In strict mode any
// such collision is a MergeConflictError instead.
package merger

import (
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/yalue/merged_fs"

	"github.com/tildeio/routerbuild/internal/builderr"
	"github.com/tildeio/routerbuild/internal/tree"
)

// Options is the closed set of merge settings.
type Options struct {
	// Strict fails the merge on the first path collision instead of
	// resolving it in favour of the later input. Default: false.
	Strict bool
}

// Merge returns the union of trees.
func Merge(trees []fs.FS, opts Options) (fs.FS, error) {
	owners := make(map[string]int) // file path -> index of the input it comes from
	dirs := make(map[string]int)   // directory path -> last input holding it

	for i, t := range trees {
		paths, err := tree.Files(t)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			if j, ok := owners[p]; ok && j != i {
				if opts.Strict {
					return nil, &builderr.MergeConflictError{Path: p, Inputs: [2]int{j, i}}
				}
			}

			// an earlier file where this input has a directory
			for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
				if j, ok := owners[dir]; ok {
					if opts.Strict {
						return nil, &builderr.MergeConflictError{Path: dir, Inputs: [2]int{j, i}}
					}
					delete(owners, dir)
				}
			}

			// an earlier directory where this input has a file
			if _, ok := dirs[p]; ok {
				shadowed := shadowedBy(owners, p)
				if len(shadowed) > 0 && opts.Strict {
					return nil, &builderr.MergeConflictError{Path: shadowed[0], Inputs: [2]int{owners[shadowed[0]], i}}
				}
				for _, q := range shadowed {
					delete(owners, q)
				}
				delete(dirs, p)
			}

			owners[p] = i
			for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
				dirs[dir] = i
			}
		}
	}

	tables := make([]map[string]string, len(trees))
	for i := range tables {
		tables[i] = map[string]string{}
	}
	for p, i := range owners {
		tables[i][p] = p
	}

	// Collisions are resolved above, so the views never overlap on files and
	// merged_fs only has to union their directories. Later inputs still go
	// first, matching the precedence rule.
	views := make([]fs.FS, 0, len(trees))
	for i := len(trees) - 1; i >= 0; i-- {
		views = append(views, tree.Remap(trees[i], tables[i]))
	}
	return merged_fs.MergeMultiple(views...), nil
}

func shadowedBy(owners map[string]int, dir string) []string {
	prefix := dir + "/"
	var out []string
	for q := range owners {
		if strings.HasPrefix(q, prefix) {
			out = append(out, q)
		}
	}
	slices.Sort(out)
	return out
}
