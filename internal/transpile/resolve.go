package transpile

import (
	"fmt"
	"strings"
)

// Resolver maps an import specifier found in the module parentID to the id
// of the imported module. It must be total over the specifiers of the tree
// it is used on: an error fails the transpile.
type Resolver func(specifier, parentID string) (string, error)

// AMDResolve resolves relative specifiers against the directory of the
// importing module and leaves bare specifiers alone, so `./core` imported
// from `router/route` becomes `router/core` while `rsvp` stays `rsvp`.
// Climbing above the root is an error.
func AMDResolve(specifier, parentID string) (string, error) {
	if !strings.HasPrefix(specifier, ".") {
		return strings.TrimSuffix(specifier, ".js"), nil
	}

	base := strings.Split(parentID, "/")
	base = base[:len(base)-1]
	for _, part := range strings.Split(specifier, "/") {
		switch part {
		case "..":
			if len(base) == 0 {
				return "", fmt.Errorf("cannot access parent module of root: %q from %q", specifier, parentID)
			}
			base = base[:len(base)-1]
		case ".", "":
		default:
			base = append(base, part)
		}
	}
	if len(base) == 0 {
		return "", fmt.Errorf("%q from %q resolves to the root", specifier, parentID)
	}
	return strings.TrimSuffix(strings.Join(base, "/"), ".js"), nil
}

// Identity keeps specifiers as written. CommonJS loaders resolve them
// at runtime.
func Identity(specifier, _ string) (string, error) {
	if specifier == "" {
		return "", fmt.Errorf("empty specifier")
	}
	return specifier, nil
}
