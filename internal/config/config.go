// Package config holds the pipeline configuration. A configuration file only
// needs to name what differs from Default: parsing starts from the defaults
// and overlays the file.
package config

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/tildeio/routerbuild/internal/transpile"
	"github.com/tildeio/routerbuild/internal/tree"
)

// Config is the top-level configuration of a routerbuild run.
type Config struct {
	Library     Library       `json:"library,omitzero"`
	Tests       Tests         `json:"tests,omitzero"`
	Vendor      Vendor        `json:"vendor,omitzero"`
	Passthrough []Passthrough `json:"passthrough,omitempty"`
	Targets     Targets       `json:"targets,omitzero"`
	Merge       Merge         `json:"merge,omitzero"`
	Watch       Watch         `json:"watch,omitzero"`
	Workers     int           `json:"workers,omitzero" minimum:"1"`

	_ struct{} `additionalProperties:"false"`
}

// Library locates the library sources and names its outputs.
type Library struct {
	SourceDir string `json:"source_dir,omitzero"`
	Package   string `json:"package,omitzero"` // subdirectory of SourceDir holding the library modules
	ESDir     string `json:"es_dir,omitzero"`
	CJSDir    string `json:"cjs_dir,omitzero"`
	AMDBundle string `json:"amd_bundle,omitzero"`

	_ struct{} `additionalProperties:"false"`
}

type Tests struct {
	SourceDir string   `json:"source_dir,omitzero"`
	DestDir   string   `json:"dest_dir,omitzero"`
	Static    []string `json:"static,omitempty"` // copied verbatim, e.g. index.html
	Bundle    string   `json:"bundle,omitzero"`

	_ struct{} `additionalProperties:"false"`
}

type Vendor struct {
	Bundle   string    `json:"bundle,omitzero"`
	Packages []Package `json:"packages,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Package is an external dependency transpiled into the vendor bundle. The
// directory holding its distributable file is searched for Files; a single
// match may be renamed to Rename.
type Package struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields,omitempty"`
	Files  []string `json:"files,omitempty"`
	Rename string   `json:"rename,omitzero"`

	_ struct{} `additionalProperties:"false"`
}

// Passthrough is an external dependency copied as-is.
type Passthrough struct {
	Name    string   `json:"name"`
	Fields  []string `json:"fields,omitempty"`
	Files   []string `json:"files,omitempty"` // empty copies the whole directory
	DestDir string   `json:"dest_dir,omitzero"`

	_ struct{} `additionalProperties:"false"`
}

// Targets lists the platforms each module format must run on.
type Targets struct {
	AMD []string `json:"amd,omitempty"`
	CJS []string `json:"cjs,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

type Merge struct {
	Strict bool `json:"strict,omitzero"`

	_ struct{} `additionalProperties:"false"`
}

type Watch struct {
	Debounce Duration `json:"debounce,omitzero"`
	Dirs     []string `json:"dirs,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Default returns the configuration of the router package build.
func Default() *Config {
	return &Config{
		Library: Library{
			SourceDir: "lib",
			Package:   "router",
			ESDir:     "modules",
			CJSDir:    "cjs",
			AMDBundle: "tests/router.amd.js",
		},
		Tests: Tests{
			SourceDir: "tests",
			DestDir:   "tests",
			Static:    []string{"index.html"},
			Bundle:    "tests/tests.js",
		},
		Vendor: Vendor{
			Bundle: "vendor/vendor.js",
			Packages: []Package{
				{Name: "rsvp", Files: []string{"rsvp.es.js"}, Rename: "rsvp.js"},
				{Name: "route-recognizer", Files: []string{"route-recognizer.es.js"}, Rename: "route-recognizer.js"},
				{Name: "backburner.js", Fields: []string{"jsnext:main", "module", "main"}, Files: []string{"backburner.js"}},
			},
		},
		Passthrough: []Passthrough{
			{Name: "loader.js", DestDir: "vendor"},
			{Name: "qunit", Files: []string{"qunit.js", "qunit.css"}, DestDir: "vendor"},
		},
		Targets: Targets{
			AMD: []string{"es2015"},
			CJS: []string{"node6"},
		},
		Watch: Watch{
			Debounce: Duration(100 * time.Millisecond),
			Dirs:     []string{"lib", "tests"},
		},
		Workers: 4,
	}
}

// ParseFile reads and parses a configuration file.
func ParseFile(filename string) (*Config, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	return Parse(bs)
}

// Parse validates bs against the configuration schema and overlays it on
// Default. An empty document yields the defaults.
func Parse(bs []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(bs)) == 0 {
		return cfg, nil
	}
	if err := Validate(bs); err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(bs, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Check reports semantic errors the schema cannot express.
func (c *Config) Check() error {
	var errs []error

	for name, p := range map[string]string{
		"library.source_dir": c.Library.SourceDir,
		"library.package":    c.Library.Package,
		"library.amd_bundle": c.Library.AMDBundle,
		"tests.source_dir":   c.Tests.SourceDir,
		"tests.bundle":       c.Tests.Bundle,
		"vendor.bundle":      c.Vendor.Bundle,
	} {
		if p == "" {
			errs = append(errs, fmt.Errorf("%s: must not be empty", name))
		}
	}

	seen := map[string]bool{}
	for i, p := range c.Vendor.Packages {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("vendor.packages[%d]: name must not be empty", i))
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("vendor.packages[%d]: duplicate package %q", i, p.Name))
		}
		seen[p.Name] = true
		if _, err := tree.CompileGlobs(p.Files); err != nil {
			errs = append(errs, fmt.Errorf("vendor.packages[%d]: %w", i, err))
		}
	}

	seen = map[string]bool{}
	for i, p := range c.Passthrough {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("passthrough[%d]: name must not be empty", i))
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("passthrough[%d]: duplicate package %q", i, p.Name))
		}
		seen[p.Name] = true
		if _, err := tree.CompileGlobs(p.Files); err != nil {
			errs = append(errs, fmt.Errorf("passthrough[%d]: %w", i, err))
		}
	}

	if _, err := tree.CompileGlobs(c.Tests.Static); err != nil {
		errs = append(errs, fmt.Errorf("tests.static: %w", err))
	}
	if err := transpile.ValidateTargets(c.Targets.AMD); err != nil {
		errs = append(errs, fmt.Errorf("targets.amd: %w", err))
	}
	if err := transpile.ValidateTargets(c.Targets.CJS); err != nil {
		errs = append(errs, fmt.Errorf("targets.cjs: %w", err))
	}

	return errors.Join(errs...)
}

// WorkerCount returns the configured parallelism, at least one.
func (c *Config) WorkerCount() int {
	return max(cmp.Or(c.Workers, 1), 1)
}

// Instead of marshaling and unmarshaling as int64 it uses strings, like "5m" or "0.5s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	val, err := time.ParseDuration(str)
	*d = Duration(val)
	return err
}

func (d *Duration) UnmarshalYAML(bs []byte) error {
	var s string
	if err := yaml.Unmarshal(bs, &s); err != nil {
		return err
	}
	val, err := time.ParseDuration(s)
	*d = Duration(val)
	return err
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
