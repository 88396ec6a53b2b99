package transpile

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/tildeio/routerbuild/internal/builderr"
	"github.com/tildeio/routerbuild/internal/compiler"
)

var esTargets = map[string]api.Target{
	"es5":    api.ES5,
	"es6":    api.ES2015,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

var engines = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"node":    api.EngineNode,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

type lowerer struct {
	enabled bool
	target  api.Target
	engines []api.Engine
}

// ValidateTargets reports targets esbuild cannot lower to.
func ValidateTargets(targets []string) error {
	_, err := newLowerer(targets)
	return err
}

func newLowerer(targets []string) (*lowerer, error) {
	l := &lowerer{enabled: len(targets) > 0}
	for _, t := range targets {
		t = strings.ToLower(strings.TrimSpace(t))
		if es, ok := esTargets[t]; ok {
			l.target = es
			continue
		}
		i := strings.IndexAny(t, "0123456789")
		if i <= 0 {
			return nil, fmt.Errorf("invalid platform target %q", t)
		}
		name, ok := engines[t[:i]]
		if !ok {
			return nil, fmt.Errorf("unknown engine in platform target %q", t)
		}
		l.engines = append(l.engines, api.Engine{Name: name, Version: t[i:]})
	}
	return l, nil
}

func (l *lowerer) lower(p string, src []byte) ([]byte, error) {
	if !l.enabled {
		return src, nil
	}
	res := api.Transform(string(src), api.TransformOptions{
		Loader:     api.LoaderJS,
		Sourcefile: p,
		Target:     l.target,
		Engines:    l.engines,
		Format:     api.FormatDefault,
		LogLevel:   api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return nil, &builderr.TranspileError{Path: p, Msg: strings.Join(compiler.Messages(res.Errors), "; ")}
	}
	return res.Code, nil
}
