package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tildeio/routerbuild/internal/builderr"
	"github.com/tildeio/routerbuild/internal/compiler"
	"github.com/tildeio/routerbuild/internal/config"
	"github.com/tildeio/routerbuild/internal/locator"
	"github.com/tildeio/routerbuild/internal/logging"
	"github.com/tildeio/routerbuild/internal/metrics"
	"github.com/tildeio/routerbuild/internal/output"
	"github.com/tildeio/routerbuild/internal/pipeline"
	"github.com/tildeio/routerbuild/internal/progress"
)

type buildParams struct {
	project      string
	output       string
	configFiles  []string
	strictConfig bool
	strictMerge  bool
	workers      int
	metricsFile  string
	progress     bool
	trace        bool
	tsc          string
}

func (p *buildParams) addConfigFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&p.project, "project", "p", ".", "project root holding the sources and node_modules")
	fs.StringSliceVarP(&p.configFiles, "config", "c", nil, "configuration file; repeat to merge several, later files win")
	fs.BoolVar(&p.strictConfig, "strict-config", false, "fail if merged configuration files set the same key")
}

func (p *buildParams) addFlags(fs *pflag.FlagSet) {
	p.addConfigFlags(fs)
	fs.StringVarP(&p.output, "output", "o", "dist", "output directory, replaced on every successful build")
	fs.BoolVar(&p.strictMerge, "strict", false, "fail if two branches of the build produce the same output file")
	fs.IntVarP(&p.workers, "workers", "w", 0, "maximum number of build steps run concurrently (default from configuration)")
	fs.StringVar(&p.metricsFile, "metrics-file", "", "write build metrics in the Prometheus text format to this file")
	fs.BoolVar(&p.progress, "progress", false, "show a progress bar on stderr")
	fs.StringVar(&p.tsc, "tsc", "", "compile with this tsc executable instead of the built-in compiler")
	fs.BoolVar(&p.trace, "trace", false, "log every file read between build steps (with --log-level debug)")
}

func (p *buildParams) config() (*config.Config, error) {
	files := make([]string, len(p.configFiles))
	for i, f := range p.configFiles {
		if !filepath.IsAbs(f) {
			f = filepath.Join(p.project, f)
		}
		files[i] = f
	}
	cfg, err := config.Load(files, p.strictConfig)
	if err != nil {
		return nil, err
	}
	if p.strictMerge {
		cfg.Merge.Strict = true
	}
	if p.workers > 0 {
		cfg.Workers = p.workers
	}
	return cfg, nil
}

func (p *buildParams) pipeline(cfg *config.Config, log *logging.Logger, bar *progress.Bar) *pipeline.Pipeline {
	pl := pipeline.New(os.DirFS(p.project)).
		WithConfig(cfg).
		WithLocator(locator.NodeModules(p.project)).
		WithLogger(log).
		WithProgress(bar).
		WithTrace(p.trace)
	if p.tsc != "" {
		pl = pl.WithCompiler(compiler.Tsc(p.tsc))
	}
	return pl
}

// build runs one build and publishes its output. Metrics are written even
// when the build fails.
func (p *buildParams) build(ctx context.Context, cfg *config.Config, log *logging.Logger, stderr io.Writer) error {
	bar := progress.New(p.progress, stderr, "building")
	defer bar.Finish()

	out, err := p.pipeline(cfg, log, bar).Build(ctx)
	if err == nil {
		err = output.Write(out, p.output)
	}
	if p.metricsFile != "" {
		if merr := metrics.WriteFile(p.metricsFile); merr != nil {
			log.Warnf("writing metrics: %v", merr)
		}
	}
	return err
}

var buildFlags buildParams

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build all outputs once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log, err := global.logger()
		if err != nil {
			return err
		}
		cfg, err := buildFlags.config()
		if err != nil {
			return err
		}
		if err := buildFlags.build(cmd.Context(), cfg, log, cmd.ErrOrStderr()); err != nil {
			return err
		}
		log.Infof("wrote %s", buildFlags.output)
		return nil
	},
}

func init() {
	buildFlags.addFlags(buildCmd.Flags())
	rootCmd.AddCommand(buildCmd)
}

func printError(w io.Writer, err error) {
	if kind := builderr.Kind(err); kind != "internal" {
		fmt.Fprintf(w, "%s error: %v\n", kind, err)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}
