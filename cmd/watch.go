package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tildeio/routerbuild/internal/pool"
	"github.com/tildeio/routerbuild/internal/watch"
)

const buildJob = "build"

var watchFlags buildParams

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Build, then rebuild whenever the sources change",
	Long: `Build all outputs, then watch the configured source directories and
rebuild after every change. A failed rebuild is logged and leaves the last
good output in place.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		log, err := global.logger()
		if err != nil {
			return err
		}
		cfg, err := watchFlags.config()
		if err != nil {
			return err
		}

		// A single worker serializes builds; changes during a build
		// coalesce into one rebuild right after it.
		p := pool.New(ctx, 1)
		p.Add(buildJob, func(ctx context.Context) time.Time {
			if err := watchFlags.build(ctx, cfg, log, cmd.ErrOrStderr()); err != nil {
				if ctx.Err() == nil {
					log.Errorf("build failed: %v", err)
				}
				return pool.Never
			}
			log.Infof("wrote %s", watchFlags.output)
			return pool.Never
		})

		dirs := make([]string, len(cfg.Watch.Dirs))
		for i, d := range cfg.Watch.Dirs {
			dirs[i] = filepath.Join(watchFlags.project, d)
		}
		w := watch.New(dirs, time.Duration(cfg.Watch.Debounce)).WithLogger(log)
		err = w.Run(ctx, func() {
			log.Debugf("sources changed")
			if err := p.Trigger(buildJob); err != nil {
				log.Warnf("%v", err)
			}
		})
		cancel()
		p.Wait()
		return err
	},
}

func init() {
	watchFlags.addFlags(watchCmd.Flags())
	rootCmd.AddCommand(watchCmd)
}
