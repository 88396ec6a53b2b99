// Package cmd implements the routerbuild command line.
package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"

	"github.com/tildeio/routerbuild/internal/logging"
)

type logLevel enumflag.Flag

const (
	levelInfo logLevel = iota
	levelDebug
	levelWarn
	levelError
)

var logLevelIDs = map[logLevel][]string{
	levelInfo:  {"info"},
	levelDebug: {"debug"},
	levelWarn:  {"warn"},
	levelError: {"error"},
}

type logFormat enumflag.Flag

const (
	formatText logFormat = iota
	formatJSON
)

var logFormatIDs = map[logFormat][]string{
	formatText: {string(logging.FormatText)},
	formatJSON: {string(logging.FormatJSON)},
}

type globalParams struct {
	level  logLevel
	format logFormat
}

var global globalParams

func (g globalParams) logger() (*logging.Logger, error) {
	return logging.New(logging.Config{
		Level:  logLevelIDs[g.level][0],
		Format: logging.Format(logFormatIDs[g.format][0]),
		Output: os.Stderr,
	})
}

var rootCmd = &cobra.Command{
	Use:           "routerbuild",
	Short:         "Build the router library, vendor and test bundles",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Var(
		enumflag.New(&global.level, "level", logLevelIDs, enumflag.EnumCaseInsensitive),
		"log-level", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Var(
		enumflag.New(&global.format, "format", logFormatIDs, enumflag.EnumCaseInsensitive),
		"log-format", "log format: text or json")
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	resetContexts(rootCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(rootCmd.ErrOrStderr(), err)
		return 1
	}
	return 0
}

// resetContexts clears the contexts left behind by an earlier Execute. Cobra
// only hands the new context to subcommands that have none.
func resetContexts(c *cobra.Command) {
	c.SetContext(nil)
	for _, sub := range c.Commands() {
		resetContexts(sub)
	}
}
