package cmd

import (
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var graphFlags buildParams

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "List the build steps in execution order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := graphFlags.config()
		if err != nil {
			return err
		}
		g, err := graphFlags.pipeline(cfg, nil, nil).Graph()
		if err != nil {
			return err
		}
		order, err := g.Order()
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Step", "Inputs")
		for _, name := range order {
			if err := table.Append([]string{name, strings.Join(g.Deps(name), ", ")}); err != nil {
				return err
			}
		}
		return table.Render()
	},
}

func init() {
	graphFlags.addConfigFlags(graphCmd.Flags())
	rootCmd.AddCommand(graphCmd)
}
