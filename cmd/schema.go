package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tildeio/routerbuild/internal/config"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		bs, err := config.ReflectSchema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(bs))
		return err
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
