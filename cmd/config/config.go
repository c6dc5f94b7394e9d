// Package config implements the config inspection subcommand.
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obralens/obralens/internal/conf"
)

// Command returns the config subcommand, which prints the effective
// configuration after defaults, file and environment are merged.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := settings.DumpYAML()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}
