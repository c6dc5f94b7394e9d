// Package cmd assembles the CLI command tree.
package cmd

import (
	"github.com/spf13/cobra"

	configcmd "github.com/obralens/obralens/cmd/config"
	"github.com/obralens/obralens/cmd/serve"
	"github.com/obralens/obralens/cmd/user"
	"github.com/obralens/obralens/internal/buildinfo"
	"github.com/obralens/obralens/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "obralens",
		Short:   "ObraLens construction inspection server",
		Version: buildinfo.String(),
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		user.Command(settings),
		configcmd.Command(settings),
	)
	return rootCmd
}
