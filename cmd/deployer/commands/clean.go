package commands

import (
	"github.com/spf13/cobra"

	"github.com/lynkia/deployer/cmd/deployer/handlers"
)

// Clean returns the command that removes build outputs.
func Clean(g *handlers.Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the staging directory and the archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Clean(cmd.Context(), *g)
		},
	}
}
