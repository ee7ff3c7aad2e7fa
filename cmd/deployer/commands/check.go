package commands

import (
	"github.com/spf13/cobra"

	"github.com/lynkia/deployer/cmd/deployer/handlers"
)

// Check returns the preflight command.
func Check(g *handlers.Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check required tools and deployment configuration",
		Long: `Check that pip and terraform are installed and recent enough, and that
the deployment configuration exists. Nothing is built or changed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Check(cmd.Context(), *g)
		},
	}
}
