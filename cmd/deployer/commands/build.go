package commands

import (
	"github.com/spf13/cobra"

	"github.com/lynkia/deployer/cmd/deployer/handlers"
)

// Build returns the command that produces the archive only.
func Build(g *handlers.Globals) *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Install dependencies and assemble the archive",
		Long: `Install dependencies and assemble the archive without deploying.

The archive is reproducible: building twice from the same sources and
dependencies yields the same sha256 digest.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Build(cmd.Context(), *g, keep)
		},
	}

	cmd.Flags().BoolVar(&keep, "keep-staging", false, "Keep the staging directory after the run")

	return cmd
}
