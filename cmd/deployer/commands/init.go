package commands

import (
	"github.com/spf13/cobra"

	"github.com/lynkia/deployer/cmd/deployer/handlers"
)

// Init returns the command that creates the deployment configuration.
func Init(g *handlers.Globals) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create terraform.tfvars from its template",
		Long: `Copy terraform.tfvars.example to terraform.tfvars in the provisioning
directory. Fill in the values before running 'deployer deploy'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), *g, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration")

	return cmd
}
