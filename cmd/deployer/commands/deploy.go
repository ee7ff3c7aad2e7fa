package commands

import (
	"github.com/spf13/cobra"

	"github.com/lynkia/deployer/cmd/deployer/handlers"
)

// Deploy returns the command that builds the archive and provisions it.
//
// Optional flags:
//
//	--publish: Upload the archive to object storage before provisioning
//	--keep-staging: Keep the staging directory after the run
//
// Environment variables:
//
//	DEPLOYER_WORKSPACE: Workspace root
//	DEPLOYER_PIP: pip invocation (e.g. "python3 -m pip")
//	DEPLOYER_TERRAFORM: terraform binary (e.g. "tofu")
func Deploy(g *handlers.Globals) *cobra.Command {
	var f handlers.DeployFlags

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Build the archive and apply the infrastructure",
		Long: `Build the application archive and deploy it with terraform.

Stages run strictly in order and the first failure stops the run:
  resolve, clean, install, assemble, [publish], gate, provision

The gate requires the deployment configuration (terraform.tfvars) in the
provisioning directory. Without it terraform is never started and the exit
status is 2. Use 'deployer init' to create it from the template.

Examples:
  # Deploy from the workspace containing this binary
  deployer deploy

  # Deploy a specific checkout and keep the staging directory
  deployer deploy -w ~/src/agent --keep-staging`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), *g, f)
		},
	}

	cmd.Flags().BoolVar(&f.Publish, "publish", false, "Upload the archive to object storage before provisioning")
	cmd.Flags().BoolVar(&f.KeepStaging, "keep-staging", false, "Keep the staging directory after the run")

	return cmd
}
