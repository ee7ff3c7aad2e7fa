// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/lynkia/deployer/cmd/deployer/handlers"
)

// Root returns the root command for the deployer CLI.
//
// The root command owns the persistent flags shared by every subcommand.
// Errors are printed once by main, so cobra's own error and usage output is
// silenced.
func Root() *cobra.Command {
	var g handlers.Globals

	cmd := &cobra.Command{
		Use:   "deployer",
		Short: "Build and deploy the WhatsApp agent to AWS Lambda",
		Long: `Build the application archive and deploy it with terraform.

deployer installs the Python dependencies for the Lambda runtime, packages
them together with the application sources into a reproducible zip archive,
and runs terraform init and apply in the provisioning directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.Workspace, "workspace", "w", "", "Workspace root (default: $DEPLOYER_WORKSPACE or located from the executable)")
	flags.StringVarP(&g.ConfigPath, "config", "c", "", "Path to configuration file (default: <workspace>/deployer.yaml)")
	flags.BoolVar(&g.NoColor, "no-color", false, "Disable colored output")
	flags.BoolVarP(&g.Verbose, "verbose", "v", false, "Enable debug logging and stream pip output")
	flags.StringVar(&g.MetricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")

	// Pipeline commands
	cmd.AddCommand(Deploy(&g))
	cmd.AddCommand(Build(&g))
	cmd.AddCommand(Clean(&g))
	cmd.AddCommand(Publish(&g))

	// Utility commands
	cmd.AddCommand(Check(&g))
	cmd.AddCommand(Init(&g))
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
