package commands

import (
	"github.com/spf13/cobra"

	"github.com/lynkia/deployer/cmd/deployer/handlers"
)

// Publish returns the command that uploads a built archive.
//
// Environment variables:
//
//	DEPLOYER_PUBLISH_BUCKET: Target bucket, overriding publish.bucket
//	AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_PROFILE: Credentials
func Publish(g *handlers.Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Upload the built archive to object storage",
		Long: `Upload the archive of a previous build to S3-compatible object storage.

The object key embeds the archive digest, <prefix>/<name>-<digest>.zip,
so publishing an unchanged build again is a no-op.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Publish(cmd.Context(), *g)
		},
	}
}
