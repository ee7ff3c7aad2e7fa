package handlers

import (
	"context"

	"github.com/lynkia/deployer/internal/orchestration"
)

// DeployFlags are the deploy command's own flags.
type DeployFlags struct {
	Publish     bool
	KeepStaging bool
}

// Deploy builds the archive and provisions it with terraform.
//
// The workflow is: resolve the workspace, clean, install dependencies,
// assemble and copy the archive, optionally publish it, check the
// deployment configuration, then run terraform init and apply. The exit
// status is derived from the returned error by pipeline.ExitCode.
func Deploy(ctx context.Context, g Globals, f DeployFlags) error {
	s := newSession(g, "deploy")
	_, err := s.deployer(keepStaging(f.KeepStaging)).Deploy(ctx, orchestration.DeployOptions{Publish: f.Publish})
	return s.finish(err)
}

// Build produces the archive without provisioning.
func Build(ctx context.Context, g Globals, keep bool) error {
	s := newSession(g, "build")
	_, err := s.deployer(keepStaging(keep)).Build(ctx)
	return s.finish(err)
}

// Clean removes the staging directory and the archive.
func Clean(ctx context.Context, g Globals) error {
	s := newSession(g, "clean")
	_, err := s.deployer(nil).Clean(ctx)
	return s.finish(err)
}

// Publish uploads the archive of a previous build to object storage.
func Publish(ctx context.Context, g Globals) error {
	s := newSession(g, "publish")
	_, err := s.deployer(nil).Publish(ctx)
	return s.finish(err)
}
