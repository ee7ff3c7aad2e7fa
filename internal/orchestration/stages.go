package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/lynkia/deployer/internal/artifact"
	"github.com/lynkia/deployer/internal/deps"
	"github.com/lynkia/deployer/internal/gate"
	"github.com/lynkia/deployer/internal/pipeline"
	"github.com/lynkia/deployer/internal/platform/s3"
	"github.com/lynkia/deployer/internal/provision"
	"github.com/lynkia/deployer/internal/util/retry"
)

// run carries state between the stages of one pipeline run.
type run struct {
	d      *Deployer
	report *Report
	start  time.Time

	target  *Target
	source  billy.Filesystem
	builder *artifact.Builder
	items   []artifact.Item
}

func (r *run) resolveStage() pipeline.Stage {
	return pipeline.Stage{
		Name:  "resolve",
		Title: "Resolving workspace",
		Kind:  pipeline.ErrEnvironment,
		Run: func(context.Context) error {
			target, err := Resolve(r.d.settings)
			if err != nil {
				return err
			}
			cfg := target.Config

			items, err := artifact.ParseItems(cfg.Source.Items)
			if err != nil {
				return err
			}

			source := osfs.New(target.Workspace.SourceRoot)
			builder, err := artifact.NewBuilder(source, artifact.Options{
				StagingDir: cfg.Build.StagingDir,
				Archive:    cfg.Build.Archive,
				Exclude:    cfg.Build.Exclude,
				Logger:     r.d.opts.Logger,
			})
			if err != nil {
				return err
			}

			r.target, r.source, r.builder, r.items = target, source, builder, items
			r.report.Target = target

			r.d.opts.Console.Info("workspace %s", target.Workspace.Root)
			if target.ConfigFile != "" {
				r.d.opts.Console.Info("config %s", target.ConfigFile)
			}
			r.d.opts.Logger.Debug("workspace resolved",
				"source", target.Workspace.SourceRoot,
				"provision", target.Workspace.ProvisionRoot)
			return nil
		},
	}
}

// cleanStage removes the previous build. With exported set, the copy in the
// provisioning root goes too, so a failed run cannot leave an old archive
// next to the Terraform code.
func (r *run) cleanStage(exported bool) pipeline.Stage {
	return pipeline.Stage{
		Name:  "clean",
		Title: "Removing previous build",
		Kind:  pipeline.ErrAssemblyIO,
		Run: func(context.Context) error {
			if err := r.builder.Clean(); err != nil {
				return err
			}
			if !exported {
				return nil
			}
			ws, name := r.target.Workspace, r.target.Config.Provision.ArchiveName
			r.d.opts.Logger.Debug("removing exported archive", "path", ws.Provision(name))
			return artifact.Clean(osfs.New(ws.ProvisionRoot), name)
		},
	}
}

func (r *run) installStage() pipeline.Stage {
	return pipeline.Stage{
		Name:  "install",
		Title: "Installing dependencies",
		Kind:  pipeline.ErrDependencyResolution,
		Run: func(ctx context.Context) error {
			cfg, ws := r.target.Config, r.target.Workspace

			strategies := deps.DefaultStrategies(r.d.opts.Runner, deps.PipOptions{
				Command: cfg.Installer.Command,
				Stream:  r.d.opts.StreamInstall,
			})
			installer := deps.NewInstaller(strategies,
				deps.WithListener(r.d.installListeners()...),
				deps.WithLogger(r.d.opts.Logger))

			outcome, err := installer.Install(ctx, deps.Request{
				Requirements: ws.Source(cfg.Source.Requirements),
				Target:       ws.Source(cfg.Build.StagingDir),
				Platform:     cfg.Platform,
			})
			if err != nil {
				return err
			}
			r.report.Install = outcome

			problems, err := deps.Verify(ws.Source(cfg.Build.StagingDir), outcome.Requirements)
			if err != nil {
				r.d.opts.Logger.Warn("dependency verification skipped", "err", err)
				return nil
			}
			for _, p := range problems {
				r.d.opts.Console.Warn("%s", p)
			}
			return nil
		},
	}
}

// assembleStage builds the archive. When export is set the archive is also
// copied into the provisioning root.
func (r *run) assembleStage(export bool) pipeline.Stage {
	return pipeline.Stage{
		Name:  "assemble",
		Title: "Assembling archive",
		Kind:  pipeline.ErrAssemblyIO,
		Run: func(ctx context.Context) error {
			result, err := r.builder.Assemble(ctx, r.items)
			if err != nil {
				return err
			}
			r.report.Artifact = result

			r.d.opts.Console.Archive(r.target.Config.Build.Archive, result.Manifest)
			if result.Excluded > 0 {
				r.d.opts.Console.Info("%d paths excluded", result.Excluded)
			}
			if r.d.opts.Metrics != nil {
				r.d.opts.Metrics.Archive(result.Manifest)
			}

			if !export {
				return nil
			}
			ws, name := r.target.Workspace, r.target.Config.Provision.ArchiveName
			if err := r.builder.Export(osfs.New(ws.ProvisionRoot), name); err != nil {
				return err
			}
			r.d.opts.Console.Info("copied to %s", ws.Provision(name))
			return nil
		},
	}
}

// publishStage uploads the archive. With existing set, the archive from an
// earlier build is used instead of the one assembled in this run.
func (r *run) publishStage(existing bool) pipeline.Stage {
	return pipeline.Stage{
		Name:  "publish",
		Title: "Publishing archive",
		Kind:  pipeline.ErrPublish,
		Run: func(ctx context.Context) error {
			cfg, ws := r.target.Config, r.target.Workspace
			if !cfg.PublishEnabled() {
				return errors.New("publish.bucket is not set")
			}

			archive := r.builder.ArchivePath()
			var manifest *artifact.Manifest
			if existing {
				if !r.builder.Exists() {
					return fmt.Errorf("no archive at %s, run deployer build first", ws.Source(archive))
				}
				m, err := artifact.ReadManifest(r.source, archive)
				if err != nil {
					return err
				}
				manifest = m
			} else {
				manifest = r.report.Artifact.Manifest
			}

			store, err := r.d.opts.NewStore(ctx, cfg.Publish)
			if err != nil {
				return fmt.Errorf("failed to open object store: %w", err)
			}

			publisher := s3.NewPublisher(store, cfg.Publish.Bucket, cfg.Publish.Prefix,
				retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
					r.d.opts.Logger.Warn("upload failed, retrying", "attempt", attempt, "delay", delay, "err", err)
				}))
			published, err := publisher.Publish(ctx, ws.Source(archive), manifest.Digest)
			if err != nil {
				return err
			}
			r.report.Published = published

			if published.Skipped {
				r.d.opts.Console.Info("already published as %s", published.URI())
			} else {
				r.d.opts.Console.Info("uploaded %s", published.URI())
			}
			return nil
		},
	}
}

func (r *run) gateStage() pipeline.Stage {
	return pipeline.Stage{
		Name:  "gate",
		Title: "Checking deployment configuration",
		Kind:  pipeline.ErrPrecondition,
		Run: func(context.Context) error {
			cfg, ws := r.target.Config, r.target.Workspace
			return gate.Check(ws.Provision(cfg.Provision.ConfigFile), ws.Provision(cfg.Provision.ConfigTemplate))
		},
	}
}

func (r *run) provisionStage() pipeline.Stage {
	return pipeline.Stage{
		Name:  "provision",
		Title: "Provisioning infrastructure",
		Kind:  pipeline.ErrProvisioning,
		Run: func(ctx context.Context) error {
			cfg, ws := r.target.Config, r.target.Workspace

			tf := provision.NewTerraform(r.d.opts.Runner, ws.ProvisionRoot, cfg.Provision.Binary, r.d.opts.Logger)
			outcome, err := tf.Provision(ctx)
			if err != nil {
				return err
			}
			r.report.Provision = outcome

			name := cfg.Provision.EndpointOutput
			if url, ok := outcome.Output(name); ok && url != "" {
				r.report.Endpoint = url
				r.d.opts.Console.Endpoint(name, url)
			} else {
				r.d.opts.Console.Warn("apply reported no %q output; find the webhook URL in your provider console", name)
			}
			return nil
		},
	}
}

// removeStaging runs after every pipeline, whatever its outcome.
func (r *run) removeStaging(context.Context) error {
	if r.builder == nil {
		return nil
	}
	if r.target.Config.Build.KeepStaging {
		r.d.opts.Console.Info("staging kept at %s", r.target.Workspace.Source(r.target.Config.Build.StagingDir))
		return nil
	}
	return r.builder.RemoveStaging()
}
