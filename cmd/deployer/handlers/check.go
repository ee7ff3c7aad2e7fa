package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/lynkia/deployer/internal/gate"
	"github.com/lynkia/deployer/internal/pipeline"
	"github.com/lynkia/deployer/internal/util/prerequisites"
)

// Check verifies the tools and the deployment configuration without
// building anything.
//
// A missing tool fails with exit status 1; a missing deployment
// configuration fails with exit status 2, like deploy's gate.
func Check(ctx context.Context, g Globals) error {
	s := newSession(g, "check")
	s.console.Header("deployer check", "")

	target, err := resolveTarget(s.settings(nil))
	if err != nil {
		err = &pipeline.StageError{Stage: "resolve", Kind: pipeline.ErrEnvironment, Err: err}
		s.console.Tool("workspace", "", false, err.Error())
		return s.finish(err)
	}
	ws, cfg := target.Workspace, target.Config
	s.console.Tool("workspace", "", true, ws.Root)

	checker := prerequisites.NewChecker(s.runner, lookPath)
	results := checker.Check(ctx, prerequisites.Tools(cfg))
	for _, res := range results.Results {
		detail := res.Path
		switch {
		case !res.Found:
			detail = fmt.Sprintf("not found, see %s", res.Tool.InstallURL)
		case res.Err != nil:
			detail = res.Err.Error()
		}
		s.console.Tool(res.Tool.Name, res.Version, res.OK(), detail)
	}

	var errs []error
	if err := results.Error(); err != nil {
		errs = append(errs, &pipeline.StageError{Stage: "check", Kind: pipeline.ErrEnvironment, Err: err})
	}

	configPath := ws.Provision(cfg.Provision.ConfigFile)
	if err := gate.Check(configPath, ws.Provision(cfg.Provision.ConfigTemplate)); err != nil {
		s.console.Tool("config", "", false, err.Error())
		var missing *gate.MissingConfigError
		if errors.As(err, &missing) {
			s.console.Remediation(missing.Remediation())
		}
		errs = append(errs, &pipeline.StageError{Stage: "gate", Kind: pipeline.ErrPrecondition, Err: err})
	} else {
		s.console.Tool("config", "", true, configPath)
	}

	if cfg.PublishEnabled() {
		s.console.Tool("publish", "", true, fmt.Sprintf("s3://%s/%s", cfg.Publish.Bucket, cfg.Publish.Prefix))
	} else {
		s.console.Skipped("publish", "publish.bucket is not set")
	}

	return s.finish(errors.Join(errs...))
}
