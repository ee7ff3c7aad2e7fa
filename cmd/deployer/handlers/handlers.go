// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"

	"github.com/lynkia/deployer/internal/config"
	"github.com/lynkia/deployer/internal/logging"
	"github.com/lynkia/deployer/internal/metrics"
	"github.com/lynkia/deployer/internal/orchestration"
	"github.com/lynkia/deployer/internal/report"
	"github.com/lynkia/deployer/internal/runner"
	"github.com/lynkia/deployer/internal/workspace"
)

// Globals are the persistent flags shared by every command.
type Globals struct {
	Workspace   string
	ConfigPath  string
	NoColor     bool
	Verbose     bool
	MetricsFile string
}

// Deployer matches orchestration.Deployer.
type Deployer interface {
	Deploy(ctx context.Context, o orchestration.DeployOptions) (*orchestration.Report, error)
	Build(ctx context.Context) (*orchestration.Report, error)
	Clean(ctx context.Context) (*orchestration.Report, error)
	Publish(ctx context.Context) (*orchestration.Report, error)
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// stdout receives operator-facing progress.
	stdout io.Writer = os.Stdout

	// stderr receives diagnostics and streamed tool output.
	stderr io.Writer = os.Stderr

	// getenv reads environment overrides.
	getenv = os.Getenv

	// lookPath finds prerequisite binaries.
	lookPath = exec.LookPath

	// newRunner creates the subprocess runner.
	newRunner = func(out, errOut io.Writer, logger *log.Logger) runner.Runner {
		return runner.NewLocal(out, errOut, logger)
	}

	// newDeployer creates the pipeline driver.
	newDeployer = func(s orchestration.Settings, o orchestration.Options) Deployer {
		return orchestration.New(s, o)
	}

	// resolveTarget locates the workspace and loads its configuration.
	resolveTarget = orchestration.Resolve

	// writeFile writes data to a file (for testing injection).
	writeFile = os.WriteFile
)

// session bundles the collaborators built from the global flags.
type session struct {
	globals  Globals
	console  *report.Console
	logger   *log.Logger
	runner   runner.Runner
	recorder *metrics.Recorder
}

func newSession(g Globals, command string) *session {
	logger := logging.New(stderr, g.Verbose)
	s := &session{
		globals: g,
		console: report.NewConsole(stdout, !g.NoColor && report.IsTerminal(stdout)),
		logger:  logger,
		runner:  newRunner(stdout, stderr, logger),
	}
	if g.MetricsFile != "" {
		s.recorder = metrics.NewRecorder(command)
	}
	return s
}

func (s *session) settings(override func(*config.Config)) orchestration.Settings {
	return orchestration.Settings{
		Workspace:  workspace.Options{Explicit: s.globals.Workspace},
		ConfigPath: s.globals.ConfigPath,
		Getenv:     getenv,
		Override:   override,
	}
}

func (s *session) deployer(override func(*config.Config)) Deployer {
	return newDeployer(s.settings(override), orchestration.Options{
		Runner:        s.runner,
		Console:       s.console,
		Logger:        s.logger,
		Metrics:       s.recorder,
		StreamInstall: s.globals.Verbose,
	})
}

// finish writes the metrics file, if requested, and returns the run error.
// A metrics failure is logged and never masks the run's own result.
func (s *session) finish(err error) error {
	if s.recorder != nil {
		if werr := s.recorder.WriteFile(s.globals.MetricsFile); werr != nil {
			s.logger.Error("failed to write metrics", "err", werr)
		}
	}
	return err
}

func keepStaging(keep bool) func(*config.Config) {
	return func(c *config.Config) {
		if keep {
			c.Build.KeepStaging = true
		}
	}
}
