package deps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lynkia/deployer/internal/logging"
)

// ErrNoStrategy is returned when the installer has nothing to try.
var ErrNoStrategy = errors.New("no install strategy configured")

// Listener observes strategy attempts.
type Listener interface {
	StrategyStarted(name string, attempt int)
	StrategyFailed(name string, err error)
	StrategySucceeded(name string, degraded bool)
}

// Attempt records one strategy run.
type Attempt struct {
	Strategy string
	Err      error
	Duration time.Duration
}

// Outcome summarizes an installation.
type Outcome struct {
	// Strategy is the name of the strategy that succeeded.
	Strategy string

	// Degraded is set when the successful strategy did not honor the target
	// platform.
	Degraded bool

	Attempts []Attempt

	// Requirements is the parsed requirements file.
	Requirements *File
}

// Installer runs strategies in order until one succeeds.
type Installer struct {
	strategies []Strategy
	listeners  []Listener
	logger     *log.Logger
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithListener registers attempt listeners.
func WithListener(l ...Listener) InstallerOption {
	return func(i *Installer) { i.listeners = append(i.listeners, l...) }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *log.Logger) InstallerOption {
	return func(i *Installer) { i.logger = logger }
}

// NewInstaller creates an installer over an ordered strategy list.
func NewInstaller(strategies []Strategy, opts ...InstallerOption) *Installer {
	i := &Installer{
		strategies: strategies,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install parses the requirements file, then tries each strategy in turn.
// The target directory is emptied before every attempt after the first so a
// fallback never mixes with a partial install. When all strategies fail the
// attempt errors are joined.
func (i *Installer) Install(ctx context.Context, req Request) (*Outcome, error) {
	if len(i.strategies) == 0 {
		return nil, ErrNoStrategy
	}

	file, err := ReadRequirements(req.Requirements)
	if err != nil {
		return nil, err
	}
	i.logger.Debug("requirements parsed", "path", req.Requirements,
		"packages", len(file.Requirements), "options", len(file.Options))

	outcome := &Outcome{Requirements: file}
	var errs []error

	for n, s := range i.strategies {
		if n > 0 {
			if err := resetDir(req.Target); err != nil {
				return outcome, fmt.Errorf("failed to reset %s before %s: %w", req.Target, s.Name(), err)
			}
		} else if err := os.MkdirAll(req.Target, 0o755); err != nil {
			return outcome, fmt.Errorf("failed to create %s: %w", req.Target, err)
		}

		for _, l := range i.listeners {
			l.StrategyStarted(s.Name(), n+1)
		}

		start := time.Now()
		err := s.Install(ctx, req)
		outcome.Attempts = append(outcome.Attempts, Attempt{
			Strategy: s.Name(),
			Err:      err,
			Duration: time.Since(start),
		})

		if err == nil {
			outcome.Strategy = s.Name()
			outcome.Degraded = !s.Targeted()
			for _, l := range i.listeners {
				l.StrategySucceeded(s.Name(), outcome.Degraded)
			}
			if outcome.Degraded {
				i.logger.Warn("dependencies installed without targeting the runtime platform",
					"strategy", s.Name(), "abi", req.Platform.ABI)
			}
			return outcome, nil
		}

		i.logger.Debug("strategy failed", "strategy", s.Name(), "err", err)
		for _, l := range i.listeners {
			l.StrategyFailed(s.Name(), err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}

	return outcome, fmt.Errorf("all install strategies failed: %w", errors.Join(errs...))
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
