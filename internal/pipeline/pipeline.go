package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Stage is one step of a pipeline run.
type Stage struct {
	// Name is the short identifier used in errors and metrics (e.g. "install").
	Name string

	// Title is the human-readable progress label (e.g. "Installing dependencies").
	Title string

	// Kind classifies failures of this stage. May be nil.
	Kind error

	// Run performs the stage.
	Run func(ctx context.Context) error
}

// Listener observes stage transitions.
type Listener interface {
	StageStarted(stage Stage)
	StageSucceeded(stage Stage, elapsed time.Duration)
	StageFailed(stage Stage, elapsed time.Duration, err error)
}

// Pipeline executes stages sequentially and stops at the first failure.
type Pipeline struct {
	stages    []Stage
	finally   []func(context.Context) error
	listeners []Listener
	logger    *log.Logger
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithListener registers listeners notified on every stage transition.
func WithListener(l ...Listener) Option {
	return func(p *Pipeline) {
		p.listeners = append(p.listeners, l...)
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a pipeline over the given stages.
func New(stages []Stage, opts ...Option) *Pipeline {
	p := &Pipeline{
		stages: stages,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Finally registers a hook that runs after the stages, whether they succeeded
// or not. Hook errors are logged and never replace the run's own error.
func (p *Pipeline) Finally(fn func(context.Context) error) {
	p.finally = append(p.finally, fn)
}

// Stages returns the names of the configured stages in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name)
	}
	return names
}

// Run executes every stage in order. It returns a *StageError for the first
// stage that fails; later stages are not started.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.runFinally(ctx)

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: stage.Name, Kind: stage.Kind, Err: fmt.Errorf("interrupted: %w", err)}
		}

		p.notifyStarted(stage)
		p.debug("stage started", "stage", stage.Name)

		start := p.now()
		err := stage.Run(ctx)
		elapsed := p.now().Sub(start)

		if err != nil {
			p.notifyFailed(stage, elapsed, err)
			p.debug("stage failed", "stage", stage.Name, "elapsed", elapsed, "err", err)
			return &StageError{Stage: stage.Name, Kind: stage.Kind, Err: err}
		}

		p.notifySucceeded(stage, elapsed)
		p.debug("stage finished", "stage", stage.Name, "elapsed", elapsed)
	}

	return nil
}

func (p *Pipeline) runFinally(ctx context.Context) {
	// Cleanup must still happen after an interrupt.
	ctx = context.WithoutCancel(ctx)
	for _, fn := range p.finally {
		if err := fn(ctx); err != nil && p.logger != nil {
			p.logger.Warn("cleanup failed", "err", err)
		}
	}
}

func (p *Pipeline) notifyStarted(s Stage) {
	for _, l := range p.listeners {
		l.StageStarted(s)
	}
}

func (p *Pipeline) notifySucceeded(s Stage, d time.Duration) {
	for _, l := range p.listeners {
		l.StageSucceeded(s, d)
	}
}

func (p *Pipeline) notifyFailed(s Stage, d time.Duration, err error) {
	for _, l := range p.listeners {
		l.StageFailed(s, d, err)
	}
}

func (p *Pipeline) debug(msg string, keyvals ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, keyvals...)
	}
}
