package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lynkia/deployer/internal/artifact"
	"github.com/lynkia/deployer/internal/config"
	"github.com/lynkia/deployer/internal/deps"
	"github.com/lynkia/deployer/internal/logging"
	"github.com/lynkia/deployer/internal/metrics"
	"github.com/lynkia/deployer/internal/pipeline"
	"github.com/lynkia/deployer/internal/platform/s3"
	"github.com/lynkia/deployer/internal/provision"
	"github.com/lynkia/deployer/internal/report"
	"github.com/lynkia/deployer/internal/runner"
)

// StoreFactory opens the object store archives are published to.
type StoreFactory func(ctx context.Context, cfg config.Publish) (s3.ObjectStore, error)

// Options holds the collaborators of a Deployer.
type Options struct {
	Runner  runner.Runner
	Console *report.Console
	Logger  *log.Logger

	// Metrics, when set, records stage timings and outcomes.
	Metrics *metrics.Recorder

	// NewStore defaults to an S3 client built from the publish settings.
	NewStore StoreFactory

	// StreamInstall mirrors pip's output to the console.
	StreamInstall bool

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// DeployOptions tunes a single deploy.
type DeployOptions struct {
	// Publish uploads the archive after assembly.
	Publish bool
}

// Report summarizes a run. Fields are nil for stages that did not run.
type Report struct {
	Target    *Target
	Install   *deps.Outcome
	Artifact  *artifact.Result
	Published *s3.Published
	Provision *provision.Outcome

	// Endpoint is the webhook URL reported by apply, if any.
	Endpoint string
}

// Deployer runs the build and deploy workflows.
type Deployer struct {
	settings Settings
	opts     Options
}

// New creates a Deployer.
func New(settings Settings, opts Options) *Deployer {
	if opts.Console == nil {
		opts.Console = report.NewConsole(nil, false)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.NewStore == nil {
		opts.NewStore = defaultStore
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Deployer{settings: settings, opts: opts}
}

// Deploy builds the archive and provisions it.
func (d *Deployer) Deploy(ctx context.Context, o DeployOptions) (*Report, error) {
	r := d.newRun()
	stages := []pipeline.Stage{r.resolveStage(), r.cleanStage(true), r.installStage(), r.assembleStage(true)}
	if o.Publish {
		stages = append(stages, r.publishStage(false))
	}
	stages = append(stages, r.gateStage(), r.provisionStage())

	err := d.execute(ctx, "deploy", r, stages)
	if err == nil {
		d.opts.Console.Checklist(r.report.Endpoint)
	}
	return d.finish(r, err)
}

// Build produces the archive without provisioning.
func (d *Deployer) Build(ctx context.Context) (*Report, error) {
	r := d.newRun()
	stages := []pipeline.Stage{r.resolveStage(), r.cleanStage(false), r.installStage(), r.assembleStage(false)}
	return d.finish(r, d.execute(ctx, "build", r, stages))
}

// Clean removes the staging directory and the archive.
func (d *Deployer) Clean(ctx context.Context) (*Report, error) {
	r := d.newRun()
	stages := []pipeline.Stage{r.resolveStage(), r.cleanStage(true)}
	return d.finish(r, d.execute(ctx, "clean", r, stages))
}

// Publish uploads the archive left by a previous build.
func (d *Deployer) Publish(ctx context.Context) (*Report, error) {
	r := d.newRun()
	stages := []pipeline.Stage{r.resolveStage(), r.publishStage(true)}
	return d.finish(r, d.execute(ctx, "publish", r, stages))
}

func (d *Deployer) newRun() *run {
	return &run{d: d, report: &Report{}, start: d.opts.Now()}
}

func (d *Deployer) execute(ctx context.Context, command string, r *run, stages []pipeline.Stage) error {
	d.opts.Console.Header("deployer "+command, "")

	listeners := []pipeline.Listener{d.opts.Console}
	if d.opts.Metrics != nil {
		listeners = append(listeners, d.opts.Metrics)
	}

	p := pipeline.New(stages,
		pipeline.WithListener(listeners...),
		pipeline.WithLogger(d.opts.Logger),
		pipeline.WithClock(d.opts.Now))
	p.Finally(r.removeStaging)

	d.opts.Logger.Debug("run started", "command", command, "stages", p.Stages())
	return p.Run(ctx)
}

func (d *Deployer) finish(r *run, err error) (*Report, error) {
	elapsed := d.opts.Now().Sub(r.start)
	d.opts.Console.Done(err, elapsed)
	if d.opts.Metrics != nil {
		d.opts.Metrics.Finish(err, elapsed)
	}
	return r.report, err
}

func (d *Deployer) installListeners() []deps.Listener {
	listeners := []deps.Listener{d.opts.Console}
	if d.opts.Metrics != nil {
		listeners = append(listeners, d.opts.Metrics)
	}
	return listeners
}

func defaultStore(ctx context.Context, cfg config.Publish) (s3.ObjectStore, error) {
	client, err := s3.NewClient(ctx, s3.Options{Region: cfg.Region, Endpoint: cfg.Endpoint})
	if err != nil {
		return nil, err
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", cfg.Bucket)
	}
	return client, nil
}
