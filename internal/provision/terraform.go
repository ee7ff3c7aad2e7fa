package provision

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lynkia/deployer/internal/logging"
	"github.com/lynkia/deployer/internal/runner"
)

// Outcome is the result of a successful provisioning run.
type Outcome struct {
	// Outputs are the values printed after "Outputs:" by apply.
	Outputs map[string]string

	// ApplyOutput is the full captured stdout of apply.
	ApplyOutput string
}

// Output returns a named output.
func (o *Outcome) Output(name string) (string, bool) {
	v, ok := o.Outputs[name]
	return v, ok
}

// Terraform runs terraform in the provisioning root.
type Terraform struct {
	runner runner.Runner
	dir    string
	binary string
	logger *log.Logger
}

// NewTerraform creates an invoker running binary in dir.
func NewTerraform(r runner.Runner, dir, binary string, logger *log.Logger) *Terraform {
	if binary == "" {
		binary = "terraform"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Terraform{runner: r, dir: dir, binary: binary, logger: logger}
}

// Init prepares the working directory and upgrades providers.
func (t *Terraform) Init(ctx context.Context) (*runner.Result, error) {
	return t.run(ctx, "init", "-upgrade", "-input=false")
}

// Apply applies the configuration without prompting.
func (t *Terraform) Apply(ctx context.Context) (*runner.Result, error) {
	return t.run(ctx, "apply", "-auto-approve", "-input=false")
}

// Provision runs init then apply. Output of both is streamed to the
// operator as it is produced.
func (t *Terraform) Provision(ctx context.Context) (*Outcome, error) {
	if _, err := t.Init(ctx); err != nil {
		return nil, fmt.Errorf("terraform init failed: %w", err)
	}

	res, err := t.Apply(ctx)
	if err != nil {
		return nil, fmt.Errorf("terraform apply failed: %w", err)
	}

	outputs := ParseOutputs(res.Stdout)
	t.logger.Debug("apply outputs", "count", len(outputs))
	return &Outcome{Outputs: outputs, ApplyOutput: res.Stdout}, nil
}

func (t *Terraform) run(ctx context.Context, args ...string) (*runner.Result, error) {
	return t.runner.Run(ctx, runner.Command{
		Name:   t.binary,
		Args:   args,
		Dir:    t.dir,
		Env:    map[string]string{"TF_IN_AUTOMATION": "1"},
		Stream: true,
	})
}
