package deps

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/lynkia/deployer/internal/config"
	"github.com/lynkia/deployer/internal/runner"
)

// Strategy names.
const (
	CrossPlatform = "cross-platform"
	HostNative    = "host-native"
)

// Request describes one installation.
type Request struct {
	// Requirements is the absolute path of the requirements file.
	Requirements string

	// Target is the absolute staging directory packages are installed into.
	Target string

	// Platform is the runtime the packages must load on.
	Platform config.Platform
}

// Strategy is one way of installing the requirements.
type Strategy interface {
	Name() string

	// Targeted reports whether the strategy honors Request.Platform. A
	// success from an untargeted strategy is degraded.
	Targeted() bool

	Install(ctx context.Context, req Request) error
}

// PipOptions configures the pip-based strategies.
type PipOptions struct {
	// Command is the pip invocation, split on whitespace ("python3 -m pip").
	Command string

	// Stream mirrors pip's output to the console.
	Stream bool

	// CacheDir overrides PIP_CACHE_DIR. Defaults to $XDG_CACHE_HOME/deployer/pip.
	CacheDir string
}

type pipStrategy struct {
	name     string
	targeted bool
	runner   runner.Runner
	opts     PipOptions
}

// NewCrossPlatform returns a strategy that downloads binary wheels built for
// the requested platform regardless of the host.
func NewCrossPlatform(r runner.Runner, opts PipOptions) Strategy {
	return &pipStrategy{name: CrossPlatform, targeted: true, runner: r, opts: opts}
}

// NewHostNative returns a strategy that lets pip pick wheels for the host.
func NewHostNative(r runner.Runner, opts PipOptions) Strategy {
	return &pipStrategy{name: HostNative, runner: r, opts: opts}
}

// DefaultStrategies returns cross-platform followed by host-native.
func DefaultStrategies(r runner.Runner, opts PipOptions) []Strategy {
	return []Strategy{
		NewCrossPlatform(r, opts),
		NewHostNative(r, opts),
	}
}

func (p *pipStrategy) Name() string   { return p.name }
func (p *pipStrategy) Targeted() bool { return p.targeted }

func (p *pipStrategy) Install(ctx context.Context, req Request) error {
	cmd, err := p.command(req)
	if err != nil {
		return err
	}
	_, err = p.runner.Run(ctx, cmd)
	return err
}

func (p *pipStrategy) command(req Request) (runner.Command, error) {
	fields := strings.Fields(p.opts.Command)
	if len(fields) == 0 {
		return runner.Command{}, fmt.Errorf("installer command is empty")
	}

	args := append([]string{}, fields[1:]...)
	args = append(args, "install", "-r", req.Requirements, "-t", req.Target)
	if p.targeted {
		args = append(args,
			"--platform", req.Platform.ABI,
			"--implementation", req.Platform.Implementation,
			"--python-version", req.Platform.PythonVersion,
		)
		if req.Platform.OnlyBinary {
			args = append(args, "--only-binary=:all:")
		}
	}
	args = append(args, "--upgrade")

	return runner.Command{
		Name:   fields[0],
		Args:   args,
		Dir:    filepath.Dir(req.Requirements),
		Env:    p.env(),
		Stream: p.opts.Stream,
	}, nil
}

func (p *pipStrategy) env() map[string]string {
	cache := p.opts.CacheDir
	if cache == "" {
		cache = filepath.Join(xdg.CacheHome, "deployer", "pip")
	}
	return map[string]string{
		"PIP_CACHE_DIR":                 cache,
		"PIP_DISABLE_PIP_VERSION_CHECK": "1",
	}
}
