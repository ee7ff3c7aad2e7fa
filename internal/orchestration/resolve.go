package orchestration

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lynkia/deployer/internal/config"
	"github.com/lynkia/deployer/internal/workspace"
)

// ConfigFileName is the configuration file looked up at the workspace root.
const ConfigFileName = "deployer.yaml"

// Settings locate the workspace and its configuration.
type Settings struct {
	Workspace workspace.Options

	// ConfigPath is an explicit configuration file. Defaults to
	// <root>/deployer.yaml, which may be absent.
	ConfigPath string

	// Config skips file loading when set.
	Config *config.Config

	// Getenv reads environment overrides. Defaults to os.Getenv.
	Getenv func(string) string

	// Override applies command-line flags on top of the loaded config.
	Override func(*config.Config)
}

// Target is a resolved workspace with its effective configuration.
type Target struct {
	Workspace workspace.Workspace
	Config    config.Config

	// ConfigFile is the file the configuration came from, or "" for defaults.
	ConfigFile string
}

// Resolve locates the workspace root, loads the configuration and derives
// the source and provisioning roots.
func Resolve(s Settings) (*Target, error) {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	opts := s.Workspace
	if opts.Env == "" {
		opts.Env = getenv(config.EnvWorkspace)
	}
	if len(opts.Markers) == 0 {
		opts.Markers = defaultMarkers(s.Config)
	}

	root, err := workspace.Locate(opts)
	if err != nil {
		return nil, err
	}

	target := &Target{}
	switch {
	case s.Config != nil:
		target.Config = *s.Config
	case s.ConfigPath != "":
		cfg, err := config.Load(s.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", s.ConfigPath, err)
		}
		target.Config = cfg
		target.ConfigFile = s.ConfigPath
	default:
		path := filepath.Join(root, ConfigFileName)
		cfg, err := config.LoadOrDefault(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		target.Config = cfg
		if _, err := os.Stat(path); err == nil {
			target.ConfigFile = path
		}
	}

	target.Config = target.Config.WithEnv(getenv)
	if s.Override != nil {
		s.Override(&target.Config)
	}
	if err := target.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ws, err := workspace.New(root, target.Config.Source.Dir, target.Config.Provision.Dir)
	if err != nil {
		return nil, err
	}
	target.Workspace = ws
	return target, nil
}

func defaultMarkers(cfg *config.Config) []string {
	c := config.Default()
	if cfg != nil {
		c = *cfg
	}
	return []string{
		ConfigFileName,
		filepath.Join(c.Source.Dir, c.Source.Requirements),
	}
}
