package handlers

import (
	"context"
	"fmt"
	"os"
)

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// readFile reads the configuration template.
	readFile = os.ReadFile
)

// Init creates the deployment configuration from its template. It refuses
// to overwrite an existing file unless force is set.
func Init(_ context.Context, g Globals, force bool) error {
	s := newSession(g, "init")

	target, err := resolveTarget(s.settings(nil))
	if err != nil {
		return err
	}
	ws, cfg := target.Workspace, target.Config

	dst := ws.Provision(cfg.Provision.ConfigFile)
	src := ws.Provision(cfg.Provision.ConfigTemplate)

	if fileExists(dst) && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", dst)
	}

	data, err := readFile(src)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	// The configuration holds credentials.
	if err := writeFile(dst, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	s.console.Info("created %s from %s", dst, src)
	s.console.Info("edit it and fill in your values, then run: deployer deploy")
	return nil
}
