// Package gate holds the preconditions checked before provisioning.
package gate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lynkia/deployer/internal/pipeline"
)

// MissingConfigError is returned when the deployment configuration file is
// absent. It carries the commands that fix it.
type MissingConfigError struct {
	Path     string
	Template string

	// TemplateExists reports whether the template was found next to Path.
	TemplateExists bool

	// NotRegular is set when Path exists but is not a regular file.
	NotRegular bool
}

func (e *MissingConfigError) Error() string {
	if e.NotRegular {
		return fmt.Sprintf("deployment configuration %s is not a regular file", e.Path)
	}
	return fmt.Sprintf("deployment configuration %s not found", e.Path)
}

// Unwrap classifies the error as a failed precondition.
func (e *MissingConfigError) Unwrap() error {
	return pipeline.ErrPrecondition
}

// Remediation returns the steps that create the configuration.
func (e *MissingConfigError) Remediation() []string {
	dir := filepath.Dir(e.Path)
	name := filepath.Base(e.Path)

	if !e.TemplateExists {
		return []string{
			fmt.Sprintf("create %s with your deployment settings", e.Path),
		}
	}
	return []string{
		fmt.Sprintf("cd %s && cp %s %s", dir, filepath.Base(e.Template), name),
		fmt.Sprintf("edit %s and fill in your values", name),
		"or run: deployer init",
	}
}

// Check passes iff configPath exists as a regular file. It has no side
// effects.
func Check(configPath, templatePath string) error {
	info, err := os.Stat(configPath)
	if err == nil && info.Mode().IsRegular() {
		return nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", configPath, err)
	}

	merr := &MissingConfigError{
		Path:       configPath,
		Template:   templatePath,
		NotRegular: err == nil,
	}
	if templatePath != "" {
		if t, terr := os.Stat(templatePath); terr == nil && t.Mode().IsRegular() {
			merr.TemplateExists = true
		}
	}
	return merr
}
