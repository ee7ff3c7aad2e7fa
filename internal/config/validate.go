package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// minPythonVersion is the oldest runtime the installer can target.
const minPythonVersion = ">= 3.8"

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := c.validateBuild(); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	if err := c.validatePlatform(); err != nil {
		return fmt.Errorf("platform: %w", err)
	}
	if strings.TrimSpace(c.Installer.Command) == "" {
		return errors.New("installer: command is required")
	}
	if err := c.validateProvision(); err != nil {
		return fmt.Errorf("provision: %w", err)
	}
	return nil
}

func (c Config) validateSource() error {
	if err := relativePath("dir", c.Source.Dir); err != nil {
		return err
	}
	if err := relativePath("requirements", c.Source.Requirements); err != nil {
		return err
	}
	if len(c.Source.Items) == 0 {
		return errors.New("items must list at least one directory or file")
	}
	for _, item := range c.Source.Items {
		if err := relativePath("items", strings.TrimSuffix(item, "/")); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) validateBuild() error {
	if err := relativePath("staging_dir", c.Build.StagingDir); err != nil {
		return err
	}
	if err := relativePath("archive", c.Build.Archive); err != nil {
		return err
	}
	if filepath.Clean(c.Build.StagingDir) == filepath.Clean(c.Build.Archive) {
		return errors.New("staging_dir and archive must differ")
	}
	if within(c.Build.Archive, c.Build.StagingDir) {
		return fmt.Errorf("archive %q must not be inside staging_dir %q", c.Build.Archive, c.Build.StagingDir)
	}
	for _, item := range c.Source.Items {
		if filepath.Clean(strings.TrimSuffix(item, "/")) == filepath.Clean(c.Build.StagingDir) {
			return fmt.Errorf("staging_dir %q is also listed as a source item", c.Build.StagingDir)
		}
	}
	for _, p := range c.Build.Exclude {
		if strings.TrimSpace(p) == "" {
			return errors.New("exclude patterns must not be empty")
		}
	}
	return nil
}

func (c Config) validatePlatform() error {
	if c.Platform.ABI == "" {
		return errors.New("abi is required")
	}
	if c.Platform.Implementation == "" {
		return errors.New("implementation is required")
	}

	v, err := semver.NewVersion(c.Platform.PythonVersion)
	if err != nil {
		return fmt.Errorf("invalid python_version %q: %w", c.Platform.PythonVersion, err)
	}
	constraint, err := semver.NewConstraint(minPythonVersion)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("python_version %s is not supported (need %s)", c.Platform.PythonVersion, minPythonVersion)
	}
	return nil
}

func (c Config) validateProvision() error {
	if err := relativePath("dir", c.Provision.Dir); err != nil {
		return err
	}
	if filepath.Clean(c.Provision.Dir) == filepath.Clean(c.Source.Dir) {
		return errors.New("dir must differ from source.dir")
	}
	if c.Provision.Binary == "" {
		return errors.New("binary is required")
	}
	if err := relativePath("config_file", c.Provision.ConfigFile); err != nil {
		return err
	}
	if err := relativePath("archive_name", c.Provision.ArchiveName); err != nil {
		return err
	}
	return nil
}

// within reports whether p lies below dir. Both are relative to the same root.
func within(p, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(p))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// relativePath rejects empty, absolute and escaping paths.
func relativePath(field, p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("%s is required", field)
	}
	if filepath.IsAbs(p) {
		return fmt.Errorf("%s must be relative, got %q", field, p)
	}
	clean := filepath.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s must stay inside its root, got %q", field, p)
	}
	return nil
}
