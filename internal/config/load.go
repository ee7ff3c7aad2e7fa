package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvWorkspace = "DEPLOYER_WORKSPACE"
	EnvPip       = "DEPLOYER_PIP"
	EnvTerraform = "DEPLOYER_TERRAFORM"
	EnvBucket    = "DEPLOYER_PUBLISH_BUCKET"
)

// Load reads path on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	// #nosec G304 - path is the operator's own configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadOrDefault behaves like Load but returns the defaults when path does
// not exist.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		return cfg, cfg.Validate()
	}
	return cfg, err
}

// LoadFromBytes parses YAML on top of the defaults and validates the result.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func LoadFromBytes(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// WithEnv returns a copy of c with environment overrides applied.
func (c Config) WithEnv(getenv func(string) string) Config {
	if v := getenv(EnvPip); v != "" {
		c.Installer.Command = v
	}
	if v := getenv(EnvTerraform); v != "" {
		c.Provision.Binary = v
	}
	if v := getenv(EnvBucket); v != "" {
		c.Publish.Bucket = v
	}
	return c
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
