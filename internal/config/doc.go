// Package config defines the deployer configuration and loads it from
// deployer.yaml.
//
// The [Config] value is built once per run (defaults, then the optional YAML
// file, then environment overrides) and handed to every pipeline component.
// Components never read configuration from globals.
package config
