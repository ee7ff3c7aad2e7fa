package testing

import (
	"github.com/lynkia/deployer/internal/config"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a new ConfigBuilder starting from the defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: config.Default()}
}

// WithItems replaces the deployable source items.
func (b *ConfigBuilder) WithItems(items ...string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Source.Items = append([]string(nil), items...)
	return newBuilder
}

// WithExclude replaces the archive exclusion patterns.
func (b *ConfigBuilder) WithExclude(patterns ...string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Build.Exclude = append([]string(nil), patterns...)
	return newBuilder
}

// WithKeepStaging keeps the staging directory after the run.
func (b *ConfigBuilder) WithKeepStaging() *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Build.KeepStaging = true
	return newBuilder
}

// WithPublish enables upload to bucket.
func (b *ConfigBuilder) WithPublish(bucket, endpoint string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Publish.Bucket = bucket
	newBuilder.cfg.Publish.Endpoint = endpoint
	return newBuilder
}

// WithEndpointOutput sets the apply output reported as the webhook URL.
func (b *ConfigBuilder) WithEndpointOutput(name string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Provision.EndpointOutput = name
	return newBuilder
}

// Build returns the config.
func (b *ConfigBuilder) Build() config.Config {
	return b.clone().cfg
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	cfg := b.cfg
	cfg.Source.Items = append([]string(nil), b.cfg.Source.Items...)
	cfg.Build.Exclude = append([]string(nil), b.cfg.Build.Exclude...)
	return &ConfigBuilder{cfg: cfg}
}
