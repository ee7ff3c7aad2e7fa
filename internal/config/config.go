package config

// FileName is the optional configuration file at the workspace root.
const FileName = "deployer.yaml"

// Config is the complete deployer configuration.
type Config struct {
	Source    Source    `yaml:"source"`
	Build     Build     `yaml:"build"`
	Platform  Platform  `yaml:"platform"`
	Installer Installer `yaml:"installer"`
	Provision Provision `yaml:"provision"`
	Publish   Publish   `yaml:"publish"`
}

// Source describes the application source tree.
type Source struct {
	// Dir is the source root, relative to the workspace root.
	Dir string `yaml:"dir"`

	// Requirements is the dependency spec file, relative to the source root.
	Requirements string `yaml:"requirements"`

	// Items lists the directories (trailing "/") and files that make up the
	// deployable code, relative to the source root.
	Items []string `yaml:"items"`
}

// Build controls staging and archive construction.
type Build struct {
	StagingDir  string   `yaml:"staging_dir"`
	Archive     string   `yaml:"archive"`
	Exclude     []string `yaml:"exclude"`
	KeepStaging bool     `yaml:"keep_staging"`
}

// Platform is the runtime the archive must execute on.
type Platform struct {
	ABI            string `yaml:"abi"`
	Implementation string `yaml:"implementation"`
	PythonVersion  string `yaml:"python_version"`
	OnlyBinary     bool   `yaml:"only_binary"`
}

// Installer configures the dependency installer.
type Installer struct {
	// Command is the pip invocation, e.g. "pip" or "python3 -m pip".
	Command string `yaml:"command"`
}

// Provision describes the provisioning tool and its inputs.
type Provision struct {
	// Dir is the provisioning root, relative to the workspace root.
	Dir            string `yaml:"dir"`
	Binary         string `yaml:"binary"`
	ConfigFile     string `yaml:"config_file"`
	ConfigTemplate string `yaml:"config_template"`

	// ArchiveName is where the archive is copied inside the provisioning root.
	ArchiveName string `yaml:"archive_name"`

	// EndpointOutput names the apply output holding the webhook endpoint.
	EndpointOutput string `yaml:"endpoint_output"`
}

// Publish configures the optional artifact upload to object storage.
type Publish struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source: Source{
			Dir:          "backend",
			Requirements: "requirements.txt",
			Items:        []string{"api/", "core/", "models/", "services/", "main.py", "handler.py"},
		},
		Build: Build{
			StagingDir: "package",
			Archive:    "lambda.zip",
			Exclude:    []string{"*.pyc", "__pycache__", "*.dist-info"},
		},
		Platform: Platform{
			ABI:            "manylinux2014_x86_64",
			Implementation: "cp",
			PythonVersion:  "3.12",
			OnlyBinary:     true,
		},
		Installer: Installer{
			Command: "pip",
		},
		Provision: Provision{
			Dir:            "terraform",
			Binary:         "terraform",
			ConfigFile:     "terraform.tfvars",
			ConfigTemplate: "terraform.tfvars.example",
			ArchiveName:    "lambda.zip",
			EndpointOutput: "webhook_url",
		},
		Publish: Publish{
			Prefix: "lambda",
			Region: "eu-west-3",
		},
	}
}

// PublishEnabled reports whether an upload bucket is configured.
func (c Config) PublishEnabled() bool {
	return c.Publish.Bucket != ""
}
