// Package prerequisites checks that the external tools the deployer drives
// are installed and recent enough.
package prerequisites

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/lynkia/deployer/internal/config"
	"github.com/lynkia/deployer/internal/runner"
	"github.com/lynkia/deployer/internal/util/async"
)

// Minimum supported versions.
const (
	MinPip       = "20.3"
	MinTerraform = "1.0.0"
)

// Tool represents an external program the deployer needs.
type Tool struct {
	// Name is shown to the operator.
	Name string

	// Command and VersionArgs print the tool's version.
	Command     string
	VersionArgs []string

	// MinVersion is the oldest acceptable version. Empty accepts any.
	MinVersion string

	// Required marks tools whose absence fails the check.
	Required bool

	Description string
	InstallURL  string
}

// Tools returns the tools cfg depends on.
func Tools(cfg config.Config) []Tool {
	pip := strings.Fields(cfg.Installer.Command)
	if len(pip) == 0 {
		pip = []string{"pip"}
	}
	pipArgs := append(append([]string{}, pip[1:]...), "--version")
	return []Tool{
		{
			Name:        "pip",
			Command:     pip[0],
			VersionArgs: pipArgs,
			MinVersion:  MinPip,
			Required:    true,
			Description: "Installs the application's Python dependencies",
			InstallURL:  "https://pip.pypa.io/en/stable/installation/",
		},
		{
			Name:        cfg.Provision.Binary,
			Command:     cfg.Provision.Binary,
			VersionArgs: []string{"version"},
			MinVersion:  MinTerraform,
			Required:    true,
			Description: "Provisions the function and its webhook endpoint",
			InstallURL:  "https://developer.hashicorp.com/terraform/install",
		},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string

	// Err explains why a found tool is unusable.
	Err error
}

// OK reports whether the tool is present and acceptable.
func (r CheckResult) OK() bool {
	return r.Found && r.Err == nil
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
}

// HasErrors returns true if any required tool is unusable.
func (r *CheckResults) HasErrors() bool {
	return r.Error() != nil
}

// Error returns an error describing every unusable required tool.
func (r *CheckResults) Error() error {
	var errs []error
	for _, res := range r.Results {
		if !res.Tool.Required || res.OK() {
			continue
		}
		if !res.Found {
			errs = append(errs, fmt.Errorf("%s not found in PATH (%s)", res.Tool.Name, res.Tool.InstallURL))
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", res.Tool.Name, res.Err))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("missing prerequisites: %w", errors.Join(errs...))
}

// Checker probes tools through a runner.
type Checker struct {
	runner   runner.Runner
	lookPath func(string) (string, error)
}

// NewChecker creates a checker. A nil lookPath uses exec.LookPath.
func NewChecker(r runner.Runner, lookPath func(string) (string, error)) *Checker {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return &Checker{runner: r, lookPath: lookPath}
}

// Check probes all tools concurrently. Results keep the order of tools.
func (c *Checker) Check(ctx context.Context, tools []Tool) *CheckResults {
	results, _ := async.Map(ctx, tools, 0, func(ctx context.Context, tool Tool) (CheckResult, error) {
		return c.check(ctx, tool), nil
	})
	return &CheckResults{Results: results}
}

func (c *Checker) check(ctx context.Context, tool Tool) CheckResult {
	result := CheckResult{Tool: tool}

	path, err := c.lookPath(tool.Command)
	if err != nil {
		return result
	}
	result.Found = true
	result.Path = path

	res, err := c.runner.Run(ctx, runner.Command{Name: tool.Command, Args: tool.VersionArgs})
	if err != nil {
		result.Err = fmt.Errorf("failed to get version: %w", err)
		return result
	}

	output := res.Stdout
	if strings.TrimSpace(output) == "" {
		output = res.Stderr
	}
	result.Version = ParseVersion(output)

	if tool.MinVersion != "" {
		result.Err = checkMinimum(result.Version, tool.MinVersion)
	}
	return result
}

var versionPattern = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?)`)

// ParseVersion extracts the first version number from a --version banner,
// e.g. "pip 24.0 from /usr/lib/python3 (python 3.12)" yields "24.0".
func ParseVersion(output string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	m := versionPattern.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}

func checkMinimum(version, minimum string) error {
	if version == "" {
		return errors.New("could not determine version")
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("unrecognised version %q: %w", version, err)
	}
	constraint, err := semver.NewConstraint(">= " + minimum)
	if err != nil {
		return fmt.Errorf("invalid minimum version %q: %w", minimum, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("version %s is older than the required %s", version, minimum)
	}
	return nil
}
