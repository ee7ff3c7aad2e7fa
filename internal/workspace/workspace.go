// Package workspace locates the application source root and the
// provisioning root independently of the current working directory.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no anchor leads to a workspace.
var ErrNotFound = errors.New("cannot locate workspace")

// Workspace holds the absolute roots used by a pipeline run.
type Workspace struct {
	Root          string
	SourceRoot    string
	ProvisionRoot string
}

// Source joins elem onto the source root.
func (w Workspace) Source(elem ...string) string {
	return filepath.Join(append([]string{w.SourceRoot}, elem...)...)
}

// Provision joins elem onto the provisioning root.
func (w Workspace) Provision(elem ...string) string {
	return filepath.Join(append([]string{w.ProvisionRoot}, elem...)...)
}

// Options controls how the workspace root is located.
type Options struct {
	// Explicit is an operator-supplied root (the --workspace flag).
	Explicit string

	// Env is the value of DEPLOYER_WORKSPACE, if any.
	Env string

	// Executable returns the path of the running binary. Defaults to os.Executable.
	Executable func() (string, error)

	// Markers are paths, relative to a candidate root, whose presence
	// identifies the workspace root. Any one marker is sufficient.
	Markers []string
}

// Locate returns the absolute workspace root.
//
// An explicit root wins over the environment, which wins over the
// executable's location. The executable anchor walks upward from the
// binary's directory until a directory containing one of the markers is
// found, so the result does not depend on where the command was invoked.
func Locate(opts Options) (string, error) {
	if opts.Explicit != "" {
		return existingDir(opts.Explicit, "--workspace")
	}
	if opts.Env != "" {
		return existingDir(opts.Env, "DEPLOYER_WORKSPACE")
	}

	executable := opts.Executable
	if executable == nil {
		executable = os.Executable
	}
	exe, err := executable()
	if err != nil {
		return "", fmt.Errorf("%w: cannot determine executable location: %v", ErrNotFound, err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	dir := filepath.Dir(exe)
	for {
		if hasMarker(dir, opts.Markers) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%w: no directory above %s contains %v (use --workspace)", ErrNotFound, filepath.Dir(exe), opts.Markers)
}

// New builds a Workspace from a located root and the configured layout.
// The source root must exist; the provisioning root is checked later by the
// precondition gate.
func New(root, sourceDir, provisionDir string) (Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Workspace{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	ws := Workspace{
		Root:          abs,
		SourceRoot:    filepath.Join(abs, sourceDir),
		ProvisionRoot: filepath.Join(abs, provisionDir),
	}

	info, err := os.Stat(ws.SourceRoot)
	if err != nil {
		return Workspace{}, fmt.Errorf("%w: source root %s: %v", ErrNotFound, ws.SourceRoot, err)
	}
	if !info.IsDir() {
		return Workspace{}, fmt.Errorf("%w: source root %s is not a directory", ErrNotFound, ws.SourceRoot)
	}

	return ws, nil
}

func existingDir(path, origin string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, origin, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s %s: %v", ErrNotFound, origin, abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s %s is not a directory", ErrNotFound, origin, abs)
	}
	return abs, nil
}

func hasMarker(dir string, markers []string) bool {
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
			return true
		}
	}
	return false
}
