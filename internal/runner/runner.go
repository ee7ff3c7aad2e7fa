package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Command describes a subprocess invocation.
type Command struct {
	// Name is the program to run, looked up in PATH.
	Name string

	// Args are passed to the program verbatim.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is added on top of the inherited environment.
	Env map[string]string

	// Stream mirrors stdout and stderr to the runner's writers while capturing.
	Stream bool
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	parts := append([]string{c.Name}, c.Args...)
	return strings.Join(parts, " ")
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Command Command
	Result  *Result
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.Result.ExitCode)
	if detail := lastLines(e.Result.Stderr, 20); detail != "" {
		msg += "\n" + detail
	}
	return msg
}

// Local runs commands on the host.
type Local struct {
	stdout io.Writer
	stderr io.Writer
	logger *log.Logger
}

// NewLocal creates a host runner. Streamed commands are mirrored to stdout
// and stderr; nil writers default to the process streams.
func NewLocal(stdout, stderr io.Writer, logger *log.Logger) *Local {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Local{stdout: stdout, stderr: stderr, logger: logger}
}

// Run starts the command and waits for it. The returned Result is never nil.
// A non-zero exit yields *ExitError; a command that could not be started
// yields the underlying error with ExitCode -1.
func (l *Local) Run(ctx context.Context, c Command) (*Result, error) {
	// #nosec G204 - commands are assembled from deployer configuration, not user input
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(c.Env)...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.Stream {
		cmd.Stdout = io.MultiWriter(&stdout, l.stdout)
		cmd.Stderr = io.MultiWriter(&stderr, l.stderr)
	}

	if l.logger != nil {
		l.logger.Debug("exec", "cmd", c.String(), "dir", c.Dir)
	}

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, &ExitError{Command: c, Result: result}
	default:
		result.ExitCode = -1
		return result, fmt.Errorf("failed to run %s: %w", c.Name, err)
	}
}

// envList renders env as sorted KEY=VALUE pairs.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}

// lastLines returns at most n trailing non-empty lines of s.
func lastLines(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
