package pipeline

import (
	"errors"
	"fmt"
)

// Failure kinds. Every stage declares the kind its failures are reported as.
var (
	// ErrEnvironment means the workspace could not be located or is incomplete.
	ErrEnvironment = errors.New("environment resolution error")

	// ErrDependencyResolution means every dependency install strategy failed.
	ErrDependencyResolution = errors.New("dependency resolution error")

	// ErrAssemblyIO means copying sources or writing the archive failed.
	ErrAssemblyIO = errors.New("assembly I/O error")

	// ErrPrecondition means required deployment configuration is missing.
	ErrPrecondition = errors.New("precondition not met")

	// ErrProvisioning means the provisioning tool reported a failure.
	ErrProvisioning = errors.New("provisioning error")

	// ErrPublish means the archive could not be uploaded to object storage.
	ErrPublish = errors.New("publish error")
)

// Exit codes returned by the CLI.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitPrecondition = 2
)

// StageError reports which stage failed, the kind of failure and its cause.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

// Unwrap exposes both the failure kind and the underlying cause.
func (e *StageError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

// ExitCode maps a pipeline error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrPrecondition):
		return ExitPrecondition
	default:
		return ExitFailure
	}
}
