// Package runner executes external commands and captures their output.
//
// Every subprocess the deployer starts (pip, terraform) goes through the
// Runner interface so tests can substitute a fake without spawning processes.
// A command can additionally be streamed to the operator's terminal while it
// is being captured.
package runner
