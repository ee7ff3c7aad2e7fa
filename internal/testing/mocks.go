package testing

import (
	"context"
	"slices"

	"github.com/stretchr/testify/mock"

	"github.com/lynkia/deployer/internal/runner"
)

// MockRunner is a mock implementation of runner.Runner.
type MockRunner struct {
	mock.Mock
}

// Run records the command and returns the configured result.
func (m *MockRunner) Run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	args := m.Called(ctx, cmd)
	var res *runner.Result
	if r := args.Get(0); r != nil {
		res = r.(*runner.Result)
	}
	return res, args.Error(1)
}

// OnCommand expects a Run call whose command matches name and contains args.
func (m *MockRunner) OnCommand(name string, args ...string) *mock.Call {
	return m.On("Run", mock.Anything, MatchCommand(name, args...))
}

// Commands returns every command passed to Run, in order.
func (m *MockRunner) Commands() []runner.Command {
	var cmds []runner.Command
	for _, call := range m.Calls {
		if call.Method != "Run" {
			continue
		}
		cmds = append(cmds, call.Arguments.Get(1).(runner.Command))
	}
	return cmds
}

// CountCommands returns how many recorded commands match name and args.
func (m *MockRunner) CountCommands(name string, args ...string) int {
	n := 0
	for _, c := range m.Commands() {
		if commandMatches(c, name, args) {
			n++
		}
	}
	return n
}

// MatchCommand returns a testify argument matcher for runner.Command.
func MatchCommand(name string, args ...string) any {
	return mock.MatchedBy(func(c runner.Command) bool {
		return commandMatches(c, name, args)
	})
}

// NotCommand matches commands named name that do NOT contain arg.
func NotCommand(name, arg string) any {
	return mock.MatchedBy(func(c runner.Command) bool {
		return c.Name == name && !slices.Contains(c.Args, arg)
	})
}

func commandMatches(c runner.Command, name string, args []string) bool {
	if c.Name != name {
		return false
	}
	for _, a := range args {
		if !slices.Contains(c.Args, a) {
			return false
		}
	}
	return true
}

// Succeeded returns a zero-exit result with the given stdout.
func Succeeded(stdout string) (*runner.Result, error) {
	return &runner.Result{Stdout: stdout}, nil
}

// Failed returns a non-zero result and the matching *runner.ExitError.
func Failed(name string, code int, stderr string) (*runner.Result, error) {
	res := &runner.Result{Stderr: stderr, ExitCode: code}
	return res, &runner.ExitError{Command: runner.Command{Name: name}, Result: res}
}

// ArgAfter returns the argument following flag, or "".
func ArgAfter(c runner.Command, flag string) string {
	i := slices.Index(c.Args, flag)
	if i < 0 || i+1 >= len(c.Args) {
		return ""
	}
	return c.Args[i+1]
}
