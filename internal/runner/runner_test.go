package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestLocalRun_CapturesOutput(t *testing.T) {
	requireShell(t)

	r := NewLocal(nil, nil, nil)
	res, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo out; echo err >&2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
}

func TestLocalRun_NonZeroExit(t *testing.T) {
	requireShell(t)

	r := NewLocal(nil, nil, nil)
	res, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo failing >&2; exit 3"},
	})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.ExitCode)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Result.ExitCode)
	assert.Contains(t, err.Error(), "exit status 3")
	assert.Contains(t, err.Error(), "failing")
}

func TestLocalRun_StreamMirrorsOutput(t *testing.T) {
	requireShell(t)

	var stdout, stderr bytes.Buffer
	r := NewLocal(&stdout, &stderr, nil)
	res, err := r.Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", "echo visible; echo diag >&2"},
		Stream: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "visible\n", stdout.String())
	assert.Equal(t, "diag\n", stderr.String())
	assert.Equal(t, "visible\n", res.Stdout)
}

func TestLocalRun_DirAndEnv(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	r := NewLocal(nil, nil, nil)
	res, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "pwd; echo $DEPLOYER_TEST_VALUE"},
		Dir:  dir,
		Env:  map[string]string{"DEPLOYER_TEST_VALUE": "42"},
	})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], dir[strings.LastIndex(dir, "/")+1:])
	assert.Equal(t, "42", lines[1])
}

func TestLocalRun_MissingProgram(t *testing.T) {
	r := NewLocal(nil, nil, nil)
	res, err := r.Run(context.Background(), Command{Name: "deployer-test-no-such-binary"})
	require.Error(t, err)
	assert.Equal(t, -1, res.ExitCode)

	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "terraform", Args: []string{"apply", "-auto-approve"}}
	assert.Equal(t, "terraform apply -auto-approve", c.String())
}

func TestEnvList_Sorted(t *testing.T) {
	got := envList(map[string]string{"B": "2", "A": "1"})
	assert.Equal(t, []string{"A=1", "B=2"}, got)
}

func TestLastLines(t *testing.T) {
	assert.Equal(t, "", lastLines("", 3))
	assert.Equal(t, "c\nd", lastLines("a\nb\nc\nd\n", 2))
	assert.Equal(t, "a", lastLines("a\n", 5))
}
