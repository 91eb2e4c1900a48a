package tasks

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	name string
	args []string
}

func fakeExec(stdout string, err error, calls *[]execCall) ExecFunc {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, execCall{name: name, args: args})
		return []byte(stdout), err
	}
}

func TestRunner_ListTasks(t *testing.T) {
	var calls []execCall
	runner := NewRunner("fab", nil)
	runner.Exec = fakeExec("deploy\n  test\n", nil, &calls)

	got, err := runner.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"deploy", "test"}, got)

	require.Len(t, calls, 1)
	assert.Equal(t, "fab", calls[0].name)
	assert.Equal(t, []string{"--shortlist"}, calls[0].args)
}

func TestRunner_DescribeTask(t *testing.T) {
	var calls []execCall
	runner := NewRunner("fab", nil)
	runner.Exec = fakeExec("\nDisplaying...\n\nNo docstring\nArguments: mode=None\n", nil, &calls)

	got, err := runner.DescribeTask(context.Background(), "deploy")
	require.NoError(t, err)
	assert.Equal(t, []string{"No docstring", "deploy:mode=None"}, got)

	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-d", "deploy"}, calls[0].args)
}

func TestRunner_NonZeroExitIsNotAnError(t *testing.T) {
	var calls []execCall
	runner := NewRunner("fab", nil)
	runner.Exec = fakeExec("deploy\n", &exec.ExitError{}, &calls)

	got, err := runner.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"deploy"}, got)

	runner.Exec = fakeExec("", &exec.ExitError{}, &calls)
	got, err = runner.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRunner_LaunchFailureIsAnError(t *testing.T) {
	launchErr := errors.New("exec: \"fab\": executable file not found in $PATH")

	var calls []execCall
	runner := NewRunner("fab", nil)
	runner.Exec = fakeExec("", launchErr, &calls)

	_, err := runner.ListTasks(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, launchErr)

	_, err = runner.DescribeTask(context.Background(), "deploy")
	require.Error(t, err)
	assert.ErrorIs(t, err, launchErr)
}

func TestRunner_MissingBinary(t *testing.T) {
	runner := NewRunner(filepath.Join(t.TempDir(), "no-such-fab"), nil)

	_, err := runner.ListTasks(context.Background())
	assert.Error(t, err)
}

func TestRunner_RealProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script runner requires a POSIX shell")
	}

	script := `#!/bin/sh
case "$1" in
  --shortlist)
    printf 'deploy\n  test  \n'
    ;;
  -d)
    if [ "$2" = "deploy" ]; then
      printf '\nDisplaying detailed information for task deploy:\n\n    No docstring provided\n    Arguments: mode=None\n\n'
    else
      echo "Task '$2' not found" >&2
      exit 1
    fi
    ;;
  *)
    exit 2
    ;;
esac
`
	path := filepath.Join(t.TempDir(), "fab")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))

	runner := NewRunner(path, nil)
	ctx := context.Background()

	tasks, err := runner.ListTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"deploy", "test"}, tasks)

	args, err := runner.DescribeTask(ctx, "deploy")
	require.NoError(t, err)
	assert.Equal(t, []string{"No docstring provided", "deploy:mode=None"}, args)

	args, err = runner.DescribeTask(ctx, "missing")
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.Empty(t, args)
}
