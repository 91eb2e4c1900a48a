package tasks

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Source enumerates the tasks of the current project and describes their
// arguments.
type Source interface {
	ListTasks(ctx context.Context) ([]string, error)
	DescribeTask(ctx context.Context, task string) ([]string, error)
}

// ExecFunc runs name with args and returns its standard output. A process
// that started but exited unsuccessfully must be reported as *exec.ExitError
// (with any captured stdout still returned).
type ExecFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Exec is the default ExecFunc, backed by os/exec.
func Exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Runner is a Source backed by an external task runner binary such as fab.
type Runner struct {
	Binary  string
	Grammar DescribeGrammar
	Exec    ExecFunc
	Logger  *zap.Logger
}

// NewRunner returns a Runner for binary using the Fabric describe grammar.
func NewRunner(binary string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Binary:  binary,
		Grammar: FabricDescribe,
		Exec:    Exec,
		Logger:  logger,
	}
}

// ListTasks runs `<binary> --shortlist`.
func (r *Runner) ListTasks(ctx context.Context) ([]string, error) {
	output, err := r.run(ctx, "--shortlist")
	if err != nil {
		return nil, fmt.Errorf("unable to get list of tasks from %s: %w", r.Binary, err)
	}
	return ParseShortlist(output), nil
}

// DescribeTask runs `<binary> -d <task>` and parses it with r.Grammar.
// Output that does not match the grammar is returned together with an error
// wrapping ErrMalformedOutput.
func (r *Runner) DescribeTask(ctx context.Context, task string) ([]string, error) {
	output, err := r.run(ctx, "-d", task)
	if err != nil {
		return nil, fmt.Errorf("unable to describe task %s with %s: %w", task, r.Binary, err)
	}
	return r.Grammar.Parse(task, output)
}

// run returns stdout of the runner. Only a failure to start the process is an
// error; a non-zero exit still yields whatever was printed.
func (r *Runner) run(ctx context.Context, args ...string) (string, error) {
	r.Logger.Debug("running task runner", zap.String("binary", r.Binary), zap.Strings("args", args))

	stdout, err := r.Exec(ctx, r.Binary, args...)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		r.Logger.Debug("task runner exited unsuccessfully",
			zap.String("binary", r.Binary),
			zap.Strings("args", args),
			zap.Int("exit_code", exitErr.ExitCode()),
			zap.String("stderr", strings.TrimSpace(string(exitErr.Stderr))),
		)
		return string(stdout), nil
	}
	if err != nil {
		return "", err
	}

	return string(stdout), nil
}
