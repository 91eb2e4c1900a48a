package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/robottwo/fabcomplete/internal/tasks"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// TasksEntry is the cache entry holding the task list.
const TasksEntry = "tasks"

// ErrProgramName is returned when asked to complete the command name itself.
// Bash never does this for a `complete -C` registration.
var ErrProgramName = errors.New("cannot complete the program name")

// Input is the cursor context of one completion request.
type Input interface {
	// ArgIndex is the 0-based index of the word being completed.
	ArgIndex() int
	CurrentWord() string
	PreviousWord() string
}

// Cache stores line lists by entry name. *cache.Store satisfies it.
type Cache interface {
	Get(name string) ([]string, error)
	Set(name string, lines []string) error
	Clear(name string) error
}

// Result is what one request produces. Candidates are unfiltered; the shell
// adapter applies prefix matching when rendering. Notice, when set, is a
// message for the user rather than a candidate.
type Result struct {
	Candidates []string
	Command    Command
	Notice     string
}

// Dispatcher routes a completion request by argument position.
type Dispatcher struct {
	cache  Cache
	source tasks.Source
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher. A nil logger disables logging.
func NewDispatcher(cache Cache, source tasks.Source, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cache:  cache,
		source: source,
		logger: logger,
	}
}

// Complete answers one completion request.
func (d *Dispatcher) Complete(ctx context.Context, in Input) (Result, error) {
	switch index := in.ArgIndex(); {
	case index <= 0:
		return Result{}, ErrProgramName
	case index == 1:
		return d.completeTasks(ctx, in)
	case index == 2:
		return d.completeSecond(ctx, in)
	default:
		return Result{}, nil
	}
}

// Run executes cmd outside of any completion context.
func (d *Dispatcher) Run(ctx context.Context, cmd Command) (Result, error) {
	switch cmd {
	case CommandClearCache:
		if err := d.cache.Clear(TasksEntry); err != nil {
			return Result{}, err
		}
		d.logger.Info("task cache cleared")

		// Repopulate now so the next completion is fast.
		if _, err := d.taskList(ctx); err != nil {
			return Result{}, err
		}
		return Result{Command: cmd, Notice: CacheClearedNotice}, nil
	default:
		return Result{}, fmt.Errorf("unknown command %d", cmd)
	}
}

func (d *Dispatcher) completeTasks(ctx context.Context, in Input) (Result, error) {
	taskNames, err := d.taskList(ctx)
	if err != nil {
		return Result{}, err
	}

	current := in.CurrentWord()
	if lo.Contains(taskNames, current) {
		// An exact task name (no trailing space yet) moves straight on to
		// its argument description.
		return d.completeArguments(ctx, current)
	}

	candidates := make([]string, 0, len(taskNames)+1)
	candidates = append(candidates, taskNames...)
	candidates = append(candidates, CommandClearCache.Token())
	return Result{Candidates: candidates}, nil
}

func (d *Dispatcher) completeSecond(ctx context.Context, in Input) (Result, error) {
	if cmd, ok := ParseCommand(in.PreviousWord()); ok {
		return d.Run(ctx, cmd)
	}

	// Nothing typed yet names no task, so there is nothing to describe and
	// fab is not started on every <TAB> after a task.
	if in.CurrentWord() == "" {
		return Result{}, nil
	}
	return d.completeArguments(ctx, in.CurrentWord())
}

func (d *Dispatcher) completeArguments(ctx context.Context, task string) (Result, error) {
	descriptions, err := d.source.DescribeTask(ctx, task)
	if errors.Is(err, tasks.ErrMalformedOutput) {
		d.logger.Warn("unexpected task description output", zap.String("task", task), zap.Error(err))
	} else if err != nil {
		return Result{}, err
	}

	candidates := make([]string, 0, len(descriptions)+1)
	candidates = append(candidates, descriptions...)
	candidates = append(candidates, task)
	return Result{Candidates: candidates}, nil
}

// taskList reads the task list from the cache, asking the source on a miss.
// An empty list is never trusted as cached state.
func (d *Dispatcher) taskList(ctx context.Context) ([]string, error) {
	cached, err := d.cache.Get(TasksEntry)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		d.logger.Debug("task cache hit", zap.Int("tasks", len(cached)))
		return cached, nil
	}

	d.logger.Debug("task cache miss")
	fresh, err := d.source.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.cache.Set(TasksEntry, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}
