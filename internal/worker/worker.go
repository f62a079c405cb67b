// Package worker defines what a daemon runs once it is detached.
//
// A daemon supplies a Runnable. Most daemons use Loop, which repeats a fixed
// list of tasks until shutdown: every cycle runs each task in turn, isolates
// failures and panics, logs them, and then pauses until the next cycle.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"daemonkit/internal/logging"
)

// Runnable is the work a daemon performs after detaching. Run is called once
// and should return when ctx is cancelled.
type Runnable interface {
	Run(ctx context.Context) error
}

// RunnableFunc adapts a function to Runnable.
type RunnableFunc func(ctx context.Context) error

func (f RunnableFunc) Run(ctx context.Context) error { return f(ctx) }

// Task is one unit of work executed every cycle.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

type funcTask struct {
	name string
	fn   func(ctx context.Context) error
}

func (t funcTask) Name() string                  { return t.name }
func (t funcTask) Run(ctx context.Context) error { return t.fn(ctx) }

// NewTask wraps fn as a named Task.
func NewTask(name string, fn func(ctx context.Context) error) Task {
	return funcTask{name: name, fn: fn}
}

// Recovery handles anticipated failures such as a dropped database
// connection. Errors for which Match returns true are logged at ERROR and
// followed by Reset; all other errors are logged at CRITICAL.
type Recovery struct {
	Match func(error) bool
	Reset func(ctx context.Context) error
}

// PanicError is reported when a task panics.
type PanicError struct {
	Task  string
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.Task, e.Value)
}

// Option configures a Loop.
type Option func(*Loop)

// WithRecovery installs the handler for anticipated failures.
func WithRecovery(r Recovery) Option {
	return func(l *Loop) { l.recovery = r }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// Loop runs tasks forever at the pace set by its Pacer.
type Loop struct {
	tasks    []Task
	pacer    Pacer
	recovery Recovery
	logger   *slog.Logger
	now      func() time.Time

	cycles   atomic.Int64
	failures atomic.Int64
}

// NewLoop builds a loop over tasks. A nil pacer defaults to a five second interval.
func NewLoop(logger *slog.Logger, pacer Pacer, tasks []Task, opts ...Option) *Loop {
	if pacer == nil {
		pacer = Interval(DefaultInterval)
	}
	l := &Loop{
		tasks:  append([]Task(nil), tasks...),
		pacer:  pacer,
		logger: logging.NewComponentLogger(logger, "worker"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cycles returns the number of completed cycles.
func (l *Loop) Cycles() int64 { return l.cycles.Load() }

// Failures returns the number of task failures observed so far.
func (l *Loop) Failures() int64 { return l.failures.Load() }

// Run executes cycles until ctx is cancelled. Task failures never end the
// loop; Run returns nil on shutdown.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("worker loop started",
		logging.Int("tasks", len(l.tasks)),
		logging.String(logging.FieldEventType, "worker_started"),
	)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("worker loop stopped",
				logging.Int64("cycles", l.cycles.Load()),
				logging.String(logging.FieldEventType, "worker_stopped"),
			)
			return nil
		default:
		}

		l.runCycle(ctx)
		l.pause(ctx)
	}
}

func (l *Loop) runCycle(ctx context.Context) {
	cycleCtx := logging.WithCycleID(ctx, uuid.NewString())
	logger := logging.WithContext(cycleCtx, l.logger)
	started := l.now()
	logger.Debug("cycle started", logging.String(logging.FieldEventType, "cycle_started"))

	for _, task := range l.tasks {
		if ctx.Err() != nil {
			return
		}
		taskLogger := logger.With(logging.String(logging.FieldTask, task.Name()))
		taskLogger.Debug("executing task")
		err := runTask(cycleCtx, task)
		if err == nil {
			continue
		}
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			taskLogger.Info("task interrupted by shutdown")
			return
		}
		l.failures.Add(1)
		l.handleFailure(cycleCtx, taskLogger, err)
	}

	l.cycles.Add(1)
	logger.Debug("cycle finished",
		logging.Duration("elapsed", l.now().Sub(started)),
		logging.String(logging.FieldEventType, "cycle_finished"),
	)
}

func (l *Loop) handleFailure(ctx context.Context, logger *slog.Logger, err error) {
	if l.recovery.Match != nil && l.recovery.Match(err) {
		logging.ErrorWithContext(logger, "task failed; resetting connection", "task_recoverable_error",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the next cycle retries with a fresh connection"),
		)
		if l.recovery.Reset == nil {
			return
		}
		if resetErr := l.recovery.Reset(ctx); resetErr != nil {
			logging.CriticalWithContext(ctx, logger, "connection reset failed", "task_reset_failed",
				logging.Error(resetErr),
			)
		}
		return
	}

	attrs := []logging.Attr{logging.Error(err)}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		attrs = append(attrs, logging.String("stack", panicErr.Stack))
	}
	logging.CriticalWithContext(ctx, logger, "task failed with unexpected error", "task_failed", attrs...)
}

func runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: task.Name(), Value: r, Stack: strings.TrimSpace(string(debug.Stack()))}
		}
	}()
	return task.Run(ctx)
}

// pause waits until the pacer's next activation or until ctx is cancelled.
func (l *Loop) pause(ctx context.Context) {
	now := l.now()
	wait := l.pacer.Next(now).Sub(now)
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
