package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"daemonkit/internal/logging"
	"daemonkit/internal/worker"
)

type capturedRecord struct {
	level slog.Level
	msg   string
	attrs map[string]string
}

type captureHandler struct {
	mu      *sync.Mutex
	records *[]capturedRecord
	attrs   []slog.Attr
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{mu: &sync.Mutex{}, records: &[]capturedRecord{}}
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	rec := capturedRecord{level: r.Level, msg: r.Message, attrs: map[string]string{}}
	for _, a := range h.attrs {
		rec.attrs[a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.attrs[a.Key] = a.Value.String()
		return true
	})
	h.mu.Lock()
	*h.records = append(*h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{mu: h.mu, records: h.records, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func (h *captureHandler) find(eventType string) []capturedRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []capturedRecord
	for _, rec := range *h.records {
		if rec.attrs[logging.FieldEventType] == eventType {
			out = append(out, rec)
		}
	}
	return out
}

var errConnectionLost = errors.New("connection lost")

// runUntil runs loop until it has completed at least cycles cycles, then
// cancels it and waits for Run to return.
func runUntil(t *testing.T, loop *worker.Loop, cycles int64) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for loop.Cycles() < cycles {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("loop completed %d cycles, want %d", loop.Cycles(), cycles)
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}

func TestLoopRunsTasksInOrderEveryCycle(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) worker.Task {
		return worker.NewTask(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	loop := worker.NewLoop(logging.NewNop(), worker.Interval(time.Millisecond), []worker.Task{record("one"), record("two")})
	runUntil(t, loop, 2)

	mu.Lock()
	defer mu.Unlock()
	if len(order) < 4 {
		t.Fatalf("expected at least two full cycles, got %v", order)
	}
	for i := 0; i+1 < len(order); i += 2 {
		if order[i] != "one" || order[i+1] != "two" {
			t.Fatalf("tasks ran out of order: %v", order)
		}
	}
}

func TestLoopContinuesAfterUnexpectedFailure(t *testing.T) {
	capture := newCaptureHandler()
	var secondRuns sync.WaitGroup
	secondRuns.Add(1)
	var once sync.Once

	tasks := []worker.Task{
		worker.NewTask("task_one", func(context.Context) error { return errors.New("disk on fire") }),
		worker.NewTask("task_two", func(context.Context) error {
			once.Do(secondRuns.Done)
			return nil
		}),
	}
	loop := worker.NewLoop(slog.New(capture), worker.Interval(time.Millisecond), tasks)
	runUntil(t, loop, 3)
	secondRuns.Wait()

	failures := capture.find("task_failed")
	if len(failures) < 3 {
		t.Fatalf("expected a critical record per cycle, got %d", len(failures))
	}
	for _, rec := range failures {
		if rec.level != logging.LevelCritical {
			t.Fatalf("level = %v, want critical", rec.level)
		}
		if rec.attrs[logging.FieldTask] != "task_one" {
			t.Fatalf("task attr = %q", rec.attrs[logging.FieldTask])
		}
		if rec.attrs[logging.FieldCycleID] == "" {
			t.Fatal("expected cycle_id on failure record")
		}
	}
	if loop.Failures() < 3 {
		t.Fatalf("failures = %d", loop.Failures())
	}
}

func TestLoopRecoversAnticipatedFailure(t *testing.T) {
	capture := newCaptureHandler()
	var resets int
	var mu sync.Mutex

	tasks := []worker.Task{
		worker.NewTask("query", func(context.Context) error {
			return errors.Join(errConnectionLost, errors.New("read tcp: reset"))
		}),
	}
	loop := worker.NewLoop(slog.New(capture), worker.Interval(time.Millisecond), tasks,
		worker.WithRecovery(worker.Recovery{
			Match: func(err error) bool { return errors.Is(err, errConnectionLost) },
			Reset: func(context.Context) error {
				mu.Lock()
				resets++
				mu.Unlock()
				return nil
			},
		}),
	)
	runUntil(t, loop, 2)

	recoverable := capture.find("task_recoverable_error")
	if len(recoverable) < 2 {
		t.Fatalf("expected recoverable records, got %d", len(recoverable))
	}
	for _, rec := range recoverable {
		if rec.level != slog.LevelError {
			t.Fatalf("level = %v, want error", rec.level)
		}
	}
	if len(capture.find("task_failed")) != 0 {
		t.Fatal("anticipated failures must not be logged as critical")
	}
	mu.Lock()
	defer mu.Unlock()
	if resets < 2 {
		t.Fatalf("resets = %d, want at least 2", resets)
	}
}

func TestLoopReportsFailedReset(t *testing.T) {
	capture := newCaptureHandler()
	tasks := []worker.Task{
		worker.NewTask("query", func(context.Context) error { return errConnectionLost }),
	}
	loop := worker.NewLoop(slog.New(capture), worker.Interval(time.Millisecond), tasks,
		worker.WithRecovery(worker.Recovery{
			Match: func(err error) bool { return errors.Is(err, errConnectionLost) },
			Reset: func(context.Context) error { return errors.New("database unreachable") },
		}),
	)
	runUntil(t, loop, 1)

	resets := capture.find("task_reset_failed")
	if len(resets) == 0 || resets[0].level != logging.LevelCritical {
		t.Fatalf("expected critical reset failure, got %+v", resets)
	}
}

func TestLoopIsolatesPanics(t *testing.T) {
	capture := newCaptureHandler()
	var ran sync.Once
	ranCh := make(chan struct{})
	tasks := []worker.Task{
		worker.NewTask("explodes", func(context.Context) error { panic("boom") }),
		worker.NewTask("survivor", func(context.Context) error {
			ran.Do(func() { close(ranCh) })
			return nil
		}),
	}
	loop := worker.NewLoop(slog.New(capture), worker.Interval(time.Millisecond), tasks)
	runUntil(t, loop, 1)

	select {
	case <-ranCh:
	default:
		t.Fatal("task after a panicking task did not run")
	}
	failures := capture.find("task_failed")
	if len(failures) == 0 {
		t.Fatal("expected panic to be logged as a critical failure")
	}
	if failures[0].attrs["stack"] == "" {
		t.Fatal("expected stack trace on panic record")
	}
}

func TestLoopPauseIsInterruptible(t *testing.T) {
	loop := worker.NewLoop(logging.NewNop(), worker.Interval(time.Hour), []worker.Task{
		worker.NewTask("noop", func(context.Context) error { return nil }),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	for loop.Cycles() < 1 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not interrupt the pause")
	}
}

func TestLoopStopsQuietlyOnShutdownCancellation(t *testing.T) {
	capture := newCaptureHandler()
	ctx, cancel := context.WithCancel(context.Background())
	tasks := []worker.Task{
		worker.NewTask("long", func(taskCtx context.Context) error {
			cancel()
			<-taskCtx.Done()
			return taskCtx.Err()
		}),
	}
	loop := worker.NewLoop(slog.New(capture), worker.Interval(time.Millisecond), tasks)
	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(capture.find("task_failed")) != 0 {
		t.Fatal("shutdown cancellation must not be reported as a failure")
	}
	if loop.Failures() != 0 {
		t.Fatalf("failures = %d, want 0", loop.Failures())
	}
}

func TestRunnableFunc(t *testing.T) {
	called := false
	var r worker.Runnable = worker.RunnableFunc(func(context.Context) error {
		called = true
		return nil
	})
	if err := r.Run(context.Background()); err != nil || !called {
		t.Fatalf("RunnableFunc did not delegate: called=%v err=%v", called, err)
	}
}
