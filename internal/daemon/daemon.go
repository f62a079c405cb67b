package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"daemonkit/internal/logging"
	"daemonkit/internal/pidfile"
	"daemonkit/internal/worker"
)

var (
	// ErrLocked reports that another process holds the instance lock.
	ErrLocked = errors.New("another daemon instance holds the lock")
	// ErrRunning reports a second Run on the same Daemon.
	ErrRunning = errors.New("daemon already running")
)

// Notifier receives lifecycle notices. Delivery failures are logged and
// otherwise ignored.
type Notifier interface {
	NotifyDaemonStarted(ctx context.Context, name string, pid int) error
	NotifyDaemonStopped(ctx context.Context, name string, pid int, uptime time.Duration) error
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithNotifier sends start and stop notices through n.
func WithNotifier(n Notifier) Option {
	return func(d *Daemon) { d.notifier = n }
}

// Daemon is the body of the final detached process: it owns the instance
// lock and the pidfile for as long as its Runnable runs.
type Daemon struct {
	name     string
	pidfile  *pidfile.File
	runnable worker.Runnable
	logger   *slog.Logger
	notifier Notifier

	lock    *flock.Flock
	running atomic.Bool
}

// New constructs a daemon. Nothing is touched on disk until Run.
func New(name string, pf *pidfile.File, runnable worker.Runnable, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if strings.TrimSpace(name) == "" || pf == nil || runnable == nil {
		return nil, errors.New("daemon requires name, pidfile, and runnable")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		name:     name,
		pidfile:  pf,
		runnable: runnable,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lock:     flock.New(pf.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Running reports whether Run is in progress.
func (d *Daemon) Running() bool { return d.running.Load() }

// Run takes the instance lock, records the current pid and runs the
// Runnable until it returns. The pidfile is removed and the lock released on
// the way out.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer d.running.Store(false)

	if err := os.MkdirAll(filepath.Dir(d.pidfile.Path()), 0o755); err != nil {
		return fmt.Errorf("create pidfile directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, d.pidfile.LockPath())
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	pid := os.Getpid()
	if err := d.pidfile.Write(pid); err != nil {
		return err
	}
	defer func() {
		if err := d.pidfile.Remove(); err != nil {
			logging.WarnWithContext(d.logger, "failed to remove pidfile", "pidfile_remove_failed",
				logging.Error(err),
				logging.String(logging.FieldPidfile, d.pidfile.Path()),
				logging.String(logging.FieldImpact, "next start will treat the pidfile as stale"),
			)
		}
	}()

	started := time.Now()
	d.logger.Info("daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.Int(logging.FieldPID, pid),
		logging.String(logging.FieldPidfile, d.pidfile.Path()),
	)
	d.notifyStarted(ctx, pid)

	runErr := d.runnable.Run(ctx)

	uptime := time.Since(started)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "daemon_stopped"),
		logging.Int(logging.FieldPID, pid),
		logging.Duration("uptime", uptime),
	}
	if runErr != nil {
		d.logger.Error("daemon stopped with error", logging.Args(append(attrs, logging.Error(runErr))...)...)
	} else {
		d.logger.Info("daemon stopped", logging.Args(attrs...)...)
	}
	d.notifyStopped(ctx, pid, uptime)
	return runErr
}

func (d *Daemon) notifyStarted(ctx context.Context, pid int) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.NotifyDaemonStarted(ctx, d.name, pid); err != nil {
		d.logger.Warn("start notification failed", logging.Error(err))
	}
}

func (d *Daemon) notifyStopped(ctx context.Context, pid int, uptime time.Duration) {
	if d.notifier == nil {
		return
	}
	// The run context is usually cancelled by now.
	if err := d.notifier.NotifyDaemonStopped(context.WithoutCancel(ctx), d.name, pid, uptime); err != nil {
		d.logger.Warn("stop notification failed", logging.Error(err))
	}
}
