package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"daemonkit/internal/config"
	"daemonkit/internal/logging"
	"daemonkit/internal/store"
	"daemonkit/internal/worker"
)

const heartbeatRetention = 24 * time.Hour

// NewLogger builds the daemon's named logger from cfg. CRITICAL records are
// forwarded to notifier when it is non-nil.
func NewLogger(cfg *config.Config, notifier logging.CriticalNotifier) (*logging.Logger, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	return logging.New(logging.Options{
		Name:       cfg.Daemon.Name,
		Dir:        cfg.Logging.Dir,
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Console:    cfg.Logging.Console,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Notifier:   notifier,
	})
}

// Runtime is the example daemon's worker: it records a heartbeat every
// cycle and prunes old heartbeats, rebuilding its database connection when a
// transient error breaks it.
type Runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time

	loop atomic.Pointer[worker.Loop]
}

// New constructs the runtime. Nothing is opened until Run.
func New(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runtime{cfg: cfg, logger: logger, now: time.Now}, nil
}

// Run runs the worker loop until ctx is cancelled. The store is opened by
// the first task that needs it; an open failure is retried through the
// loop's recovery path on later cycles.
func (r *Runtime) Run(ctx context.Context) error {
	ctx = logging.WithRunID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, r.logger)
	logger.Debug(fmt.Sprintf("***> %s started <***", r.cfg.Daemon.Name),
		logging.String(logging.FieldEventType, "runtime_started"),
	)

	logging.CleanupOldLogs(logger, r.cfg.Logging.RetentionDays,
		logging.BackupTarget(r.cfg.Logging.Dir, r.cfg.Daemon.Name),
		logging.BackupTarget(r.cfg.Logging.Dir, r.maintenanceLogName()),
	)

	stores := newStoreHandle(r.cfg.Store.Path)
	defer stores.close()

	pacer, err := worker.NewPacer(r.cfg.WorkerInterval(), r.cfg.Worker.Schedule)
	if err != nil {
		return err
	}
	jobLog, err := r.openMaintenanceLog()
	if err != nil {
		return err
	}
	defer jobLog.Close()

	loop := worker.NewLoop(r.logger, pacer, r.tasks(stores, jobLog.Logger),
		worker.WithRecovery(worker.Recovery{Match: recoverable, Reset: stores.reset}),
		worker.WithClock(r.now),
	)
	r.loop.Store(loop)
	return loop.Run(ctx)
}

// Cycles reports the completed cycles of the current or last Run.
func (r *Runtime) Cycles() int64 {
	loop := r.loop.Load()
	if loop == nil {
		return 0
	}
	return loop.Cycles()
}

// Failures reports the task failures of the current or last Run.
func (r *Runtime) Failures() int64 {
	loop := r.loop.Load()
	if loop == nil {
		return 0
	}
	return loop.Failures()
}

// tasks returns the per-cycle tasks. Maintenance output goes to jobLog.
func (r *Runtime) tasks(stores *storeHandle, jobLog *slog.Logger) []worker.Task {
	return []worker.Task{
		worker.NewTask("record_heartbeat", func(ctx context.Context) error {
			st, err := stores.get(ctx)
			if err != nil {
				return err
			}
			return r.recordHeartbeat(ctx, st)
		}),
		worker.NewTask("prune_heartbeats", func(ctx context.Context) error {
			st, err := stores.get(ctx)
			if err != nil {
				return err
			}
			return r.pruneHeartbeats(ctx, st, jobLog)
		}),
	}
}

func (r *Runtime) recordHeartbeat(ctx context.Context, st *store.Store) error {
	cycleID, _ := logging.CycleIDFromContext(ctx)
	id, err := st.RecordHeartbeat(ctx, store.Heartbeat{
		Daemon:     r.cfg.Daemon.Name,
		PID:        os.Getpid(),
		CycleID:    cycleID,
		RecordedAt: r.now(),
	})
	if err != nil {
		return err
	}
	logging.WithContext(ctx, r.logger).Info("heartbeat recorded", logging.Int64("heartbeat_id", id))
	return nil
}

func (r *Runtime) pruneHeartbeats(ctx context.Context, st *store.Store, jobLog *slog.Logger) error {
	logger := logging.WithContext(ctx, jobLog)
	cutoff := r.now().Add(-heartbeatRetention)
	removed, err := st.PruneHeartbeats(ctx, cutoff)
	if err != nil {
		logger.Error("heartbeat prune failed", logging.Error(err))
		return err
	}
	logger.Info("heartbeats pruned",
		logging.Int64("removed", removed),
		logging.String("cutoff", cutoff.UTC().Format(time.RFC3339)),
	)
	return nil
}

// openMaintenanceLog opens the job log used by maintenance tasks. Each run
// starts it clean; the previous run's entries move to a backup.
func (r *Runtime) openMaintenanceLog() (*logging.Logger, error) {
	jobLog, err := logging.New(logging.Options{
		Name:       r.maintenanceLogName(),
		Dir:        r.cfg.Logging.Dir,
		Level:      r.cfg.Logging.Level,
		Format:     r.cfg.Logging.Format,
		MaxSizeMB:  r.cfg.Logging.MaxSizeMB,
		MaxBackups: r.cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("open maintenance log: %w", err)
	}
	if err := jobLog.Rollover(); err != nil {
		_ = jobLog.Close()
		return nil, fmt.Errorf("roll over maintenance log: %w", err)
	}
	return jobLog, nil
}

func (r *Runtime) maintenanceLogName() string {
	return r.cfg.Daemon.Name + ".maintenance"
}
