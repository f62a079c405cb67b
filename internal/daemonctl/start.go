package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daemonkit/internal/daemon"
	"daemonkit/internal/daemonize"
	"daemonkit/internal/logging"
	"daemonkit/internal/pidfile"
	"daemonkit/internal/worker"
)

// StartState describes how far a start got in the current process.
type StartState string

const (
	// StartStateStarted means the launcher saw the daemon's pidfile.
	StartStateStarted StartState = "started"
	// StartStateRequested means the daemon was spawned but not confirmed.
	StartStateRequested StartState = "start_requested"
	// StartStateHandedOff is returned in the intermediate stage, which must exit 0.
	StartStateHandedOff StartState = "handed_off"
	// StartStateFinished is returned in the daemon process once its work returns.
	StartStateFinished StartState = "finished"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	Role  daemonize.Role
	// PID is the daemon's pid as read from the pidfile, when known.
	PID int
	// StaleRemoved reports that a dead instance's pidfile was cleared.
	StaleRemoved bool
}

// Start launches the daemon. The same call is made in every stage of the
// detachment; the Role in the result tells the caller which stage it is in.
// In the daemon stage Start blocks running r until SIGTERM or SIGINT.
func (c *Controller) Start(ctx context.Context, r worker.Runnable) (StartResult, error) {
	var result StartResult
	if daemonize.CurrentStage() == "" {
		staleRemoved, err := c.checkStart()
		if err != nil {
			return result, err
		}
		result.StaleRemoved = staleRemoved
	}

	res, err := c.daemonize(c.opts.Daemonize)
	result.Role = res.Role
	if err != nil {
		return result, err
	}

	switch res.Role {
	case daemonize.RoleParent:
		return c.awaitPidfile(ctx, result)
	case daemonize.RoleIntermediate:
		result.State = StartStateHandedOff
		return result, nil
	default:
		result.PID, err = c.runDaemon(ctx, r)
		result.State = StartStateFinished
		return result, err
	}
}

// checkStart decides whether a start may proceed. It runs only in the
// launcher, before anything is spawned.
func (c *Controller) checkStart() (bool, error) {
	pid, err := c.pidfile.Inspect()
	switch {
	case errors.Is(err, pidfile.ErrMissing):
		return false, nil
	case err != nil:
		return false, err
	}

	state, probeErr := c.table.Probe(pid)
	if state.Running() {
		return false, fmt.Errorf("%w: pidfile %s names live pid %d", ErrAlreadyRunning, c.pidfile.Path(), pid)
	}
	attrs := c.pidfileAttrs(pid)
	if probeErr != nil {
		attrs = append(attrs, logging.Error(probeErr))
	}
	if c.opts.RefuseStalePidfile {
		return false, fmt.Errorf("%w: pidfile %s already exists (pid %d is gone); remove it or run stop", ErrStalePidfile, c.pidfile.Path(), pid)
	}
	if err := c.pidfile.Remove(); err != nil {
		return false, err
	}
	logging.WarnWithContext(c.logger, "removed stale pidfile", "stale_pidfile_removed",
		append(attrs, logging.String(logging.FieldErrorHint, "the previous instance exited without cleaning up"))...)
	return true, nil
}

func (c *Controller) awaitPidfile(ctx context.Context, result StartResult) (StartResult, error) {
	result.State = StartStateRequested
	if c.opts.StartTimeout <= 0 {
		return result, nil
	}
	deadline := time.Now().Add(c.opts.StartTimeout)
	for {
		if pid, ok := c.pidfile.Read(); ok {
			if state, _ := c.table.Probe(pid); state.Running() {
				result.State = StartStateStarted
				result.PID = pid
				c.logger.Info("daemon launched",
					logging.Args(append(c.pidfileAttrs(pid), logging.String(logging.FieldEventType, "daemon_launched"))...)...)
				return result, nil
			}
		}
		if time.Now().After(deadline) {
			return result, fmt.Errorf("%w within %s (pidfile %s)", ErrStartTimeout, c.opts.StartTimeout, c.pidfile.Path())
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(pidfileCheckInterval):
		}
	}
}

// runDaemon is the body of the final process.
func (c *Controller) runDaemon(ctx context.Context, r worker.Runnable) (int, error) {
	signalCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var opts []daemon.Option
	if c.notifier != nil {
		opts = append(opts, daemon.WithNotifier(c.notifier))
	}
	d, err := daemon.New(c.opts.Name, c.pidfile, r, c.base, opts...)
	if err != nil {
		return 0, err
	}
	return os.Getpid(), d.Run(signalCtx)
}
