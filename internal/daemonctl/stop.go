package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"daemonkit/internal/logging"
	"daemonkit/internal/pidfile"
	"daemonkit/internal/process"
	"daemonkit/internal/worker"
)

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	// WasRunning is false when no pidfile existed.
	WasRunning bool
	PID        int
	// Signals counts termination signals delivered before the process vanished.
	Signals int
	// ForcedKill reports escalation to SIGKILL after StopTimeout.
	ForcedKill bool
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	Stop  StopResult
	Start StartResult
}

// Stop signals the process named by the pidfile until it is gone and then
// removes the pidfile. A missing pidfile is not an error.
//
// SIGTERM is repeated every PollInterval. Without a StopTimeout the wait is
// unbounded; with one, a process still alive after StopTimeout receives
// SIGKILL, and ErrStopTimeout follows a second StopTimeout.
func (c *Controller) Stop(ctx context.Context) (StopResult, error) {
	pid, err := c.pidfile.Inspect()
	if errors.Is(err, pidfile.ErrMissing) {
		return StopResult{}, nil
	}
	if err != nil {
		return StopResult{}, err
	}

	result := StopResult{WasRunning: true, PID: pid}
	sig := syscall.SIGTERM
	phaseStart := time.Now()
	for {
		if err := c.table.Signal(pid, sig); err != nil {
			if errors.Is(err, process.ErrGone) {
				break
			}
			logging.ErrorWithContext(c.logger, "failed to signal daemon", "daemon_stop_failed",
				append(c.pidfileAttrs(pid), logging.Error(err))...)
			return result, fmt.Errorf("stop daemon: %w", err)
		}
		result.Signals++

		if c.opts.StopTimeout > 0 && time.Since(phaseStart) >= c.opts.StopTimeout {
			if result.ForcedKill {
				return result, fmt.Errorf("%w: pid %d survived SIGKILL for %s", ErrStopTimeout, pid, c.opts.StopTimeout)
			}
			logging.WarnWithContext(c.logger, "daemon ignored SIGTERM; sending SIGKILL", "daemon_stop_escalated",
				append(c.pidfileAttrs(pid), logging.Duration("stop_timeout", c.opts.StopTimeout))...)
			result.ForcedKill = true
			sig = syscall.SIGKILL
			phaseStart = time.Now()
			continue
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(c.opts.PollInterval):
		}
	}

	if err := c.pidfile.Remove(); err != nil {
		return result, err
	}
	c.logger.Info("daemon stopped",
		logging.Args(append(c.pidfileAttrs(pid),
			logging.String(logging.FieldEventType, "daemon_stop"),
			logging.Int("signals", result.Signals),
			logging.Bool("forced_kill", result.ForcedKill),
		)...)...)
	return result, nil
}

// Restart stops the daemon and then starts it. A failed stop aborts the
// restart; a stop that finds nothing running does not.
func (c *Controller) Restart(ctx context.Context, r worker.Runnable) (RestartResult, error) {
	var result RestartResult
	stopResult, err := c.Stop(ctx)
	result.Stop = stopResult
	if err != nil {
		return result, err
	}
	result.Start, err = c.Start(ctx, r)
	return result, err
}
