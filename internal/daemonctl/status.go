package daemonctl

import (
	"context"
	"errors"

	"daemonkit/internal/logging"
	"daemonkit/internal/pidfile"
	"daemonkit/internal/process"
)

// Status is a point-in-time view of the daemon.
type Status struct {
	// PidfilePresent is false when there was nothing to probe.
	PidfilePresent bool
	PID            int
	State          process.State
}

// Running reports whether the probe found the process, including one owned
// by another user.
func (s Status) Running() bool { return s.State.Running() }

// AccessDenied reports a live process that cannot be signalled by the caller.
func (s Status) AccessDenied() bool { return s.State == process.AccessDenied }

// Message is the one-line summary printed by the status command.
func (s Status) Message() string {
	switch s.State {
	case process.Alive:
		return "running"
	case process.AccessDenied:
		return "running, access denied"
	default:
		return "not running"
	}
}

// Status reads the pidfile and probes the process it names. Without a
// pidfile no process is probed. A probe that fails after a successful
// pidfile read means the process is not running.
func (c *Controller) Status() (Status, error) {
	pid, err := c.pidfile.Inspect()
	if errors.Is(err, pidfile.ErrMissing) {
		return Status{State: process.Absent}, nil
	}
	if err != nil {
		return Status{State: process.Absent}, err
	}

	status := Status{PidfilePresent: true, PID: pid}
	state, probeErr := c.table.Probe(pid)
	if probeErr != nil {
		c.logger.Debug("process probe failed",
			logging.Args(append(c.pidfileAttrs(pid), logging.Error(probeErr))...)...)
	}
	status.State = state
	return status, nil
}

// Describe returns process details for a running daemon.
func (c *Controller) Describe(ctx context.Context, st Status) (process.Details, error) {
	if !st.Running() {
		return process.Details{}, process.ErrGone
	}
	return process.Describe(ctx, st.PID)
}
