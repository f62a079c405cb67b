// Package process answers questions about a pid taken from a pidfile: is it
// alive, can it be signalled, and what is it.
package process

import (
	"errors"
	"syscall"
)

// State is the outcome of a liveness probe.
type State int

const (
	// Absent means no process has the pid.
	Absent State = iota
	// Alive means the process exists and may be signalled by this user.
	Alive
	// AccessDenied means the process exists but belongs to someone else.
	AccessDenied
)

// Running reports whether the probe found a process, accessible or not.
func (s State) Running() bool {
	return s == Alive || s == AccessDenied
}

func (s State) String() string {
	switch s {
	case Alive:
		return "alive"
	case AccessDenied:
		return "access denied"
	default:
		return "absent"
	}
}

// ErrGone is returned by Signal when the target no longer exists.
var ErrGone = errors.New("process does not exist")

// Table is the view of the OS process table used by the lifecycle
// controller. System is the real implementation.
type Table interface {
	Probe(pid int) (State, error)
	Signal(pid int, sig syscall.Signal) error
}

// System queries the host process table.
type System struct{}

// Probe checks pid without affecting it. A non-nil error accompanies Absent
// when the probe itself failed for a reason other than a missing process.
func (System) Probe(pid int) (State, error) { return probe(pid) }

// Signal delivers sig to pid. A missing process yields an error matching ErrGone.
func (System) Signal(pid int, sig syscall.Signal) error { return signal(pid, sig) }
