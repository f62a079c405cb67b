//go:build unix

package process

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

func probe(pid int) (State, error) {
	if pid <= 0 {
		return Absent, fmt.Errorf("probe pid %d: invalid pid", pid)
	}
	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
		return Alive, nil
	case errors.Is(err, unix.EPERM):
		return AccessDenied, nil
	case errors.Is(err, unix.ESRCH):
		return Absent, nil
	default:
		return Absent, fmt.Errorf("probe pid %d: %w", pid, err)
	}
}

func signal(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("signal pid %d: invalid pid", pid)
	}
	if err := unix.Kill(pid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("signal pid %d: %w", pid, ErrGone)
		}
		return fmt.Errorf("signal pid %d with %s: %w", pid, unix.SignalName(sig), err)
	}
	return nil
}
