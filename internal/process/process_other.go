//go:build !unix

package process

import (
	"errors"
	"syscall"
)

var errUnsupported = errors.New("process probing requires a POSIX system")

func probe(int) (State, error) { return Absent, errUnsupported }

func signal(int, syscall.Signal) error { return errUnsupported }
