//go:build unix && !linux

package daemonize

import (
	"os"

	"golang.org/x/sys/unix"
)

func dupOnto(file *os.File, fd int) error {
	return unix.Dup2(int(file.Fd()), fd)
}
