package daemonize

import (
	"os"

	"golang.org/x/sys/unix"
)

// linux/arm64 has no dup2; dup3 with no flags is equivalent for distinct fds.
func dupOnto(file *os.File, fd int) error {
	if int(file.Fd()) == fd {
		return nil
	}
	return unix.Dup3(int(file.Fd()), fd, 0)
}
