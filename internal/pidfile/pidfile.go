// Package pidfile stores the process identifier of a running daemon.
//
// The file holds a single decimal pid followed by a newline. It is written
// only by the detached daemon process and removed when that process exits or
// when a stop request confirms the process is gone.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"daemonkit/internal/fileutil"
)

var (
	// ErrMissing reports that no pidfile exists at the path.
	ErrMissing = errors.New("pidfile missing")
	// ErrMalformed reports a pidfile that does not hold a positive decimal pid.
	ErrMalformed = errors.New("pidfile malformed")
)

// File is a pidfile at a fixed path.
type File struct {
	path string
}

// New returns a File for path. Nothing is touched on disk.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the pidfile location.
func (f *File) Path() string { return f.path }

// LockPath returns the companion lock file held by the running daemon.
func (f *File) LockPath() string { return f.path + ".lock" }

// Read returns the stored pid. Absent, unreadable and malformed files all
// report ok=false.
func (f *File) Read() (int, bool) {
	pid, err := f.Inspect()
	return pid, err == nil
}

// Inspect returns the stored pid, distinguishing a missing file (ErrMissing)
// from one whose content is not a pid (ErrMalformed).
func (f *File) Inspect() (int, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrMissing
		}
		return 0, fmt.Errorf("read pidfile %s: %w", f.path, err)
	}
	return parse(f.path, data)
}

func parse(path string, data []byte) (int, error) {
	text := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(text)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: %s contains %q", ErrMalformed, path, text)
	}
	return pid, nil
}

// Exists reports whether a file is present at the path.
func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Write stores pid, replacing any previous content atomically.
func (f *File) Write(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("write pidfile %s: invalid pid %d", f.path, pid)
	}
	value := strconv.Itoa(pid) + "\n"
	if err := fileutil.WriteFileAtomic(f.path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write pidfile %s: %w", f.path, err)
	}
	return nil
}

// Remove deletes the pidfile. Removing a missing file succeeds.
func (f *File) Remove() error {
	if err := fileutil.RemoveIfExists(f.path); err != nil {
		return fmt.Errorf("remove pidfile %s: %w", f.path, err)
	}
	return nil
}
