// Package daemonize detaches the current program from its terminal.
//
// A Go process cannot fork itself once the runtime has started threads, so
// the classic double fork is expressed as two re-executions of the same
// binary, each marked by the DAEMONKIT_STAGE environment variable:
//
//	launcher  (no marker)      starts the detach stage in a new session and reaps it
//	detach    (marker=detach)  session leader; sets umask, starts the daemon stage, exits
//	daemon    (marker=daemon)  not a session leader; redirects stdio and carries on
//
// Every stage calls Daemonize with the same Options and acts on the Role it
// gets back. Only the daemon stage runs the real work.
package daemonize

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// StageEnv is the environment variable carrying the stage marker.
const StageEnv = "DAEMONKIT_STAGE"

const (
	stageDetach = "detach"
	stageDaemon = "daemon"
)

// Role tells the caller what the current process must do next.
type Role int

const (
	// RoleParent is the original invocation; the daemon is on its way.
	RoleParent Role = iota
	// RoleIntermediate is the short-lived session leader; exit 0 now.
	RoleIntermediate
	// RoleDaemon is the detached process that runs the work.
	RoleDaemon
)

func (r Role) String() string {
	switch r {
	case RoleParent:
		return "parent"
	case RoleIntermediate:
		return "intermediate"
	case RoleDaemon:
		return "daemon"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ExitSpawnFailed is the exit status of a detach stage that could not
// spawn the daemon stage. Any other non-zero status is ErrDetachFailed.
const ExitSpawnFailed = 3

// ErrDetachFailed reports a detach stage that exited non-zero before or
// without attempting the daemon spawn.
var ErrDetachFailed = errors.New("detach stage failed")

// ErrUnsupported is returned on platforms without sessions and fork
// semantics. Run in the foreground under a service manager there instead.
var ErrUnsupported = errors.New("daemonizing requires a POSIX system; use foreground mode")

// Options controls detachment.
type Options struct {
	// Workdir becomes the working directory of the daemon. Defaults to "/".
	Workdir string
	// Umask is applied in the detach stage and inherited by the daemon.
	Umask int
	// Stdin, Stdout and Stderr are the redirect targets. Empty means /dev/null.
	Stdin  string
	Stdout string
	Stderr string
	// Foreground skips detachment entirely and reports RoleDaemon.
	Foreground bool

	// Executable and Args describe the re-executed command. They default
	// to os.Executable() and os.Args[1:]. Args must not depend on the
	// working directory; relative paths break once Workdir applies.
	Executable string
	Args       []string
	// Env is the base environment for the next stage. Defaults to os.Environ().
	Env []string
}

// Result reports the outcome of Daemonize in the current process.
type Result struct {
	Role Role
	// ChildPID is the pid of the detach stage, set for RoleParent only.
	ChildPID int
}

// LaunchError reports a failed stage spawn. Stage 1 is the detach stage,
// stage 2 the daemon stage.
type LaunchError struct {
	Stage int
	Err   error
}

func (e *LaunchError) Error() string {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return fmt.Sprintf("fork #%d failed: %d (%s)", e.Stage, int(errno), errno.Error())
	}
	return fmt.Sprintf("fork #%d failed: %v", e.Stage, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitCode is the status a process should exit with after err. A detach
// stage that failed to spawn the daemon exits ExitSpawnFailed so the
// launcher can tell it apart from earlier failures.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var launchErr *LaunchError
	if errors.As(err, &launchErr) && launchErr.Stage == 2 && CurrentStage() == stageDetach {
		return ExitSpawnFailed
	}
	return 1
}

// CurrentStage returns the stage marker of this process, "" for the launcher.
func CurrentStage() string {
	return os.Getenv(StageEnv)
}

func (o Options) withDefaults() (Options, error) {
	if strings.TrimSpace(o.Workdir) == "" {
		o.Workdir = "/"
	}
	if o.Executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return o, fmt.Errorf("resolve executable: %w", err)
		}
		o.Executable = exe
	}
	if o.Args == nil {
		o.Args = append([]string(nil), os.Args[1:]...)
	}
	if o.Env == nil {
		o.Env = os.Environ()
	}
	for _, target := range []*string{&o.Stdin, &o.Stdout, &o.Stderr} {
		if strings.TrimSpace(*target) == "" {
			*target = os.DevNull
		}
	}
	return o, nil
}

// stageEnv returns env with the stage marker replaced by stage.
func stageEnv(env []string, stage string) []string {
	out := make([]string, 0, len(env)+1)
	prefix := StageEnv + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			continue
		}
		out = append(out, kv)
	}
	if stage != "" {
		out = append(out, prefix+stage)
	}
	return out
}
