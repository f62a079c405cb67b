//go:build unix

package daemonize

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Daemonize advances the current process one stage towards a detached daemon.
func Daemonize(opts Options) (Result, error) {
	if opts.Foreground {
		return Result{Role: RoleDaemon}, nil
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return Result{}, err
	}

	switch stage := CurrentStage(); stage {
	case "":
		return launch(opts)
	case stageDetach:
		return detach(opts)
	case stageDaemon:
		return settle(opts)
	default:
		return Result{}, fmt.Errorf("unknown %s value %q", StageEnv, stage)
	}
}

// launch starts the detach stage as a new session leader and reaps it.
func launch(opts Options) (Result, error) {
	cmd := exec.Command(opts.Executable, opts.Args...)
	cmd.Env = stageEnv(opts.Env, stageDetach)
	cmd.Dir = opts.Workdir
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return Result{}, &LaunchError{Stage: 1, Err: err}
	}
	pid := cmd.Process.Pid
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.ExitCode() == ExitSpawnFailed {
				return Result{ChildPID: pid}, &LaunchError{Stage: 2, Err: errors.New("daemon stage could not be started")}
			}
			return Result{ChildPID: pid}, fmt.Errorf("%w: exit status %d", ErrDetachFailed, exitErr.ExitCode())
		}
		return Result{ChildPID: pid}, &LaunchError{Stage: 1, Err: err}
	}
	return Result{Role: RoleParent, ChildPID: pid}, nil
}

// detach runs in the session leader. The daemon stage is started without
// Setsid so it can never reacquire a controlling terminal.
func detach(opts Options) (Result, error) {
	unix.Umask(opts.Umask)
	if err := os.Chdir(opts.Workdir); err != nil {
		return Result{}, fmt.Errorf("chdir %s: %w", opts.Workdir, err)
	}

	cmd := exec.Command(opts.Executable, opts.Args...)
	cmd.Env = stageEnv(opts.Env, stageDaemon)
	cmd.Dir = opts.Workdir
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return Result{}, &LaunchError{Stage: 2, Err: err}
	}
	_ = cmd.Process.Release()
	return Result{Role: RoleIntermediate}, nil
}

// settle runs in the daemon stage: drop the marker and point stdio at the
// configured targets.
func settle(opts Options) (Result, error) {
	if err := os.Unsetenv(StageEnv); err != nil {
		return Result{}, fmt.Errorf("clear %s: %w", StageEnv, err)
	}
	if err := redirectStdio(opts.Stdin, opts.Stdout, opts.Stderr); err != nil {
		return Result{}, err
	}
	return Result{Role: RoleDaemon}, nil
}

func redirectStdio(stdin, stdout, stderr string) error {
	in, err := os.OpenFile(stdin, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("open stdin %s: %w", stdin, err)
	}
	defer in.Close()
	if err := dupOnto(in, 0); err != nil {
		return fmt.Errorf("redirect stdin: %w", err)
	}

	targets := []struct {
		path string
		fd   int
		name string
	}{
		{stdout, 1, "stdout"},
		{stderr, 2, "stderr"},
	}
	for _, target := range targets {
		file, err := os.OpenFile(target.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open %s %s: %w", target.name, target.path, err)
		}
		err = dupOnto(file, target.fd)
		_ = file.Close()
		if err != nil {
			return fmt.Errorf("redirect %s: %w", target.name, err)
		}
	}
	return nil
}
