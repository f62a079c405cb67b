package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"daemonkit/internal/daemonctl"
	"daemonkit/internal/daemonize"
	"daemonkit/internal/daemonrun"
)

type lifecycleRunner struct {
	ctx     *commandContext
	details *bool
}

func (l *lifecycleRunner) dispatch(cmd *cobra.Command, action string) error {
	switch action {
	case "start":
		return l.start(cmd)
	case "stop":
		return l.stop(cmd)
	case "restart":
		return l.restart(cmd)
	case "status":
		return l.status(cmd)
	default:
		return usageError(cmd)
	}
}

func (l *lifecycleRunner) start(cmd *cobra.Command) error {
	ctl, runtime, err := l.prepareStart()
	if err != nil {
		return err
	}
	result, err := ctl.Start(cmd.Context(), runtime)
	if err != nil {
		return startError(err)
	}
	printStart(cmd.OutOrStdout(), l.ctx.config.Daemon.Name, ctl, result)
	return nil
}

func (l *lifecycleRunner) stop(cmd *cobra.Command) error {
	ctl, err := l.ctx.controller()
	if err != nil {
		return err
	}
	result, err := ctl.Stop(cmd.Context())
	if err != nil {
		return err
	}
	printStop(cmd.OutOrStdout(), l.ctx.config.Daemon.Name, result)
	return nil
}

func (l *lifecycleRunner) restart(cmd *cobra.Command) error {
	ctl, runtime, err := l.prepareStart()
	if err != nil {
		return err
	}
	result, err := ctl.Restart(cmd.Context(), runtime)
	if err != nil {
		return startError(err)
	}
	if result.Start.Role == daemonize.RoleParent {
		printStop(cmd.OutOrStdout(), l.ctx.config.Daemon.Name, result.Stop)
	}
	printStart(cmd.OutOrStdout(), l.ctx.config.Daemon.Name, ctl, result.Start)
	return nil
}

func (l *lifecycleRunner) status(cmd *cobra.Command) error {
	ctl, err := l.ctx.controller()
	if err != nil {
		return err
	}
	status, err := ctl.Status()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	fmt.Fprintln(out, renderStatusLine(l.ctx.config.Daemon.Name, statusKindFor(status), statusMessage(status), colorize))
	if *l.details && status.Running() {
		details, err := ctl.Describe(cmd.Context(), status)
		if err != nil {
			fmt.Fprintln(out, renderStatusLine("Details", statusWarn, err.Error(), colorize))
		} else {
			fmt.Fprintln(out, renderProcessTable(status, details))
		}
	}
	if !status.Running() {
		return &exitError{code: 1}
	}
	return nil
}

func (l *lifecycleRunner) prepareStart() (*daemonctl.Controller, *daemonrun.Runtime, error) {
	ctl, err := l.ctx.controller()
	if err != nil {
		return nil, nil, err
	}
	runtime, err := daemonrun.New(l.ctx.config, l.ctx.logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	return ctl, runtime, nil
}

func startError(err error) error {
	var launchErr *daemonize.LaunchError
	if errors.As(err, &launchErr) {
		return &exitError{code: daemonize.ExitCode(err), err: fmt.Errorf("launch failed: %w", err)}
	}
	if errors.Is(err, daemonize.ErrDetachFailed) {
		return &exitError{code: 1, err: fmt.Errorf("launch failed: %w", err)}
	}
	return err
}

// printStart reports the launcher's view of a start. The intermediate and
// daemon stages print nothing; their stdout is no longer the terminal.
func printStart(out io.Writer, name string, ctl *daemonctl.Controller, result daemonctl.StartResult) {
	if result.Role != daemonize.RoleParent {
		return
	}
	if result.StaleRemoved {
		fmt.Fprintf(out, "Removed stale pidfile %s\n", ctl.Pidfile().Path())
	}
	switch result.State {
	case daemonctl.StartStateStarted:
		fmt.Fprintf(out, "%s started (pid %d)\n", name, result.PID)
	default:
		fmt.Fprintf(out, "%s start requested\n", name)
	}
}

func printStop(out io.Writer, name string, result daemonctl.StopResult) {
	switch {
	case !result.WasRunning:
		fmt.Fprintf(out, "%s is not running\n", name)
	case result.ForcedKill:
		fmt.Fprintf(out, "%s killed (pid %d)\n", name, result.PID)
	default:
		fmt.Fprintf(out, "%s stopped (pid %d)\n", name, result.PID)
	}
}
