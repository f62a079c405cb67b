package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

const usageExitCode = 2

var lifecycleCommands = []string{"start", "stop", "restart", "status"}

func newRootCommand() *cobra.Command {
	var (
		configFlag string
		foreground bool
		details    bool
	)

	ctx := newCommandContext(&configFlag, &foreground)
	lifecycle := &lifecycleRunner{ctx: ctx, details: &details}

	rootCmd := &cobra.Command{
		Use:           "exampled [flags] start|stop|restart|status",
		Short:         "Example daemon managed through a pidfile",
		ValidArgs:     lifecycleCommands,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          lifecycleArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			return lifecycle.dispatch(cmd, args[0])
		},
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(cmd)
	})

	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.Flags().BoolVar(&foreground, "foreground", false, "Run start/restart in place without detaching")
	rootCmd.Flags().BoolVar(&details, "details", false, "Show process details with status")

	return rootCmd
}

// lifecycleArgs accepts exactly one known command word.
func lifecycleArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 1 || !slices.Contains(lifecycleCommands, args[0]) {
		return usageError(cmd)
	}
	return nil
}

// usageError prints usage on stdout and yields the usage exit code.
func usageError(cmd *cobra.Command) error {
	fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
	return &exitError{code: usageExitCode}
}
