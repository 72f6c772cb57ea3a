package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"khome/internal/daemonrun"
	"khome/internal/logging"
)

// usageError marks an unrecognized subcommand so main can exit 2.
type usageError struct {
	token string
}

func (e *usageError) Error() string {
	return fmt.Sprintf("unknown command %q (valid commands: %s)", e.token, strings.Join(validCommands, ", "))
}

var validCommands = []string{"start", "stop", "restart", "status", "structure", "data", "timetable", "ping", "signal", "module", "config"}

func newRootCommand() *cobra.Command {
	var socketFlag string
	var configFlag string

	ctx := newCommandContext(&socketFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "khome",
		Short:         "KHome home automation server",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{token: args[0]}
			}
			// No subcommand: run the server in the foreground.
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, logger)
		},
	}

	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "Path to the khome daemon socket")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	for _, cmd := range newDaemonCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newStructureCommand(ctx))
	rootCmd.AddCommand(newDataCommand(ctx))
	rootCmd.AddCommand(newTimetableCommand(ctx))
	rootCmd.AddCommand(newPingCommand(ctx))
	rootCmd.AddCommand(newSignalCommand(ctx))
	rootCmd.AddCommand(newModuleCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
