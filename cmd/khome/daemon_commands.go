package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"khome/internal/config"
	"khome/internal/daemonctl"
)

const daemonName = "KHome"

func newController(cfg *config.Config) *daemonctl.Controller {
	opts := []daemonctl.Option{}
	if cfg.Manager.StopPollRetries > 0 || cfg.Manager.StopPollDelayMS > 0 {
		opts = append(opts, daemonctl.WithStopPolling(
			cfg.Manager.StopPollRetries,
			time.Duration(cfg.Manager.StopPollDelayMS)*time.Millisecond))
	}
	return daemonctl.New(cfg.PIDFilePath(), daemonName, nil, opts...)
}

// daemonExecutable locates the khomed binary, preferring the one
// installed next to the CLI.
func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err == nil {
		sibling := filepath.Join(filepath.Dir(exe), "khomed")
		if _, statErr := os.Stat(sibling); statErr == nil {
			return sibling, nil
		}
	}
	path, lookErr := exec.LookPath("khomed")
	if lookErr != nil {
		return "", fmt.Errorf("locate khomed executable: %w", lookErr)
	}
	return path, nil
}

func daemonArgs(ctx *commandContext) []string {
	args := []string{}
	if ctx.configFlag != nil {
		if path := strings.TrimSpace(*ctx.configFlag); path != "" {
			args = append(args, "-config", path)
		}
	}
	return args
}

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the khome daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			pid, err := newController(cfg).Launch(exe, daemonArgs(ctx)...)
			if errors.Is(err, daemonctl.ErrAlreadyRunning) {
				fmt.Fprintln(stdout, daemonName+" is already running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s started (pid %d)\n", daemonName, pid)
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the khome daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := newController(cfg).Stop()
			if errors.Is(err, daemonctl.ErrNotRunning) {
				fmt.Fprintln(stdout, daemonName+" is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.StaleCleanup {
				fmt.Fprintf(stdout, "Removed stale pid file (pid %d was dead)\n", result.PID)
				return nil
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "%s did not stop in time, killed pid %d\n", daemonName, result.PID)
				return nil
			}
			fmt.Fprintln(stdout, daemonName+" stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the khome daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			pid, err := newController(cfg).Restart(exe, daemonArgs(ctx)...)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s restarted (pid %d)\n", daemonName, pid)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := newController(cfg).Status()
			if err != nil {
				return err
			}
			colorize := shouldColorize(stdout)
			if status.State != daemonctl.StateRunning {
				fmt.Fprintln(stdout, colorLine(daemonName+" is sleeping.", ansiYellow, colorize))
				return nil
			}
			fmt.Fprintln(stdout, colorLine(daemonName+" is running!", ansiGreen, colorize))
			return printDaemonDetails(ctx, stdout, status.PID)
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func printDaemonDetails(ctx *commandContext, stdout io.Writer, pid int) error {
	client, err := ctx.dialClient()
	if err != nil {
		// The process is up but the socket is not answering yet.
		fmt.Fprintf(stdout, "  pid: %d (details unavailable: %v)\n", pid, err)
		return nil
	}
	defer client.Close()

	resp, err := client.Status()
	if err != nil {
		fmt.Fprintf(stdout, "  pid: %d (details unavailable: %v)\n", pid, err)
		return nil
	}

	rows := [][]string{
		{"PID", strconv.Itoa(resp.PID)},
		{"Uptime", (time.Duration(resp.UptimeSeconds) * time.Second).String()},
		{"Revision", strconv.Itoa(resp.Revision)},
		{"Nodes", fmt.Sprintf("%d (%d alive)", resp.Nodes, resp.NodesAlive)},
		{"Actors", strconv.Itoa(resp.Actors)},
		{"Database", resp.DatabasePath},
		{"Socket", resp.SocketPath},
	}
	fmt.Fprintln(stdout, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
	return nil
}
