// Package daemonrun assembles and runs the khome server process: daemon,
// IPC server, and signal handling. Both the foreground CLI mode and the
// detached khomed binary go through Run.
package daemonrun

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"log/slog"

	"khome/internal/config"
	"khome/internal/daemon"
	"khome/internal/ipc"
	"khome/internal/logging"
)

// Run starts the khome server runtime loop and blocks until the context
// is canceled or a termination signal arrives. A broker connection
// failure is logged but keeps the process alive so the IPC surface stays
// reachable for status and stop.
func Run(cmdCtx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("server start failed", logging.Error(err))
	}

	<-signalCtx.Done()
	logger.Info("khome server shutting down")
	return nil
}
