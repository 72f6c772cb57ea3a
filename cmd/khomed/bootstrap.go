package main

import (
	"log/slog"

	"khome/internal/config"
	"khome/internal/daemonctl"
)

// acquirePIDFile records this process in the configured pid file and
// returns the release function that removes it on shutdown.
func acquirePIDFile(cfg *config.Config, logger *slog.Logger) (func(), error) {
	controller := daemonctl.New(cfg.PIDFilePath(), "KHome", logger)
	return controller.Acquire()
}
