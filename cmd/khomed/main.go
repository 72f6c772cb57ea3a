// Command khomed is the detached khome server process. It is normally
// launched by `khome start`, records its pid, and runs until SIGTERM.
package main

import (
	"context"
	"flag"
	"log"

	"khome/internal/config"
	"khome/internal/daemonrun"
	"khome/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	release, err := acquirePIDFile(cfg, logger)
	if err != nil {
		log.Fatalf("record pid: %v", err)
	}
	defer release()

	if err := daemonrun.Run(context.Background(), cfg, logger); err != nil {
		logger.Error("server run failed", logging.Error(err))
		release()
		log.Fatalf("run: %v", err)
	}
}
