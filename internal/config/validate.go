package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration values for consistency.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Broker.Host) == "" {
		problems = append(problems, "broker.host must not be empty")
	}
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		problems = append(problems, fmt.Sprintf("broker.port %d is out of range", c.Broker.Port))
	}
	if c.Manager.SessionTimeout <= 0 {
		problems = append(problems, "manager.session_timeout must be positive")
	}
	if c.Manager.StopPollRetries <= 0 {
		problems = append(problems, "manager.stop_poll_retries must be positive")
	}
	if c.Manager.StopPollDelayMS <= 0 {
		problems = append(problems, "manager.stop_poll_delay_ms must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
