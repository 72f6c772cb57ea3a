package testsupport

import (
	"path/filepath"
	"testing"

	"khome/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per
// test. The broker points at localhost with a short connect timeout so
// accidental connection attempts fail fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Broker.ConnectTimeout = 1
	cfg.Manager.SessionTimeout = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

// WithBroker points the test config at a specific broker.
func WithBroker(host string, port int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Broker.Host = host
		cfg.Broker.Port = port
	}
}
