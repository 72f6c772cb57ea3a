package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains filesystem locations used by the daemon.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	PIDFile string `toml:"pid_file"`
	Socket  string `toml:"socket"`
}

// Broker contains MQTT bus connection settings.
type Broker struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	ClientID       string `toml:"client_id"`
	KeepAlive      int    `toml:"keep_alive"`
	ConnectTimeout int    `toml:"connect_timeout"`
}

// Database contains settings for the SQLite state store.
type Database struct {
	Path string `toml:"path"`
}

// Manager contains node session and scheduler timing settings.
type Manager struct {
	SessionTimeout  int `toml:"session_timeout"`
	StopPollRetries int `toml:"stop_poll_retries"`
	StopPollDelayMS int `toml:"stop_poll_delay_ms"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for KHome.
//
// Sections by subsystem:
//   - Paths: data/log directories, pid file, IPC socket
//   - Broker: MQTT connection to the node bus
//   - Database: SQLite store for actors, module names and readings
//   - Manager: node session timeout and stop polling bounds
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Broker   Broker   `toml:"broker"`
	Database Database `toml:"database"`
	Manager  Manager  `toml:"manager"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/khome/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all defaults applied and all paths expanded. When path is empty
// the default location is used; a missing file yields the defaults.
func Load(path string) (*Config, string, bool, error) {
	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	loaded := false

	data, readErr := os.ReadFile(resolved)
	switch {
	case readErr == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, resolved, false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
		loaded = true
	case errors.Is(readErr, fs.ErrNotExist):
		if strings.TrimSpace(path) != "" {
			return nil, resolved, false, fmt.Errorf("config file %s not found", resolved)
		}
	default:
		return nil, resolved, false, fmt.Errorf("read config %s: %w", resolved, readErr)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, resolved, loaded, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, resolved, loaded, err
	}
	return &cfg, resolved, loaded, nil
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file %s already exists", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the data and log directories when absent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the resolved SQLite database path.
func (c *Config) DatabasePath() string {
	if strings.TrimSpace(c.Database.Path) != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Paths.DataDir, "khome.db")
}

// PIDFilePath returns the resolved pid file path.
func (c *Config) PIDFilePath() string {
	if strings.TrimSpace(c.Paths.PIDFile) != "" {
		return c.Paths.PIDFile
	}
	return filepath.Join(c.Paths.DataDir, "khome.pid")
}

// SocketPath returns the resolved IPC socket path.
func (c *Config) SocketPath() string {
	if strings.TrimSpace(c.Paths.Socket) != "" {
		return c.Paths.Socket
	}
	return filepath.Join(c.Paths.DataDir, "khome.sock")
}

func (c *Config) expandPaths() error {
	fields := []*string{
		&c.Paths.DataDir,
		&c.Paths.LogDir,
		&c.Paths.PIDFile,
		&c.Paths.Socket,
		&c.Database.Path,
	}
	for _, field := range fields {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		expanded, err := ExpandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}

func resolveConfigPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return DefaultConfigPath()
	}
	return ExpandPath(trimmed)
}

// ExpandPath resolves ~ prefixes and returns an absolute path.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %s: %w", path, err)
	}
	return abs, nil
}
