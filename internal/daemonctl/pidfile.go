package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// PIDFile records the process id of the running daemon instance. The file's
// existence is the source of truth for "is running"; a file naming a dead
// process is stale state that callers must detect and clean up.
type PIDFile struct {
	path string
}

// NewPIDFile wraps the given filesystem path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the underlying filesystem path.
func (p *PIDFile) Path() string { return p.path }

// Read returns the recorded pid, or 0 when the file does not exist.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read pid file %s: %w", p.path, err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(trimmed)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %s holds invalid pid %q", p.path, trimmed)
	}
	return pid, nil
}

// Write records the given pid.
func (p *PIDFile) Write(pid int) error {
	value := strconv.Itoa(pid) + "\n"
	if err := os.WriteFile(p.path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write pid file %s: %w", p.path, err)
	}
	return nil
}

// Remove deletes the file; a missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file %s: %w", p.path, err)
	}
	return nil
}

// Alive reports the recorded pid and whether that process exists. A file
// naming a dead process yields (pid, false, nil).
func (p *PIDFile) Alive() (int, bool, error) {
	pid, err := p.Read()
	if err != nil || pid == 0 {
		return 0, false, err
	}
	return pid, processAlive(pid), nil
}

// processAlive probes the process table with a null signal.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to another user.
	return errors.Is(err, unix.EPERM)
}
