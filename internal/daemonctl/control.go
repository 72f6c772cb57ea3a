package daemonctl

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"khome/internal/logging"
)

// ErrAlreadyRunning indicates a start request while a live instance is recorded.
var ErrAlreadyRunning = errors.New("daemon already running")

// ErrNotRunning indicates a stop request with no live instance recorded.
var ErrNotRunning = errors.New("daemon not running")

// State describes the durable daemon state derived from the pid file.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Status is the result of a read-only state probe.
type Status struct {
	State State
	PID   int
	// Stale is set when a pid file exists but the process is dead.
	Stale bool
}

// StopResult captures how a stop request concluded.
type StopResult struct {
	PID        int
	ForcedKill bool
	// StaleCleanup is set when the recorded process was already dead and
	// only the pid file was removed.
	StaleCleanup bool
}

// Controller manages the lifecycle of a single detached daemon process via
// its pid file. The pid file is advisory and non-locking: two concurrent
// Launch calls race to write it and the outcome is undefined.
type Controller struct {
	pidFile     *PIDFile
	name        string
	logger      *slog.Logger
	pollRetries int
	pollDelay   time.Duration
}

// Option adjusts controller construction.
type Option func(*Controller)

// WithStopPolling overrides the bounded stop poll loop parameters.
func WithStopPolling(retries int, delay time.Duration) Option {
	return func(c *Controller) {
		if retries > 0 {
			c.pollRetries = retries
		}
		if delay > 0 {
			c.pollDelay = delay
		}
	}
}

// New constructs a controller for the daemon identified by the pid file
// path and display name. Both are fixed for the controller's lifetime.
func New(pidPath, name string, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Controller{
		pidFile:     NewPIDFile(pidPath),
		name:        name,
		logger:      logging.WithComponent(logger, "daemonctl"),
		pollRetries: 20,
		pollDelay:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the daemon display name.
func (c *Controller) Name() string { return c.name }

// PIDPath returns the pid file path the controller owns.
func (c *Controller) PIDPath() string { return c.pidFile.Path() }

// Status reports whether the recorded process is alive. It never mutates
// the pid file: a stale file is reported as stopped with Stale set.
func (c *Controller) Status() (Status, error) {
	pid, alive, err := c.pidFile.Alive()
	if err != nil {
		return Status{}, err
	}
	if alive {
		return Status{State: StateRunning, PID: pid}, nil
	}
	return Status{State: StateStopped, PID: pid, Stale: pid != 0}, nil
}

// Launch spawns the daemon executable detached from the controlling
// terminal in its own session. It refuses with ErrAlreadyRunning when a
// live process is already recorded; a stale pid file is cleaned up first.
// The child writes the pid file once it is up, so a launch failure leaves
// no pid file behind.
func (c *Controller) Launch(executable string, args ...string) (int, error) {
	if strings.TrimSpace(executable) == "" {
		return 0, errors.New("resolve executable: executable path is empty")
	}

	pid, alive, err := c.pidFile.Alive()
	if err != nil {
		return 0, err
	}
	if alive {
		return 0, fmt.Errorf("%w: pid %d recorded in %s", ErrAlreadyRunning, pid, c.pidFile.Path())
	}
	if pid != 0 {
		c.logger.Warn("removing stale pid file before launch",
			logging.Int("pid", pid),
			logging.String("path", c.pidFile.Path()))
		if err := c.pidFile.Remove(); err != nil {
			return 0, err
		}
	}

	proc := exec.Command(executable, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	proc.Stdin = nil
	proc.Stdout = nil
	proc.Stderr = nil
	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("detach daemon process: %w", err)
	}
	childPID := proc.Process.Pid
	if err := proc.Process.Release(); err != nil {
		return childPID, fmt.Errorf("release daemon process: %w", err)
	}
	c.logger.Info("daemon launched", logging.Int("pid", childPID))
	return childPID, nil
}

// Acquire records the current process in the pid file and returns a release
// function that removes it. Used by the daemon process itself after it has
// been detached. Fails with ErrAlreadyRunning when a live instance is
// recorded.
func (c *Controller) Acquire() (func(), error) {
	pid, alive, err := c.pidFile.Alive()
	if err != nil {
		return nil, err
	}
	if alive && pid != os.Getpid() {
		return nil, fmt.Errorf("%w: pid %d recorded in %s", ErrAlreadyRunning, pid, c.pidFile.Path())
	}
	if err := c.pidFile.Write(os.Getpid()); err != nil {
		return nil, err
	}
	return func() {
		if err := c.pidFile.Remove(); err != nil {
			c.logger.Warn("pid file cleanup failed", logging.Error(err))
		}
	}, nil
}

// Stop terminates the recorded process: SIGTERM, a bounded poll for exit,
// then SIGKILL escalation. The pid file is removed on confirmed exit. A pid
// file naming a dead process is cleaned up without error; a missing pid
// file fails with ErrNotRunning.
func (c *Controller) Stop() (StopResult, error) {
	pid, err := c.pidFile.Read()
	if err != nil {
		return StopResult{}, err
	}
	if pid == 0 {
		return StopResult{}, fmt.Errorf("%w: no pid file at %s", ErrNotRunning, c.pidFile.Path())
	}
	if !processAlive(pid) {
		c.logger.Warn("recorded process already dead, cleaning up",
			logging.Int("pid", pid),
			logging.String("path", c.pidFile.Path()))
		if err := c.pidFile.Remove(); err != nil {
			return StopResult{}, err
		}
		return StopResult{PID: pid, StaleCleanup: true}, nil
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return StopResult{}, fmt.Errorf("signal pid %d: %w", pid, err)
	}

	forced := false
	if !c.waitForExit(pid) {
		c.logger.Warn("process did not exit in time, escalating to SIGKILL", logging.Int("pid", pid))
		if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			return StopResult{}, fmt.Errorf("kill pid %d: %w", pid, err)
		}
		forced = true
		c.waitForExit(pid)
	}

	if err := c.pidFile.Remove(); err != nil {
		return StopResult{}, err
	}
	c.logger.Info("daemon stopped", logging.Int("pid", pid), logging.Bool("forced", forced))
	return StopResult{PID: pid, ForcedKill: forced}, nil
}

// Restart composes Stop (ignoring ErrNotRunning) and Launch. It is not
// atomic: a crash between the two leaves the daemon stopped.
func (c *Controller) Restart(executable string, args ...string) (int, error) {
	if _, err := c.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return 0, err
	}
	return c.Launch(executable, args...)
}

func (c *Controller) waitForExit(pid int) bool {
	for attempt := 0; attempt < c.pollRetries; attempt++ {
		if !processAlive(pid) {
			return true
		}
		time.Sleep(c.pollDelay)
	}
	return !processAlive(pid)
}
