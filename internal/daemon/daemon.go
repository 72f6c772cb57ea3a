// Package daemon assembles the server: storage, bus, inventory,
// scheduler, and manager, with a file lock enforcing a single running
// instance per data directory.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"khome/internal/bus"
	"khome/internal/config"
	"khome/internal/inventory"
	"khome/internal/logging"
	"khome/internal/manager"
	"khome/internal/scheduler"
	"khome/internal/store"
)

// Daemon owns the server lifecycle.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store *store.Store
	inv   *inventory.Inventory
	sched *scheduler.Scheduler
	mgr   *manager.Manager
	bus   *bus.Bus

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	started time.Time
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status is a snapshot of the running server.
type Status struct {
	Running      bool
	PID          int
	Uptime       time.Duration
	Revision     int
	Nodes        int
	NodesAlive   int
	Actors       int
	DatabasePath string
	LockPath     string
	SocketPath   string
}

// New assembles a daemon from configuration. A failing storage is logged
// and tolerated: the server then runs with in-memory state only.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		lockPath: filepath.Join(cfg.Paths.DataDir, "khome.lock"),
	}
	d.lock = flock.New(d.lockPath)

	st, err := store.Open(cfg)
	if err != nil {
		d.logger.Error("cannot init storage, continuing without persistence", logging.Error(err))
	} else {
		d.store = st
	}

	sessionTimeout := time.Duration(cfg.Manager.SessionTimeout) * time.Second
	d.inv = inventory.New(sessionTimeout, logger)
	d.sched = scheduler.New(logger, func(handler string, value any) {
		d.inv.HandleValue(handler, value)
	})
	d.bus = bus.New(cfg, logger, bus.Options{
		OnConnect: func() { d.mgr.OnConnect() },
		OnMessage: func(topic, payload string) { d.mgr.OnMessage(topic, payload) },
	})
	d.mgr = manager.New(logger, d.bus, d.inv, d.sched, d.store)
	return d, nil
}

// Manager exposes the coordination core to the IPC surface.
func (d *Daemon) Manager() *manager.Manager { return d.mgr }

// Start loads the stored configuration, connects to the broker, and
// starts the scheduler. It fails when another instance holds the lock or
// the broker is unreachable.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another khome instance is already running")
	}

	if err := d.mgr.LoadActors(ctx); err != nil {
		d.logger.Error("stored configuration not loaded", logging.Error(err))
	}

	if err := d.bus.Connect(); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("server not started: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sched.Run(runCtx)
	}()

	d.started = time.Now()
	d.running.Store(true)
	d.logger.Info("khome server started",
		logging.String("broker", fmt.Sprintf("%s:%d", d.cfg.Broker.Host, d.cfg.Broker.Port)),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop disconnects from the broker, stops the scheduler, and releases the
// lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.bus.Close()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("lock not released", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("khome server stopped")
}

// Close stops the daemon and closes storage.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports the current server state.
func (d *Daemon) Status() Status {
	status := Status{
		Running:    d.running.Load(),
		PID:        os.Getpid(),
		Revision:   d.inv.Revision(),
		LockPath:   d.lockPath,
		SocketPath: d.cfg.SocketPath(),
	}
	if status.Running {
		status.Uptime = time.Since(d.started)
	}
	nodes := d.inv.Nodes()
	status.Nodes = len(nodes)
	for _, node := range nodes {
		if node.Alive() {
			status.NodesAlive++
		}
	}
	status.Actors = len(d.inv.Actors())
	if d.store != nil {
		status.DatabasePath = d.store.Path()
	}
	return status
}
