package daemon

import (
	"context"
	"os"
	"testing"

	"khome/internal/testsupport"
)

func TestNewAssemblesComponents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	if d.Manager() == nil {
		t.Fatal("manager not wired")
	}
	status := d.Status()
	if status.Running {
		t.Fatal("daemon should not report running before Start")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("status pid: %d", status.PID)
	}
	if status.DatabasePath == "" {
		t.Fatal("storage should open in a fresh data dir")
	}
}

func TestStopBeforeStartIsNoOp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.Stop()
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLockBlocksSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer first.Close()

	ok, err := first.lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	defer first.lock.Unlock()

	second, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer second.Close()
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance should fail to start while the lock is held")
	}
}
