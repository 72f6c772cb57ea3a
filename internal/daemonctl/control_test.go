package daemonctl

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	pidPath := filepath.Join(t.TempDir(), "test.pid")
	return New(pidPath, "TestSvc", nil, WithStopPolling(20, 100*time.Millisecond))
}

// startVictim runs a long sleep and reaps it in the background so liveness
// probes see a real exit rather than a zombie.
func startVictim(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("sleep", "300")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	go func() { _ = cmd.Wait() }()
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	return cmd.Process.Pid
}

// deadPID returns a pid known to be dead by running a process to completion.
func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run true: %v", err)
	}
	return cmd.Process.Pid
}

func TestStatusWithoutPIDFile(t *testing.T) {
	ctl := newTestController(t)
	st, err := ctl.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.State != StateStopped || st.PID != 0 || st.Stale {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestStopWithoutPIDFileFailsNotRunning(t *testing.T) {
	ctl := newTestController(t)
	_, err := ctl.Stop()
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if _, statErr := os.Stat(ctl.PIDPath()); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("stop must not create a pid file")
	}
}

func TestStopTerminatesRecordedProcess(t *testing.T) {
	ctl := newTestController(t)
	pid := startVictim(t)
	if err := NewPIDFile(ctl.PIDPath()).Write(pid); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}

	res, err := ctl.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if res.PID != pid || res.StaleCleanup {
		t.Fatalf("unexpected stop result: %+v", res)
	}
	if _, statErr := os.Stat(ctl.PIDPath()); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("pid file should be removed after stop")
	}
	if processAlive(pid) {
		t.Fatalf("process %d still alive after stop", pid)
	}

	st, err := ctl.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.State != StateStopped {
		t.Fatalf("expected stopped after stop, got %+v", st)
	}
}

func TestStopCleansStalePIDFile(t *testing.T) {
	ctl := newTestController(t)
	pid := deadPID(t)
	if err := NewPIDFile(ctl.PIDPath()).Write(pid); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}

	st, err := ctl.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.State != StateStopped || !st.Stale {
		t.Fatalf("stale pid should report stopped+stale, got %+v", st)
	}

	res, err := ctl.Stop()
	if err != nil {
		t.Fatalf("Stop on stale pid must not error: %v", err)
	}
	if !res.StaleCleanup {
		t.Fatalf("expected stale cleanup, got %+v", res)
	}
	if _, statErr := os.Stat(ctl.PIDPath()); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("stale pid file should be removed")
	}
}

func TestLaunchRefusedWhileRunning(t *testing.T) {
	ctl := newTestController(t)
	pid := startVictim(t)
	pidFile := NewPIDFile(ctl.PIDPath())
	if err := pidFile.Write(pid); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}

	if _, err := ctl.Launch("sleep", "300"); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	recorded, err := pidFile.Read()
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if recorded != pid {
		t.Fatalf("pid file was overwritten: got %d want %d", recorded, pid)
	}
}

func TestLaunchDetachesProcess(t *testing.T) {
	ctl := newTestController(t)
	pid, err := ctl.Launch("sleep", "300")
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("invalid child pid %d", pid)
	}
	defer func() { _ = unix.Kill(pid, unix.SIGKILL) }()
	if !processAlive(pid) {
		t.Fatalf("launched process %d not alive", pid)
	}
}

func TestLaunchFailsForMissingExecutable(t *testing.T) {
	ctl := newTestController(t)
	if _, err := ctl.Launch(filepath.Join(t.TempDir(), "no-such-binary")); err == nil {
		t.Fatal("expected detach failure for missing executable")
	}
	if _, statErr := os.Stat(ctl.PIDPath()); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("failed launch must not leave a pid file")
	}
}

func TestAcquireRecordsAndReleases(t *testing.T) {
	ctl := newTestController(t)
	release, err := ctl.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	st, err := ctl.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.State != StateRunning || st.PID != os.Getpid() {
		t.Fatalf("expected running with own pid, got %+v", st)
	}

	release()
	st, err = ctl.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.State != StateStopped || st.PID != 0 {
		t.Fatalf("expected stopped after release, got %+v", st)
	}
}

func TestPIDFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pid")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if _, err := NewPIDFile(path).Read(); err == nil {
		t.Fatal("expected error for invalid pid content")
	}
}

func TestRestartReplacesProcess(t *testing.T) {
	ctl := newTestController(t)
	oldPID := startVictim(t)
	pidFile := NewPIDFile(ctl.PIDPath())
	if err := pidFile.Write(oldPID); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}

	newPID, err := ctl.Restart("sleep", "300")
	if err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	defer func() { _ = unix.Kill(newPID, unix.SIGKILL) }()

	if newPID == oldPID {
		t.Fatalf("restart reused pid %d", newPID)
	}
	if processAlive(oldPID) {
		t.Fatalf("old process %d still alive after restart", oldPID)
	}
	if !processAlive(newPID) {
		t.Fatalf("new process %d not alive", newPID)
	}

	// The detached child records itself once it is up; recorded here the
	// same way khomed does on startup.
	if err := pidFile.Write(newPID); err != nil {
		t.Fatalf("record new pid: %v", err)
	}
	st, err := ctl.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.State != StateRunning || st.PID != newPID {
		t.Fatalf("expected running with pid %d, got %+v", newPID, st)
	}
}
