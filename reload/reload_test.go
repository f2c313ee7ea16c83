package reload

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/splicehq/splice/hk"
)

type fakeDrainer struct {
	stopped  int32
	pending  int32
	stopLog  []bool
}

func (d *fakeDrainer) StopAccepting(stop bool) {
	if stop {
		atomic.StoreInt32(&d.stopped, 1)
	} else {
		atomic.StoreInt32(&d.stopped, 0)
	}
	d.stopLog = append(d.stopLog, stop)
}
func (d *fakeDrainer) PendingCount() int { return int(atomic.LoadInt32(&d.pending)) }

type fakeRestarter struct {
	shutdownCalls int
	respawnCalls  int
	ready         bool
}

func (r *fakeRestarter) Shutdown() error          { r.shutdownCalls++; return nil }
func (r *fakeRestarter) Respawn() error           { r.respawnCalls++; return nil }
func (r *fakeRestarter) WaitReady(time.Duration) bool { return r.ready }

func TestReloadDrainsThenRestarts(t *testing.T) {
	d := &fakeDrainer{}
	r := &fakeRestarter{ready: true}
	m := NewManager("unused", time.Hour, time.Second, d, r)

	if err := m.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if r.shutdownCalls != 1 || r.respawnCalls != 1 {
		t.Fatalf("expected one shutdown and one respawn, got %d/%d", r.shutdownCalls, r.respawnCalls)
	}
	if atomic.LoadInt32(&d.stopped) != 0 {
		t.Fatal("expected StopAccepting(false) to be the last call")
	}
	if len(d.stopLog) != 2 || !d.stopLog[0] || d.stopLog[1] {
		t.Fatalf("unexpected stop sequence: %v", d.stopLog)
	}
}

func TestReloadTimesOutWaitingForDrain(t *testing.T) {
	d := &fakeDrainer{pending: 1}
	r := &fakeRestarter{ready: true}
	m := NewManager("unused", time.Hour, 50*time.Millisecond, d, r)

	start := time.Now()
	if err := m.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatal("reload returned before the drain timeout elapsed")
	}
	if r.shutdownCalls != 1 {
		t.Fatal("reload should proceed to shutdown even after a drain timeout")
	}
}

func TestReloadFailsWhenNewWorkerNeverReadies(t *testing.T) {
	d := &fakeDrainer{}
	r := &fakeRestarter{ready: false}
	m := NewManager("unused", time.Hour, 10*time.Millisecond, d, r)

	if err := m.Reload(); err == nil {
		t.Fatal("expected an error when the new worker never reaches Ready")
	}
}

func TestCheckOnceSeedsBaselineThenDetectsChange(t *testing.T) {
	hk.TestInit()

	dir := t.TempDir()
	path := filepath.Join(dir, "worker.bin")
	if err := os.WriteFile(path, []byte("v1"), 0o755); err != nil {
		t.Fatal(err)
	}

	d := &fakeDrainer{}
	r := &fakeRestarter{ready: true}
	m := NewManager(path, time.Hour, time.Second, d, r)

	m.checkOnce() // seeds baseline
	if r.respawnCalls != 0 {
		t.Fatal("first observation must only seed the baseline")
	}

	if err := os.WriteFile(path, []byte("v2-longer-content"), 0o755); err != nil {
		t.Fatal(err)
	}
	m.checkOnce()
	if r.respawnCalls != 1 {
		t.Fatalf("expected a reload after content change, respawnCalls=%d", r.respawnCalls)
	}
}
