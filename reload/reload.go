// Package reload detects on-disk changes to the worker binary and
// orchestrates a drain-then-restart sequence against the router and
// supervisor (spec.md §4.4).
package reload

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/splicehq/splice/cmn/nlog"
	"github.com/splicehq/splice/hk"
)

// Drainer is the subset of router behavior the reload manager needs:
// stop admitting new invocations and report when the pending table has
// emptied (spec.md §4.4 step 1-2).
type Drainer interface {
	// StopAccepting toggles whether new invocations are admitted.
	StopAccepting(stop bool)
	// PendingCount reports in-flight invocations awaiting a terminal
	// event.
	PendingCount() int
}

// Restarter is the subset of supervisor behavior the reload manager
// needs to perform the old-worker shutdown / new-worker spawn swap
// (spec.md §4.4 steps 3-4).
type Restarter interface {
	Shutdown() error
	Respawn() error
	WaitReady(timeout time.Duration) bool
}

// Manager watches a binary path for content changes and drives a
// Drainer/Restarter pair through a reload when one is observed.
type Manager struct {
	path         string
	pollInterval time.Duration
	drainTimeout time.Duration
	drainer      Drainer
	restarter    Restarter

	baseline [sha256.Size]byte
	seeded   bool
}

// NewManager constructs a reload Manager. pollInterval governs how
// often the binary's content hash is recomputed; drainTimeout bounds
// step 2 of the reload sequence.
func NewManager(path string, pollInterval, drainTimeout time.Duration, d Drainer, r Restarter) *Manager {
	return &Manager{path: path, pollInterval: pollInterval, drainTimeout: drainTimeout, drainer: d, restarter: r}
}

// Start registers the periodic hash-check with the process housekeeper.
func (m *Manager) Start() {
	hk.Reg("reload.watch", m.checkOnce, m.pollInterval)
}

// Stop unregisters the periodic check.
func (m *Manager) Stop() {
	hk.Unreg("reload.watch")
}

func (m *Manager) checkOnce() time.Duration {
	sum, err := hashFile(m.path)
	if err != nil {
		nlog.Warningf("reload: hash %s: %v", m.path, err)
		return m.pollInterval
	}
	if !m.seeded {
		m.baseline = sum
		m.seeded = true
		return m.pollInterval
	}
	if sum == m.baseline {
		return m.pollInterval
	}
	m.baseline = sum
	nlog.Infof("reload: content change detected for %s", m.path)
	if err := m.Reload(); err != nil {
		nlog.Warningf("reload: sequence failed: %v", err)
	}
	return m.pollInterval
}

// Reload runs the drain-then-restart sequence once, synchronously
// (spec.md §4.4 steps 1-5). It never replicates the source's fixed
// drain sleep: step 2 polls PendingCount until it reaches zero or
// drainTimeout elapses (SPEC_FULL.md Open Question decision D.3).
func (m *Manager) Reload() error {
	m.drainer.StopAccepting(true)
	defer m.drainer.StopAccepting(false)

	if !m.pollPendingEmpty(m.drainTimeout) {
		nlog.Warningf("reload: drain timeout with pending invocations still outstanding, proceeding anyway")
	}

	if err := m.restarter.Shutdown(); err != nil {
		nlog.Warningf("reload: graceful shutdown failed, forcing: %v", err)
	}
	if err := m.restarter.Respawn(); err != nil {
		return fmt.Errorf("reload: respawn: %w", err)
	}
	if !m.restarter.WaitReady(m.drainTimeout) {
		return fmt.Errorf("reload: new worker did not reach Ready within %s", m.drainTimeout)
	}
	return nil
}

// pollPendingEmpty polls the drainer's pending count at a short fixed
// cadence until it reaches zero or the deadline elapses.
func (m *Manager) pollPendingEmpty(timeout time.Duration) bool {
	const pollEvery = 20 * time.Millisecond
	deadline := time.Now().Add(timeout)
	for {
		if m.drainer.PendingCount() == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollEvery)
	}
}

func hashFile(path string) ([sha256.Size]byte, error) {
	var out [sha256.Size]byte
	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return out, err
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}
