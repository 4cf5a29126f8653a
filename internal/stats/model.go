// Package stats holds the dual-horizon statistics model (session and
// persistent counters) and the batching scheduler that coalesces
// counter increments into infrequent durable writes.
package stats

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/savegrandma/phishguard/internal/core"
)

var (
	// ErrInvalidCounter rejects an unrecognized counter kind.
	ErrInvalidCounter = errors.New("invalid counter kind")

	// ErrNegativeIncrement rejects a negative increment.
	ErrNegativeIncrement = errors.New("negative increment not allowed")
)

// Model is the in-memory statistics snapshot. Increments apply
// immediately so readers never wait on a durable write.
type Model struct {
	mu   sync.RWMutex
	snap core.StatsSnapshot
}

// NewModel creates a model with a fresh session horizon.
func NewModel() *Model {
	return &Model{
		snap: core.StatsSnapshot{
			Session: core.SessionStats{SessionStart: time.Now()},
			Persistent: core.PersistentStats{
				LastUpdated: time.Now(),
			},
		},
	}
}

// Increment applies n to the counter kind, updating both the session
// and, where applicable, the persistent cumulative field. Invalid
// kinds and negative increments are rejected with no state change.
func (m *Model) Increment(kind core.CounterKind, n int64) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeIncrement, n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch kind {
	case core.CounterScanned:
		m.snap.Session.Scanned += n
		m.snap.Persistent.TotalScannedEver += n
	case core.CounterThreats:
		m.snap.Session.Threats += n
		m.snap.Persistent.TotalThreatsEver += n
	case core.CounterAllowlisted:
		m.snap.Persistent.Allowlisted += n
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCounter, kind)
	}
	return nil
}

// Snapshot returns a copy of the current statistics.
func (m *Model) Snapshot() core.StatsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Flat derives the legacy flat view on read.
func (m *Model) Flat() core.FlatStats {
	return m.Snapshot().Flat()
}

// ResetSession zeroes the session horizon, keeping persistent
// counters. Called on every process start.
func (m *Model) ResetSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Session = core.SessionStats{SessionStart: time.Now()}
}

// LoadPersistent installs just-loaded persistent counters.
func (m *Model) LoadPersistent(p core.PersistentStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Persistent = p
}

// SetAllowlisted pins the allow-list counter to the store's actual
// size. The counter must equal the store size after every successful
// mutation, so mutators call this rather than trusting deltas.
func (m *Model) SetAllowlisted(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Persistent.Allowlisted = n
}
