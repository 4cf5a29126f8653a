package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/core"
)

// DefaultMaxValueSize keeps payloads under the backend's practical
// size limit (the backend caps total capacity around 5MiB).
const DefaultMaxValueSize = 4 * 1024 * 1024

var (
	// ErrCircuitOpen is returned when a write class has exceeded its
	// failure budget and the backend is still unreachable.
	ErrCircuitOpen = errors.New("persistence circuit open")

	// ErrTooLarge is returned when a payload exceeds the backend's
	// practical size limit. The write is rejected before being
	// attempted and is not retried until the payload shrinks.
	ErrTooLarge = errors.New("payload exceeds size limit")
)

// persistedStats is the wire shape for the stats key. The unified
// block is the source of truth; the flat fields mirror it for older
// readers and are ignored on load unless the unified block is absent.
type persistedStats struct {
	Unified core.StatsSnapshot `json:"unified_stats"`
	Version string             `json:"version"`

	// Legacy mirror fields.
	SessionScanned   int64     `json:"emails_scanned_this_session"`
	SessionThreats   int64     `json:"threats_identified_this_session"`
	TotalThreatsEver int64     `json:"total_threats_ever_found"`
	TotalScannedEver int64     `json:"total_emails_scanned"`
	Allowlisted      int64     `json:"emails_allowlisted"`
	LastUpdated      time.Time `json:"last_updated"`
}

const statsVersion = "2.0"

// baseline is the state captured at load time, used to skip writes
// when nothing has materially changed.
type baseline struct {
	captured      bool
	snap          core.StatsSnapshot
	allowlistHash string
}

// Store reads and writes the two durable payloads through the narrow
// key-value backend, serialized by the FIFO lock and guarded by the
// per-class circuit breaker.
type Store struct {
	kv           core.KeyValueStore
	lock         *Lock
	breaker      *Breaker
	account      string
	maxValueSize int
	logger       *zap.Logger

	mu   sync.Mutex
	base baseline
}

// NewStore creates a store for one mail account identifier.
func NewStore(kv core.KeyValueStore, lock *Lock, breaker *Breaker, account string, maxValueSize int, logger *zap.Logger) *Store {
	if account == "" {
		account = "default"
	}
	if maxValueSize <= 0 {
		maxValueSize = DefaultMaxValueSize
	}
	return &Store{
		kv:           kv,
		lock:         lock,
		breaker:      breaker,
		account:      account,
		maxValueSize: maxValueSize,
		logger:       logger,
	}
}

func (s *Store) statsKey() string {
	return fmt.Sprintf("phishguard:stats:%s", s.account)
}

func (s *Store) allowlistKey() string {
	return fmt.Sprintf("phishguard:allowlist:%s", s.account)
}

// CaptureBaseline records the just-loaded state so unchanged saves can
// be skipped. Call once after both loads complete.
func (s *Store) CaptureBaseline(snap core.StatsSnapshot, allowlistHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = baseline{captured: true, snap: snap, allowlistHash: allowlistHash}
}

func (s *Store) statsChanged(snap core.StatsSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.base.captured {
		return true
	}
	b := s.base.snap
	return snap.Session.Scanned != b.Session.Scanned ||
		snap.Session.Threats != b.Session.Threats ||
		snap.Persistent.TotalThreatsEver != b.Persistent.TotalThreatsEver ||
		snap.Persistent.TotalScannedEver != b.Persistent.TotalScannedEver ||
		snap.Persistent.Allowlisted != b.Persistent.Allowlisted
}

func (s *Store) allowlistChanged(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.base.captured {
		return true
	}
	return hash != s.base.allowlistHash
}

func (s *Store) refreshStatsBaseline(snap core.StatsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base.snap = snap
	s.base.captured = true
}

func (s *Store) refreshAllowlistBaseline(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base.allowlistHash = hash
	s.base.captured = true
}

// allow is the circuit breaker's gate, checked synchronously at the
// top of every attempt. Over-budget classes probe the backend; a
// successful probe is the half-open recovery path.
func (s *Store) allow(ctx context.Context, class WriteClass) error {
	if !s.breaker.Open(class) {
		return nil
	}
	if err := s.kv.Ping(ctx); err != nil {
		s.logger.Warn("Skipping save, circuit open and backend unreachable",
			zap.String("class", string(class)),
			zap.Int("failures", s.breaker.Failures(class)))
		return fmt.Errorf("%w: %s", ErrCircuitOpen, class)
	}
	s.breaker.Reset(class)
	return nil
}

// LoadStats fetches the persisted snapshot. The second return value
// is false when no snapshot has ever been written.
func (s *Store) LoadStats(ctx context.Context) (core.StatsSnapshot, bool, error) {
	var snap core.StatsSnapshot

	values, err := s.kv.Get(ctx, []string{s.statsKey()})
	if err != nil {
		return snap, false, fmt.Errorf("failed to load stats: %w", err)
	}
	raw, ok := values[s.statsKey()]
	if !ok {
		return snap, false, nil
	}

	var stored persistedStats
	if err := json.Unmarshal(raw, &stored); err != nil {
		return snap, false, fmt.Errorf("failed to decode stats: %w", err)
	}

	if stored.Version == "" && stored.Unified.Persistent.LastUpdated.IsZero() {
		// Legacy-only payload written before the unified structure.
		snap.Persistent = core.PersistentStats{
			TotalThreatsEver: stored.TotalThreatsEver,
			TotalScannedEver: stored.TotalScannedEver,
			Allowlisted:      stored.Allowlisted,
			LastUpdated:      stored.LastUpdated,
		}
		s.logger.Info("Migrated legacy stats payload", zap.String("account", s.account))
		return snap, true, nil
	}

	snap = stored.Unified
	return snap, true, nil
}

// SaveStats durably writes the snapshot, including the legacy mirror
// fields, under the lock and the stats breaker. An unchanged snapshot
// is a successful no-op.
func (s *Store) SaveStats(ctx context.Context, snap core.StatsSnapshot) error {
	return s.lock.With(ctx, "save_stats", func() error {
		if err := s.allow(ctx, ClassStats); err != nil {
			return err
		}
		if !s.statsChanged(snap) {
			s.logger.Debug("Skipping stats save, no meaningful changes")
			return nil
		}

		snap.Persistent.LastUpdated = time.Now()
		payload, err := json.Marshal(persistedStats{
			Unified:          snap,
			Version:          statsVersion,
			SessionScanned:   snap.Session.Scanned,
			SessionThreats:   snap.Session.Threats,
			TotalThreatsEver: snap.Persistent.TotalThreatsEver,
			TotalScannedEver: snap.Persistent.TotalScannedEver,
			Allowlisted:      snap.Persistent.Allowlisted,
			LastUpdated:      snap.Persistent.LastUpdated,
		})
		if err != nil {
			return fmt.Errorf("failed to encode stats: %w", err)
		}
		if len(payload) > s.maxValueSize {
			s.logger.Error("Stats payload too large, refusing to save",
				zap.Int("size", len(payload)),
				zap.Int("max", s.maxValueSize))
			return ErrTooLarge
		}

		if err := s.kv.Set(ctx, map[string][]byte{s.statsKey(): payload}); err != nil {
			s.breaker.Failure(ClassStats)
			return fmt.Errorf("failed to save stats: %w", err)
		}
		s.breaker.Success(ClassStats)
		s.refreshStatsBaseline(snap)
		s.logger.Debug("Saved stats",
			zap.String("account", s.account),
			zap.Int64("session_scanned", snap.Session.Scanned),
			zap.Int64("total_threats", snap.Persistent.TotalThreatsEver))
		return nil
	})
}

// LoadAllowlist fetches the persisted allow-list membership.
func (s *Store) LoadAllowlist(ctx context.Context) ([]string, bool, error) {
	values, err := s.kv.Get(ctx, []string{s.allowlistKey()})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load allowlist: %w", err)
	}
	raw, ok := values[s.allowlistKey()]
	if !ok {
		return nil, false, nil
	}

	var emails []string
	if err := json.Unmarshal(raw, &emails); err != nil {
		return nil, false, fmt.Errorf("failed to decode allowlist: %w", err)
	}
	return emails, true, nil
}

// SaveAllowlist durably writes the membership under the lock and the
// allow-list breaker. An unchanged membership is a successful no-op.
func (s *Store) SaveAllowlist(ctx context.Context, emails []string, hash string) error {
	return s.lock.With(ctx, "save_allowlist", func() error {
		if err := s.allow(ctx, ClassAllowlist); err != nil {
			return err
		}
		if !s.allowlistChanged(hash) {
			s.logger.Debug("Skipping allowlist save, no changes")
			return nil
		}

		payload, err := json.Marshal(emails)
		if err != nil {
			return fmt.Errorf("failed to encode allowlist: %w", err)
		}
		if len(payload) > s.maxValueSize {
			s.logger.Error("Allowlist payload too large, refusing to save",
				zap.Int("size", len(payload)),
				zap.Int("max", s.maxValueSize))
			return ErrTooLarge
		}

		if err := s.kv.Set(ctx, map[string][]byte{s.allowlistKey(): payload}); err != nil {
			s.breaker.Failure(ClassAllowlist)
			return fmt.Errorf("failed to save allowlist: %w", err)
		}
		s.breaker.Success(ClassAllowlist)
		s.refreshAllowlistBaseline(hash)
		s.logger.Debug("Saved allowlist",
			zap.String("account", s.account),
			zap.Int("entries", len(emails)))
		return nil
	})
}
