// Package engine wires the scoring, caching, allow-list, statistics
// and persistence components into the threat-analysis engine owning
// all mutable state for one process.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/allowlist"
	"github.com/savegrandma/phishguard/internal/cache"
	"github.com/savegrandma/phishguard/internal/core"
	"github.com/savegrandma/phishguard/internal/persist"
	"github.com/savegrandma/phishguard/internal/scan"
	"github.com/savegrandma/phishguard/internal/scoring"
	"github.com/savegrandma/phishguard/internal/stats"
)

// Options carries the engine's timing knobs.
type Options struct {
	// IdleAfter is the quiet window after which a scan finalizes.
	IdleAfter time.Duration
	// CheckInterval is how often the idle check runs.
	CheckInterval time.Duration
	// CleanupDelay defers the post-scan cache cleanup.
	CleanupDelay time.Duration
}

// Engine owns the analysis cache, allow-list, statistics and scan
// lifecycle for one process. Construct one per process; there are no
// package-level singletons.
type Engine struct {
	scorer   *scoring.Scorer
	cache    *cache.AnalysisCache
	allow    *allowlist.Store
	model    *stats.Model
	batcher  *stats.Batcher
	store    *persist.Store
	scan     *scan.Controller
	notifier core.Notifier
	logger   *zap.Logger
	opts     Options

	stopCh chan struct{}
}

// New creates an engine. The scan lifecycle controller is built here
// so its finalize hook can reach the batcher and cache.
func New(
	scorer *scoring.Scorer,
	analysisCache *cache.AnalysisCache,
	allow *allowlist.Store,
	model *stats.Model,
	store *persist.Store,
	notifier core.Notifier,
	opts Options,
	logger *zap.Logger,
) *Engine {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Second
	}
	if opts.CleanupDelay <= 0 {
		opts.CleanupDelay = 5 * time.Second
	}

	e := &Engine{
		scorer:   scorer,
		cache:    analysisCache,
		allow:    allow,
		model:    model,
		store:    store,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		stopCh:   make(chan struct{}),
	}
	e.batcher = stats.NewBatcher(model, e.saveStats, stats.DefaultSaveDelay, stats.DefaultMaxBatch, logger)
	e.scan = scan.NewController(opts.IdleAfter, e.finalizeScan, logger)
	return e
}

// SetBatching overrides the batcher's debounce delay and size bound.
// Call before Start.
func (e *Engine) SetBatching(delay time.Duration, maxBatch int) {
	e.batcher = stats.NewBatcher(e.model, e.saveStats, delay, maxBatch, e.logger)
}

// Start loads persisted state and begins the idle-check loop.
func (e *Engine) Start(ctx context.Context) error {
	snap, found, err := e.store.LoadStats(ctx)
	if err != nil {
		e.logger.Error("Failed to load persisted stats, starting fresh", zap.Error(err))
	} else if found {
		e.model.LoadPersistent(snap.Persistent)
		e.logger.Info("Loaded persistent stats",
			zap.Int64("total_threats", snap.Persistent.TotalThreatsEver),
			zap.Int64("total_scanned", snap.Persistent.TotalScannedEver))
	}
	e.model.ResetSession()

	emails, found, err := e.store.LoadAllowlist(ctx)
	if err != nil {
		e.logger.Error("Failed to load allow-list, starting empty", zap.Error(err))
	} else if found {
		e.allow.Replace(emails)
		e.logger.Info("Loaded allow-list", zap.Int("entries", e.allow.Size()))
	}
	e.model.SetAllowlisted(int64(e.allow.Size()))

	e.store.CaptureBaseline(e.model.Snapshot(), e.allow.Hash())

	go e.idleLoop()
	return nil
}

// Stop halts the idle loop and guarantees a final flush.
func (e *Engine) Stop(ctx context.Context) error {
	close(e.stopCh)
	e.batcher.Stop()
	if err := e.batcher.Flush(ctx); err != nil {
		return fmt.Errorf("final flush failed: %w", err)
	}
	return nil
}

// Analyze runs a record through dedup, allow-list, cache and scoring.
// Threat and scanned counters move exactly once per newly observed
// thread id, never for a redisplayed cache hit.
func (e *Engine) Analyze(ctx context.Context, rec *core.Record) *core.Result {
	isNew := e.scan.Observe(rec.ThreadID)

	if rec.ThreadID != "" && !e.cache.NeedsAnalysis(rec.ThreadID) {
		if entry, ok := e.cache.Lookup(rec.ThreadID); ok {
			// A sender allow-listed after the verdict was cached is
			// suppressed on redisplay. Cumulative threat counters are
			// never retroactively adjusted.
			if entry.Result.IsSuspicious && e.allow.Contains(rec.SenderEmail) {
				return &core.Result{WasAllowlisted: true}
			}
			return entry.Result
		}
	}

	result := e.scorer.Analyze(rec)
	if rec.ThreadID != "" {
		e.cache.Remember(rec.ThreadID, result, rec)
	}

	if isNew {
		if err := e.batcher.Add(ctx, core.CounterScanned, 1); err != nil {
			e.logger.Error("Failed to count scanned record", zap.Error(err))
		}
		if result.IsSuspicious {
			if err := e.batcher.Add(ctx, core.CounterThreats, 1); err != nil {
				e.logger.Error("Failed to count threat", zap.Error(err))
			}
		}
	}
	return result
}

// IsAllowlisted reports whether a sender is trusted.
func (e *Engine) IsAllowlisted(email string) bool {
	return e.allow.Contains(email)
}

// AddToAllowlist trusts a sender and durably saves the allow-list. A
// failed save rolls the membership back; there is no partial success.
func (e *Engine) AddToAllowlist(ctx context.Context, email string) bool {
	present := e.allow.Contains(email)
	if !e.allow.Add(email) {
		return false
	}
	if present {
		return true
	}

	if err := e.batcher.Add(ctx, core.CounterAllowlisted, 1); err != nil {
		e.logger.Error("Failed to count allow-list addition", zap.Error(err))
	}
	e.model.SetAllowlisted(int64(e.allow.Size()))

	if err := e.store.SaveAllowlist(ctx, e.allow.All(), e.allow.Hash()); err != nil {
		e.logger.Error("Failed to save allow-list, rolling back", zap.Error(err))
		e.allow.Remove(email)
		e.model.SetAllowlisted(int64(e.allow.Size()))
		return false
	}

	e.notifier.AllowlistChanged(e.allow.Size())
	e.notifier.StatsChanged(e.model.Flat())
	return true
}

// RemoveFromAllowlist untrusts a sender with the same durable-or-
// rolled-back discipline as AddToAllowlist.
func (e *Engine) RemoveFromAllowlist(ctx context.Context, email string) bool {
	if !e.allow.Remove(email) {
		return false
	}
	e.model.SetAllowlisted(int64(e.allow.Size()))

	if err := e.store.SaveAllowlist(ctx, e.allow.All(), e.allow.Hash()); err != nil {
		e.logger.Error("Failed to save allow-list, rolling back removal", zap.Error(err))
		e.allow.Add(email)
		e.model.SetAllowlisted(int64(e.allow.Size()))
		return false
	}

	e.notifier.AllowlistChanged(e.allow.Size())
	e.notifier.StatsChanged(e.model.Flat())
	return true
}

// AllowlistStatus summarizes allow-list occupancy.
func (e *Engine) AllowlistStatus() core.AllowlistStatus {
	return core.AllowlistStatus{
		Count:  e.allow.Size(),
		Max:    e.allow.MaxSize(),
		IsFull: e.allow.IsFull(),
	}
}

// CurrentStats returns the dual-horizon snapshot.
func (e *Engine) CurrentStats() core.StatsSnapshot {
	return e.model.Snapshot()
}

// FlatStats returns the legacy flat view for older consumers.
func (e *Engine) FlatStats() core.FlatStats {
	return e.model.Flat()
}

// RecordObserved registers a sighting without analyzing, reporting
// whether the thread id is new to this session.
func (e *Engine) RecordObserved(rec *core.Record) bool {
	return e.scan.Observe(rec.ThreadID)
}

// ForceFlush writes any pending counter updates now.
func (e *Engine) ForceFlush(ctx context.Context) error {
	return e.batcher.Flush(ctx)
}

// OnIdleCheck runs one idle-detection pass. Exposed for callers that
// drive their own scheduling; Start runs it on a ticker already.
func (e *Engine) OnIdleCheck(ctx context.Context) {
	e.scan.CheckIdle(ctx)
}

func (e *Engine) idleLoop() {
	ticker := time.NewTicker(e.opts.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.scan.CheckIdle(context.Background())
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) saveStats(ctx context.Context) error {
	return e.store.SaveStats(ctx, e.model.Snapshot())
}

func (e *Engine) finalizeScan(ctx context.Context, scanned int) {
	snap := e.model.Snapshot()
	e.logger.Info("Scan summary",
		zap.Int("records_observed", scanned),
		zap.Int64("session_scanned", snap.Session.Scanned),
		zap.Int64("session_threats", snap.Session.Threats),
		zap.Int64("total_threats_ever", snap.Persistent.TotalThreatsEver))

	if err := e.batcher.Flush(ctx); err != nil {
		e.logger.Error("End-of-scan flush failed", zap.Error(err))
	}
	e.notifier.StatsChanged(e.model.Flat())

	time.AfterFunc(e.opts.CleanupDelay, e.cache.Cleanup)
}
