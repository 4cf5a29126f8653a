// Package cache holds the thread-id-keyed memo of past analysis
// verdicts, bounded by count and age.
package cache

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/core"
)

const (
	// DefaultMaxSize is the soft cap enforced by Cleanup.
	DefaultMaxSize = 200
	// DefaultExpiry is the maximum age of a usable entry.
	DefaultExpiry = 2 * time.Hour
	// DefaultForceThreshold is the hard cap; crossing it trips the
	// defensive fast path that drops the oldest quarter outright.
	DefaultForceThreshold = 250
)

// Entry is one remembered analysis, owned exclusively by the cache.
type Entry struct {
	ThreadID  string
	Result    *core.Result
	Record    *core.Record
	CreatedAt time.Time
}

// AnalysisCache memoizes verdicts per thread id. One entry per thread;
// last write wins. Safe for concurrent use.
type AnalysisCache struct {
	mu             sync.Mutex
	entries        map[string]*Entry
	maxSize        int
	expiry         time.Duration
	forceThreshold int
	logger         *zap.Logger
	now            func() time.Time
}

// New creates a cache with the given bounds. Zero values fall back to
// the defaults.
func New(maxSize int, expiry time.Duration, forceThreshold int, logger *zap.Logger) *AnalysisCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	if forceThreshold <= 0 {
		forceThreshold = DefaultForceThreshold
	}
	return &AnalysisCache{
		entries:        make(map[string]*Entry),
		maxSize:        maxSize,
		expiry:         expiry,
		forceThreshold: forceThreshold,
		logger:         logger,
		now:            time.Now,
	}
}

// NeedsAnalysis reports whether a thread id is absent or its entry has
// outlived the expiry window.
func (c *AnalysisCache) NeedsAnalysis(threadID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[threadID]
	if !ok {
		return true
	}
	return c.now().Sub(entry.CreatedAt) > c.expiry
}

// Lookup returns the entry for a thread id, if present and unexpired.
func (c *AnalysisCache) Lookup(threadID string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[threadID]
	if !ok || c.now().Sub(entry.CreatedAt) > c.expiry {
		return nil, false
	}
	return entry, true
}

// Remember stores an analysis result keyed by thread id. When the
// cache grows past 80% of its soft cap it runs an opportunistic
// cleanup so eviction cost is paid off the hot path.
func (c *AnalysisCache) Remember(threadID string, result *core.Result, record *core.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[threadID] = &Entry{
		ThreadID:  threadID,
		Result:    result,
		Record:    record,
		CreatedAt: c.now(),
	}
	if len(c.entries) > c.maxSize*8/10 {
		c.cleanupLocked()
	}
}

// Cleanup evicts expired entries, then the oldest entries beyond the
// soft cap. Idempotent and safe on an empty cache.
func (c *AnalysisCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
}

// Len returns the current entry count.
func (c *AnalysisCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *AnalysisCache) cleanupLocked() {
	// Pathological growth: drop the oldest quarter without computing
	// exact eviction counts.
	if len(c.entries) > c.forceThreshold {
		oldest := c.oldestFirstLocked()
		for _, entry := range oldest[:len(oldest)/4] {
			delete(c.entries, entry.ThreadID)
		}
		c.logger.Warn("Analysis cache force-cleared oldest quarter",
			zap.Int("remaining", len(c.entries)))
	}

	now := c.now()
	expired := 0
	for id, entry := range c.entries {
		if now.Sub(entry.CreatedAt) > c.expiry {
			delete(c.entries, id)
			expired++
		}
	}

	if len(c.entries) > c.maxSize {
		oldest := c.oldestFirstLocked()
		for _, entry := range oldest[:len(c.entries)-c.maxSize] {
			delete(c.entries, entry.ThreadID)
		}
	}

	if expired > 0 {
		c.logger.Debug("Cleaned up expired analysis entries",
			zap.Int("expired_count", expired),
			zap.Int("remaining", len(c.entries)))
	}
}

func (c *AnalysisCache) oldestFirstLocked() []*Entry {
	ordered := make([]*Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		ordered = append(ordered, entry)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	return ordered
}
