// Package scan tracks the lifecycle of one browsing session's scan:
// per-thread deduplication and idle-based completion detection.
package scan

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultIdleAfter is how long the scan must be quiet before it is
// considered complete.
const DefaultIdleAfter = 2 * time.Second

// FinalizeFunc runs once per idle period when a scan completes:
// summary, forced flush, deferred cache cleanup.
type FinalizeFunc func(ctx context.Context, scanned int)

// Controller deduplicates observed records by thread id and detects
// scan completion via an activity-idle heuristic.
type Controller struct {
	mu           sync.Mutex
	seen         map[string]struct{}
	lastActivity time.Time
	active       bool
	sessionSeen  int

	idleAfter time.Duration
	finalize  FinalizeFunc
	logger    *zap.Logger
	now       func() time.Time
}

// NewController creates a controller. A non-positive idle window falls
// back to the default.
func NewController(idleAfter time.Duration, finalize FinalizeFunc, logger *zap.Logger) *Controller {
	if idleAfter <= 0 {
		idleAfter = DefaultIdleAfter
	}
	return &Controller{
		seen:      make(map[string]struct{}),
		idleAfter: idleAfter,
		finalize:  finalize,
		logger:    logger,
		now:       time.Now,
	}
}

// Observe registers a record sighting and reports whether its thread
// id is new to this session. Records without a thread id are always
// treated as new. Any observation restarts an in-progress scan.
func (c *Controller) Observe(threadID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastActivity = c.now()
	c.active = true

	if threadID == "" {
		c.sessionSeen++
		return true
	}
	if _, ok := c.seen[threadID]; ok {
		return false
	}
	c.seen[threadID] = struct{}{}
	c.sessionSeen++
	return true
}

// CheckIdle finalizes the scan once at least one record has been
// observed and the idle window has elapsed with no new observation.
// Finalization fires at most once per idle period.
func (c *Controller) CheckIdle(ctx context.Context) {
	c.mu.Lock()
	if !c.active || c.sessionSeen == 0 || c.now().Sub(c.lastActivity) < c.idleAfter {
		c.mu.Unlock()
		return
	}
	c.active = false
	scanned := c.sessionSeen
	c.mu.Unlock()

	c.logger.Info("Scan finalized", zap.Int("records_observed", scanned))
	if c.finalize != nil {
		c.finalize(ctx, scanned)
	}
}

// Seen reports how many distinct records this session observed.
func (c *Controller) Seen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionSeen
}
