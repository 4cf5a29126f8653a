package persist

import (
	"sync"

	"go.uber.org/zap"
)

// DefaultMaxSaveFailures is the consecutive-failure count at which a
// write class stops touching the backend.
const DefaultMaxSaveFailures = 3

// WriteClass distinguishes the two durable payloads, each with its own
// failure budget.
type WriteClass string

const (
	ClassStats     WriteClass = "stats"
	ClassAllowlist WriteClass = "allowlist"
)

// Breaker counts consecutive persistence failures per write class.
// Once a class reaches its limit, writes of that class are skipped
// until a reachability probe succeeds.
type Breaker struct {
	mu       sync.Mutex
	failures map[WriteClass]int
	max      int
	logger   *zap.Logger
}

// NewBreaker creates a breaker. A non-positive max falls back to the
// default.
func NewBreaker(max int, logger *zap.Logger) *Breaker {
	if max <= 0 {
		max = DefaultMaxSaveFailures
	}
	return &Breaker{
		failures: make(map[WriteClass]int),
		max:      max,
		logger:   logger,
	}
}

// Open reports whether the class has exhausted its failure budget.
func (b *Breaker) Open(class WriteClass) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures[class] >= b.max
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures(class WriteClass) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures[class]
}

// Failure records a failed write and returns the new count.
func (b *Breaker) Failure(class WriteClass) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[class]++
	b.logger.Warn("Persistence write failed",
		zap.String("class", string(class)),
		zap.Int("failures", b.failures[class]),
		zap.Int("max", b.max))
	return b.failures[class]
}

// Success resets the class counter after an acknowledged write.
func (b *Breaker) Success(class WriteClass) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[class] = 0
}

// Reset clears the class counter after a recovery probe succeeds.
func (b *Breaker) Reset(class WriteClass) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures[class] > 0 {
		b.logger.Info("Backend recovered, resetting failure count",
			zap.String("class", string(class)),
			zap.Int("previous_failures", b.failures[class]))
	}
	b.failures[class] = 0
}
