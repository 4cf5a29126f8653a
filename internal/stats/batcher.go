package stats

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/core"
)

const (
	// DefaultSaveDelay is the debounce window before a flush.
	DefaultSaveDelay = 2 * time.Second
	// DefaultMaxBatch forces an immediate flush once the pending
	// increments sum past it, bounding staleness under bursty load.
	DefaultMaxBatch = 50
)

// Pending accumulates increments not yet durably written. It is reset
// atomically with each flush and restored if the flush fails.
type Pending struct {
	Scanned     int64
	Threats     int64
	Allowlisted int64
	Timestamp   time.Time
}

func (p Pending) sum() int64 {
	return p.Scanned + p.Threats + p.Allowlisted
}

// SaveFunc writes the current snapshot to the persistence backend.
type SaveFunc func(ctx context.Context) error

// Batcher coalesces many small counter increments into infrequent
// writes: each increment (re)starts a debounce timer, and an oversized
// batch flushes immediately.
type Batcher struct {
	model  *Model
	save   SaveFunc
	logger *zap.Logger
	delay  time.Duration
	max    int64

	mu       sync.Mutex
	pending  Pending
	timer    *time.Timer
	flushing bool
}

// NewBatcher creates a batcher over the model. Non-positive delay and
// max fall back to the defaults.
func NewBatcher(model *Model, save SaveFunc, delay time.Duration, max int, logger *zap.Logger) *Batcher {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	if max <= 0 {
		max = DefaultMaxBatch
	}
	return &Batcher{
		model:  model,
		save:   save,
		logger: logger,
		delay:  delay,
		max:    int64(max),
	}
}

// Add validates and applies an increment to the in-memory model, then
// queues it for the next flush. The debounce timer restarts on every
// call; crossing the batch-size bound flushes synchronously instead.
func (b *Batcher) Add(ctx context.Context, kind core.CounterKind, n int64) error {
	if err := b.model.Increment(kind, n); err != nil {
		b.logger.Error("Rejected counter update", zap.Error(err), zap.String("kind", string(kind)))
		return err
	}

	b.mu.Lock()
	switch kind {
	case core.CounterScanned:
		b.pending.Scanned += n
	case core.CounterThreats:
		b.pending.Threats += n
	case core.CounterAllowlisted:
		b.pending.Allowlisted += n
	}
	b.pending.Timestamp = time.Now()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}

	if b.pending.sum() > b.max {
		b.mu.Unlock()
		return b.Flush(ctx)
	}

	b.timer = time.AfterFunc(b.delay, func() {
		if err := b.Flush(context.Background()); err != nil {
			b.logger.Error("Debounced flush failed", zap.Error(err))
		}
	})
	b.mu.Unlock()
	return nil
}

// Flush captures and resets the pending batch, then writes the full
// snapshot to the backend. On failure the captured increments are
// restored so nothing counted is lost. A flush already in progress
// makes concurrent calls successful no-ops.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	if b.flushing {
		b.mu.Unlock()
		return nil
	}
	b.flushing = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	delta := b.pending
	b.pending = Pending{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.flushing = false
		b.mu.Unlock()
	}()

	if delta.sum() > 0 {
		b.logger.Debug("Flushing pending counter updates",
			zap.Int64("scanned", delta.Scanned),
			zap.Int64("threats", delta.Threats),
			zap.Int64("allowlisted", delta.Allowlisted))
	}

	if err := b.save(ctx); err != nil {
		b.restore(delta)
		return err
	}
	return nil
}

// Pending returns a copy of the unwritten increments.
func (b *Batcher) Pending() Pending {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Stop cancels any scheduled flush without running it.
func (b *Batcher) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Batcher) restore(delta Pending) {
	if delta.sum() == 0 {
		return
	}
	b.mu.Lock()
	b.pending.Scanned += delta.Scanned
	b.pending.Threats += delta.Threats
	b.pending.Allowlisted += delta.Allowlisted
	if b.pending.Timestamp.IsZero() {
		b.pending.Timestamp = delta.Timestamp
	}
	b.mu.Unlock()
	b.logger.Warn("Flush failed, restored pending counter updates",
		zap.Int64("scanned", delta.Scanned),
		zap.Int64("threats", delta.Threats),
		zap.Int64("allowlisted", delta.Allowlisted))
}
