// Package persist mediates all access to the external persistence
// backend: a FIFO mutual-exclusion lock, a per-write-class circuit
// breaker, and the load/save paths for stats and allow-list data.
package persist

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Lock serializes backend writes. At most one operation runs at a
// time; concurrent callers queue and run in strict arrival order.
type Lock struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
	logger  *zap.Logger
}

// NewLock creates an unheld lock.
func NewLock(logger *zap.Logger) *Lock {
	return &Lock{logger: logger}
}

// With runs fn while holding the lock. Waiting is abandoned when ctx
// is cancelled; a running fn is never interrupted.
func (l *Lock) With(ctx context.Context, operation string, fn func() error) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	l.logger.Debug("Acquired save lock", zap.String("operation", operation))
	defer func() {
		l.release()
		l.logger.Debug("Released save lock", zap.String("operation", operation))
	}()
	return fn()
}

func (l *Lock) acquire(ctx context.Context) error {
	l.mu.Lock()
	if !l.held {
		l.held = true
		l.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, w := range l.waiters {
			if w == ch {
				l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
				l.mu.Unlock()
				return ctx.Err()
			}
		}
		l.mu.Unlock()
		// The grant raced with cancellation; take the lock and
		// hand it straight to the next waiter.
		<-ch
		l.release()
		return ctx.Err()
	}
}

func (l *Lock) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.waiters) > 0 {
		next := l.waiters[0]
		l.waiters = l.waiters[1:]
		close(next)
		return
	}
	l.held = false
}
