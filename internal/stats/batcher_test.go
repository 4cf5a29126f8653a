package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/core"
)

// recordingSave counts invocations and can be told to fail.
type recordingSave struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *recordingSave) fn(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *recordingSave) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestAddAccumulatesPendingUntilFlush(t *testing.T) {
	save := &recordingSave{}
	m := NewModel()
	b := NewBatcher(m, save.fn, time.Hour, 100, zap.NewNop())

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Add(context.Background(), core.CounterScanned, 1))
	}
	require.NoError(t, b.Add(context.Background(), core.CounterThreats, 2))

	pending := b.Pending()
	assert.Equal(t, int64(5), pending.Scanned)
	assert.Equal(t, int64(2), pending.Threats)
	assert.Equal(t, 0, save.count())

	require.NoError(t, b.Flush(context.Background()))
	assert.Equal(t, 1, save.count())
	assert.Equal(t, Pending{}, b.Pending())

	// The model was updated immediately, not at flush time.
	assert.Equal(t, int64(5), m.Snapshot().Session.Scanned)
	assert.Equal(t, int64(2), m.Snapshot().Session.Threats)
}

func TestDebounceFlushesAfterDelay(t *testing.T) {
	save := &recordingSave{}
	b := NewBatcher(NewModel(), save.fn, 20*time.Millisecond, 100, zap.NewNop())

	require.NoError(t, b.Add(context.Background(), core.CounterScanned, 1))
	require.NoError(t, b.Add(context.Background(), core.CounterScanned, 1))
	assert.Equal(t, 0, save.count())

	assert.Eventually(t, func() bool { return save.count() == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, Pending{}, b.Pending())
}

func TestOversizedBatchFlushesSynchronously(t *testing.T) {
	save := &recordingSave{}
	b := NewBatcher(NewModel(), save.fn, time.Hour, 3, zap.NewNop())

	require.NoError(t, b.Add(context.Background(), core.CounterScanned, 2))
	assert.Equal(t, 0, save.count())

	require.NoError(t, b.Add(context.Background(), core.CounterScanned, 2))
	assert.Equal(t, 1, save.count())
	assert.Equal(t, Pending{}, b.Pending())
}

func TestFailedFlushRestoresPending(t *testing.T) {
	save := &recordingSave{err: errors.New("backend down")}
	m := NewModel()
	b := NewBatcher(m, save.fn, time.Hour, 100, zap.NewNop())

	require.NoError(t, b.Add(context.Background(), core.CounterScanned, 3))
	require.NoError(t, b.Add(context.Background(), core.CounterThreats, 1))

	err := b.Flush(context.Background())
	require.Error(t, err)

	pending := b.Pending()
	assert.Equal(t, int64(3), pending.Scanned)
	assert.Equal(t, int64(1), pending.Threats)

	// The counted values stay applied; only durability is deferred.
	assert.Equal(t, int64(3), m.Snapshot().Session.Scanned)

	save.err = nil
	require.NoError(t, b.Flush(context.Background()))
	assert.Equal(t, Pending{}, b.Pending())
}

func TestConcurrentFlushIsNoOp(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	slow := func(context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		close(entered)
		<-release
		return nil
	}
	b := NewBatcher(NewModel(), slow, time.Hour, 100, zap.NewNop())
	require.NoError(t, b.Add(context.Background(), core.CounterScanned, 1))

	done := make(chan error, 1)
	go func() { done <- b.Flush(context.Background()) }()
	<-entered

	// A second flush while one is in flight returns without writing.
	require.NoError(t, b.Flush(context.Background()))

	close(release)
	require.NoError(t, <-done)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestStopCancelsScheduledFlush(t *testing.T) {
	save := &recordingSave{}
	b := NewBatcher(NewModel(), save.fn, 20*time.Millisecond, 100, zap.NewNop())

	require.NoError(t, b.Add(context.Background(), core.CounterScanned, 1))
	b.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, save.count())
	assert.Equal(t, int64(1), b.Pending().Scanned)
}
