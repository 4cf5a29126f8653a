package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/adapters/storage"
	"github.com/savegrandma/phishguard/internal/allowlist"
	"github.com/savegrandma/phishguard/internal/cache"
	"github.com/savegrandma/phishguard/internal/core"
	"github.com/savegrandma/phishguard/internal/persist"
	"github.com/savegrandma/phishguard/internal/scoring"
	"github.com/savegrandma/phishguard/internal/stats"
)

// flakyKV delegates to a memory store but can fail writes on demand.
type flakyKV struct {
	*storage.MemoryStore
	mu      sync.Mutex
	failSet bool
}

func newFlakyKV() *flakyKV {
	return &flakyKV{MemoryStore: storage.NewMemoryStore()}
}

func (f *flakyKV) Set(ctx context.Context, items map[string][]byte) error {
	f.mu.Lock()
	failing := f.failSet
	f.mu.Unlock()
	if failing {
		return errors.New("injected write failure")
	}
	return f.MemoryStore.Set(ctx, items)
}

func (f *flakyKV) setFailing(fail bool) {
	f.mu.Lock()
	f.failSet = fail
	f.mu.Unlock()
}

type recordingNotifier struct {
	mu             sync.Mutex
	statsChanges   []core.FlatStats
	allowlistSizes []int
}

func (n *recordingNotifier) StatsChanged(flat core.FlatStats) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statsChanges = append(n.statsChanges, flat)
}

func (n *recordingNotifier) AllowlistChanged(size int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.allowlistSizes = append(n.allowlistSizes, size)
}

func (n *recordingNotifier) lastAllowlistSize() (int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.allowlistSizes) == 0 {
		return 0, false
	}
	return n.allowlistSizes[len(n.allowlistSizes)-1], true
}

func newTestEngine(t *testing.T, kv core.KeyValueStore) (*Engine, *recordingNotifier) {
	t.Helper()
	logger := zap.NewNop()
	allow := allowlist.New(100, logger)
	scorer := scoring.NewScorer(allow, logger, true, true)
	analysisCache := cache.New(0, 0, 0, logger)
	model := stats.NewModel()
	store := persist.NewStore(kv, persist.NewLock(logger), persist.NewBreaker(0, logger), "test", 0, logger)

	notifier := &recordingNotifier{}
	eng := New(scorer, analysisCache, allow, model, store, notifier, Options{
		IdleAfter:     50 * time.Millisecond,
		CheckInterval: 10 * time.Millisecond,
		CleanupDelay:  10 * time.Millisecond,
	}, logger)
	eng.SetBatching(time.Hour, 1000)
	return eng, notifier
}

func phishingRecord(threadID string) *core.Record {
	return &core.Record{
		ThreadID:    threadID,
		SenderName:  "Microsoft Support",
		SenderEmail: "support@gmail.com",
		Subject:     "Urgent: Verify your account immediately",
		Body:        "Your account is overdue. Click here to verify immediately.",
	}
}

func benignRecord(threadID string) *core.Record {
	return &core.Record{
		ThreadID:    threadID,
		SenderName:  "John Doe",
		SenderEmail: "john@example.com",
		Subject:     "Lunch",
		Body:        "See you at noon.",
	}
}

func TestAnalyzeCountsEachThreadOnce(t *testing.T) {
	eng, _ := newTestEngine(t, newFlakyKV())
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	defer func() { require.NoError(t, eng.Stop(ctx)) }()

	first := eng.Analyze(ctx, phishingRecord("t1"))
	assert.True(t, first.IsSuspicious)

	// A cache hit for the same thread moves no counters.
	second := eng.Analyze(ctx, phishingRecord("t1"))
	assert.True(t, second.IsSuspicious)

	eng.Analyze(ctx, benignRecord("t2"))

	snap := eng.CurrentStats()
	assert.Equal(t, int64(2), snap.Session.Scanned)
	assert.Equal(t, int64(1), snap.Session.Threats)
}

func TestAllowlistingSuppressesCachedVerdict(t *testing.T) {
	eng, _ := newTestEngine(t, newFlakyKV())
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	defer func() { require.NoError(t, eng.Stop(ctx)) }()

	first := eng.Analyze(ctx, phishingRecord("t1"))
	require.True(t, first.IsSuspicious)

	require.True(t, eng.AddToAllowlist(ctx, "support@gmail.com"))

	// The redisplay is suppressed; the historical threat count stands.
	again := eng.Analyze(ctx, phishingRecord("t1"))
	assert.True(t, again.WasAllowlisted)
	assert.False(t, again.IsSuspicious)

	snap := eng.CurrentStats()
	assert.Equal(t, int64(1), snap.Session.Threats)
	assert.Equal(t, int64(1), snap.Persistent.TotalThreatsEver)
}

func TestAllowlistedCounterTracksStoreSize(t *testing.T) {
	eng, notifier := newTestEngine(t, newFlakyKV())
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	defer func() { require.NoError(t, eng.Stop(ctx)) }()

	require.True(t, eng.AddToAllowlist(ctx, "a@example.com"))
	require.True(t, eng.AddToAllowlist(ctx, "b@example.com"))
	assert.Equal(t, int64(2), eng.CurrentStats().Persistent.Allowlisted)

	// Re-adding a member changes nothing.
	require.True(t, eng.AddToAllowlist(ctx, "a@example.com"))
	assert.Equal(t, int64(2), eng.CurrentStats().Persistent.Allowlisted)

	require.True(t, eng.RemoveFromAllowlist(ctx, "a@example.com"))
	assert.Equal(t, int64(1), eng.CurrentStats().Persistent.Allowlisted)

	size, ok := notifier.lastAllowlistSize()
	require.True(t, ok)
	assert.Equal(t, 1, size)

	status := eng.AllowlistStatus()
	assert.Equal(t, 1, status.Count)
	assert.Equal(t, 100, status.Max)
	assert.False(t, status.IsFull)
}

func TestAddToAllowlistRollsBackOnSaveFailure(t *testing.T) {
	kv := newFlakyKV()
	eng, _ := newTestEngine(t, kv)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	kv.setFailing(true)
	assert.False(t, eng.AddToAllowlist(ctx, "a@example.com"))
	assert.False(t, eng.IsAllowlisted("a@example.com"))
	assert.Equal(t, int64(0), eng.CurrentStats().Persistent.Allowlisted)

	kv.setFailing(false)
	assert.True(t, eng.AddToAllowlist(ctx, "a@example.com"))
	assert.True(t, eng.IsAllowlisted("a@example.com"))
	require.NoError(t, eng.Stop(ctx))
}

func TestRemoveFromAllowlistRollsBackOnSaveFailure(t *testing.T) {
	kv := newFlakyKV()
	eng, _ := newTestEngine(t, kv)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	require.True(t, eng.AddToAllowlist(ctx, "a@example.com"))

	kv.setFailing(true)
	assert.False(t, eng.RemoveFromAllowlist(ctx, "a@example.com"))
	assert.True(t, eng.IsAllowlisted("a@example.com"))
	assert.Equal(t, int64(1), eng.CurrentStats().Persistent.Allowlisted)
	kv.setFailing(false)
	require.NoError(t, eng.Stop(ctx))
}

func TestPersistentStateSurvivesRestart(t *testing.T) {
	kv := newFlakyKV()
	ctx := context.Background()

	eng, _ := newTestEngine(t, kv)
	require.NoError(t, eng.Start(ctx))
	eng.Analyze(ctx, phishingRecord("t1"))
	eng.Analyze(ctx, benignRecord("t2"))
	require.True(t, eng.AddToAllowlist(ctx, "trusted@example.com"))
	require.NoError(t, eng.ForceFlush(ctx))
	require.NoError(t, eng.Stop(ctx))

	restarted, _ := newTestEngine(t, kv)
	require.NoError(t, restarted.Start(ctx))
	defer func() { require.NoError(t, restarted.Stop(ctx)) }()

	snap := restarted.CurrentStats()
	assert.Equal(t, int64(0), snap.Session.Scanned, "session counters reset on start")
	assert.Equal(t, int64(2), snap.Persistent.TotalScannedEver)
	assert.Equal(t, int64(1), snap.Persistent.TotalThreatsEver)
	assert.Equal(t, int64(1), snap.Persistent.Allowlisted)
	assert.True(t, restarted.IsAllowlisted("trusted@example.com"))
}

func TestIdleFinalizeFlushesAndNotifies(t *testing.T) {
	kv := newFlakyKV()
	eng, notifier := newTestEngine(t, kv)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	defer func() { require.NoError(t, eng.Stop(ctx)) }()

	eng.Analyze(ctx, phishingRecord("t1"))

	assert.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.statsChanges) > 0
	}, time.Second, 10*time.Millisecond)

	// The flush reached the backend: a fresh engine sees the counters.
	verify, _ := newTestEngine(t, kv)
	require.NoError(t, verify.Start(ctx))
	defer func() { require.NoError(t, verify.Stop(ctx)) }()
	assert.Equal(t, int64(1), verify.CurrentStats().Persistent.TotalScannedEver)
}

func TestRecordObservedDeduplicates(t *testing.T) {
	eng, _ := newTestEngine(t, newFlakyKV())
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	defer func() { require.NoError(t, eng.Stop(ctx)) }()

	assert.True(t, eng.RecordObserved(&core.Record{ThreadID: "t1"}))
	assert.False(t, eng.RecordObserved(&core.Record{ThreadID: "t1"}))
	assert.True(t, eng.RecordObserved(&core.Record{ThreadID: ""}))
}
