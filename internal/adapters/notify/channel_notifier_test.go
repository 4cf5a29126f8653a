package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/core"
)

func TestChannelNotifierDeliversEvents(t *testing.T) {
	n := NewChannelNotifier(4, zap.NewNop())

	n.StatsChanged(core.FlatStats{Scanned: 3, Threats: 1})
	n.AllowlistChanged(7)

	ev := <-n.Events()
	require.Equal(t, EventStats, ev.Kind)
	assert.Equal(t, int64(3), ev.Stats.Scanned)
	assert.Equal(t, int64(1), ev.Stats.Threats)

	ev = <-n.Events()
	require.Equal(t, EventAllowlist, ev.Kind)
	assert.Equal(t, 7, ev.AllowlistCount)
}

func TestChannelNotifierDropsWhenFull(t *testing.T) {
	n := NewChannelNotifier(1, zap.NewNop())

	// Neither call may block, even with no consumer.
	n.AllowlistChanged(1)
	n.AllowlistChanged(2)

	ev := <-n.Events()
	assert.Equal(t, 1, ev.AllowlistCount)

	select {
	case ev := <-n.Events():
		t.Fatalf("unexpected buffered event: %+v", ev)
	default:
	}
}
