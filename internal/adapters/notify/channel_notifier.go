package notify

import (
	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/core"
)

// EventKind distinguishes the two change announcements.
type EventKind string

const (
	EventStats     EventKind = "stats"
	EventAllowlist EventKind = "allowlist"
)

// Event is one change announcement.
type Event struct {
	Kind           EventKind
	Stats          core.FlatStats
	AllowlistCount int
}

// ChannelNotifier delivers events over a buffered channel. A full
// buffer drops the event: failures to deliver are logged and otherwise
// ignored.
type ChannelNotifier struct {
	events chan Event
	logger *zap.Logger
}

// NewChannelNotifier creates a notifier with the given buffer size.
func NewChannelNotifier(buffer int, logger *zap.Logger) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChannelNotifier{
		events: make(chan Event, buffer),
		logger: logger,
	}
}

// Events is the receive side for the consuming process.
func (n *ChannelNotifier) Events() <-chan Event {
	return n.events
}

// StatsChanged announces updated counters without blocking.
func (n *ChannelNotifier) StatsChanged(stats core.FlatStats) {
	n.send(Event{Kind: EventStats, Stats: stats})
}

// AllowlistChanged announces a new allow-list size without blocking.
func (n *ChannelNotifier) AllowlistChanged(count int) {
	n.send(Event{Kind: EventAllowlist, AllowlistCount: count})
}

func (n *ChannelNotifier) send(ev Event) {
	select {
	case n.events <- ev:
	default:
		n.logger.Warn("Dropped change notification, buffer full",
			zap.String("kind", string(ev.Kind)))
	}
}
