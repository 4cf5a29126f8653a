// Package notify provides fire-and-forget sinks announcing stats and
// allow-list changes to other processes. Delivery is best-effort and
// never blocks the engine.
package notify

import (
	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/core"
)

// LogNotifier announces changes through the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// StatsChanged logs updated counters.
func (n *LogNotifier) StatsChanged(stats core.FlatStats) {
	n.logger.Info("Stats changed",
		zap.Int64("scanned", stats.Scanned),
		zap.Int64("threats", stats.Threats),
		zap.Int64("allowlisted", stats.Allowlisted))
}

// AllowlistChanged logs the new allow-list size.
func (n *LogNotifier) AllowlistChanged(count int) {
	n.logger.Info("Allow-list changed", zap.Int("entries", count))
}
