package core

import (
	"context"
)

// KeyValueStore is the narrow interface to the external persistence
// backend: an asynchronous key -> value store with bounded capacity.
// Calls may fail or time out; failures are outcomes, not panics.
type KeyValueStore interface {
	// Get retrieves the values for the given keys. Absent keys are
	// simply missing from the returned map.
	Get(ctx context.Context, keys []string) (map[string][]byte, error)

	// Set durably writes all pairs in the map.
	Set(ctx context.Context, items map[string][]byte) error

	// Ping reports whether the backend is currently reachable.
	// Used by the circuit breaker's recovery probe.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}

// Notifier is a fire-and-forget channel used to tell other processes
// (e.g. a UI) that stats or allow-list contents changed. Delivery is
// best-effort; implementations must never block the engine.
type Notifier interface {
	// StatsChanged announces updated counters.
	StatsChanged(stats FlatStats)

	// AllowlistChanged announces a new allow-list size.
	AllowlistChanged(count int)
}

// RecordSource feeds records into the engine. Implementations own the
// extraction mechanics (document scraping, file parsing, a pipe).
type RecordSource interface {
	// Start begins delivering records until the source is exhausted
	// or stopped.
	Start() error

	// Stop halts delivery.
	Stop() error
}
