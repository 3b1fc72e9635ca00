// Package stopstore holds TTL'd "stop requested" markers keyed strictly by
// generation id. The marker is the only cancellation channel: actors set it,
// the generation task polls it at checkpoints and renews its TTL while a slow
// provider call is in flight. Markers are never keyed by conversation id; a
// conversation can run generations back to back and a stale per-conversation
// flag would cancel a later, unrelated generation.
package stopstore

import "context"

// DefaultStopTTL bounds how long a stop request outlives the moment it was
// issued if nothing heartbeats it.
const DefaultStopTTL = 120 // seconds

// Store is the stop-request contract shared by actors and generation tasks,
// which may run in different processes.
//
// Reads fail open: a store error is logged and reported as "not stopped"
// rather than wedging a generation on an availability-affecting dependency.
type Store interface {
	// RequestStop idempotently marks generationID as stop-requested and
	// sets/refreshes the TTL.
	RequestStop(ctx context.Context, generationID string) error

	// IsStopRequested is an O(1) read and never blocks on generation
	// progress.
	IsStopRequested(ctx context.Context, generationID string) bool

	// Heartbeat renews the marker's TTL without changing its value. A no-op
	// when no marker exists.
	Heartbeat(ctx context.Context, generationID string) error

	// Clear removes the marker. Called only by the owning task on a
	// non-cancelled terminal path; cancelled markers expire via TTL so a
	// late delivery-time check still observes them.
	Clear(ctx context.Context, generationID string) error
}
