package event

import (
	"log/slog"
	"sync"
)

const defaultQueueSize = 256

// Queue is the one-shot HTTP transport: events for a single generation are
// pushed into a buffered channel and drained by one streamed response (or
// collected synchronously for a non-streaming client). The channel closes
// after the terminal event, so range loops end naturally.
type Queue struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func NewQueue() *Queue {
	return &Queue{ch: make(chan Event, defaultQueueSize)}
}

// Emit pushes one event. A full buffer drops non-terminal events rather than
// blocking the generation task behind a stalled consumer. The terminal event
// is never dropped: it evicts the oldest buffered event if it has to, so the
// drain loop always observes exactly one generation_end before the close.
func (q *Queue) Emit(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.ch <- e:
	default:
		if !e.Terminal() {
			slog.Warn("Event queue full, dropping event",
				"generation_id", e.GenerationID, "event_type", e.Type)
			return
		}
		select {
		case dropped := <-q.ch:
			slog.Warn("Event queue full, evicting oldest event for terminal",
				"generation_id", e.GenerationID, "evicted_type", dropped.Type)
		default:
		}
		// Emit holds the only send side, so the slot freed above (or by the
		// consumer) cannot be taken by anyone else.
		q.ch <- e
	}
	if e.Terminal() {
		q.closed = true
		close(q.ch)
	}
}

// Events returns the drain side of the queue.
func (q *Queue) Events() <-chan Event { return q.ch }

// Abandon marks the queue dead when the consumer goes away mid-generation,
// so later emits are discarded instead of piling up.
func (q *Queue) Abandon() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
