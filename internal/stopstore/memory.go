package stopstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/alphadose/haxmap"
)

type memoryStore struct {
	entries *haxmap.Map[string, int64] // generation id -> expiry, unix nanos
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore returns an in-process Store for single-process deployments.
// TTL expiry is evaluated lazily on read.
func NewMemoryStore(ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultStopTTL * time.Second
	}
	return &memoryStore{
		entries: haxmap.New[string, int64](),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *memoryStore) RequestStop(_ context.Context, generationID string) error {
	if generationID == "" {
		slog.Warn("Stop requested without a generation id; ignoring.")
		return nil
	}
	s.entries.Set(generationID, s.now().Add(s.ttl).UnixNano())
	slog.Info("Stop requested", "generation_id", generationID, "ttl", s.ttl)
	return nil
}

func (s *memoryStore) IsStopRequested(_ context.Context, generationID string) bool {
	if generationID == "" {
		return false
	}
	deadline, ok := s.entries.Get(generationID)
	if !ok {
		return false
	}
	if s.now().UnixNano() > deadline {
		s.entries.Del(generationID)
		return false
	}
	return true
}

func (s *memoryStore) Heartbeat(_ context.Context, generationID string) error {
	if generationID == "" {
		return nil
	}
	deadline, ok := s.entries.Get(generationID)
	if !ok {
		return nil
	}
	// Renew against the observed deadline so a Clear racing in between is
	// final instead of being resurrected as a fresh marker.
	if s.entries.CompareAndSwap(generationID, deadline, s.now().Add(s.ttl).UnixNano()) {
		slog.Debug("Renewed stop marker TTL", "generation_id", generationID, "ttl", s.ttl)
	}
	return nil
}

func (s *memoryStore) Clear(_ context.Context, generationID string) error {
	if generationID == "" {
		return nil
	}
	s.entries.Del(generationID)
	return nil
}
