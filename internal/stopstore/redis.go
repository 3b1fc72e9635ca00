package stopstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	app_errors "openchat/backend/internal/errors"
)

const stopKeyPrefix = "stop:gen:"

type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore returns a Store backed by a shared Redis instance, for
// deployments where the actor receiving a stop command and the generation
// task run in different processes.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultStopTTL * time.Second
	}
	return &redisStore{rdb: rdb, ttl: ttl}
}

func stopKey(generationID string) string { return stopKeyPrefix + generationID }

func (s *redisStore) RequestStop(ctx context.Context, generationID string) error {
	if generationID == "" {
		slog.Warn("Stop requested without a generation id; ignoring.")
		return nil
	}
	if err := s.rdb.Set(ctx, stopKey(generationID), "1", s.ttl).Err(); err != nil {
		slog.Error("Failed to set stop marker", "generation_id", generationID, "error", err)
		return fmt.Errorf("%w: %v", app_errors.ErrStoreUnavailable, err)
	}
	slog.Info("Stop requested", "generation_id", generationID, "ttl", s.ttl)
	return nil
}

func (s *redisStore) IsStopRequested(ctx context.Context, generationID string) bool {
	if generationID == "" {
		return false
	}
	n, err := s.rdb.Exists(ctx, stopKey(generationID)).Result()
	if err != nil {
		// Fail open: a wedged generation is worse than a missed stop.
		slog.Error("Failed to read stop marker, treating as not stopped",
			"generation_id", generationID, "error", err)
		return false
	}
	return n > 0
}

func (s *redisStore) Heartbeat(ctx context.Context, generationID string) error {
	if generationID == "" {
		return nil
	}
	renewed, err := s.rdb.Expire(ctx, stopKey(generationID), s.ttl).Result()
	if err != nil {
		slog.Error("Failed to renew stop marker TTL", "generation_id", generationID, "error", err)
		return fmt.Errorf("%w: %v", app_errors.ErrStoreUnavailable, err)
	}
	if renewed {
		slog.Debug("Renewed stop marker TTL", "generation_id", generationID, "ttl", s.ttl)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context, generationID string) error {
	if generationID == "" {
		return nil
	}
	n, err := s.rdb.Del(ctx, stopKey(generationID)).Result()
	if err != nil {
		slog.Error("Failed to clear stop marker", "generation_id", generationID, "error", err)
		return fmt.Errorf("%w: %v", app_errors.ErrStoreUnavailable, err)
	}
	if n > 0 {
		slog.Info("Cleared stop marker", "generation_id", generationID)
	}
	return nil
}
