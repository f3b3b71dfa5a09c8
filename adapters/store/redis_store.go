package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/layer-3/secatt/core"
	"github.com/layer-3/secatt/ports"
	"github.com/redis/go-redis/v9"
)

// DefaultAttendanceTTL is how long a session's records are kept in Redis
const DefaultAttendanceTTL = 30 * 24 * time.Hour

// RedisStore is a Redis implementation of the AttendanceStore interface.
// Each session is a hash keyed by student id.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client, ttl time.Duration) ports.AttendanceStore {
	if ttl <= 0 {
		ttl = DefaultAttendanceTTL
	}
	return &RedisStore{
		client: client,
		prefix: "secatt:attendance:",
		ttl:    ttl,
	}
}

// Record stores an attendance record in Redis
func (s *RedisStore) Record(ctx context.Context, rec core.AttendanceRecord) error {
	key := s.prefix + rec.SessionID

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	created, err := s.client.HSetNX(ctx, key, rec.StudentID, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to record attendance: %w: %w", core.ErrStoreOperationFailed, err)
	}
	if !created {
		return core.ErrAttendanceExists
	}

	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set expiry: %w: %w", core.ErrStoreOperationFailed, err)
	}

	return nil
}

// ListBySession returns the records of a session ordered by marking time
func (s *RedisStore) ListBySession(ctx context.Context, sessionID string) ([]core.AttendanceRecord, error) {
	vals, err := s.client.HGetAll(ctx, s.prefix+sessionID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w: %w", core.ErrStoreOperationFailed, err)
	}

	out := make([]core.AttendanceRecord, 0, len(vals))
	for student, raw := range vals {
		var rec core.AttendanceRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record for %s: %w", student, err)
		}
		out = append(out, rec)
	}
	sortRecords(out)

	return out, nil
}
