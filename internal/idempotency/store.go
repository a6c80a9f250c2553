// Package idempotency lets clients retry POST /bookings safely. The first
// request carrying an Idempotency-Key is executed and its response stored in
// Redis; retries with the same key replay that response.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idem:"

// Record states.
const (
	StateInFlight  = "in_flight"
	StateCompleted = "completed"
)

// Record is what Redis holds for one key.
type Record struct {
	State       string    `json:"state"`
	Fingerprint string    `json:"fingerprint"`
	Status      int       `json:"status,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store keeps idempotency records in Redis.
type Store struct {
	rdb     *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

// NewStore creates a store whose completed records live for ttl. In-flight
// reservations expire after lockTTL so a crashed request cannot pin a key.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	lockTTL := time.Minute
	if ttl < lockTTL {
		lockTTL = ttl
	}
	return &Store{rdb: rdb, ttl: ttl, lockTTL: lockTTL}
}

func recordKey(scope, key string) string {
	return keyPrefix + scope + ":" + key
}

// Reserve claims key for a new request. When the key is already taken the
// existing record is returned with claimed=false.
func (s *Store) Reserve(ctx context.Context, scope, key, fingerprint string) (existing *Record, claimed bool, err error) {
	rec := Record{State: StateInFlight, Fingerprint: fingerprint, CreatedAt: time.Now().UTC()}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, false, fmt.Errorf("idempotency: marshal: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, recordKey(scope, key), data, s.lockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("idempotency: reserve: %w", err)
	}
	if ok {
		return nil, true, nil
	}
	existing, err = s.Get(ctx, scope, key)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// Expired between SETNX and GET; try once more.
		ok, err = s.rdb.SetNX(ctx, recordKey(scope, key), data, s.lockTTL).Result()
		if err != nil {
			return nil, false, fmt.Errorf("idempotency: reserve: %w", err)
		}
		if ok {
			return nil, true, nil
		}
		return &rec, false, nil
	}
	return existing, false, nil
}

// Get loads the record for key, or nil when there is none.
func (s *Store) Get(ctx context.Context, scope, key string) (*Record, error) {
	data, err := s.rdb.Get(ctx, recordKey(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency: get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("idempotency: unmarshal: %w", err)
	}
	return &rec, nil
}

// Complete stores the final response for key.
func (s *Store) Complete(ctx context.Context, scope, key string, rec Record) error {
	rec.State = StateCompleted
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("idempotency: marshal: %w", err)
	}
	if err := s.rdb.Set(ctx, recordKey(scope, key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: complete: %w", err)
	}
	return nil
}

// Release drops a reservation so the request can be retried.
func (s *Store) Release(ctx context.Context, scope, key string) error {
	if err := s.rdb.Del(ctx, recordKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}
