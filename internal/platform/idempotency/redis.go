package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix   = "idempotency:"
	defaultRedisAttempts = 3
)

// RedisOption customises RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides the redis key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// RedisStore keeps each record as a JSON string whose redis TTL mirrors ExpiresAt.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore constructs a redis-backed store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	store := &RedisStore{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + documentID(key)
}

func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	ttl = normalizeTTL(ttl)
	rkey := s.redisKey(key)

	record := pendingRecord(key, fingerprint, now, ttl)
	payload, err := json.Marshal(record)
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: encode record: %w", err)
	}
	created, err := s.client.SetNX(ctx, rkey, payload, ttl).Result()
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: reserve: %w", err)
	}
	if created {
		return Reservation{State: ReservationStateNew, Record: record}, nil
	}

	existing, found, err := s.load(ctx, rkey)
	if err != nil {
		return Reservation{}, err
	}
	if !found {
		// Expired between SETNX and GET; one more attempt settles it.
		created, err = s.client.SetNX(ctx, rkey, payload, ttl).Result()
		if err != nil {
			return Reservation{}, fmt.Errorf("idempotency: reserve: %w", err)
		}
		if created {
			return Reservation{State: ReservationStateNew, Record: record}, nil
		}
		return Reservation{State: ReservationStatePending, Record: record}, nil
	}
	if existing.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if existing.Status == StatusCompleted {
		return Reservation{State: ReservationStateCompleted, Record: existing}, nil
	}
	return Reservation{State: ReservationStatePending, Record: existing}, nil
}

func (s *RedisStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	ttl = normalizeTTL(ttl)
	rkey := s.redisKey(key)

	return s.watch(ctx, rkey, func(tx *redis.Tx) error {
		existing, found, err := decodeRecord(tx.Get(ctx, rkey))
		if err != nil {
			return err
		}
		record := Record{Key: key, Fingerprint: fingerprint}
		if found {
			if existing.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
			record = existing
		}
		payload, err := json.Marshal(completeRecord(record, resp, now, ttl))
		if err != nil {
			return fmt.Errorf("idempotency: encode record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rkey, payload, ttl)
			return nil
		})
		return err
	})
}

func (s *RedisStore) Release(ctx context.Context, key, fingerprint string) error {
	rkey := s.redisKey(key)
	return s.watch(ctx, rkey, func(tx *redis.Tx) error {
		existing, found, err := decodeRecord(tx.Get(ctx, rkey))
		if err != nil || !found || existing.Fingerprint != fingerprint {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, rkey)
			return nil
		})
		return err
	})
}

// CleanupExpired is a no-op: redis evicts records through their TTL.
func (s *RedisStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func (s *RedisStore) watch(ctx context.Context, rkey string, fn func(*redis.Tx) error) error {
	var err error
	for attempt := 0; attempt < defaultRedisAttempts; attempt++ {
		err = s.client.Watch(ctx, fn, rkey)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("idempotency: %s contended: %w", rkey, err)
}

func (s *RedisStore) load(ctx context.Context, rkey string) (Record, bool, error) {
	return decodeRecord(s.client.Get(ctx, rkey))
}

func decodeRecord(cmd *redis.StringCmd) (Record, bool, error) {
	raw, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("idempotency: load record: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, false, fmt.Errorf("idempotency: decode record: %w", err)
	}
	return record, true, nil
}
