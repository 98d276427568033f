package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long RedisStore keeps a snapshot.
const DefaultTTL = 5 * time.Minute

// Store is a persistent second tier for a Cache.
type Store[T any] interface {
	Load(ctx context.Context, id string) (T, bool, error)
	Save(ctx context.Context, id string, v T) error
	Delete(ctx context.Context, id string) error
}

// snapshotEncoding keeps sub-second precision and time zones in time.Time
// fields.
var snapshotEncoding = func() cbor.EncMode {
	em, err := cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// RedisStore persists CBOR-encoded entity snapshots under prefix:id with a
// TTL. Struct fields are keyed by their json tag names.
type RedisStore[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store. A ttl of zero uses DefaultTTL.
func NewRedisStore[T any](client *redis.Client, prefix string, ttl time.Duration) *RedisStore[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore[T]{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore[T]) key(id string) string {
	return s.prefix + ":" + id
}

// Load implements Store. A missing or expired key reports false.
func (s *RedisStore[T]) Load(ctx context.Context, id string) (T, bool, error) {
	var v T
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("redis get %s: %w", s.key(id), err)
	}
	if err := cbor.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("decode snapshot %s: %w", s.key(id), err)
	}
	return v, true, nil
}

// Save implements Store.
func (s *RedisStore[T]) Save(ctx context.Context, id string, v T) error {
	data, err := snapshotEncoding.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", s.key(id), err)
	}
	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(id), err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore[T]) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key(id), err)
	}
	return nil
}

// HealthCheck sends a PING to redis.
func (s *RedisStore[T]) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
