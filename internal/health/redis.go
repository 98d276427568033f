package health

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisChecker pings the cache second tier.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a checker for client.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends PING.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
