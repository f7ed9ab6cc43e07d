package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"proofdeck/pkg/sentinel"
)

const redisKeyPrefix = "replay:"

// RedisGuard backs admission with Redis. SET NX PX is atomic server-side, so
// concurrent verifications of the same nonce race safely across processes.
type RedisGuard struct {
	client *redis.Client
}

// NewRedisGuard constructs a guard over an existing Redis client.
func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Admit(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := g.client.SetNX(ctx, redisKeyPrefix+key, "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("replay admit: %w", err)
	}
	if !ok {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (g *RedisGuard) Has(ctx context.Context, key string) (bool, error) {
	n, err := g.client.Exists(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("replay check: %w", err)
	}
	return n > 0, nil
}
