package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-jewelry-shop/internal/redisx"
	"github.com/redis/go-redis/v9"
)

type RedisRevocations struct{ Redis *redis.Client }

func (r *RedisRevocations) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.Redis.Set(ctx, fmt.Sprintf(redisx.KeySessionRevoked, sessionID), "1", ttl).Err()
}

func (r *RedisRevocations) Revoked(ctx context.Context, sessionID string) (bool, error) {
	return redisx.Exists(ctx, r.Redis, fmt.Sprintf(redisx.KeySessionRevoked, sessionID))
}
