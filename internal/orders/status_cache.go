package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-jewelry-shop/internal/redisx"
	"github.com/redis/go-redis/v9"
)

type StatusCache interface {
	Put(ctx context.Context, orderID string, s Status) error
	Lookup(ctx context.Context, orderID string) (Status, bool, error)
	Forget(ctx context.Context, orderID string) error
}

type RedisStatusCache struct{ Redis *redis.Client }

type cachedStatus struct {
	Status Status `json:"status"`
}

func (c *RedisStatusCache) Put(ctx context.Context, orderID string, s Status) error {
	b, _ := json.Marshal(cachedStatus{Status: s})
	return c.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID), b, redisx.TTLStatusCache).Err()
}

func (c *RedisStatusCache) Lookup(ctx context.Context, orderID string) (Status, bool, error) {
	b, err := c.Redis.Get(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	var cs cachedStatus
	if err := json.Unmarshal(b, &cs); err != nil || !cs.Status.Valid() {
		return "", false, nil
	}
	return cs.Status, true, nil
}

func (c *RedisStatusCache) Forget(ctx context.Context, orderID string) error {
	return c.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
}
