package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-jewelry-shop/internal/redisx"
	"github.com/redis/go-redis/v9"
)

type Idempotency interface {
	// Reserve claims key. When the key is already taken it returns the order id
	// stored for it, or "" if that placement has not finished yet.
	Reserve(ctx context.Context, key string) (orderID string, reserved bool, err error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

type RedisIdempotency struct{ Redis *redis.Client }

const idemPending = "pending"

func (r *RedisIdempotency) Reserve(ctx context.Context, key string) (string, bool, error) {
	k := fmt.Sprintf(redisx.KeyIdemOrderPlace, key)
	ok, err := r.Redis.SetNX(ctx, k, idemPending, redisx.TTLIdemPending).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	v, err := r.Redis.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		ok, err = r.Redis.SetNX(ctx, k, idemPending, redisx.TTLIdemPending).Result()
		return "", ok, err
	}
	if err != nil {
		return "", false, err
	}
	if v == idemPending {
		return "", false, nil
	}
	return v, false, nil
}

func (r *RedisIdempotency) Complete(ctx context.Context, key, orderID string) error {
	return r.Redis.Set(ctx, fmt.Sprintf(redisx.KeyIdemOrderPlace, key), orderID, redisx.TTLIdempotency).Err()
}

func (r *RedisIdempotency) Release(ctx context.Context, key string) error {
	return r.Redis.Del(ctx, fmt.Sprintf(redisx.KeyIdemOrderPlace, key)).Err()
}
