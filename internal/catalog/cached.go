package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-jewelry-shop/internal/redisx"
	"golang.org/x/sync/singleflight"
)

// CachedStore serves reads from Redis and invalidates on writes.
// Cache failures degrade to the underlying store.
type CachedStore struct {
	Store
	cache *redisx.Cache
	log   *slog.Logger
	group singleflight.Group
}

var _ Store = (*CachedStore)(nil)

func NewCachedStore(s Store, cache *redisx.Cache, log *slog.Logger) *CachedStore {
	return &CachedStore{Store: s, cache: cache, log: log}
}

func productKey(id string) string { return "product:" + CanonicalID(id) }

func listKey(f Filter) string { return fmt.Sprintf("products:%s:%t", f.Category, f.FeaturedOnly) }

func (c *CachedStore) List(ctx context.Context, f Filter) ([]Product, error) {
	key := listKey(f)
	var out []Product
	if hit, err := c.cache.Get(ctx, key, &out); err != nil {
		c.log.Warn("catalog cache read", "key", key, "err", err)
	} else if hit {
		return out, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		ps, err := c.Store.List(ctx, f)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, key, ps); err != nil {
			c.log.Warn("catalog cache write", "key", key, "err", err)
		}
		return ps, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Product), nil
}

func (c *CachedStore) Get(ctx context.Context, id string) (Product, error) {
	key := productKey(id)
	var p Product
	if hit, err := c.cache.Get(ctx, key, &p); err != nil {
		c.log.Warn("catalog cache read", "key", key, "err", err)
	} else if hit {
		return p, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		p, err := c.Store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, key, p); err != nil {
			c.log.Warn("catalog cache write", "key", key, "err", err)
		}
		return p, nil
	})
	if err != nil {
		return Product{}, err
	}
	return v.(Product), nil
}

func (c *CachedStore) Create(ctx context.Context, p Product) (Product, error) {
	out, err := c.Store.Create(ctx, p)
	if err != nil {
		return out, err
	}
	c.invalidate(ctx, out.ID)
	return out, nil
}

func (c *CachedStore) Update(ctx context.Context, p Product) (Product, error) {
	out, err := c.Store.Update(ctx, p)
	if err != nil {
		return out, err
	}
	c.invalidate(ctx, out.ID)
	return out, nil
}

func (c *CachedStore) Delete(ctx context.Context, id string) error {
	if err := c.Store.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CachedStore) SetStock(ctx context.Context, id string, stock int) (Product, error) {
	out, err := c.Store.SetStock(ctx, id, stock)
	if err != nil {
		return out, err
	}
	c.invalidate(ctx, id)
	return out, nil
}

// InvalidateProducts drops the given products and every cached listing.
func (c *CachedStore) InvalidateProducts(ctx context.Context, ids ...string) error {
	return NewInvalidator(c.cache).InvalidateProducts(ctx, ids...)
}

// Invalidator clears catalog cache entries without a backing store, for
// processes that only react to stock events.
type Invalidator struct{ cache *redisx.Cache }

func NewInvalidator(cache *redisx.Cache) *Invalidator { return &Invalidator{cache: cache} }

func (i *Invalidator) InvalidateProducts(ctx context.Context, ids ...string) error {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	if err := i.cache.Delete(ctx, keys...); err != nil {
		return err
	}
	return i.cache.DeletePattern(ctx, "products:*")
}

func (c *CachedStore) invalidate(ctx context.Context, id string) {
	if err := c.InvalidateProducts(ctx, id); err != nil {
		c.log.Warn("catalog cache invalidate", "product_id", id, "err", err)
	}
}
