package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ariefcatur/go-jewelry-shop/internal/catalog"
	"github.com/ariefcatur/go-jewelry-shop/internal/cart"
	"github.com/ariefcatur/go-jewelry-shop/internal/orders"
)

type orderView struct{ s *Store }

// WithTx holds the store lock for the whole unit of work and applies the
// staged writes only when fn succeeds.
func (v orderView) WithTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	tx := &memTx{s: v.s, stock: map[string]int{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	for id, stock := range tx.stock {
		p := v.s.products[id]
		p.Stock = stock
		p.UpdatedAt = now
		v.s.products[id] = p
	}
	for _, o := range tx.orders {
		v.s.orders[o.ID] = o
	}
	for _, token := range tx.clearedCarts {
		if _, ok := v.s.carts[token]; ok {
			v.s.carts[token] = []cart.Item{}
		}
	}
	return nil
}

type memTx struct {
	s            *Store
	stock        map[string]int
	orders       []orders.Order
	clearedCarts []string
}

func (t *memTx) currentStock(id string) int {
	if n, ok := t.stock[id]; ok {
		return n
	}
	return t.s.products[id].Stock
}

func (t *memTx) LockProducts(_ context.Context, ids []string) (map[string]catalog.Product, error) {
	out := make(map[string]catalog.Product, len(ids))
	for _, id := range ids {
		p, ok := t.s.products[id]
		if !ok {
			continue
		}
		p = cloneProduct(p)
		p.Stock = t.currentStock(id)
		out[id] = p
	}
	return out, nil
}

func (t *memTx) InsertOrder(_ context.Context, o orders.Order) error {
	if _, exists := t.s.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	t.orders = append(t.orders, cloneOrder(o))
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: decrement of %d for %s", orders.ErrValidation, qty, productID)
	}
	p, ok := t.s.products[productID]
	if !ok {
		return &orders.ProductNotFoundError{ProductID: productID}
	}
	cur := t.currentStock(productID)
	if cur < qty {
		return &orders.InsufficientStockError{ProductID: productID, ProductName: p.Name, Requested: qty, Available: cur}
	}
	t.stock[productID] = cur - qty
	return nil
}

func (t *memTx) ClearCart(_ context.Context, token string) error {
	t.clearedCarts = append(t.clearedCarts, token)
	return nil
}

func (v orderView) Get(_ context.Context, id string) (orders.Order, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	o, ok := v.s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (v orderView) List(_ context.Context, f orders.ListFilter) ([]orders.Order, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	all := make([]orders.Order, 0, len(v.s.orders))
	for _, o := range v.s.orders {
		if f.Status == "" || o.Status == f.Status {
			all = append(all, cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	if f.Offset >= len(all) {
		return []orders.Order{}, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all, nil
}

func (v orderView) UpdateStatus(_ context.Context, id string, st orders.Status) (orders.Order, orders.Status, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	o, ok := v.s.orders[id]
	if !ok {
		return orders.Order{}, "", orders.ErrOrderNotFound
	}
	prev := o.Status
	o.Status = st
	o.UpdatedAt = time.Now().UTC()
	v.s.orders[id] = o
	return cloneOrder(o), prev, nil
}
