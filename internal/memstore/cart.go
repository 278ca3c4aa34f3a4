package memstore

import (
	"context"

	"github.com/ariefcatur/go-jewelry-shop/internal/cart"
)

type cartView struct{ s *Store }

func (v cartView) Get(_ context.Context, token string) ([]cart.Item, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return append([]cart.Item{}, v.s.carts[token]...), nil
}

func (v cartView) Replace(_ context.Context, token string, items []cart.Item) (string, error) {
	token = cart.ResolveToken(token)
	items = cart.Normalize(items)

	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	kept := make([]cart.Item, 0, len(items))
	for _, it := range items {
		if _, ok := v.s.products[it.ProductID]; ok {
			kept = append(kept, it)
		}
	}
	v.s.carts[token] = kept
	return token, nil
}

func (v cartView) Clear(_ context.Context, token string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.carts[token]; ok {
		v.s.carts[token] = []cart.Item{}
	}
	return nil
}
