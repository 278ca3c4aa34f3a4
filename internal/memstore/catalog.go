package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-jewelry-shop/internal/catalog"
	"github.com/google/uuid"
)

type catalogView struct{ s *Store }

func (v catalogView) List(_ context.Context, f catalog.Filter) ([]catalog.Product, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := []catalog.Product{}
	for _, p := range v.s.products {
		if f.Match(p) {
			out = append(out, cloneProduct(p))
		}
	}
	sortProducts(out)
	return out, nil
}

func (v catalogView) Get(_ context.Context, id string) (catalog.Product, error) {
	id = catalog.CanonicalID(id)
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	p, ok := v.s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (v catalogView) Create(_ context.Context, p catalog.Product) (catalog.Product, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return catalog.Product{}, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := v.s.products[p.ID]; exists {
		return catalog.Product{}, fmt.Errorf("%w: id %s already exists", catalog.ErrInvalidProduct, p.ID)
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	v.s.products[p.ID] = cloneProduct(p)
	return cloneProduct(p), nil
}

func (v catalogView) Update(_ context.Context, p catalog.Product) (catalog.Product, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return catalog.Product{}, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	cur, ok := v.s.products[p.ID]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	v.s.products[p.ID] = cloneProduct(p)
	return cloneProduct(p), nil
}

func (v catalogView) Delete(_ context.Context, id string) error {
	id = catalog.CanonicalID(id)
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.products[id]; !ok {
		return catalog.ErrNotFound
	}
	for _, o := range v.s.orders {
		for _, it := range o.Items {
			if it.ProductID == id {
				return catalog.ErrInUse
			}
		}
	}
	delete(v.s.products, id)
	for token, items := range v.s.carts {
		kept := items[:0]
		for _, it := range items {
			if it.ProductID != id {
				kept = append(kept, it)
			}
		}
		v.s.carts[token] = kept
	}
	return nil
}

func (v catalogView) SetStock(_ context.Context, id string, stock int) (catalog.Product, error) {
	if stock < 0 {
		return catalog.Product{}, fmt.Errorf("%w: stock must not be negative", catalog.ErrInvalidProduct)
	}
	id = catalog.CanonicalID(id)
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	p, ok := v.s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	p.Stock = stock
	p.UpdatedAt = time.Now().UTC()
	v.s.products[id] = p
	return cloneProduct(p), nil
}
