// Package memstore is the in-process data source: catalog, carts and orders
// kept in maps behind one mutex. It satisfies the same contracts as the
// Postgres repositories and is used for local runs, demos and tests.
package memstore

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-jewelry-shop/internal/cart"
	"github.com/ariefcatur/go-jewelry-shop/internal/catalog"
	"github.com/ariefcatur/go-jewelry-shop/internal/orders"
)

type Store struct {
	mu       sync.Mutex
	products map[string]catalog.Product
	carts    map[string][]cart.Item
	orders   map[string]orders.Order
}

func New() *Store {
	return &Store{
		products: map[string]catalog.Product{},
		carts:    map[string][]cart.Item{},
		orders:   map[string]orders.Order{},
	}
}

// Catalog, Carts and Orders are views over the same state.
func (s *Store) Catalog() catalog.Store { return catalogView{s} }
func (s *Store) Carts() cart.Store      { return cartView{s} }
func (s *Store) Orders() orders.Store   { return orderView{s} }

// Seed inserts products as-is, keeping their ids.
func (s *Store) Seed(ps ...catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, p := range ps {
		p.Normalize()
		if err := p.Validate(); err != nil {
			return fmt.Errorf("seed %q: %w", p.Name, err)
		}
		if p.ID == "" {
			return fmt.Errorf("seed %q: id is required", p.Name)
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	return nil
}

// SeedFile loads a JSON array of products.
func (s *Store) SeedFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var ps []catalog.Product
	if err := json.Unmarshal(b, &ps); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}
	return s.Seed(ps...)
}

func cloneProduct(p catalog.Product) catalog.Product {
	p.Images = append([]string(nil), p.Images...)
	if p.Images == nil {
		p.Images = []string{}
	}
	return p
}

func cloneOrder(o orders.Order) orders.Order {
	o.Items = append([]orders.Item(nil), o.Items...)
	if o.Items == nil {
		o.Items = []orders.Item{}
	}
	if o.ShippingAddress != nil {
		a := *o.ShippingAddress
		o.ShippingAddress = &a
	}
	return o
}

func sortProducts(ps []catalog.Product) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Featured != ps[j].Featured {
			return ps[i].Featured
		}
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.After(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
