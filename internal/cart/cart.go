// Package cart keeps per-customer carts keyed by an opaque token.
//
// Carts are replaced wholesale on every save and never reserve stock;
// availability is only checked when an order is placed.
package cart

import (
	"context"
	"strings"

	"github.com/ariefcatur/go-jewelry-shop/internal/catalog"
	"github.com/google/uuid"
)

type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Cart struct {
	Token string `json:"token"`
	Items []Item `json:"items"`
}

type Store interface {
	// Get returns the items for token; unknown or empty tokens yield an empty list.
	Get(ctx context.Context, token string) ([]Item, error)
	// Replace stores items as the whole cart, minting a token when token is not valid.
	Replace(ctx context.Context, token string, items []Item) (string, error)
	// Clear empties the cart. Clearing an unknown cart is not an error.
	Clear(ctx context.Context, token string) error
}

// NewToken mints an opaque cart token.
func NewToken() string { return uuid.NewString() }

// ValidToken reports whether token looks like one NewToken minted.
func ValidToken(token string) bool {
	_, err := uuid.Parse(token)
	return err == nil && len(token) == 36
}

// ResolveToken keeps a valid token and mints a fresh one otherwise.
func ResolveToken(token string) string {
	token = strings.TrimSpace(token)
	if ValidToken(token) {
		return token
	}
	return NewToken()
}

// Normalize drops entries with a blank product id or non-positive quantity
// and merges repeated products, keeping first-seen order. UUID product ids
// are canonicalized and each line is capped at catalog.MaxLineQuantity.
func Normalize(items []Item) []Item {
	out := make([]Item, 0, len(items))
	idx := make(map[string]int, len(items))
	for _, it := range items {
		id := catalog.CanonicalID(it.ProductID)
		if id == "" || it.Quantity <= 0 {
			continue
		}
		qty := min(it.Quantity, catalog.MaxLineQuantity)
		if i, ok := idx[id]; ok {
			out[i].Quantity = min(out[i].Quantity+qty, catalog.MaxLineQuantity)
			continue
		}
		idx[id] = len(out)
		out = append(out, Item{ProductID: id, Quantity: qty})
	}
	return out
}
