package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("product not found")
	ErrInvalidProduct = errors.New("invalid product")
	ErrInUse          = errors.New("product is referenced by orders")
)

// Known categories. Others are stored as-is but the storefront groups them under "other".
const (
	CategoryRing     = "ring"
	CategoryNecklace = "necklace"
	CategoryBracelet = "bracelet"
	CategoryEarrings = "earrings"
	CategoryOther    = "other"
)

// MaxLineQuantity caps the units of one product in a cart or an order.
const MaxLineQuantity = 10000

// CanonicalID trims id and rewrites UUIDs in their lower-case hyphenated
// form. Other ids are returned trimmed.
func CanonicalID(id string) string {
	id = strings.TrimSpace(id)
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	Images      []string        `json:"images"`
	Featured    bool            `json:"featured"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Normalize trims text fields and fills defaults before validation.
func (p *Product) Normalize() {
	p.ID = CanonicalID(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	if p.Category == "" {
		p.Category = CategoryOther
	}
	if p.Images == nil {
		p.Images = []string{}
	}
}

func (p Product) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}
	return nil
}

type Filter struct {
	Category     string
	FeaturedOnly bool
}

func (f Filter) Match(p Product) bool {
	if f.Category != "" && !strings.EqualFold(f.Category, p.Category) {
		return false
	}
	return !f.FeaturedOnly || p.Featured
}

// Store is the catalog persistence contract. Stock decrements for orders
// happen inside the order transaction, not through this interface.
type Store interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id string) error
	SetStock(ctx context.Context, id string, stock int) (Product, error)
}
