package orders

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ariefcatur/go-jewelry-shop/internal/catalog"
	"github.com/shopspring/decimal"
)

type Customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type LineInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type PlaceOrderInput struct {
	Customer        Customer
	Items           []LineInput
	ShippingAddress *Address
	Notes           string
	CartToken       string
	IdempotencyKey  string
	TraceID         string
}

type Item struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type Order struct {
	ID              string          `json:"id"`
	Customer        Customer        `json:"customer"`
	ShippingAddress *Address        `json:"shippingAddress,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Items           []Item          `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

func (f ListFilter) clamp() ListFilter {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Tx is the unit of work the order placer runs in. Implementations must
// hold row locks (or an equivalent) from LockProducts until commit.
type Tx interface {
	// LockProducts returns the products that exist among ids, locked for update.
	LockProducts(ctx context.Context, ids []string) (map[string]catalog.Product, error)
	InsertOrder(ctx context.Context, o Order) error
	DecrementStock(ctx context.Context, productID string, qty int) error
	ClearCart(ctx context.Context, token string) error
}

type Store interface {
	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	// UpdateStatus returns the updated order and the status it had before.
	UpdateStatus(ctx context.Context, id string, s Status) (Order, Status, error)
}

func (in *PlaceOrderInput) normalize() {
	c := &in.Customer
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	in.Notes = strings.TrimSpace(in.Notes)
	for i := range in.Items {
		in.Items[i].ProductID = catalog.CanonicalID(in.Items[i].ProductID)
	}
}

func (in PlaceOrderInput) validate() error {
	c := in.Customer
	switch {
	case c.FirstName == "":
		return validationErr("first name is required")
	case c.LastName == "":
		return validationErr("last name is required")
	case c.Email == "":
		return validationErr("email is required")
	case !strings.Contains(c.Email, "@"):
		return validationErr("email is invalid")
	case len(in.Items) == 0:
		return validationErr("order must contain at least one item")
	}
	merged := make(map[string]int, len(in.Items))
	for i, it := range in.Items {
		if it.ProductID == "" {
			return validationErr("item %d: product id is required", i)
		}
		if it.Quantity <= 0 {
			return validationErr("item %d: quantity must be positive", i)
		}
		// both operands are capped, so the sum cannot overflow
		if it.Quantity > catalog.MaxLineQuantity || merged[it.ProductID]+it.Quantity > catalog.MaxLineQuantity {
			return validationErr("item %d: at most %d units of one product per order", i, catalog.MaxLineQuantity)
		}
		merged[it.ProductID] += it.Quantity
	}
	return nil
}

// mergeLines folds repeated products into one line, keeping first-seen order.
// Callers validate first so merged quantities stay within MaxLineQuantity.
func mergeLines(items []LineInput) []LineInput {
	out := make([]LineInput, 0, len(items))
	idx := make(map[string]int, len(items))
	for _, it := range items {
		if i, ok := idx[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}

func sortedProductIDs(lines []LineInput) []string {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	sort.Strings(ids)
	return ids
}
