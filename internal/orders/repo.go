package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-jewelry-shop/internal/catalog"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

func (r *Repo) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct{ tx pgx.Tx }

// LockProducts takes row locks in id order so concurrent orders over the
// same products cannot deadlock.
func (t *pgTx) LockProducts(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	out := make(map[string]catalog.Product, len(valid))
	if len(valid) == 0 {
		return out, nil
	}
	rows, err := t.tx.Query(ctx, `SELECT id::text, name, price, stock FROM products
		WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`, valid)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Callers look products up by the ids they sent; map canonical text back.
	for _, id := range valid {
		if _, ok := out[id]; ok {
			continue
		}
		if u, err := uuid.Parse(id); err == nil {
			if p, ok := out[u.String()]; ok {
				out[id] = p
			}
		}
	}
	return out, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o Order) error {
	var addr []byte
	if o.ShippingAddress != nil {
		b, err := json.Marshal(o.ShippingAddress)
		if err != nil {
			return err
		}
		addr = b
	}
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, first_name, last_name, email, phone, shipping_address, notes, status, total, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		o.ID, o.Customer.FirstName, o.Customer.LastName, o.Customer.Email, o.Customer.Phone,
		addr, o.Notes, string(o.Status), o.Total, o.CreatedAt, o.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for _, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, product_name, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (t *pgTx) DecrementStock(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return validationErr("decrement of %d for %s", qty, productID)
	}
	ct, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2`, productID, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return &InsufficientStockError{ProductID: productID, ProductName: productID, Requested: qty}
	}
	return nil
}

func (t *pgTx) ClearCart(ctx context.Context, token string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_token=$1`, token); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

const orderColumns = `id::text, first_name, last_name, email, phone, shipping_address, notes, status, total, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		addr   []byte
		status string
	)
	err := row.Scan(&o.ID, &o.Customer.FirstName, &o.Customer.LastName, &o.Customer.Email, &o.Customer.Phone,
		&addr, &o.Notes, &status, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	if len(addr) > 0 {
		var a Address
		if err := json.Unmarshal(addr, &a); err != nil {
			return Order{}, fmt.Errorf("decode shipping address: %w", err)
		}
		o.ShippingAddress = &a
	}
	return o, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, ErrOrderNotFound
	}
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return Order{}, err
	}
	o.Items = items[o.ID]
	if o.Items == nil {
		o.Items = []Item{}
	}
	return o, nil
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Order, error) {
	f = f.clamp()
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	ids := []string{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
		if out[i].Items == nil {
			out[i].Items = []Item{}
		}
	}
	return out, nil
}

func (r *Repo) loadItems(ctx context.Context, orderIDs []string) (map[string][]Item, error) {
	out := map[string][]Item{}
	if len(orderIDs) == 0 {
		return out, nil
	}
	rows, err := r.DB.Query(ctx, `SELECT order_id::text, product_id::text, product_name, quantity, unit_price
		FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			it      Item
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, s Status) (Order, Status, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, "", ErrOrderNotFound
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prev string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, "", ErrOrderNotFound
	}
	if err != nil {
		return Order{}, "", err
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, string(s)); err != nil {
		return Order{}, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, "", err
	}
	o, err := r.Get(ctx, id)
	return o, Status(prev), err
}
