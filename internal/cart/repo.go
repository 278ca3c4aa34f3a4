package cart

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

func (r *Repo) Get(ctx context.Context, token string) ([]Item, error) {
	out := []Item{}
	if !ValidToken(token) {
		return out, nil
	}
	rows, err := r.DB.Query(ctx, `SELECT product_id::text, quantity FROM cart_items
		WHERE cart_token=$1 ORDER BY position`, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) Replace(ctx context.Context, token string, items []Item) (string, error) {
	token = ResolveToken(token)
	items = Normalize(items)

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `INSERT INTO carts(token) VALUES ($1)
		ON CONFLICT (token) DO UPDATE SET updated_at = now()`, token); err != nil {
		return "", fmt.Errorf("upsert cart: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_token=$1`, token); err != nil {
		return "", fmt.Errorf("clear cart items: %w", err)
	}
	for i, it := range items {
		// Unknown products, including malformed ids, are skipped rather than rejected.
		if _, err := tx.Exec(ctx, `
			INSERT INTO cart_items(cart_token, product_id, quantity, position)
			SELECT $1, p.id, $3, $4 FROM products p WHERE p.id::text = $2`,
			token, it.ProductID, it.Quantity, i); err != nil {
			return "", fmt.Errorf("insert cart item: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return token, nil
}

func (r *Repo) Clear(ctx context.Context, token string) error {
	if !ValidToken(token) {
		return nil
	}
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE cart_token=$1`, token)
	return err
}
