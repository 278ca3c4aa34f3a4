package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const productColumns = `id::text, name, description, price, stock, category, images, featured, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.Images, &p.Featured, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repo) List(ctx context.Context, f Filter) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE ($1 = '' OR category = lower($1)) AND (NOT $2 OR featured)
		ORDER BY featured DESC, created_at DESC, id`, f.Category, f.FeaturedOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, ErrNotFound
	}
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) Create(ctx context.Context, p Product) (Product, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	return scanProduct(r.DB.QueryRow(ctx, `
		INSERT INTO products(id, name, description, price, stock, category, images, featured, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
		RETURNING `+productColumns,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.Images, p.Featured, now))
}

func (r *Repo) Update(ctx context.Context, p Product) (Product, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		return Product{}, ErrNotFound
	}
	out, err := scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products SET name=$2, description=$3, price=$4, stock=$5, category=$6, images=$7, featured=$8, updated_at=now()
		WHERE id=$1
		RETURNING `+productColumns,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.Images, p.Featured))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return out, err
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrInUse
	}
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) SetStock(ctx context.Context, id string, stock int) (Product, error) {
	if stock < 0 {
		return Product{}, fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, ErrNotFound
	}
	p, err := scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products SET stock=$2, updated_at=now() WHERE id=$1
		RETURNING `+productColumns, id, stock))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}
