package cart_test

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-jewelry-shop/internal/cart"
	"github.com/ariefcatur/go-jewelry-shop/internal/catalog"
	"github.com/ariefcatur/go-jewelry-shop/internal/postgres/pgtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoPostgres(t *testing.T) {
	db := pgtest.Pool(t)
	ctx := context.Background()
	products := &catalog.Repo{DB: db}
	carts := &cart.Repo{DB: db}

	ring, err := products.Create(ctx, catalog.Product{Name: "Silver Ring", Price: decimal.NewFromInt(25), Stock: 3})
	require.NoError(t, err)
	chain, err := products.Create(ctx, catalog.Product{Name: "Gold Chain", Price: decimal.NewFromInt(120), Stock: 1})
	require.NoError(t, err)

	items, err := carts.Get(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, items)

	token, err := carts.Replace(ctx, "", []cart.Item{
		{ProductID: chain.ID, Quantity: 1},
		{ProductID: "not-a-uuid", Quantity: 1},
		{ProductID: "33333333-3333-4333-8333-333333333333", Quantity: 1},
		{ProductID: ring.ID, Quantity: 0},
		{ProductID: ring.ID, Quantity: 2},
	})
	require.NoError(t, err)

	items, err = carts.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, []cart.Item{{ProductID: chain.ID, Quantity: 1}, {ProductID: ring.ID, Quantity: 2}}, items)

	_, err = carts.Replace(ctx, token, []cart.Item{{ProductID: ring.ID, Quantity: 1}})
	require.NoError(t, err)
	items, err = carts.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, []cart.Item{{ProductID: ring.ID, Quantity: 1}}, items)

	require.NoError(t, carts.Clear(ctx, token))
	require.NoError(t, carts.Clear(ctx, token))
	items, err = carts.Get(ctx, token)
	require.NoError(t, err)
	assert.Empty(t, items)
}
