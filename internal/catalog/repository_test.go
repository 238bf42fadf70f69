package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven/internal/platform/db/dbtest"
)

func TestRepositoryRepricesFreeProduct(t *testing.T) {
	pool := dbtest.Open(t)
	repo := NewRepository(pool)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	adminID := dbtest.User(t, pool, "admin@bookhaven.test")

	created, err := svc.Create(ctx, Input{SKU: "zine-1", Title: "Zine", Author: "Anon", Price: decimal.Zero}, adminID)
	require.NoError(t, err)
	require.Equal(t, "ZINE-1", created.SKU)

	updated, err := svc.Update(ctx, created.ID, Input{SKU: "zine-1", Title: "Zine", Author: "Anon", Price: decimal.NewFromInt(10)}, adminID)
	require.NoError(t, err)
	require.True(t, updated.Price.Equal(decimal.NewFromInt(10)))

	_, err = svc.Update(ctx, created.ID, Input{SKU: "zine-1", Title: "Zine", Author: "Anon", Price: decimal.RequireFromString("12.5")}, adminID)
	require.NoError(t, err)

	history, err := repo.PriceHistory(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].ChangePercentage)
	require.True(t, history[0].ChangePercentage.Equal(decimal.NewFromInt(25)))
	require.Nil(t, history[1].ChangePercentage)
	require.True(t, history[1].OldPrice.IsZero())
	require.Equal(t, adminID, history[1].ChangedBy)

	stored, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.Stock)
}

func TestRepositoryDuplicateSKU(t *testing.T) {
	pool := dbtest.Open(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, Product{SKU: "DUP", Title: "One", Price: decimal.NewFromInt(1), Active: true})
	require.NoError(t, err)
	_, err = repo.Create(ctx, Product{SKU: "DUP", Title: "Two", Price: decimal.NewFromInt(1), Active: true})
	require.ErrorIs(t, err, ErrSKUExists)
}
