package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven/internal/inventory"
	"github.com/bookhaven/bookhaven/internal/platform/db"
	"github.com/bookhaven/bookhaven/internal/platform/db/dbtest"
	"github.com/bookhaven/bookhaven/internal/shared"
)

func TestRepositoryStoresItemsWithoutPrice(t *testing.T) {
	pool := dbtest.Open(t)
	repo := inventory.NewRepository(pool)
	ctx := context.Background()
	productID := dbtest.Product(t, pool, "BK-1", decimal.NewFromInt(50000), 10)

	var header inventory.Header
	err := repo.WithTx(ctx, func(ctx context.Context, tx inventory.TxRepository) error {
		var err error
		header, err = inventory.Apply(ctx, tx, inventory.ApplyInput{
			Type:          inventory.TransactionTypeStocktake,
			ReferenceType: inventory.ReferenceStocktake,
			Items:         []inventory.ItemInput{{ProductID: productID, ChangeType: inventory.ChangeMinus, Quantity: 2}},
		})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 8, dbtest.Stock(t, pool, productID))

	loaded, err := repo.GetHeader(ctx, header.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	require.Nil(t, loaded.Items[0].UnitPrice)
	require.Nil(t, loaded.Items[0].TotalPrice)

	err = repo.WithTx(ctx, func(ctx context.Context, tx inventory.TxRepository) error {
		_, err := inventory.Apply(ctx, tx, inventory.ApplyInput{
			Type:          inventory.TransactionTypeIn,
			ReferenceType: inventory.ReferenceManual,
			Items:         []inventory.ItemInput{{ProductID: productID, ChangeType: inventory.ChangePlus, Quantity: 3, UnitPrice: price(40000)}},
		})
		return err
	})
	require.NoError(t, err)

	headers, total, err := repo.ListHeaders(ctx, inventory.ListFilter{ProductID: productID})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, inventory.TransactionTypeIn, headers[0].Type)
	require.True(t, headers[0].Items[0].TotalPrice.Equal(decimal.NewFromInt(120000)))
}

func TestRepositoryFreeOrderLineRoundTrip(t *testing.T) {
	pool := dbtest.Open(t)
	repo := inventory.NewRepository(pool)
	ctx := context.Background()
	productID := dbtest.Product(t, pool, "FREE-1", decimal.Zero, 3)

	err := repo.WithTx(ctx, func(ctx context.Context, tx inventory.TxRepository) error {
		_, err := inventory.ApplyOutForOrder(ctx, tx, 77, []inventory.OrderLine{{ProductID: productID, Quantity: 1, UnitPrice: decimal.Zero}}, 0)
		return err
	})
	require.NoError(t, err)
	err = repo.WithTx(ctx, func(ctx context.Context, tx inventory.TxRepository) error {
		_, err := inventory.ReverseOrder(ctx, tx, 77, 0)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 3, dbtest.Stock(t, pool, productID))
}

func TestRepositoryUniqueIndexesGuardOrderReferences(t *testing.T) {
	pool := dbtest.Open(t)
	ctx := context.Background()
	insert := func(txType inventory.TransactionType) error {
		return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
			_, err := inventory.NewTxRepository(tx).InsertHeader(ctx, inventory.Header{
				Type:          txType,
				ReferenceType: inventory.ReferenceOrder,
				ReferenceID:   42,
			})
			return err
		})
	}

	require.NoError(t, insert(inventory.TransactionTypeOut))
	require.ErrorIs(t, insert(inventory.TransactionTypeOut), inventory.ErrDuplicateOutTransaction)
	require.NoError(t, insert(inventory.TransactionTypeIn))
	require.ErrorIs(t, insert(inventory.TransactionTypeIn), inventory.ErrAlreadyCompensated)

	// manual headers without a reference are unconstrained
	for i := 0; i < 2; i++ {
		err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
			_, err := inventory.NewTxRepository(tx).InsertHeader(ctx, inventory.Header{
				Type:          inventory.TransactionTypeOut,
				ReferenceType: inventory.ReferenceManual,
			})
			return err
		})
		require.NoError(t, err)
	}
}

func TestRepositoryConditionalDecrementUnderConcurrency(t *testing.T) {
	pool := dbtest.Open(t)
	repo := inventory.NewRepository(pool)
	ctx := context.Background()
	productID := dbtest.Product(t, pool, "LAST-1", decimal.NewFromInt(70000), 1)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		okN    int
		failed []error
	)
	for order := int64(1); order <= 2; order++ {
		wg.Add(1)
		go func(orderID int64) {
			defer wg.Done()
			err := repo.WithTx(ctx, func(ctx context.Context, tx inventory.TxRepository) error {
				_, err := inventory.ApplyOutForOrder(ctx, tx, orderID, []inventory.OrderLine{{ProductID: productID, Quantity: 1, UnitPrice: decimal.NewFromInt(70000)}}, 0)
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				okN++
				return
			}
			failed = append(failed, err)
		}(order)
	}
	wg.Wait()

	require.Equal(t, 1, okN)
	require.Len(t, failed, 1)
	require.True(t, errors.Is(failed[0], inventory.ErrInsufficientInventory), "unexpected error: %v", failed[0])
	require.Equal(t, 0, dbtest.Stock(t, pool, productID))

	_, total, err := repo.ListHeaders(ctx, inventory.ListFilter{ProductID: productID})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestRepositoryUnknownProductAndDrift(t *testing.T) {
	pool := dbtest.Open(t)
	repo := inventory.NewRepository(pool)
	ctx := context.Background()
	seeded := dbtest.Product(t, pool, "DRIFT-1", decimal.NewFromInt(10000), 4)

	err := repo.WithTx(ctx, func(ctx context.Context, tx inventory.TxRepository) error {
		_, err := inventory.Apply(ctx, tx, inventory.ApplyInput{
			Type:          inventory.TransactionTypeDamaged,
			ReferenceType: inventory.ReferenceManual,
			Items:         []inventory.ItemInput{{ProductID: seeded + 1000, ChangeType: inventory.ChangeMinus, Quantity: 1}},
		})
		return err
	})
	require.ErrorIs(t, err, shared.ErrProductNotFound)

	drift, err := repo.Drift(ctx)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	require.Equal(t, inventory.Drift{ProductID: seeded, CachedStock: 4, LedgerStock: 0}, drift[0])
}
