package vouchers_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven/internal/platform/db/dbtest"
	"github.com/bookhaven/bookhaven/internal/vouchers"
)

func insertOrder(t *testing.T, pool *pgxpool.Pool, userID int64) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `INSERT INTO orders (user_id, subtotal, total, payment_status, fulfillment_status, order_status, payment_method, fulfillment_method)
VALUES ($1, 0, 0, 'pending', 'shipping', 'confirmed', 'COD', 'DELIVERY') RETURNING id`, userID).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestRepositoryConcurrentCommitsRespectUsageLimit(t *testing.T) {
	pool := dbtest.Open(t)
	repo := vouchers.NewRepository(pool)
	ctx := context.Background()

	v := activeVoucher("LIMITED")
	v.UsageLimit = intPtr(2)
	v, err := repo.Create(ctx, v)
	require.NoError(t, err)

	const attempts = 6
	orderIDs := make([]int64, attempts)
	userIDs := make([]int64, attempts)
	for i := range orderIDs {
		userIDs[i] = dbtest.User(t, pool, "buyer"+string(rune('a'+i))+"@bookhaven.test")
		orderIDs[i] = insertOrder(t, pool, userIDs[i])
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		limited int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.WithTx(ctx, func(ctx context.Context, tx vouchers.TxRepository) error {
				_, err := vouchers.CommitUsage(ctx, tx, v.ID, userIDs[i], orderIDs[i])
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, vouchers.ErrVoucherUsageLimitReached):
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 2, ok)
	require.Equal(t, attempts-2, limited)
	stored, err := repo.Get(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.UsedCount)
}

func TestRepositoryUsageUniquePerOrder(t *testing.T) {
	pool := dbtest.Open(t)
	repo := vouchers.NewRepository(pool)
	ctx := context.Background()

	v, err := repo.Create(ctx, activeVoucher("ONCE"))
	require.NoError(t, err)
	userID := dbtest.User(t, pool, "reader@bookhaven.test")
	orderID := insertOrder(t, pool, userID)

	commit := func() error {
		return repo.WithTx(ctx, func(ctx context.Context, tx vouchers.TxRepository) error {
			_, err := tx.InsertUsage(ctx, vouchers.Usage{VoucherID: v.ID, UserID: userID, OrderID: orderID})
			return err
		})
	}
	require.NoError(t, commit())
	require.ErrorIs(t, commit(), vouchers.ErrDuplicateVoucherUsage)

	found, err := repo.Reader().GetByCode(ctx, "ONCE")
	require.NoError(t, err)
	require.Equal(t, v.ID, found.ID)
	_, err = repo.Reader().GetByCode(ctx, "MISSING")
	require.ErrorIs(t, err, vouchers.ErrVoucherNotFound)

	_, err = repo.Create(ctx, activeVoucher("ONCE"))
	require.ErrorIs(t, err, vouchers.ErrVoucherCodeExists)
}
