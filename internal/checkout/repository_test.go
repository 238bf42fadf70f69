package checkout_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven/internal/cart"
	"github.com/bookhaven/bookhaven/internal/checkout"
	"github.com/bookhaven/bookhaven/internal/inventory"
	"github.com/bookhaven/bookhaven/internal/orders"
	"github.com/bookhaven/bookhaven/internal/platform/db/dbtest"
	"github.com/bookhaven/bookhaven/internal/shared"
	"github.com/bookhaven/bookhaven/internal/shipping"
	"github.com/bookhaven/bookhaven/internal/vouchers"
)

type pgFixture struct {
	pool    *pgxpool.Pool
	cart    *cart.Repository
	ledger  *inventory.Repository
	orders  *orders.Repository
	service *checkout.Service
}

func newPGFixture(t *testing.T) *pgFixture {
	pool := dbtest.Open(t)
	policy := shipping.Policy{BaseFee: decimal.NewFromInt(30000), FreeThreshold: decimal.NewFromInt(500000)}
	svc := checkout.NewService(checkout.NewRepository(pool), policy, shared.NewIdempotencyStore(pool), nil, nil, nil).
		WithClock(func() time.Time { return now })
	return &pgFixture{
		pool:    pool,
		cart:    cart.NewRepository(pool),
		ledger:  inventory.NewRepository(pool),
		orders:  orders.NewRepository(pool),
		service: svc,
	}
}

func (f *pgFixture) countOrders(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM orders`).Scan(&n))
	return n
}

func TestPostgresCheckoutAndCancel(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	userID := dbtest.User(t, f.pool, "reader@bookhaven.test")
	dune := dbtest.Product(t, f.pool, "DUNE", decimal.NewFromInt(90000), 5)
	zine := dbtest.Product(t, f.pool, "ZINE", decimal.Zero, 2)
	_, err := vouchers.NewRepository(f.pool).Create(ctx, fixedVoucher("WELCOME10", 10000, 50000))
	require.NoError(t, err)

	require.NoError(t, f.cart.Upsert(ctx, userID, dune, 2))
	require.NoError(t, f.cart.Upsert(ctx, userID, zine, 1))

	req := delivery()
	req.VoucherCode = "welcome10"
	req.IdempotencyKey = "k-1"
	order, err := f.service.Checkout(ctx, userID, req)
	require.NoError(t, err)
	require.Equal(t, "180000", order.Subtotal.String())
	require.Equal(t, "200000", order.Total.String())
	require.Equal(t, 3, dbtest.Stock(t, f.pool, dune))
	require.Equal(t, 1, dbtest.Stock(t, f.pool, zine))

	lines, err := f.cart.Lines(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, lines)

	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	require.True(t, stored.TotalConsistent())

	_, err = f.service.Checkout(ctx, userID, req)
	require.ErrorIs(t, err, checkout.ErrDuplicateCheckout)

	orderSvc := orders.NewService(f.orders, orders.Options{})
	owner := shared.Principal{UserID: userID, Role: shared.RoleCustomer}
	cancelled, err := orderSvc.Cancel(ctx, owner, order.ID, "changed my mind")
	require.NoError(t, err)
	require.Equal(t, orders.OrderCancelled, cancelled.Status.Order)
	require.Equal(t, 5, dbtest.Stock(t, f.pool, dune))
	require.Equal(t, 2, dbtest.Stock(t, f.pool, zine))

	headers, total, err := f.ledger.ListHeaders(ctx, inventory.ListFilter{ReferenceType: inventory.ReferenceOrder, ReferenceID: order.ID})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, inventory.TransactionTypeIn, headers[0].Type)
	require.Equal(t, inventory.TransactionTypeOut, headers[1].Type)

	_, err = orderSvc.Cancel(ctx, owner, order.ID, "again")
	require.Error(t, err)
	require.Equal(t, 5, dbtest.Stock(t, f.pool, dune))

	drift, err := f.ledger.Drift(ctx)
	require.NoError(t, err)
	require.Len(t, drift, 2, "seeded stock has no opening ledger entry")
}

func TestPostgresConcurrentCheckoutsForLastUnit(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	book := dbtest.Product(t, f.pool, "LAST", decimal.NewFromInt(120000), 1)
	buyers := []int64{
		dbtest.User(t, f.pool, "first@bookhaven.test"),
		dbtest.User(t, f.pool, "second@bookhaven.test"),
	}
	for _, userID := range buyers {
		require.NoError(t, f.cart.Upsert(ctx, userID, book, 1))
	}

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(buyers))
	)
	for i, userID := range buyers {
		wg.Add(1)
		go func(i int, userID int64) {
			defer wg.Done()
			_, errs[i] = f.service.Checkout(ctx, userID, delivery())
		}(i, userID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, inventory.ErrInsufficientInventory)
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 0, dbtest.Stock(t, f.pool, book))
	require.Equal(t, 1, f.countOrders(t))

	remaining := 0
	for _, userID := range buyers {
		lines, err := f.cart.Lines(ctx, userID)
		require.NoError(t, err)
		remaining += len(lines)
	}
	require.Equal(t, 1, remaining)
}
