package checkout

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookhaven/bookhaven/internal/cart"
	"github.com/bookhaven/bookhaven/internal/inventory"
	"github.com/bookhaven/bookhaven/internal/orders"
	"github.com/bookhaven/bookhaven/internal/platform/db"
	"github.com/bookhaven/bookhaven/internal/vouchers"
)

// TxStores groups every repository a checkout writes through.
type TxStores struct {
	Cart      cart.TxRepository
	Orders    orders.TxRepository
	Inventory inventory.TxRepository
	Vouchers  vouchers.TxRepository
}

// UnitOfWork runs fn with all stores bound to one transaction.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStores) error) error
}

// Repository is the PostgreSQL unit of work.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx implements UnitOfWork.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStores) error) error {
	if r == nil {
		return errors.New("checkout repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, TxStores{
			Cart:      cart.NewTxRepository(tx),
			Orders:    orders.NewTxRepository(tx),
			Inventory: inventory.NewTxRepository(tx),
			Vouchers:  vouchers.NewTxRepository(tx),
		})
	})
}
