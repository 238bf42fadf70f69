package invoices

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const invoiceColumns = `i.id, i.order_id, o.user_id, i.number, i.amount, i.issued_at`

// Repository persists invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// OrderTotal returns the owner and total of an order.
func (r *Repository) OrderTotal(ctx context.Context, orderID int64) (int64, decimal.Decimal, error) {
	var (
		userID int64
		total  decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, `SELECT user_id, total FROM orders WHERE id=$1`, orderID).Scan(&userID, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, decimal.Zero, ErrInvoiceNotFound
	}
	return userID, total, err
}

// Insert stores the invoice unless the order already has one. created reports whether a row was written.
func (r *Repository) Insert(ctx context.Context, inv Invoice) (Invoice, bool, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO invoices (order_id, number, amount, issued_at)
VALUES ($1,$2,$3,$4) ON CONFLICT (order_id) DO NOTHING RETURNING id`,
		inv.OrderID, inv.Number, inv.Amount, inv.IssuedAt,
	).Scan(&inv.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := r.ByOrder(ctx, inv.OrderID)
		return existing, false, getErr
	}
	if err != nil {
		return Invoice{}, false, err
	}
	return inv, true, nil
}

// ByOrder returns the invoice of an order.
func (r *Repository) ByOrder(ctx context.Context, orderID int64) (Invoice, error) {
	var inv Invoice
	err := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices i JOIN orders o ON o.id = i.order_id WHERE i.order_id=$1`, orderID).
		Scan(&inv.ID, &inv.OrderID, &inv.UserID, &inv.Number, &inv.Amount, &inv.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, err
}

// ListByUser returns a user's invoices, newest first. userID 0 lists all.
func (r *Repository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Invoice, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+`, COUNT(*) OVER()
FROM invoices i JOIN orders o ON o.id = i.order_id
WHERE ($1::bigint = 0 OR o.user_id = $1)
ORDER BY i.issued_at DESC, i.id DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []Invoice
		total int
	)
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.OrderID, &inv.UserID, &inv.Number, &inv.Amount, &inv.IssuedAt, &total); err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}
