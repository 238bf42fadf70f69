package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookhaven/bookhaven/internal/platform/db"
)

const lineQuery = `SELECT ci.product_id, p.sku, p.title, p.price, ci.quantity, ci.selected, p.active, p.stock
FROM cart_items ci JOIN products p ON p.id = ci.product_id
WHERE ci.user_id = $1`

// TxRepository exposes the cart reads and writes checkout performs in its transaction.
type TxRepository interface {
	// SelectedLines returns the selected lines and locks them until commit.
	SelectedLines(ctx context.Context, userID int64) ([]Line, error)
	RemoveItems(ctx context.Context, userID int64, productIDs []int64) error
}

// Repository persists carts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	q db.Querier
}

// NewTxRepository binds cart access to a caller-owned transaction.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepository{q: q}
}

// Lines returns every line of the user's cart.
func (r *Repository) Lines(ctx context.Context, userID int64) ([]Line, error) {
	return queryLines(ctx, r.pool, lineQuery+` ORDER BY ci.created_at, ci.product_id`, userID)
}

// Quantity returns the quantity already in the cart for a product, zero when absent.
func (r *Repository) Quantity(ctx context.Context, userID, productID int64) (int, error) {
	var qty int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE((SELECT quantity FROM cart_items WHERE user_id=$1 AND product_id=$2), 0)`, userID, productID).Scan(&qty)
	return qty, err
}

// Upsert sets the quantity of a line, creating it selected when new.
func (r *Repository) Upsert(ctx context.Context, userID, productID int64, quantity int) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO cart_items (user_id, product_id, quantity, selected, created_at, updated_at)
VALUES ($1,$2,$3,TRUE,NOW(),NOW())
ON CONFLICT (user_id, product_id) DO UPDATE SET quantity=EXCLUDED.quantity, updated_at=NOW()`, userID, productID, quantity)
	return err
}

// SetSelected flags a line for checkout.
func (r *Repository) SetSelected(ctx context.Context, userID, productID int64, selected bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE cart_items SET selected=$3, updated_at=NOW() WHERE user_id=$1 AND product_id=$2`, userID, productID, selected)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// Remove deletes a line.
func (r *Repository) Remove(ctx context.Context, userID, productID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1 AND product_id=$2`, userID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// Clear empties the cart.
func (r *Repository) Clear(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	return err
}

func (r *txRepository) SelectedLines(ctx context.Context, userID int64) ([]Line, error) {
	return queryLines(ctx, r.q, lineQuery+` AND ci.selected ORDER BY ci.product_id FOR UPDATE OF ci`, userID)
}

func (r *txRepository) RemoveItems(ctx context.Context, userID int64, productIDs []int64) error {
	if len(productIDs) == 0 {
		return errors.New("cart: no items to remove")
	}
	_, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1 AND product_id = ANY($2)`, userID, productIDs)
	return err
}

func queryLines(ctx context.Context, q db.Querier, sql string, userID int64) ([]Line, error) {
	rows, err := q.Query(ctx, sql, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.SKU, &l.Title, &l.UnitPrice, &l.Quantity, &l.Selected, &l.Active, &l.Stock); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
