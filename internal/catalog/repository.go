package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookhaven/bookhaven/internal/platform/db"
	"github.com/bookhaven/bookhaven/internal/shared"
)

const productColumns = `id, sku, title, author, description, price, stock, active, created_at, updated_at`

// TxRepository covers writes that must share a transaction with the price history.
type TxRepository interface {
	LockByID(ctx context.Context, id int64) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	InsertPriceChange(ctx context.Context, change PriceChange) (PriceChange, error)
}

// Repository persists products in PostgreSQL.
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

// WithTx executes fn inside a database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("catalog repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{q: tx})
	})
}

// Create inserts a product with zero stock.
func (r *Repository) Create(ctx context.Context, p Product) (Product, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO products (sku, title, author, description, price, stock, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,0,$6,NOW(),NOW()) RETURNING id, stock, created_at, updated_at`,
		p.SKU, p.Title, p.Author, p.Description, p.Price, p.Active).Scan(&p.ID, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Product{}, fmt.Errorf("catalog: sku %s: %w", p.SKU, ErrSKUExists)
		}
		return Product{}, err
	}
	return p, nil
}

// Get loads a product.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

// List returns a page of products matching the normalised search term.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+`, COUNT(*) OVER()
FROM products
WHERE ($1::text = '' OR lower(title || ' ' || author || ' ' || sku) LIKE '%' || $1::text || '%')
  AND (NOT $2::bool OR active)
ORDER BY title, id
LIMIT $3 OFFSET $4`, filter.Search, filter.ActiveOnly, filter.Page.Limit(), filter.Page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		list  []Product
		total int
	)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Title, &p.Author, &p.Description, &p.Price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		list = append(list, p)
	}
	return list, total, rows.Err()
}

// PriceHistory returns price changes, newest first.
func (r *Repository) PriceHistory(ctx context.Context, productID int64) ([]PriceChange, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, old_price, new_price, change_percentage, COALESCE(changed_by, 0), changed_at
FROM price_history WHERE product_id=$1 ORDER BY changed_at DESC, id DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PriceChange
	for rows.Next() {
		var c PriceChange
		if err := rows.Scan(&c.ID, &c.ProductID, &c.OldPrice, &c.NewPrice, &c.ChangePercentage, &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *txRepository) LockByID(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id))
}

// Update leaves stock alone; only the ledger moves it.
func (r *txRepository) Update(ctx context.Context, p Product) (Product, error) {
	err := r.q.QueryRow(ctx, `UPDATE products SET sku=$2, title=$3, author=$4, description=$5, price=$6, active=$7, updated_at=NOW()
WHERE id=$1 RETURNING stock, updated_at`, p.ID, p.SKU, p.Title, p.Author, p.Description, p.Price, p.Active).Scan(&p.Stock, &p.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return Product{}, ErrProductNotFound
		case shared.IsUniqueViolation(err):
			return Product{}, fmt.Errorf("catalog: sku %s: %w", p.SKU, ErrSKUExists)
		}
		return Product{}, err
	}
	return p, nil
}

func (r *txRepository) InsertPriceChange(ctx context.Context, c PriceChange) (PriceChange, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO price_history (product_id, old_price, new_price, change_percentage, changed_by, changed_at)
VALUES ($1,$2,$3,$4,NULLIF($5,0),NOW()) RETURNING id, changed_at`,
		c.ProductID, c.OldPrice, c.NewPrice, c.ChangePercentage, c.ChangedBy).Scan(&c.ID, &c.ChangedAt)
	return c, err
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Title, &p.Author, &p.Description, &p.Price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}
