package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookhaven/bookhaven/internal/platform/db"
	"github.com/bookhaven/bookhaven/internal/shared"
)

const (
	constraintOutReference = "uq_inventory_out_reference"
	constraintCompensation = "uq_inventory_order_compensation"
	headerColumns          = `id, transaction_type, reference_type, COALESCE(reference_id, 0), note, COALESCE(created_by, 0), created_at`
)

// Repository persists the ledger in PostgreSQL.
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

// NewTxRepository binds ledger writes to an open transaction owned by the caller.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepository{q: q}
}

// WithTx executes the callback inside a database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// GetHeader loads a header with its items.
func (r *Repository) GetHeader(ctx context.Context, id int64) (Header, error) {
	header, err := scanHeader(r.pool.QueryRow(ctx, `SELECT `+headerColumns+` FROM inventory_transaction_headers WHERE id=$1`, id))
	if err != nil {
		return Header{}, err
	}
	if err := attachItems(ctx, r.pool, []*Header{&header}); err != nil {
		return Header{}, err
	}
	return header, nil
}

// ListHeaders returns a page of headers, newest first, and the total match count.
func (r *Repository) ListHeaders(ctx context.Context, filter ListFilter) ([]Header, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+headerColumns+`, COUNT(*) OVER()
FROM inventory_transaction_headers h
WHERE ($1::text = '' OR h.transaction_type = $1::text)
  AND ($2::text = '' OR h.reference_type = $2::text)
  AND ($3::bigint = 0 OR h.reference_id = $3::bigint)
  AND ($4::bigint = 0 OR EXISTS (SELECT 1 FROM inventory_transaction_items i WHERE i.header_id = h.id AND i.product_id = $4::bigint))
ORDER BY h.created_at DESC, h.id DESC
LIMIT $5 OFFSET $6`, string(filter.Type), string(filter.ReferenceType), filter.ReferenceID, filter.ProductID, filter.Page.Limit(), filter.Page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		headers []Header
		total   int
	)
	for rows.Next() {
		var h Header
		if err := rows.Scan(&h.ID, &h.Type, &h.ReferenceType, &h.ReferenceID, &h.Note, &h.CreatedBy, &h.CreatedAt, &total); err != nil {
			return nil, 0, err
		}
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	ptrs := make([]*Header, len(headers))
	for i := range headers {
		ptrs[i] = &headers[i]
	}
	if err := attachItems(ctx, r.pool, ptrs); err != nil {
		return nil, 0, err
	}
	return headers, total, nil
}

// Movements lists every ledger line for a product, oldest first.
func (r *Repository) Movements(ctx context.Context, productID int64) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT h.id, h.transaction_type, h.reference_type, COALESCE(h.reference_id, 0), h.created_at, h.note, i.change_type, i.quantity
FROM inventory_transaction_items i
JOIN inventory_transaction_headers h ON h.id = i.header_id
WHERE i.product_id = $1
ORDER BY h.created_at ASC, h.id ASC, i.id ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.HeaderID, &m.Type, &m.ReferenceType, &m.ReferenceID, &m.CreatedAt, &m.Note, &m.ChangeType, &m.Quantity); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// CurrentStock reads the cached stock counter.
func (r *Repository) CurrentStock(ctx context.Context, productID int64) (int, error) {
	var stock int
	err := r.pool.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrProductNotFound
	}
	return stock, err
}

// Drift lists products whose cached stock no longer equals the sum of their ledger deltas.
func (r *Repository) Drift(ctx context.Context) ([]Drift, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.stock, COALESCE(l.total, 0)
FROM products p
LEFT JOIN (
  SELECT product_id, SUM(CASE WHEN change_type = 'PLUS' THEN quantity ELSE -quantity END) AS total
  FROM inventory_transaction_items GROUP BY product_id
) l ON l.product_id = p.id
WHERE p.stock <> COALESCE(l.total, 0)
ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.ProductID, &d.CachedStock, &d.LedgerStock); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertHeader(ctx context.Context, header Header) (Header, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO inventory_transaction_headers (transaction_type, reference_type, reference_id, note, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id, created_at`,
		string(header.Type), string(header.ReferenceType), nullInt(header.ReferenceID), header.Note, nullInt(header.CreatedBy)).
		Scan(&header.ID, &header.CreatedAt)
	if err != nil {
		switch shared.UniqueConstraint(err) {
		case constraintOutReference:
			return Header{}, fmt.Errorf("inventory: %s %d: %w", header.ReferenceType, header.ReferenceID, ErrDuplicateOutTransaction)
		case constraintCompensation:
			return Header{}, fmt.Errorf("inventory: order %d: %w", header.ReferenceID, ErrAlreadyCompensated)
		}
		return Header{}, err
	}
	return header, nil
}

func (r *txRepository) InsertItems(ctx context.Context, headerID int64, items []Item) ([]Item, error) {
	saved := make([]Item, 0, len(items))
	for _, item := range items {
		item.HeaderID = headerID
		if err := r.q.QueryRow(ctx, `INSERT INTO inventory_transaction_items (header_id, product_id, change_type, quantity, unit_price, total_price)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, headerID, item.ProductID, string(item.ChangeType), item.Quantity, item.UnitPrice, item.TotalPrice).Scan(&item.ID); err != nil {
			return nil, err
		}
		saved = append(saved, item)
	}
	return saved, nil
}

func (r *txRepository) AdjustStock(ctx context.Context, productID int64, delta int) (int, error) {
	var stock int
	var err error
	if delta < 0 {
		err = r.q.QueryRow(ctx, `UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1 AND stock >= $2 RETURNING stock`, productID, -delta).Scan(&stock)
	} else {
		err = r.q.QueryRow(ctx, `UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1 RETURNING stock`, productID, delta).Scan(&stock)
	}
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1)`, productID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, shared.ErrProductNotFound
	}
	return 0, ErrInsufficientInventory
}

func (r *txRepository) FindByReference(ctx context.Context, txType TransactionType, refType ReferenceType, refID int64) (Header, error) {
	header, err := scanHeader(r.q.QueryRow(ctx, `SELECT `+headerColumns+` FROM inventory_transaction_headers
WHERE transaction_type=$1 AND reference_type=$2 AND reference_id=$3
ORDER BY id ASC LIMIT 1`, string(txType), string(refType), refID))
	if err != nil {
		return Header{}, err
	}
	if err := attachItems(ctx, r.q, []*Header{&header}); err != nil {
		return Header{}, err
	}
	return header, nil
}

func scanHeader(row pgx.Row) (Header, error) {
	var h Header
	if err := row.Scan(&h.ID, &h.Type, &h.ReferenceType, &h.ReferenceID, &h.Note, &h.CreatedBy, &h.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Header{}, ErrTransactionNotFound
		}
		return Header{}, err
	}
	return h, nil
}

func attachItems(ctx context.Context, q db.Querier, headers []*Header) error {
	if len(headers) == 0 {
		return nil
	}
	ids := make([]int64, len(headers))
	byID := make(map[int64]*Header, len(headers))
	for i, h := range headers {
		ids[i] = h.ID
		byID[h.ID] = h
		h.Items = []Item{}
	}
	rows, err := q.Query(ctx, `SELECT id, header_id, product_id, change_type, quantity, unit_price, total_price
FROM inventory_transaction_items WHERE header_id = ANY($1) ORDER BY header_id, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.HeaderID, &item.ProductID, &item.ChangeType, &item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return err
		}
		if h, ok := byID[item.HeaderID]; ok {
			h.Items = append(h.Items, item)
		}
	}
	return rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
