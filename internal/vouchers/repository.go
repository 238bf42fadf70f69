package vouchers

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
	voucherColumns = `v.id, v.code, v.description, v.discount_type, v.discount_amount, v.apply_to, v.min_order_amount,
v.max_discount, v.valid_from, v.valid_to, v.usage_limit, v.per_user_limit, v.active, v.created_at, v.updated_at`
	usedCountColumn = `(SELECT COUNT(*) FROM voucher_usages u WHERE u.voucher_id = v.id)`
)

// Repository persists vouchers and their usages.
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

// NewTxRepository binds voucher ledger access to a caller-owned transaction.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepository{q: q}
}

// WithTx executes the callback inside a database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("voucher repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// Reader returns a non-transactional reader over the pool.
func (r *Repository) Reader() Reader {
	return NewTxRepository(r.pool)
}

// Create inserts a voucher.
func (r *Repository) Create(ctx context.Context, v Voucher) (Voucher, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO vouchers (code, description, discount_type, discount_amount, apply_to, min_order_amount,
max_discount, valid_from, valid_to, usage_limit, per_user_limit, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		v.Code, v.Description, string(v.DiscountType), v.DiscountAmount, string(v.ApplyTo), v.MinOrderAmount,
		v.MaxDiscount, v.ValidFrom, v.ValidTo, v.UsageLimit, v.PerUserLimit, v.Active).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Voucher{}, fmt.Errorf("vouchers: %s: %w", v.Code, ErrVoucherCodeExists)
		}
		return Voucher{}, err
	}
	return v, nil
}

// Update overwrites the editable fields.
func (r *Repository) Update(ctx context.Context, v Voucher) (Voucher, error) {
	err := r.pool.QueryRow(ctx, `UPDATE vouchers SET code=$2, description=$3, discount_type=$4, discount_amount=$5, apply_to=$6,
min_order_amount=$7, max_discount=$8, valid_from=$9, valid_to=$10, usage_limit=$11, per_user_limit=$12, active=$13, updated_at=NOW()
WHERE id=$1 RETURNING created_at, updated_at`,
		v.ID, v.Code, v.Description, string(v.DiscountType), v.DiscountAmount, string(v.ApplyTo),
		v.MinOrderAmount, v.MaxDiscount, v.ValidFrom, v.ValidTo, v.UsageLimit, v.PerUserLimit, v.Active).
		Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, ErrVoucherNotFound
		}
		if shared.IsUniqueViolation(err) {
			return Voucher{}, fmt.Errorf("vouchers: %s: %w", v.Code, ErrVoucherCodeExists)
		}
		return Voucher{}, err
	}
	return v, nil
}

// Get loads a voucher with its used count.
func (r *Repository) Get(ctx context.Context, id int64) (Voucher, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+voucherColumns+`, `+usedCountColumn+` FROM vouchers v WHERE v.id=$1`, id)
	return scanVoucher(row, true)
}

// List returns a page of vouchers with used counts.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Voucher, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+voucherColumns+`, `+usedCountColumn+`, COUNT(*) OVER()
FROM vouchers v
WHERE ($1::boolean IS NULL OR v.active = $1::boolean)
  AND ($2::text = '' OR v.code ILIKE '%' || $2::text || '%' OR v.description ILIKE '%' || $2::text || '%')
ORDER BY v.created_at DESC, v.id DESC
LIMIT $3 OFFSET $4`, filter.Active, filter.Search, filter.Page.Limit(), filter.Page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		list  []Voucher
		total int
	)
	for rows.Next() {
		var v Voucher
		if err := rows.Scan(&v.ID, &v.Code, &v.Description, &v.DiscountType, &v.DiscountAmount, &v.ApplyTo, &v.MinOrderAmount,
			&v.MaxDiscount, &v.ValidFrom, &v.ValidTo, &v.UsageLimit, &v.PerUserLimit, &v.Active, &v.CreatedAt, &v.UpdatedAt,
			&v.UsedCount, &total); err != nil {
			return nil, 0, err
		}
		list = append(list, v)
	}
	return list, total, rows.Err()
}

func (r *txRepository) GetByCode(ctx context.Context, code string) (Voucher, error) {
	row := r.q.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers v WHERE v.code=$1`, code)
	return scanVoucher(row, false)
}

func (r *txRepository) LockByID(ctx context.Context, id int64) (Voucher, error) {
	row := r.q.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers v WHERE v.id=$1 FOR UPDATE`, id)
	return scanVoucher(row, false)
}

func (r *txRepository) CountUsages(ctx context.Context, voucherID int64) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM voucher_usages WHERE voucher_id=$1`, voucherID).Scan(&n)
	return n, err
}

func (r *txRepository) CountUserUsages(ctx context.Context, voucherID, userID int64) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM voucher_usages WHERE voucher_id=$1 AND user_id=$2`, voucherID, userID).Scan(&n)
	return n, err
}

func (r *txRepository) InsertUsage(ctx context.Context, usage Usage) (Usage, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO voucher_usages (voucher_id, user_id, order_id, used_at) VALUES ($1,$2,$3,NOW())
RETURNING id, used_at`, usage.VoucherID, usage.UserID, usage.OrderID).Scan(&usage.ID, &usage.UsedAt)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Usage{}, fmt.Errorf("vouchers: voucher %d order %d: %w", usage.VoucherID, usage.OrderID, ErrDuplicateVoucherUsage)
		}
		return Usage{}, err
	}
	return usage, nil
}

func scanVoucher(row pgx.Row, withCount bool) (Voucher, error) {
	var v Voucher
	dest := []any{&v.ID, &v.Code, &v.Description, &v.DiscountType, &v.DiscountAmount, &v.ApplyTo, &v.MinOrderAmount,
		&v.MaxDiscount, &v.ValidFrom, &v.ValidTo, &v.UsageLimit, &v.PerUserLimit, &v.Active, &v.CreatedAt, &v.UpdatedAt}
	if withCount {
		dest = append(dest, &v.UsedCount)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, ErrVoucherNotFound
		}
		return Voucher{}, err
	}
	return v, nil
}
