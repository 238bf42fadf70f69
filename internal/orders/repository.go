package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookhaven/bookhaven/internal/inventory"
	"github.com/bookhaven/bookhaven/internal/platform/db"
)

const orderColumns = `o.id, o.user_id, o.subtotal, o.discount, o.shipping_fee, o.total, o.payment_status,
o.fulfillment_status, o.order_status, o.payment_method, o.fulfillment_method, o.voucher_id, COALESCE(o.voucher_code, ''),
o.receiver_name, o.receiver_phone, o.receiver_address, o.note, o.created_at, o.updated_at`

// TxRepository exposes order writes that must share one database transaction.
type TxRepository interface {
	// Insert stores the order with its items and returns them with ids assigned.
	Insert(ctx context.Context, order Order) (Order, error)
	// LockByID loads the order with its items and holds its row lock until commit.
	LockByID(ctx context.Context, id int64) (Order, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (time.Time, error)
	InsertHistory(ctx context.Context, change StatusChange) (StatusChange, error)
}

// TxStores groups the repositories a status transition writes through.
type TxStores struct {
	Orders    TxRepository
	Inventory inventory.TxRepository
}

// Repository persists orders in PostgreSQL.
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

// NewTxRepository binds order writes to a caller-owned transaction.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepository{q: q}
}

// WithTx executes fn with order and ledger repositories bound to one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStores) error) error {
	if r == nil {
		return errors.New("order repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, TxStores{Orders: NewTxRepository(tx), Inventory: inventory.NewTxRepository(tx)})
	})
}

// Get loads an order with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id=$1`, id))
	if err != nil {
		return Order{}, err
	}
	if err := attachItems(ctx, r.pool, []*Order{&order}); err != nil {
		return Order{}, err
	}
	return order, nil
}

// List returns a filtered page of orders, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+`, COUNT(*) OVER()
FROM orders o
WHERE ($1::bigint = 0 OR o.user_id = $1::bigint)
  AND ($2::text = '' OR o.payment_status = $2::text)
  AND ($3::text = '' OR o.fulfillment_status = $3::text)
  AND ($4::text = '' OR o.order_status = $4::text)
ORDER BY o.created_at DESC, o.id DESC
LIMIT $5 OFFSET $6`, filter.UserID, string(filter.Payment), string(filter.Fulfillment), string(filter.Order),
		filter.Page.Limit(), filter.Page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		list  []Order
		total int
	)
	for rows.Next() {
		var order Order
		dest := append(orderDest(&order), &total)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, err
		}
		list = append(list, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	ptrs := make([]*Order, len(list))
	for i := range list {
		ptrs[i] = &list[i]
	}
	if err := attachItems(ctx, r.pool, ptrs); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// History returns the status timeline of an order, oldest first.
func (r *Repository) History(ctx context.Context, orderID int64) ([]StatusChange, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, axis, from_status, to_status, note, COALESCE(actor_id, 0), created_at
FROM order_status_history WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusChange
	for rows.Next() {
		var sc StatusChange
		var axis string
		if err := rows.Scan(&sc.ID, &sc.OrderID, &axis, &sc.From, &sc.To, &sc.Note, &sc.ActorID, &sc.CreatedAt); err != nil {
			return nil, err
		}
		sc.Axis = Axis(axis)
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (r *txRepository) Insert(ctx context.Context, order Order) (Order, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO orders (user_id, subtotal, discount, shipping_fee, total, payment_status,
fulfillment_status, order_status, payment_method, fulfillment_method, voucher_id, voucher_code,
receiver_name, receiver_phone, receiver_address, note, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12,''),$13,$14,$15,$16,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		order.UserID, order.Subtotal, order.Discount, order.ShippingFee, order.Total,
		string(order.Status.Payment), string(order.Status.Fulfillment), string(order.Status.Order),
		string(order.PaymentMethod), string(order.FulfillmentMethod), order.VoucherID, order.VoucherCode,
		order.Receiver.Name, order.Receiver.Phone, order.Receiver.Address, order.Note,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("orders: insert: %w", err)
	}
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := r.q.QueryRow(ctx, `INSERT INTO order_items (order_id, product_id, product_title, unit_price, quantity, line_total)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, order.ID, item.ProductID, item.ProductTitle, item.UnitPrice, item.Quantity, item.LineTotal).Scan(&item.ID)
		if err != nil {
			return Order{}, fmt.Errorf("orders: insert item %d: %w", i, err)
		}
	}
	return order, nil
}

func (r *txRepository) LockByID(ctx context.Context, id int64) (Order, error) {
	order, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id=$1 FOR UPDATE`, id))
	if err != nil {
		return Order{}, err
	}
	if err := attachItems(ctx, r.q, []*Order{&order}); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) (time.Time, error) {
	var updated time.Time
	err := r.q.QueryRow(ctx, `UPDATE orders SET payment_status=$2, fulfillment_status=$3, order_status=$4, updated_at=NOW()
WHERE id=$1 RETURNING updated_at`, id, string(status.Payment), string(status.Fulfillment), string(status.Order)).Scan(&updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrOrderNotFound
	}
	return updated, err
}

func (r *txRepository) InsertHistory(ctx context.Context, change StatusChange) (StatusChange, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO order_status_history (order_id, axis, from_status, to_status, note, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,0),NOW()) RETURNING id, created_at`,
		change.OrderID, string(change.Axis), change.From, change.To, change.Note, change.ActorID,
	).Scan(&change.ID, &change.CreatedAt)
	return change, err
}

func orderDest(o *Order) []any {
	return []any{
		&o.ID, &o.UserID, &o.Subtotal, &o.Discount, &o.ShippingFee, &o.Total,
		(*string)(&o.Status.Payment), (*string)(&o.Status.Fulfillment), (*string)(&o.Status.Order),
		(*string)(&o.PaymentMethod), (*string)(&o.FulfillmentMethod), &o.VoucherID, &o.VoucherCode,
		&o.Receiver.Name, &o.Receiver.Phone, &o.Receiver.Address, &o.Note, &o.CreatedAt, &o.UpdatedAt,
	}
}

func scanOrder(row pgx.Row) (Order, error) {
	var order Order
	if err := row.Scan(orderDest(&order)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	return order, nil
}

func attachItems(ctx context.Context, q db.Querier, list []*Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	byID := make(map[int64]*Order, len(list))
	for i, o := range list {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []Item{}
	}
	rows, err := q.Query(ctx, `SELECT id, order_id, product_id, product_title, unit_price, quantity, line_total
FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductTitle, &item.UnitPrice, &item.Quantity, &item.LineTotal); err != nil {
			return err
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}
