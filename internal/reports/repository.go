package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository computes sales aggregates in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Sales aggregates orders created in rng.
func (r *PGRepository) Sales(ctx context.Context, rng Range, topN int) (SalesReport, error) {
	var out SalesReport
	err := r.pool.QueryRow(ctx, `SELECT
  COUNT(*) FILTER (WHERE order_status <> 'cancelled'),
  COUNT(*) FILTER (WHERE order_status = 'cancelled'),
  COALESCE(SUM(total) FILTER (WHERE order_status <> 'cancelled'), 0),
  COALESCE(SUM(total) FILTER (WHERE order_status <> 'cancelled' AND payment_status = 'paid'), 0),
  COALESCE(SUM(discount) FILTER (WHERE order_status <> 'cancelled'), 0),
  (SELECT COALESCE(SUM(oi.quantity), 0) FROM order_items oi JOIN orders o ON o.id = oi.order_id
    WHERE o.created_at >= $1 AND o.created_at < $2 AND o.order_status <> 'cancelled')
FROM orders WHERE created_at >= $1 AND created_at < $2`, rng.From, rng.To).
		Scan(&out.Orders, &out.CancelledOrders, &out.GrossRevenue, &out.PaidRevenue, &out.Discounts, &out.ItemsSold)
	if err != nil {
		return SalesReport{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT date_trunc('day', created_at AT TIME ZONE 'UTC')::date, COUNT(*), COALESCE(SUM(total), 0)
FROM orders WHERE created_at >= $1 AND created_at < $2 AND order_status <> 'cancelled'
GROUP BY 1 ORDER BY 1`, rng.From, rng.To)
	if err != nil {
		return SalesReport{}, err
	}
	for rows.Next() {
		var (
			day time.Time
			d   DailySales
		)
		if err := rows.Scan(&day, &d.Orders, &d.Revenue); err != nil {
			rows.Close()
			return SalesReport{}, err
		}
		d.Day = day.Format(time.DateOnly)
		out.Daily = append(out.Daily, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return SalesReport{}, err
	}

	rows, err = r.pool.Query(ctx, `SELECT oi.product_id, MAX(oi.product_title), SUM(oi.quantity), SUM(oi.line_total)
FROM order_items oi JOIN orders o ON o.id = oi.order_id
WHERE o.created_at >= $1 AND o.created_at < $2 AND o.order_status <> 'cancelled'
GROUP BY oi.product_id ORDER BY SUM(oi.quantity) DESC, oi.product_id LIMIT $3`, rng.From, rng.To, topN)
	if err != nil {
		return SalesReport{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var p ProductSales
		if err := rows.Scan(&p.ProductID, &p.Title, &p.Quantity, &p.Revenue); err != nil {
			return SalesReport{}, err
		}
		out.TopProducts = append(out.TopProducts, p)
	}
	if err := rows.Err(); err != nil {
		return SalesReport{}, err
	}
	return out, nil
}
