// Package reports aggregates order data into cached sales reports.
package reports

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// MaxRange bounds a single report window.
const MaxRange = 366 * 24 * time.Hour

// ErrInvalidRange reports a reversed or oversized window.
var ErrInvalidRange = shared.NewError(8201, http.StatusBadRequest, "invalid report range")

// Range is a half-open [From, To) window in UTC.
type Range struct {
	From time.Time
	To   time.Time
}

// DailySales is one bucket of the report.
type DailySales struct {
	Day     string          `json:"day"`
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// ProductSales ranks products by quantity sold.
type ProductSales struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// SalesReport summarises non-cancelled orders in a window.
type SalesReport struct {
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	Orders            int             `json:"orders"`
	CancelledOrders   int             `json:"cancelled_orders"`
	ItemsSold         int             `json:"items_sold"`
	GrossRevenue      decimal.Decimal `json:"gross_revenue"`
	PaidRevenue       decimal.Decimal `json:"paid_revenue"`
	Discounts         decimal.Decimal `json:"discounts"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	Daily             []DailySales    `json:"daily"`
	TopProducts       []ProductSales  `json:"top_products"`
	GeneratedAt       time.Time       `json:"generated_at"`
}

// Repository loads raw aggregates.
type Repository interface {
	Sales(ctx context.Context, rng Range, topN int) (SalesReport, error)
}

// Service coordinates report queries with the cache layer.
type Service struct {
	repo   Repository
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// Sales returns the report for rng, served from cache when possible.
func (s *Service) Sales(ctx context.Context, rng Range, topN int) (SalesReport, error) {
	rng.From, rng.To = rng.From.UTC(), rng.To.UTC()
	if !rng.To.After(rng.From) || rng.To.Sub(rng.From) > MaxRange {
		return SalesReport{}, fmt.Errorf("reports: %s..%s: %w", rng.From.Format(time.DateOnly), rng.To.Format(time.DateOnly), ErrInvalidRange)
	}
	if topN <= 0 || topN > 50 {
		topN = 10
	}
	key, err := s.cache.BuildKey(ctx, "reports", "sales", rng.From.Format(time.RFC3339), rng.To.Format(time.RFC3339), fmt.Sprint(topN))
	if err != nil {
		return SalesReport{}, err
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var out SalesReport
		err := s.cache.FetchJSON(context.WithoutCancel(ctx), key, &out, func(ctx context.Context) (any, error) {
			report, err := s.repo.Sales(ctx, rng, topN)
			if err != nil {
				return nil, err
			}
			report.From, report.To = rng.From, rng.To
			if report.Orders > 0 {
				report.AverageOrderValue = shared.RoundMoney(report.GrossRevenue.Div(decimal.NewFromInt(int64(report.Orders))))
			}
			report.GeneratedAt = s.now().UTC()
			return report, nil
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return SalesReport{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return SalesReport{}, res.Err
		}
		return res.Val.(SalesReport), nil
	}
}

// Invalidate drops every cached report.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
