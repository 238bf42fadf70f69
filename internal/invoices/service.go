package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven/internal/events"
	"github.com/bookhaven/bookhaven/internal/shared"
)

// RepositoryPort abstracts persistence for Service.
type RepositoryPort interface {
	OrderTotal(ctx context.Context, orderID int64) (int64, decimal.Decimal, error)
	Insert(ctx context.Context, inv Invoice) (Invoice, bool, error)
	ByOrder(ctx context.Context, orderID int64) (Invoice, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Invoice, int, error)
}

// Notifier tells the customer an invoice is ready.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind, title, body string) error
}

// Service issues and reads invoices.
type Service struct {
	repo      RepositoryPort
	notifier  Notifier
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service. notifier and publisher may be nil.
func NewService(repo RepositoryPort, notifier Notifier, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, publisher: publisher, logger: logger, now: time.Now}
}

// WithClock overrides the issue time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IssueForOrder creates the invoice for a paid order. Repeated calls return the existing invoice.
func (s *Service) IssueForOrder(ctx context.Context, orderID int64) (Invoice, error) {
	userID, total, err := s.repo.OrderTotal(ctx, orderID)
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: order %d: %w", orderID, err)
	}
	issued := s.now().UTC()
	inv, created, err := s.repo.Insert(ctx, Invoice{
		OrderID:  orderID,
		UserID:   userID,
		Number:   Number(orderID, issued),
		Amount:   total,
		IssuedAt: issued,
	})
	if err != nil {
		return Invoice{}, err
	}
	if !created {
		return inv, nil
	}
	inv.UserID = userID
	s.logger.Info("invoice issued", slog.Int64("order_id", orderID), slog.String("number", inv.Number))
	events.Emit(ctx, s.publisher, s.logger, events.New(events.TypeInvoiceIssued, "order-"+strconv.FormatInt(orderID, 10), inv))
	if s.notifier != nil {
		body := fmt.Sprintf("Invoice %s for order #%d is ready.", inv.Number, orderID)
		if err := s.notifier.Notify(ctx, userID, "invoice_issued", "Invoice issued", body); err != nil {
			s.logger.Warn("invoice notification", slog.Int64("order_id", orderID), slog.Any("error", err))
		}
	}
	return inv, nil
}

// ForOrder returns an order's invoice. Customers only see their own.
func (s *Service) ForOrder(ctx context.Context, actor shared.Principal, orderID int64) (Invoice, error) {
	inv, err := s.repo.ByOrder(ctx, orderID)
	if err != nil {
		return Invoice{}, err
	}
	if !actor.IsAdmin() && inv.UserID != actor.UserID {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

// List returns the caller's invoices, or every invoice for admins.
func (s *Service) List(ctx context.Context, actor shared.Principal, page shared.PageRequest) ([]Invoice, shared.Pagination, error) {
	userID := actor.UserID
	if actor.IsAdmin() {
		userID = 0
	}
	list, total, err := s.repo.ListByUser(ctx, userID, page.Limit(), page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page.Page, page.PerPage, total), nil
}
