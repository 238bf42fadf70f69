package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bookhaven/bookhaven/internal/events"
	"github.com/bookhaven/bookhaven/internal/inventory"
	"github.com/bookhaven/bookhaven/internal/observability"
	"github.com/bookhaven/bookhaven/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStores) error) error
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	History(ctx context.Context, orderID int64) ([]StatusChange, error)
}

// Notifier delivers in-app notifications to customers.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind, title, body string) error
}

// InvoiceScheduler queues invoice issuance for a paid order.
type InvoiceScheduler interface {
	ScheduleInvoice(ctx context.Context, orderID int64) error
}

// CacheInvalidator drops cached aggregates derived from orders.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Options carries the collaborators that run after a change commits. Every field is optional.
type Options struct {
	Audit    shared.AuditRecorder
	Events   events.Publisher
	Notifier Notifier
	Invoices InvoiceScheduler
	Reports  CacheInvalidator
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// Service drives the order state machine.
type Service struct {
	repo RepositoryPort
	opts Options
	log  *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, opts: opts, log: logger}
}

// Create builds the draft and inserts it through tx. Callers own the transaction and
// call PublishCreated once it commits.
func Create(ctx context.Context, tx TxRepository, draft Draft) (Order, error) {
	order, err := Build(draft)
	if err != nil {
		return Order{}, err
	}
	return tx.Insert(ctx, order)
}

// StatusChangedPayload is the body of order.status_changed events.
type StatusChangedPayload struct {
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Axis    Axis   `json:"axis"`
	From    string `json:"from"`
	To      string `json:"to"`
	Status  Status `json:"status"`
}

// ChangeStatus moves one axis of an order. Customers may only cancel their own
// confirmed orders; everything else needs the admin role.
func (s *Service) ChangeStatus(ctx context.Context, actor shared.Principal, orderID int64, change Change) (Order, error) {
	if orderID <= 0 {
		return Order{}, ErrOrderNotFound
	}
	if !actor.IsAdmin() && (change.Axis != AxisOrder || OrderStatus(change.To) != OrderCancelled) {
		return Order{}, fmt.Errorf("orders: %s -> %s: %w", change.Axis, change.To, shared.ErrForbidden)
	}
	var (
		order  Order
		record StatusChange
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, stores TxStores) error {
		var err error
		order, err = stores.Orders.LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !order.OwnedBy(actor.UserID) {
			return ErrOrderNotFound
		}
		next, err := Next(order.Status, change)
		if err != nil {
			return err
		}
		if next.Order == OrderCancelled && order.Status.Order != OrderCancelled {
			if err := s.compensate(ctx, stores.Inventory, order.ID, actor.UserID); err != nil {
				return err
			}
		}
		updated, err := stores.Orders.UpdateStatus(ctx, order.ID, next)
		if err != nil {
			return err
		}
		record, err = stores.Orders.InsertHistory(ctx, StatusChange{
			OrderID: order.ID,
			Axis:    change.Axis,
			From:    change.From(order.Status),
			To:      change.To,
			Note:    change.Note,
			ActorID: actor.UserID,
		})
		if err != nil {
			return err
		}
		order.Status = next
		order.UpdatedAt = updated
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.afterTransition(ctx, actor, order, record)
	return order, nil
}

// Cancel is the customer-facing shortcut for moving the order axis to cancelled.
func (s *Service) Cancel(ctx context.Context, actor shared.Principal, orderID int64, note string) (Order, error) {
	return s.ChangeStatus(ctx, actor, orderID, Change{Axis: AxisOrder, To: string(OrderCancelled), Note: note})
}

func (s *Service) compensate(ctx context.Context, ledger inventory.TxRepository, orderID, actorID int64) error {
	header, err := inventory.ReverseOrder(ctx, ledger, orderID, actorID)
	if errors.Is(err, inventory.ErrNothingToCompensate) {
		s.log.Warn("cancel order without stock deduction", slog.Int64("order_id", orderID))
		return nil
	}
	if err != nil {
		return err
	}
	s.opts.Metrics.StockTransaction(string(header.Type))
	return nil
}

func (s *Service) afterTransition(ctx context.Context, actor shared.Principal, order Order, record StatusChange) {
	s.opts.Metrics.OrderTransition(string(record.Axis), record.To)
	id := strconv.FormatInt(order.ID, 10)
	shared.RecordAudit(ctx, s.opts.Audit, s.log, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   fmt.Sprintf("order:%s:%s", record.Axis, record.To),
		Entity:   "order",
		EntityID: id,
		Meta:     map[string]any{"from": record.From, "to": record.To, "note": record.Note},
	})
	events.Emit(ctx, s.opts.Events, s.log, events.New(events.TypeOrderStatusChanged, "order-"+id, StatusChangedPayload{
		OrderID: order.ID,
		UserID:  order.UserID,
		Axis:    record.Axis,
		From:    record.From,
		To:      record.To,
		Status:  order.Status,
	}))
	s.notify(ctx, order.UserID, "order_status",
		fmt.Sprintf("Order #%d updated", order.ID),
		fmt.Sprintf("Your order %s status changed from %s to %s.", record.Axis, record.From, record.To))
	s.invalidateReports(ctx)
	if record.Axis == AxisPayment && PaymentStatus(record.To) == PaymentPaid && s.opts.Invoices != nil {
		if err := s.opts.Invoices.ScheduleInvoice(ctx, order.ID); err != nil {
			s.log.Error("schedule invoice", slog.Int64("order_id", order.ID), slog.Any("error", err))
		}
	}
}

// PublishCreated runs the post-commit effects of a new order.
func (s *Service) PublishCreated(ctx context.Context, order Order) {
	id := strconv.FormatInt(order.ID, 10)
	shared.RecordAudit(ctx, s.opts.Audit, s.log, shared.AuditLog{
		ActorID:  order.UserID,
		Action:   "order:create",
		Entity:   "order",
		EntityID: id,
		Meta:     map[string]any{"total": order.Total.String(), "items": len(order.Items), "voucher": order.VoucherCode},
	})
	events.Emit(ctx, s.opts.Events, s.log, events.New(events.TypeOrderCreated, "order-"+id, order))
	s.notify(ctx, order.UserID, "order_placed",
		fmt.Sprintf("Order #%d placed", order.ID),
		fmt.Sprintf("We received your order totalling %s.", order.Total.StringFixed(2)))
	s.invalidateReports(ctx)
}

func (s *Service) notify(ctx context.Context, userID int64, kind, title, body string) {
	if s.opts.Notifier == nil {
		return
	}
	if err := s.opts.Notifier.Notify(ctx, userID, kind, title, body); err != nil {
		s.log.Warn("notify customer", slog.Int64("user_id", userID), slog.String("kind", kind), slog.Any("error", err))
	}
}

func (s *Service) invalidateReports(ctx context.Context) {
	if s.opts.Reports == nil {
		return
	}
	if err := s.opts.Reports.Invalidate(ctx); err != nil {
		s.log.Warn("invalidate report cache", slog.Any("error", err))
	}
}

// Get returns an order visible to actor.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id int64) (Order, error) {
	if id <= 0 {
		return Order{}, ErrOrderNotFound
	}
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !actor.IsAdmin() && !order.OwnedBy(actor.UserID) {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// List returns a page of orders. Customers only see their own.
func (s *Service) List(ctx context.Context, actor shared.Principal, filter ListFilter) ([]Order, shared.Pagination, error) {
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}
	if filter.Page.Page <= 0 {
		filter.Page.Page = 1
	}
	if filter.Page.PerPage <= 0 {
		filter.Page.PerPage = 20
	}
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// History returns the status timeline of an order visible to actor.
func (s *Service) History(ctx context.Context, actor shared.Principal, id int64) ([]StatusChange, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}
