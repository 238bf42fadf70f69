package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven/internal/cart"
	"github.com/bookhaven/bookhaven/internal/inventory"
	"github.com/bookhaven/bookhaven/internal/observability"
	"github.com/bookhaven/bookhaven/internal/orders"
	"github.com/bookhaven/bookhaven/internal/shared"
	"github.com/bookhaven/bookhaven/internal/shipping"
	"github.com/bookhaven/bookhaven/internal/vouchers"
)

const idempotencyModule = "checkout"

// errQuoteOnly rolls back the read-only quote transaction.
var errQuoteOnly = errors.New("checkout: quote only")

// IdempotencyGuard records processed Idempotency-Key values.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// OrderPublisher runs the post-commit effects of a new order.
type OrderPublisher interface {
	PublishCreated(ctx context.Context, order orders.Order)
}

// Service orchestrates checkout.
type Service struct {
	uow      UnitOfWork
	shipping shipping.Policy
	idem     IdempotencyGuard
	orders   OrderPublisher
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service. idem and publisher may be nil.
func NewService(uow UnitOfWork, policy shipping.Policy, idem IdempotencyGuard, publisher OrderPublisher, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{uow: uow, shipping: policy, idem: idem, orders: publisher, metrics: metrics, logger: logger, now: time.Now}
}

// WithClock overrides the clock used for voucher validity windows.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Quote prices the selected cart lines without writing anything.
func (s *Service) Quote(ctx context.Context, userID int64, req Request) (Quote, error) {
	if err := checkReceiver(req); err != nil {
		return Quote{}, err
	}
	var quote Quote
	err := s.uow.WithTx(ctx, func(ctx context.Context, st TxStores) error {
		var err error
		quote, err = s.price(ctx, st, userID, req)
		if err != nil {
			return err
		}
		return errQuoteOnly
	})
	if err != nil && !errors.Is(err, errQuoteOnly) {
		return Quote{}, err
	}
	return quote, nil
}

// Checkout places an order for the selected cart lines. Pricing, order creation,
// stock deduction, voucher usage and cart cleanup commit together or not at all.
func (s *Service) Checkout(ctx context.Context, userID int64, req Request) (orders.Order, error) {
	if err := checkReceiver(req); err != nil {
		return orders.Order{}, err
	}
	key := ""
	if req.IdempotencyKey != "" && s.idem != nil {
		key = fmt.Sprintf("%d:%s", userID, strings.TrimSpace(req.IdempotencyKey))
		if err := s.idem.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				s.metrics.Checkout("duplicate")
				return orders.Order{}, ErrDuplicateCheckout
			}
			return orders.Order{}, err
		}
	}

	var (
		order orders.Order
		quote Quote
	)
	err := s.uow.WithTx(ctx, func(ctx context.Context, st TxStores) error {
		var err error
		quote, err = s.price(ctx, st, userID, req)
		if err != nil {
			return err
		}
		draft := orders.Draft{
			UserID:            userID,
			Items:             make([]orders.Item, 0, len(quote.Lines)),
			Discount:          quote.Discount,
			ShippingFee:       quote.ShippingFee,
			PaymentMethod:     req.PaymentMethod,
			FulfillmentMethod: req.FulfillmentMethod,
			Receiver:          req.Receiver,
			Note:              req.Note,
		}
		lines := make([]inventory.OrderLine, 0, len(quote.Lines))
		productIDs := make([]int64, 0, len(quote.Lines))
		for _, l := range quote.Lines {
			draft.Items = append(draft.Items, orders.Item{
				ProductID:    l.ProductID,
				ProductTitle: l.Title,
				UnitPrice:    l.UnitPrice,
				Quantity:     l.Quantity,
			})
			lines = append(lines, inventory.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
			productIDs = append(productIDs, l.ProductID)
		}
		if quote.voucher != nil {
			draft.VoucherID = &quote.voucher.ID
			draft.VoucherCode = quote.voucher.Code
		}

		order, err = orders.Create(ctx, st.Orders, draft)
		if err != nil {
			return err
		}
		if _, err := inventory.ApplyOutForOrder(ctx, st.Inventory, order.ID, lines, userID); err != nil {
			return err
		}
		if quote.voucher != nil {
			if _, err := vouchers.CommitUsage(ctx, st.Vouchers, quote.voucher.ID, userID, order.ID); err != nil {
				return err
			}
		}
		return st.Cart.RemoveItems(ctx, userID, productIDs)
	})
	if err != nil {
		s.release(ctx, key)
		s.metrics.Checkout(failureLabel(err))
		return orders.Order{}, err
	}

	s.metrics.Checkout("success")
	s.metrics.StockTransaction(string(inventory.TransactionTypeOut))
	if quote.voucher != nil {
		s.metrics.VoucherUsage(string(quote.voucher.DiscountType))
	}
	if s.orders != nil {
		s.orders.PublishCreated(ctx, order)
	}
	s.logger.Info("checkout completed",
		slog.Int64("order_id", order.ID),
		slog.Int64("user_id", userID),
		slog.String("total", order.Total.String()))
	return order, nil
}

func (s *Service) price(ctx context.Context, st TxStores, userID int64, req Request) (Quote, error) {
	lines, err := st.Cart.SelectedLines(ctx, userID)
	if err != nil {
		return Quote{}, err
	}
	if len(lines) == 0 {
		return Quote{}, ErrCartEmpty
	}
	subtotal := decimal.Zero
	for _, l := range lines {
		if !l.Active {
			return Quote{}, fmt.Errorf("checkout: product %d: %w", l.ProductID, cart.ErrProductUnavailable)
		}
		subtotal = subtotal.Add(l.LineTotal())
	}
	subtotal = shared.RoundMoney(subtotal)

	ship, err := s.shipping.Fee(ctx, subtotal, req.FulfillmentMethod == orders.FulfillmentMethodPickup, req.Receiver.Address)
	if err != nil {
		return Quote{}, err
	}
	quote := Quote{
		Lines:        lines,
		Subtotal:     subtotal,
		ShippingFee:  ship.Fee,
		Discount:     decimal.Zero,
		FreeShipping: ship.Free,
	}
	if code := strings.TrimSpace(req.VoucherCode); code != "" {
		res, err := vouchers.Validate(ctx, st.Vouchers, vouchers.Check{
			Code:        code,
			OrderTotal:  subtotal,
			ShippingFee: ship.Fee,
			UserID:      userID,
		}, s.now())
		if err != nil {
			return Quote{}, err
		}
		if !res.Valid {
			return Quote{}, fmt.Errorf("checkout: voucher %s: %w", vouchers.NormalizeCode(code), res.Err)
		}
		v := res.Voucher
		quote.voucher = &v
		quote.VoucherCode = v.Code
		quote.ApplyTo = res.ApplyTo
		quote.Discount = res.DiscountValue
	}
	quote.Total = orders.TotalOf(quote.Subtotal, quote.Discount, quote.ShippingFee)
	return quote, nil
}

func (s *Service) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idem.Delete(ctx, key, idempotencyModule); err != nil {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func checkReceiver(req Request) error {
	if req.FulfillmentMethod == orders.FulfillmentMethodPickup {
		return nil
	}
	if strings.TrimSpace(req.Receiver.Name) == "" || strings.TrimSpace(req.Receiver.Phone) == "" {
		return ErrReceiverRequired
	}
	return nil
}

func failureLabel(err error) string {
	switch {
	case errors.Is(err, ErrCartEmpty):
		return "cart_empty"
	case errors.Is(err, inventory.ErrInsufficientInventory):
		return "insufficient_stock"
	case errors.Is(err, inventory.ErrDuplicateOutTransaction):
		return "duplicate"
	case isVoucherRejection(err):
		return "voucher_rejected"
	default:
		return "error"
	}
}

func isVoucherRejection(err error) bool {
	for _, target := range []error{
		vouchers.ErrVoucherNotFound,
		vouchers.ErrVoucherInactive,
		vouchers.ErrVoucherExpired,
		vouchers.ErrVoucherNotYetValid,
		vouchers.ErrOrderBelowMinAmount,
		vouchers.ErrVoucherUsageLimitReached,
		vouchers.ErrVoucherUserLimitExceeded,
		vouchers.ErrDuplicateVoucherUsage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
