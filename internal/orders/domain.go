package orders

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "COD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodEWallet      PaymentMethod = "E_WALLET"
)

// FulfillmentMethod is how goods reach the customer.
type FulfillmentMethod string

const (
	FulfillmentMethodDelivery FulfillmentMethod = "DELIVERY"
	FulfillmentMethodPickup   FulfillmentMethod = "PICKUP"
)

// Receiver is the delivery contact frozen at checkout.
type Receiver struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Order is the aggregate root for its items. Amounts are frozen at checkout.
type Order struct {
	ID                int64             `json:"id"`
	UserID            int64             `json:"user_id"`
	Subtotal          decimal.Decimal   `json:"subtotal"`
	Discount          decimal.Decimal   `json:"discount"`
	ShippingFee       decimal.Decimal   `json:"shipping_fee"`
	Total             decimal.Decimal   `json:"total"`
	Status            Status            `json:"status"`
	PaymentMethod     PaymentMethod     `json:"payment_method"`
	FulfillmentMethod FulfillmentMethod `json:"fulfillment_method"`
	VoucherID         *int64            `json:"voucher_id,omitempty"`
	VoucherCode       string            `json:"voucher_code,omitempty"`
	Receiver          Receiver          `json:"receiver"`
	Note              string            `json:"note,omitempty"`
	Items             []Item            `json:"items"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Item snapshots the product at purchase time.
type Item struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	ProductID    int64           `json:"product_id"`
	ProductTitle string          `json:"product_title"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// StatusChange is an entry of the order timeline.
type StatusChange struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Axis      Axis      `json:"axis"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Note      string    `json:"note,omitempty"`
	ActorID   int64     `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Draft carries everything needed to build a new order.
type Draft struct {
	UserID            int64
	Items             []Item
	Discount          decimal.Decimal
	ShippingFee       decimal.Decimal
	PaymentMethod     PaymentMethod
	FulfillmentMethod FulfillmentMethod
	VoucherID         *int64
	VoucherCode       string
	Receiver          Receiver
	Note              string
}

// ListFilter narrows order listings. UserID is forced for customers.
type ListFilter struct {
	UserID      int64
	Payment     PaymentStatus
	Fulfillment FulfillmentStatus
	Order       OrderStatus
	Page        shared.PageRequest
}

var (
	// ErrOrderNotFound is returned for unknown orders and for orders owned by someone else.
	ErrOrderNotFound = shared.NewError(4001, http.StatusNotFound, "order not found")
	// ErrInvalidOrder is returned when a draft breaks the amount invariants.
	ErrInvalidOrder = shared.NewError(4003, http.StatusBadRequest, "order amounts are inconsistent")
)

// Subtotal sums the line totals.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return shared.RoundMoney(sum)
}

// TotalOf applies total = subtotal - discount + shippingFee.
func TotalOf(subtotal, discount, shippingFee decimal.Decimal) decimal.Decimal {
	return shared.RoundMoney(subtotal.Sub(discount).Add(shippingFee))
}

// Build turns a draft into a new order in its initial state.
func Build(d Draft) (Order, error) {
	if len(d.Items) == 0 {
		return Order{}, fmt.Errorf("no items: %w", ErrInvalidOrder)
	}
	items := make([]Item, len(d.Items))
	for i, item := range d.Items {
		if item.Quantity <= 0 || item.UnitPrice.IsNegative() {
			return Order{}, fmt.Errorf("item %d: %w", i, ErrInvalidOrder)
		}
		item.LineTotal = shared.RoundMoney(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		items[i] = item
	}
	subtotal := Subtotal(items)
	discount := shared.RoundMoney(d.Discount)
	shipping := shared.RoundMoney(d.ShippingFee)
	if discount.IsNegative() || shipping.IsNegative() || discount.GreaterThan(subtotal.Add(shipping)) {
		return Order{}, fmt.Errorf("discount %s exceeds payable amount: %w", discount, ErrInvalidOrder)
	}
	fulfillment := d.FulfillmentMethod
	if fulfillment == "" {
		fulfillment = FulfillmentMethodDelivery
	}
	return Order{
		UserID:            d.UserID,
		Subtotal:          subtotal,
		Discount:          discount,
		ShippingFee:       shipping,
		Total:             TotalOf(subtotal, discount, shipping),
		Status:            InitialStatus(fulfillment),
		PaymentMethod:     d.PaymentMethod,
		FulfillmentMethod: fulfillment,
		VoucherID:         d.VoucherID,
		VoucherCode:       d.VoucherCode,
		Receiver:          d.Receiver,
		Note:              d.Note,
		Items:             items,
	}, nil
}

// TotalConsistent checks the frozen amount invariant.
func (o Order) TotalConsistent() bool {
	return o.Total.Equal(TotalOf(o.Subtotal, o.Discount, o.ShippingFee))
}

// OwnedBy reports whether userID placed the order.
func (o Order) OwnedBy(userID int64) bool {
	return o.UserID == userID
}
