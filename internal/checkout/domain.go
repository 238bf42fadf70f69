// Package checkout turns the selected cart lines into an order in one transaction.
package checkout

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven/internal/cart"
	"github.com/bookhaven/bookhaven/internal/orders"
	"github.com/bookhaven/bookhaven/internal/shared"
	"github.com/bookhaven/bookhaven/internal/vouchers"
)

// Request is the customer's checkout form.
type Request struct {
	VoucherCode       string                   `json:"voucher_code" validate:"max=32"`
	PaymentMethod     orders.PaymentMethod     `json:"payment_method" validate:"required,oneof=COD BANK_TRANSFER E_WALLET"`
	FulfillmentMethod orders.FulfillmentMethod `json:"fulfillment_method" validate:"required,oneof=DELIVERY PICKUP"`
	Receiver          orders.Receiver          `json:"receiver"`
	Note              string                   `json:"note" validate:"max=500"`
	// IdempotencyKey comes from the Idempotency-Key header.
	IdempotencyKey string `json:"-"`
}

// Quote is the priced preview of a checkout.
type Quote struct {
	Lines        []cart.Line      `json:"lines"`
	Subtotal     decimal.Decimal  `json:"subtotal"`
	ShippingFee  decimal.Decimal  `json:"shipping_fee"`
	Discount     decimal.Decimal  `json:"discount"`
	Total        decimal.Decimal  `json:"total"`
	VoucherCode  string           `json:"voucher_code,omitempty"`
	ApplyTo      vouchers.ApplyTo `json:"apply_to,omitempty"`
	FreeShipping bool             `json:"free_shipping"`
	voucher      *vouchers.Voucher
}

var (
	// ErrCartEmpty is returned when no cart line is selected.
	ErrCartEmpty = shared.NewError(6002, http.StatusUnprocessableEntity, "cart is empty")
	// ErrDuplicateCheckout is returned when an Idempotency-Key is replayed.
	ErrDuplicateCheckout = shared.NewError(6003, http.StatusConflict, "checkout already processed")
	// ErrReceiverRequired is returned for deliveries without receiver name or phone.
	ErrReceiverRequired = shared.NewError(6006, http.StatusBadRequest, "receiver name and phone are required for delivery")
)
