package vouchers

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// DiscountType selects how DiscountAmount is interpreted.
type DiscountType string

const (
	DiscountPercent DiscountType = "PERCENT"
	DiscountFixed   DiscountType = "FIXED"
)

// ApplyTo selects the amount a discount is taken from.
type ApplyTo string

const (
	ApplyToOrder    ApplyTo = "ORDER"
	ApplyToShipping ApplyTo = "SHIPPING"
)

// Voucher is a discount definition. UsedCount is derived from voucher_usages.
type Voucher struct {
	ID             int64            `json:"id"`
	Code           string           `json:"code"`
	Description    string           `json:"description,omitempty"`
	DiscountType   DiscountType     `json:"discount_type"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	ApplyTo        ApplyTo          `json:"apply_to"`
	MinOrderAmount decimal.Decimal  `json:"min_order_amount"`
	MaxDiscount    *decimal.Decimal `json:"max_discount,omitempty"`
	ValidFrom      time.Time        `json:"valid_from"`
	ValidTo        time.Time        `json:"valid_to"`
	UsageLimit     *int             `json:"usage_limit,omitempty"`
	PerUserLimit   *int             `json:"per_user_limit,omitempty"`
	Active         bool             `json:"active"`
	UsedCount      int              `json:"used_count"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Usage is an append-only redemption record, unique per (voucher, order).
type Usage struct {
	ID        int64     `json:"id"`
	VoucherID int64     `json:"voucher_id"`
	UserID    int64     `json:"user_id"`
	OrderID   int64     `json:"order_id"`
	UsedAt    time.Time `json:"used_at"`
}

// Check is a validation request.
type Check struct {
	Code        string
	OrderTotal  decimal.Decimal
	ShippingFee decimal.Decimal
	UserID      int64
}

// Result reports the outcome of validating a code. Err carries the business rejection
// when Valid is false.
type Result struct {
	Valid         bool
	Voucher       Voucher
	DiscountValue decimal.Decimal
	ApplyTo       ApplyTo
	Err           error
}

// Input carries the editable voucher fields.
type Input struct {
	Code           string           `json:"code" validate:"required,min=3,max=32"`
	Description    string           `json:"description" validate:"max=255"`
	DiscountType   DiscountType     `json:"discount_type" validate:"required,oneof=PERCENT FIXED"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	ApplyTo        ApplyTo          `json:"apply_to" validate:"required,oneof=ORDER SHIPPING"`
	MinOrderAmount decimal.Decimal  `json:"min_order_amount"`
	MaxDiscount    *decimal.Decimal `json:"max_discount,omitempty"`
	ValidFrom      time.Time        `json:"valid_from" validate:"required"`
	ValidTo        time.Time        `json:"valid_to" validate:"required"`
	UsageLimit     *int             `json:"usage_limit,omitempty" validate:"omitempty,gte=1"`
	PerUserLimit   *int             `json:"per_user_limit,omitempty" validate:"omitempty,gte=1"`
	Active         bool             `json:"active"`
}

// ListFilter narrows admin listings.
type ListFilter struct {
	Active *bool
	Search string
	Page   shared.PageRequest
}

// NormalizeCode trims and upper-cases a voucher code.
func NormalizeCode(code string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(code))
}
