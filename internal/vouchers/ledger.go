package vouchers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// Reader is the read side used by validation.
type Reader interface {
	GetByCode(ctx context.Context, code string) (Voucher, error)
	CountUsages(ctx context.Context, voucherID int64) (int, error)
	CountUserUsages(ctx context.Context, voucherID, userID int64) (int, error)
}

// TxRepository adds the writes that must run under the voucher row lock.
type TxRepository interface {
	Reader
	// LockByID loads the voucher with SELECT ... FOR UPDATE.
	LockByID(ctx context.Context, id int64) (Voucher, error)
	// InsertUsage fails with ErrDuplicateVoucherUsage when the (voucher, order) pair exists.
	InsertUsage(ctx context.Context, usage Usage) (Usage, error)
}

// Discount computes the amount taken off for the given totals. The result never
// exceeds the base it applies to.
func Discount(v Voucher, orderTotal, shippingFee decimal.Decimal) decimal.Decimal {
	base := orderTotal
	if v.ApplyTo == ApplyToShipping {
		base = shippingFee
	}
	if !base.IsPositive() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch v.DiscountType {
	case DiscountFixed:
		amount = v.DiscountAmount
	case DiscountPercent:
		amount = base.Mul(v.DiscountAmount).Div(hundred)
		if v.MaxDiscount != nil && amount.GreaterThan(*v.MaxDiscount) {
			amount = *v.MaxDiscount
		}
	default:
		return decimal.Zero
	}
	return shared.RoundMoney(shared.MinDecimal(amount, base))
}

// Evaluate runs the ordered eligibility checks against counts read by the caller.
func Evaluate(v Voucher, check Check, used, usedByUser int, now time.Time) error {
	switch {
	case !v.Active:
		return ErrVoucherInactive
	case now.Before(v.ValidFrom):
		return ErrVoucherNotYetValid
	case now.After(v.ValidTo):
		return ErrVoucherExpired
	case check.OrderTotal.LessThan(v.MinOrderAmount):
		return ErrOrderBelowMinAmount
	case v.UsageLimit != nil && used >= *v.UsageLimit:
		return ErrVoucherUsageLimitReached
	case check.UserID != 0 && v.PerUserLimit != nil && usedByUser >= *v.PerUserLimit:
		return ErrVoucherUserLimitExceeded
	}
	return nil
}

// Validate looks the code up and evaluates it. The returned error is reserved for
// infrastructure failures; business rejections are reported in Result.Err.
func Validate(ctx context.Context, r Reader, check Check, now time.Time) (Result, error) {
	v, err := r.GetByCode(ctx, NormalizeCode(check.Code))
	if err != nil {
		if errors.Is(err, ErrVoucherNotFound) {
			return Result{Err: ErrVoucherNotFound}, nil
		}
		return Result{}, err
	}
	used, err := r.CountUsages(ctx, v.ID)
	if err != nil {
		return Result{}, err
	}
	usedByUser := 0
	if check.UserID != 0 {
		if usedByUser, err = r.CountUserUsages(ctx, v.ID, check.UserID); err != nil {
			return Result{}, err
		}
	}
	v.UsedCount = used
	if err := Evaluate(v, check, used, usedByUser, now); err != nil {
		return Result{Voucher: v, ApplyTo: v.ApplyTo, Err: err}, nil
	}
	return Result{
		Valid:         true,
		Voucher:       v,
		DiscountValue: Discount(v, check.OrderTotal, check.ShippingFee),
		ApplyTo:       v.ApplyTo,
	}, nil
}

// CommitUsage records a redemption. Limits are re-checked under the voucher row lock
// so concurrent commits cannot exceed them.
func CommitUsage(ctx context.Context, tx TxRepository, voucherID, userID, orderID int64) (Usage, error) {
	v, err := tx.LockByID(ctx, voucherID)
	if err != nil {
		return Usage{}, err
	}
	if v.UsageLimit != nil {
		used, err := tx.CountUsages(ctx, voucherID)
		if err != nil {
			return Usage{}, err
		}
		if used >= *v.UsageLimit {
			return Usage{}, fmt.Errorf("vouchers: %s: %w", v.Code, ErrVoucherUsageLimitReached)
		}
	}
	if v.PerUserLimit != nil {
		used, err := tx.CountUserUsages(ctx, voucherID, userID)
		if err != nil {
			return Usage{}, err
		}
		if used >= *v.PerUserLimit {
			return Usage{}, fmt.Errorf("vouchers: %s: %w", v.Code, ErrVoucherUserLimitExceeded)
		}
	}
	return tx.InsertUsage(ctx, Usage{VoucherID: voucherID, UserID: userID, OrderID: orderID})
}

// CheckDefinition validates the cross-field rules of a voucher definition.
func CheckDefinition(in Input) error {
	if !in.DiscountAmount.IsPositive() {
		return fmt.Errorf("discount amount must be positive: %w", ErrVoucherInvalid)
	}
	if in.DiscountType == DiscountPercent && in.DiscountAmount.GreaterThan(hundred) {
		return fmt.Errorf("percentage above 100: %w", ErrVoucherInvalid)
	}
	if in.MinOrderAmount.IsNegative() {
		return fmt.Errorf("minimum order amount is negative: %w", ErrVoucherInvalid)
	}
	if in.MaxDiscount != nil && !in.MaxDiscount.IsPositive() {
		return fmt.Errorf("max discount must be positive: %w", ErrVoucherInvalid)
	}
	if !in.ValidTo.After(in.ValidFrom) {
		return fmt.Errorf("valid_to must be after valid_from: %w", ErrVoucherInvalid)
	}
	return nil
}
