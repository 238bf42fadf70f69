package vouchers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven/internal/vouchers"
	"github.com/bookhaven/bookhaven/internal/vouchers/voucherstest"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func intPtr(v int) *int {
	return &v
}

func activeVoucher(code string) vouchers.Voucher {
	return vouchers.Voucher{
		Code:           code,
		DiscountType:   vouchers.DiscountFixed,
		DiscountAmount: dec("50000"),
		ApplyTo:        vouchers.ApplyToOrder,
		MinOrderAmount: dec("0"),
		ValidFrom:      now.Add(-24 * time.Hour),
		ValidTo:        now.Add(24 * time.Hour),
		Active:         true,
	}
}

func TestDiscount(t *testing.T) {
	maxCap := dec("20000")
	cases := []struct {
		name     string
		voucher  vouchers.Voucher
		total    string
		shipping string
		want     string
	}{
		{"fixed below base", vouchers.Voucher{DiscountType: vouchers.DiscountFixed, DiscountAmount: dec("50000"), ApplyTo: vouchers.ApplyToOrder}, "120000", "30000", "50000"},
		{"fixed capped at base", vouchers.Voucher{DiscountType: vouchers.DiscountFixed, DiscountAmount: dec("50000"), ApplyTo: vouchers.ApplyToOrder}, "40000", "30000", "40000"},
		{"fixed on shipping", vouchers.Voucher{DiscountType: vouchers.DiscountFixed, DiscountAmount: dec("50000"), ApplyTo: vouchers.ApplyToShipping}, "400000", "30000", "30000"},
		{"percent", vouchers.Voucher{DiscountType: vouchers.DiscountPercent, DiscountAmount: dec("10"), ApplyTo: vouchers.ApplyToOrder}, "150000", "0", "15000"},
		{"percent rounds half up", vouchers.Voucher{DiscountType: vouchers.DiscountPercent, DiscountAmount: dec("10"), ApplyTo: vouchers.ApplyToOrder}, "12345.65", "0", "1234.57"},
		{"percent capped", vouchers.Voucher{DiscountType: vouchers.DiscountPercent, DiscountAmount: dec("25"), ApplyTo: vouchers.ApplyToOrder, MaxDiscount: &maxCap}, "200000", "0", "20000"},
		{"percent on shipping", vouchers.Voucher{DiscountType: vouchers.DiscountPercent, DiscountAmount: dec("50"), ApplyTo: vouchers.ApplyToShipping}, "90000", "25000", "12500"},
		{"free shipping leaves nothing", vouchers.Voucher{DiscountType: vouchers.DiscountFixed, DiscountAmount: dec("10000"), ApplyTo: vouchers.ApplyToShipping}, "90000", "0", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := vouchers.Discount(tc.voucher, dec(tc.total), dec(tc.shipping))
			require.True(t, got.Equal(dec(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestValidateCheckOrder(t *testing.T) {
	ctx := context.Background()
	store := voucherstest.NewStore()

	inactive := activeVoucher("OFF")
	inactive.Active = false
	store.Add(inactive)

	future := activeVoucher("SOON")
	future.ValidFrom = now.Add(time.Hour)
	store.Add(future)

	past := activeVoucher("OLD")
	past.ValidTo = now.Add(-time.Hour)
	store.Add(past)

	minOrder := activeVoucher("MIN100")
	minOrder.MinOrderAmount = dec("100000")
	store.Add(minOrder)

	limited := store.Add(func() vouchers.Voucher { v := activeVoucher("ONCE"); v.UsageLimit = intPtr(1); return v }())
	perUser := store.Add(func() vouchers.Voucher { v := activeVoucher("MINE"); v.PerUserLimit = intPtr(1); return v }())

	_, err := vouchers.CommitUsage(ctx, store.Tx(), limited.ID, 1, 500)
	require.NoError(t, err)
	_, err = vouchers.CommitUsage(ctx, store.Tx(), perUser.ID, 7, 501)
	require.NoError(t, err)

	cases := []struct {
		code   string
		total  string
		userID int64
		want   error
	}{
		{"missing", "80000", 1, vouchers.ErrVoucherNotFound},
		{"off", "80000", 1, vouchers.ErrVoucherInactive},
		{"SOON", "80000", 1, vouchers.ErrVoucherNotYetValid},
		{"OLD", "80000", 1, vouchers.ErrVoucherExpired},
		{"MIN100", "80000", 1, vouchers.ErrOrderBelowMinAmount},
		{"ONCE", "80000", 2, vouchers.ErrVoucherUsageLimitReached},
		{"MINE", "80000", 7, vouchers.ErrVoucherUserLimitExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			result, err := vouchers.Validate(ctx, store.Reader(), vouchers.Check{Code: tc.code, OrderTotal: dec(tc.total), UserID: tc.userID}, now)
			require.NoError(t, err)
			require.False(t, result.Valid)
			require.ErrorIs(t, result.Err, tc.want)
		})
	}

	result, err := vouchers.Validate(ctx, store.Reader(), vouchers.Check{Code: "mine", OrderTotal: dec("80000"), UserID: 8}, now)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.True(t, result.DiscountValue.Equal(dec("50000")))
	require.Equal(t, vouchers.ApplyToOrder, result.ApplyTo)
}

func TestValidateBelowMinimumScenario(t *testing.T) {
	store := voucherstest.NewStore()
	v := activeVoucher("SAVE50K")
	v.MinOrderAmount = dec("100000")
	store.Add(v)

	result, err := vouchers.Validate(context.Background(), store.Reader(), vouchers.Check{Code: "SAVE50K", OrderTotal: dec("80000")}, now)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.ErrorIs(t, result.Err, vouchers.ErrOrderBelowMinAmount)
	require.True(t, result.DiscountValue.IsZero())
}

func TestCommitUsageRejectsDoubleCommitForOrder(t *testing.T) {
	ctx := context.Background()
	store := voucherstest.NewStore()
	v := store.Add(activeVoucher("TWICE"))

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx vouchers.TxRepository) error {
		_, err := vouchers.CommitUsage(ctx, tx, v.ID, 1, 10)
		return err
	}))
	err := store.WithTx(ctx, func(ctx context.Context, tx vouchers.TxRepository) error {
		_, err := vouchers.CommitUsage(ctx, tx, v.ID, 1, 10)
		return err
	})
	require.ErrorIs(t, err, vouchers.ErrDuplicateVoucherUsage)
	require.Len(t, store.Usages(), 1)
}

func TestConcurrentCommitsRespectUsageLimit(t *testing.T) {
	ctx := context.Background()
	store := voucherstest.NewStore()
	v := activeVoucher("LIMITED")
	v.UsageLimit = intPtr(3)
	v = store.Add(v)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		limited int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.WithTx(ctx, func(ctx context.Context, tx vouchers.TxRepository) error {
				_, err := vouchers.CommitUsage(ctx, tx, v.ID, int64(i+1), int64(1000+i))
				return err
			})
			if errors.Is(err, vouchers.ErrVoucherUsageLimitReached) {
				mu.Lock()
				limited++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, store.Usages(), 3)
	require.Equal(t, 7, limited)
}

func TestCheckDefinition(t *testing.T) {
	base := vouchers.Input{
		Code:           "NEW",
		DiscountType:   vouchers.DiscountPercent,
		DiscountAmount: dec("15"),
		ApplyTo:        vouchers.ApplyToOrder,
		ValidFrom:      now,
		ValidTo:        now.Add(time.Hour),
	}
	require.NoError(t, vouchers.CheckDefinition(base))

	tooMuch := base
	tooMuch.DiscountAmount = dec("120")
	require.ErrorIs(t, vouchers.CheckDefinition(tooMuch), vouchers.ErrVoucherInvalid)

	backwards := base
	backwards.ValidTo = now.Add(-time.Hour)
	require.ErrorIs(t, vouchers.CheckDefinition(backwards), vouchers.ErrVoucherInvalid)

	zero := base
	zero.DiscountAmount = decimal.Zero
	require.ErrorIs(t, vouchers.CheckDefinition(zero), vouchers.ErrVoucherInvalid)
}
