package vouchers

import (
	"net/http"

	"github.com/bookhaven/bookhaven/internal/shared"
)

var (
	ErrVoucherNotFound          = shared.NewError(5001, http.StatusNotFound, "voucher not found")
	ErrVoucherInactive          = shared.NewError(5002, http.StatusUnprocessableEntity, "voucher is inactive")
	ErrVoucherExpired           = shared.NewError(5003, http.StatusUnprocessableEntity, "voucher has expired")
	ErrVoucherNotYetValid       = shared.NewError(5004, http.StatusUnprocessableEntity, "voucher is not yet valid")
	ErrOrderBelowMinAmount      = shared.NewError(5005, http.StatusUnprocessableEntity, "order total is below the voucher minimum")
	ErrVoucherUsageLimitReached = shared.NewError(5006, http.StatusConflict, "voucher usage limit reached")
	ErrVoucherUserLimitExceeded = shared.NewError(5007, http.StatusConflict, "voucher per-user limit exceeded")
	ErrDuplicateVoucherUsage    = shared.NewError(5008, http.StatusConflict, "voucher already applied to this order")
	ErrVoucherCodeExists        = shared.NewError(5009, http.StatusConflict, "voucher code already exists")
	ErrVoucherInvalid           = shared.NewError(5010, http.StatusBadRequest, "voucher definition is invalid")
)
