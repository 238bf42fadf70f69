// Package invoices issues one invoice per paid order.
package invoices

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// Invoice snapshots the amount billed for an order.
type Invoice struct {
	ID       int64           `json:"id"`
	OrderID  int64           `json:"order_id"`
	UserID   int64           `json:"user_id"`
	Number   string          `json:"number"`
	Amount   decimal.Decimal `json:"amount"`
	IssuedAt time.Time       `json:"issued_at"`
}

// ErrInvoiceNotFound reports a missing invoice.
var ErrInvoiceNotFound = shared.NewError(8001, http.StatusNotFound, "invoice not found")

// Number formats INV-YYYYMMDD-<orderID> using the issue date in UTC.
func Number(orderID int64, issuedAt time.Time) string {
	return fmt.Sprintf("INV-%s-%d", issuedAt.UTC().Format("20060102"), orderID)
}
