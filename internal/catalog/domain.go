// Package catalog manages products and their price history.
package catalog

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// Product is a sellable book. Stock is a cached counter owned by the inventory ledger.
type Product struct {
	ID          int64           `json:"id"`
	SKU         string          `json:"sku"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PriceChange is an append-only price history entry. ChangePercentage is nil when
// the old price was zero.
type PriceChange struct {
	ID               int64            `json:"id"`
	ProductID        int64            `json:"product_id"`
	OldPrice         decimal.Decimal  `json:"old_price"`
	NewPrice         decimal.Decimal  `json:"new_price"`
	ChangePercentage *decimal.Decimal `json:"change_percentage"`
	ChangedBy        int64            `json:"changed_by"`
	ChangedAt        time.Time        `json:"changed_at"`
}

// Input carries the editable product fields.
type Input struct {
	SKU         string          `json:"sku" validate:"required,max=64"`
	Title       string          `json:"title" validate:"required,max=255"`
	Author      string          `json:"author" validate:"required,max=255"`
	Description string          `json:"description" validate:"max=4000"`
	Price       decimal.Decimal `json:"price"`
	Active      *bool           `json:"active,omitempty"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	Search     string
	ActiveOnly bool
	Page       shared.PageRequest
}

var (
	// ErrProductNotFound aliases the shared catalog entry.
	ErrProductNotFound = shared.ErrProductNotFound
	// ErrSKUExists reports a duplicate SKU.
	ErrSKUExists = shared.NewError(2002, http.StatusConflict, "sku already exists")
	// ErrInvalidPrice reports a negative price.
	ErrInvalidPrice = shared.NewError(2003, http.StatusBadRequest, "price must not be negative")
)

// NormalizeSearch folds a search term to NFKC lower case with single spaces.
func NormalizeSearch(term string) string {
	folded := cases.Lower(language.Und).String(norm.NFKC.String(term))
	return strings.Join(strings.Fields(folded), " ")
}

// NewPriceChange derives the history entry for a price update.
func NewPriceChange(productID int64, oldPrice, newPrice decimal.Decimal, actorID int64) PriceChange {
	change := PriceChange{ProductID: productID, OldPrice: oldPrice, NewPrice: newPrice, ChangedBy: actorID}
	if pct, ok := shared.ChangePercentage(oldPrice, newPrice); ok {
		change.ChangePercentage = &pct
	}
	return change
}
