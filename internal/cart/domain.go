// Package cart keeps one shopping cart per user.
package cart

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// Line is a cart item joined with the product's current title and price.
type Line struct {
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Selected  bool            `json:"selected"`
	Active    bool            `json:"active"`
	Stock     int             `json:"stock"`
}

// LineTotal is unit price times quantity.
func (l Line) LineTotal() decimal.Decimal {
	return shared.RoundMoney(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
}

// Cart is the user's cart with totals over the selected lines.
type Cart struct {
	UserID           int64           `json:"user_id"`
	Lines            []Line          `json:"lines"`
	SelectedCount    int             `json:"selected_count"`
	SelectedSubtotal decimal.Decimal `json:"selected_subtotal"`
}

// Summarize derives the selected totals.
func Summarize(userID int64, lines []Line) Cart {
	c := Cart{UserID: userID, Lines: lines, SelectedSubtotal: decimal.Zero}
	if c.Lines == nil {
		c.Lines = []Line{}
	}
	for _, l := range lines {
		if !l.Selected {
			continue
		}
		c.SelectedCount++
		c.SelectedSubtotal = c.SelectedSubtotal.Add(l.LineTotal())
	}
	return c
}

// MaxQuantity bounds a single line.
const MaxQuantity = 99

var (
	// ErrCartItemNotFound reports a product that is not in the cart.
	ErrCartItemNotFound = shared.NewError(6001, http.StatusNotFound, "cart item not found")
	// ErrProductUnavailable reports an inactive product.
	ErrProductUnavailable = shared.NewError(6004, http.StatusUnprocessableEntity, "product is not available")
	// ErrQuantityTooLarge reports a line above MaxQuantity.
	ErrQuantityTooLarge = shared.NewError(6005, http.StatusUnprocessableEntity, "quantity exceeds the per-item limit")
)
