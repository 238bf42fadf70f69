package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// TransactionType enumerates ledger header kinds.
type TransactionType string

const (
	// TransactionTypeIn represents an inbound movement (purchase, return, compensation).
	TransactionTypeIn TransactionType = "IN"
	// TransactionTypeOut represents a sale.
	TransactionTypeOut TransactionType = "OUT"
	// TransactionTypeDamaged writes off damaged stock.
	TransactionTypeDamaged TransactionType = "DAMAGED"
	// TransactionTypeStocktake reconciles counted stock in either direction.
	TransactionTypeStocktake TransactionType = "STOCKTAKE"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeIn, TransactionTypeOut, TransactionTypeDamaged, TransactionTypeStocktake:
		return true
	}
	return false
}

// ReferenceType names what a header was written for.
type ReferenceType string

const (
	ReferenceOrder     ReferenceType = "ORDER"
	ReferenceManual    ReferenceType = "MANUAL"
	ReferenceStocktake ReferenceType = "STOCKTAKE"
)

// Valid reports whether r is a known reference type.
func (r ReferenceType) Valid() bool {
	switch r {
	case ReferenceOrder, ReferenceManual, ReferenceStocktake:
		return true
	}
	return false
}

// ChangeType is the sign of an item. Quantities are always stored positive.
type ChangeType string

const (
	ChangePlus  ChangeType = "PLUS"
	ChangeMinus ChangeType = "MINUS"
)

// Header is one stock-affecting event. It owns its items and is never mutated after insert.
type Header struct {
	ID            int64           `json:"id"`
	Type          TransactionType `json:"transaction_type"`
	ReferenceType ReferenceType   `json:"reference_type"`
	ReferenceID   int64           `json:"reference_id"`
	Note          string          `json:"note,omitempty"`
	CreatedBy     int64           `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []Item          `json:"items"`
}

// Item is a per-product line of a header.
type Item struct {
	ID         int64            `json:"id"`
	HeaderID   int64            `json:"header_id"`
	ProductID  int64            `json:"product_id"`
	ChangeType ChangeType       `json:"change_type"`
	Quantity   int              `json:"quantity"`
	UnitPrice  *decimal.Decimal `json:"unit_price,omitempty"`
	TotalPrice *decimal.Decimal `json:"total_price,omitempty"`
}

// Delta returns the signed stock change of the item.
func (i Item) Delta() int {
	if i.ChangeType == ChangeMinus {
		return -i.Quantity
	}
	return i.Quantity
}

// ItemInput describes one requested line.
type ItemInput struct {
	ProductID  int64            `json:"product_id" validate:"required,gt=0"`
	ChangeType ChangeType       `json:"change_type" validate:"required,oneof=PLUS MINUS"`
	Quantity   int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice  *decimal.Decimal `json:"unit_price,omitempty"`
}

// ApplyInput is a full ledger request.
type ApplyInput struct {
	Type          TransactionType `json:"transaction_type" validate:"required,oneof=IN OUT DAMAGED STOCKTAKE"`
	ReferenceType ReferenceType   `json:"reference_type" validate:"required,oneof=ORDER MANUAL STOCKTAKE"`
	ReferenceID   int64           `json:"reference_id"`
	Items         []ItemInput     `json:"items" validate:"required,min=1,dive"`
	Note          string          `json:"note" validate:"max=500"`
	ActorID       int64           `json:"-"`

	// compensation marks an IN that mirrors an order's OUT; its lines keep the OUT
	// prices, which may be absent.
	compensation bool
}

// OrderLine is a line of an order being shipped out of stock.
type OrderLine struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// ListFilter narrows header listings. Zero values are ignored.
type ListFilter struct {
	Type          TransactionType
	ReferenceType ReferenceType
	ReferenceID   int64
	ProductID     int64
	Page          shared.PageRequest
}

// StockCardEntry is one header's effect on a single product, with the running balance.
type StockCardEntry struct {
	HeaderID      int64           `json:"header_id"`
	Type          TransactionType `json:"transaction_type"`
	ReferenceType ReferenceType   `json:"reference_type"`
	ReferenceID   int64           `json:"reference_id"`
	CreatedAt     time.Time       `json:"created_at"`
	QtyIn         int             `json:"qty_in"`
	QtyOut        int             `json:"qty_out"`
	Balance       int             `json:"balance"`
	Note          string          `json:"note,omitempty"`
}

// Movement is a raw per-product ledger row used to build stock cards.
type Movement struct {
	HeaderID      int64
	Type          TransactionType
	ReferenceType ReferenceType
	ReferenceID   int64
	CreatedAt     time.Time
	Note          string
	ChangeType    ChangeType
	Quantity      int
}

// Drift reports a product whose cached stock differs from its ledger sum.
type Drift struct {
	ProductID   int64 `json:"product_id"`
	CachedStock int   `json:"cached_stock"`
	LedgerStock int   `json:"ledger_stock"`
}
