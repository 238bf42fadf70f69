package inventory

import (
	"net/http"

	"github.com/bookhaven/bookhaven/internal/shared"
)

var (
	// ErrInsufficientInventory is returned when a MINUS item would drive stock below zero.
	ErrInsufficientInventory = shared.NewError(3001, http.StatusConflict, "insufficient inventory")
	// ErrDuplicateOutTransaction guards against deducting stock twice for one reference.
	ErrDuplicateOutTransaction = shared.NewError(3002, http.StatusConflict, "stock already deducted for this reference")
	// ErrInvalidChangeType is returned when an item's sign is not allowed for the header type.
	ErrInvalidChangeType = shared.NewError(3003, http.StatusBadRequest, "change type not allowed for transaction type")
	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = shared.NewError(3004, http.StatusBadRequest, "quantity must be greater than zero")
	// ErrUnitPriceRequired is returned for IN items without a positive unit price.
	ErrUnitPriceRequired = shared.NewError(3005, http.StatusBadRequest, "unit price is required for inbound items")
	// ErrTransactionNotFound is returned by header lookups.
	ErrTransactionNotFound = shared.NewError(3006, http.StatusNotFound, "inventory transaction not found")
	// ErrNothingToCompensate is returned when reversing an order without an OUT header.
	ErrNothingToCompensate = shared.NewError(3007, http.StatusConflict, "no stock deduction to compensate")
	// ErrAlreadyCompensated is returned when an order's OUT header was already reversed.
	ErrAlreadyCompensated = shared.NewError(3008, http.StatusConflict, "stock deduction already compensated")
	// ErrNoItems is returned for headers without items.
	ErrNoItems = shared.NewError(3009, http.StatusBadRequest, "transaction requires at least one item")
	// ErrInvalidTransactionType covers unknown transaction or reference types.
	ErrInvalidTransactionType = shared.NewError(3010, http.StatusBadRequest, "invalid transaction or reference type")
	// ErrInvalidUnitPrice is returned for a supplied unit price that is not positive.
	ErrInvalidUnitPrice = shared.NewError(3011, http.StatusBadRequest, "unit price must be greater than zero")
)
