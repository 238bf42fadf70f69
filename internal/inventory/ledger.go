package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// TxRepository exposes the ledger writes that must share one database transaction.
type TxRepository interface {
	// InsertHeader stores the header and returns it with ID and CreatedAt set. A second
	// OUT for the same reference fails with ErrDuplicateOutTransaction.
	InsertHeader(ctx context.Context, header Header) (Header, error)
	InsertItems(ctx context.Context, headerID int64, items []Item) ([]Item, error)
	// AdjustStock applies delta to the product's cached stock counter. Negative deltas
	// only succeed when the current stock covers them.
	AdjustStock(ctx context.Context, productID int64, delta int) (int, error)
	FindByReference(ctx context.Context, txType TransactionType, refType ReferenceType, refID int64) (Header, error)
}

var allowedChanges = map[TransactionType][]ChangeType{
	TransactionTypeIn:        {ChangePlus},
	TransactionTypeOut:       {ChangeMinus},
	TransactionTypeDamaged:   {ChangeMinus},
	TransactionTypeStocktake: {ChangePlus, ChangeMinus},
}

// Allowed reports whether change may appear on a header of type txType.
func Allowed(txType TransactionType, change ChangeType) bool {
	for _, c := range allowedChanges[txType] {
		if c == change {
			return true
		}
	}
	return false
}

// Validate checks a request and returns the items to persist, with totals derived.
func Validate(in ApplyInput) ([]Item, error) {
	if !in.Type.Valid() || !in.ReferenceType.Valid() {
		return nil, ErrInvalidTransactionType
	}
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	items := make([]Item, 0, len(in.Items))
	for i, input := range in.Items {
		if input.ProductID <= 0 {
			return nil, fmt.Errorf("item %d: %w", i, shared.ErrProductNotFound)
		}
		if input.Quantity <= 0 {
			return nil, fmt.Errorf("item %d: %w", i, ErrInvalidQuantity)
		}
		if !Allowed(in.Type, input.ChangeType) {
			return nil, fmt.Errorf("item %d: %s on %s: %w", i, input.ChangeType, in.Type, ErrInvalidChangeType)
		}
		hasPrice := input.UnitPrice != nil && input.UnitPrice.IsPositive()
		if in.Type == TransactionTypeIn && !hasPrice && !(in.compensation && input.UnitPrice == nil) {
			return nil, fmt.Errorf("item %d: %w", i, ErrUnitPriceRequired)
		}
		if input.UnitPrice != nil && !hasPrice {
			return nil, fmt.Errorf("item %d: %w", i, ErrInvalidUnitPrice)
		}
		item := Item{ProductID: input.ProductID, ChangeType: input.ChangeType, Quantity: input.Quantity}
		if input.UnitPrice != nil {
			price := shared.RoundMoney(*input.UnitPrice)
			total := shared.RoundMoney(price.Mul(decimal.NewFromInt(int64(input.Quantity))))
			item.UnitPrice = &price
			item.TotalPrice = &total
		}
		items = append(items, item)
	}
	return items, nil
}

// Apply validates and writes a header with its items, moving stock item by item. Any
// failure leaves the caller's transaction to roll back the whole header.
func Apply(ctx context.Context, tx TxRepository, in ApplyInput) (Header, error) {
	items, err := Validate(in)
	if err != nil {
		return Header{}, err
	}
	header, err := tx.InsertHeader(ctx, Header{
		Type:          in.Type,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		Note:          in.Note,
		CreatedBy:     in.ActorID,
	})
	if err != nil {
		return Header{}, err
	}
	for _, item := range items {
		if _, err := tx.AdjustStock(ctx, item.ProductID, item.Delta()); err != nil {
			return Header{}, fmt.Errorf("inventory: product %d: %w", item.ProductID, err)
		}
	}
	saved, err := tx.InsertItems(ctx, header.ID, items)
	if err != nil {
		return Header{}, err
	}
	header.Items = saved
	return header, nil
}

// ApplyOutForOrder deducts stock for every order line under a single OUT header.
func ApplyOutForOrder(ctx context.Context, tx TxRepository, orderID int64, lines []OrderLine, actorID int64) (Header, error) {
	_, err := tx.FindByReference(ctx, TransactionTypeOut, ReferenceOrder, orderID)
	switch {
	case err == nil:
		return Header{}, fmt.Errorf("inventory: order %d: %w", orderID, ErrDuplicateOutTransaction)
	case !errors.Is(err, ErrTransactionNotFound):
		return Header{}, err
	}
	items := make([]ItemInput, 0, len(lines))
	for _, line := range lines {
		item := ItemInput{ProductID: line.ProductID, ChangeType: ChangeMinus, Quantity: line.Quantity}
		// free lines are recorded without a price
		if line.UnitPrice.IsPositive() {
			price := line.UnitPrice
			item.UnitPrice = &price
		}
		items = append(items, item)
	}
	return Apply(ctx, tx, ApplyInput{
		Type:          TransactionTypeOut,
		ReferenceType: ReferenceOrder,
		ReferenceID:   orderID,
		Items:         items,
		Note:          fmt.Sprintf("checkout order #%d", orderID),
		ActorID:       actorID,
	})
}

// ReverseOrder appends an IN header that undoes the order's OUT header. The original
// header is left untouched.
func ReverseOrder(ctx context.Context, tx TxRepository, orderID, actorID int64) (Header, error) {
	out, err := tx.FindByReference(ctx, TransactionTypeOut, ReferenceOrder, orderID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return Header{}, fmt.Errorf("inventory: order %d: %w", orderID, ErrNothingToCompensate)
		}
		return Header{}, err
	}
	_, err = tx.FindByReference(ctx, TransactionTypeIn, ReferenceOrder, orderID)
	switch {
	case err == nil:
		return Header{}, fmt.Errorf("inventory: order %d: %w", orderID, ErrAlreadyCompensated)
	case !errors.Is(err, ErrTransactionNotFound):
		return Header{}, err
	}
	items := make([]ItemInput, 0, len(out.Items))
	for _, item := range out.Items {
		if item.ChangeType != ChangeMinus {
			continue
		}
		items = append(items, ItemInput{
			ProductID:  item.ProductID,
			ChangeType: ChangePlus,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}
	return Apply(ctx, tx, ApplyInput{
		Type:          TransactionTypeIn,
		ReferenceType: ReferenceOrder,
		ReferenceID:   orderID,
		Items:         items,
		Note:          fmt.Sprintf("compensation for order #%d (header %d)", orderID, out.ID),
		ActorID:       actorID,
		compensation:  true,
	})
}

// BuildStockCard folds movements, oldest first, into entries with a running balance.
func BuildStockCard(movements []Movement) []StockCardEntry {
	entries := make([]StockCardEntry, 0, len(movements))
	balance := 0
	for _, m := range movements {
		entry := StockCardEntry{
			HeaderID:      m.HeaderID,
			Type:          m.Type,
			ReferenceType: m.ReferenceType,
			ReferenceID:   m.ReferenceID,
			CreatedAt:     m.CreatedAt,
			Note:          m.Note,
		}
		if m.ChangeType == ChangeMinus {
			entry.QtyOut = m.Quantity
			balance -= m.Quantity
		} else {
			entry.QtyIn = m.Quantity
			balance += m.Quantity
		}
		entry.Balance = balance
		entries = append(entries, entry)
	}
	return entries
}
