// Package inventorytest provides an in-memory ledger for tests of packages that
// compose the inventory ledger into their own transactions.
package inventorytest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bookhaven/bookhaven/internal/inventory"
	"github.com/bookhaven/bookhaven/internal/shared"
)

// Store keeps stock counters and headers in memory. WithTx serialises callers and
// restores the previous state when the callback fails.
type Store struct {
	mu      sync.Mutex
	stock   map[int64]int
	headers []inventory.Header
	nextID  int64
	itemID  int64
	clock   func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{stock: make(map[int64]int), clock: time.Now}
}

// SetStock seeds a product's counter.
func (s *Store) SetStock(productID int64, qty int) {
	s.stock[productID] = qty
}

// Stock returns a product's counter.
func (s *Store) Stock(productID int64) int {
	return s.stock[productID]
}

// Headers returns a copy of every header written so far.
func (s *Store) Headers() []inventory.Header {
	out := make([]inventory.Header, len(s.headers))
	copy(out, s.headers)
	return out
}

// Tx exposes the store as a TxRepository without locking, for composition into a
// caller-managed unit of work.
func (s *Store) Tx() inventory.TxRepository {
	return (*tx)(s)
}

// Snapshot captures the current state and returns a function that restores it.
func (s *Store) Snapshot() func() {
	stock := make(map[int64]int, len(s.stock))
	for k, v := range s.stock {
		stock[k] = v
	}
	headers := s.Headers()
	nextID, itemID := s.nextID, s.itemID
	return func() {
		s.stock = stock
		s.headers = headers
		s.nextID, s.itemID = nextID, itemID
	}
}

// WithTx implements inventory.RepositoryPort.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	restore := s.Snapshot()
	if err := fn(ctx, s.Tx()); err != nil {
		restore()
		return err
	}
	return nil
}

// GetHeader implements inventory.RepositoryPort.
func (s *Store) GetHeader(_ context.Context, id int64) (inventory.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.headers {
		if h.ID == id {
			return h, nil
		}
	}
	return inventory.Header{}, inventory.ErrTransactionNotFound
}

// ListHeaders implements inventory.RepositoryPort.
func (s *Store) ListHeaders(_ context.Context, filter inventory.ListFilter) ([]inventory.Header, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []inventory.Header
	for i := len(s.headers) - 1; i >= 0; i-- {
		h := s.headers[i]
		if filter.Type != "" && h.Type != filter.Type {
			continue
		}
		if filter.ReferenceType != "" && h.ReferenceType != filter.ReferenceType {
			continue
		}
		if filter.ReferenceID != 0 && h.ReferenceID != filter.ReferenceID {
			continue
		}
		if filter.ProductID != 0 && !touches(h, filter.ProductID) {
			continue
		}
		matched = append(matched, h)
	}
	total := len(matched)
	start := filter.Page.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Page.Limit()
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Movements implements inventory.RepositoryPort.
func (s *Store) Movements(_ context.Context, productID int64) ([]inventory.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.Movement
	for _, h := range s.headers {
		for _, item := range h.Items {
			if item.ProductID != productID {
				continue
			}
			out = append(out, inventory.Movement{
				HeaderID:      h.ID,
				Type:          h.Type,
				ReferenceType: h.ReferenceType,
				ReferenceID:   h.ReferenceID,
				CreatedAt:     h.CreatedAt,
				Note:          h.Note,
				ChangeType:    item.ChangeType,
				Quantity:      item.Quantity,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].HeaderID < out[j].HeaderID })
	return out, nil
}

func touches(h inventory.Header, productID int64) bool {
	for _, item := range h.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

type tx Store

func (t *tx) InsertHeader(_ context.Context, header inventory.Header) (inventory.Header, error) {
	for _, existing := range t.headers {
		if existing.Type != header.Type || existing.ReferenceType != header.ReferenceType || existing.ReferenceID != header.ReferenceID {
			continue
		}
		if header.Type == inventory.TransactionTypeOut && header.ReferenceID != 0 {
			return inventory.Header{}, fmt.Errorf("inventory: %s %d: %w", header.ReferenceType, header.ReferenceID, inventory.ErrDuplicateOutTransaction)
		}
		if header.Type == inventory.TransactionTypeIn && header.ReferenceType == inventory.ReferenceOrder {
			return inventory.Header{}, fmt.Errorf("inventory: order %d: %w", header.ReferenceID, inventory.ErrAlreadyCompensated)
		}
	}
	t.nextID++
	header.ID = t.nextID
	header.CreatedAt = t.clock()
	header.Items = nil
	t.headers = append(t.headers, header)
	return header, nil
}

func (t *tx) InsertItems(_ context.Context, headerID int64, items []inventory.Item) ([]inventory.Item, error) {
	saved := make([]inventory.Item, 0, len(items))
	for _, item := range items {
		t.itemID++
		item.ID = t.itemID
		item.HeaderID = headerID
		saved = append(saved, item)
	}
	for i := range t.headers {
		if t.headers[i].ID == headerID {
			t.headers[i].Items = append(t.headers[i].Items, saved...)
			return saved, nil
		}
	}
	return nil, inventory.ErrTransactionNotFound
}

func (t *tx) AdjustStock(_ context.Context, productID int64, delta int) (int, error) {
	current, ok := t.stock[productID]
	if !ok {
		return 0, shared.ErrProductNotFound
	}
	if current+delta < 0 {
		return 0, inventory.ErrInsufficientInventory
	}
	t.stock[productID] = current + delta
	return current + delta, nil
}

func (t *tx) FindByReference(_ context.Context, txType inventory.TransactionType, refType inventory.ReferenceType, refID int64) (inventory.Header, error) {
	for _, h := range t.headers {
		if h.Type == txType && h.ReferenceType == refType && h.ReferenceID == refID {
			return h, nil
		}
	}
	return inventory.Header{}, inventory.ErrTransactionNotFound
}
