// Package orderstest provides an in-memory order store for tests.
package orderstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bookhaven/bookhaven/internal/inventory/inventorytest"
	"github.com/bookhaven/bookhaven/internal/orders"
)

// Store keeps orders and their timeline in memory and shares its unit of work with
// an inventorytest.Store.
type Store struct {
	mu      sync.Mutex
	ledger  *inventorytest.Store
	orders  map[int64]orders.Order
	history []orders.StatusChange
	nextID  int64
	itemID  int64
	histID  int64
	clock   func() time.Time
}

// NewStore returns an empty store bound to ledger.
func NewStore(ledger *inventorytest.Store) *Store {
	if ledger == nil {
		ledger = inventorytest.NewStore()
	}
	return &Store{ledger: ledger, orders: make(map[int64]orders.Order), clock: time.Now}
}

// Ledger returns the inventory store sharing this unit of work.
func (s *Store) Ledger() *inventorytest.Store {
	return s.ledger
}

// Order returns the stored order.
func (s *Store) Order(id int64) (orders.Order, bool) {
	o, ok := s.orders[id]
	return o, ok
}

// All returns every stored order ordered by id.
func (s *Store) All() []orders.Order {
	out := make([]orders.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Tx exposes the store without locking for composition into a caller's unit of work.
func (s *Store) Tx() orders.TxRepository {
	return (*tx)(s)
}

// Snapshot captures orders, timeline and ledger state and returns a restore function.
func (s *Store) Snapshot() func() {
	saved := make(map[int64]orders.Order, len(s.orders))
	for k, v := range s.orders {
		saved[k] = v
	}
	history := append([]orders.StatusChange(nil), s.history...)
	nextID, itemID, histID := s.nextID, s.itemID, s.histID
	restoreLedger := s.ledger.Snapshot()
	return func() {
		s.orders = saved
		s.history = history
		s.nextID, s.itemID, s.histID = nextID, itemID, histID
		restoreLedger()
	}
}

// WithTx implements orders.RepositoryPort.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, orders.TxStores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	restore := s.Snapshot()
	if err := fn(ctx, orders.TxStores{Orders: s.Tx(), Inventory: s.ledger.Tx()}); err != nil {
		restore()
		return err
	}
	return nil
}

// Get implements orders.RepositoryPort.
func (s *Store) Get(_ context.Context, id int64) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, nil
}

// List implements orders.RepositoryPort.
func (s *Store) List(_ context.Context, filter orders.ListFilter) ([]orders.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.All()
	var matched []orders.Order
	for i := len(all) - 1; i >= 0; i-- {
		o := all[i]
		if filter.UserID != 0 && o.UserID != filter.UserID {
			continue
		}
		if filter.Payment != "" && o.Status.Payment != filter.Payment {
			continue
		}
		if filter.Fulfillment != "" && o.Status.Fulfillment != filter.Fulfillment {
			continue
		}
		if filter.Order != "" && o.Status.Order != filter.Order {
			continue
		}
		matched = append(matched, o)
	}
	total := len(matched)
	start := min(filter.Page.Offset(), total)
	end := min(start+filter.Page.Limit(), total)
	return matched[start:end], total, nil
}

// History implements orders.RepositoryPort.
func (s *Store) History(_ context.Context, orderID int64) ([]orders.StatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.StatusChange
	for _, h := range s.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

type tx Store

func (t *tx) Insert(_ context.Context, order orders.Order) (orders.Order, error) {
	t.nextID++
	order.ID = t.nextID
	order.CreatedAt = t.clock()
	order.UpdatedAt = order.CreatedAt
	items := make([]orders.Item, len(order.Items))
	for i, item := range order.Items {
		t.itemID++
		item.ID = t.itemID
		item.OrderID = order.ID
		items[i] = item
	}
	order.Items = items
	t.orders[order.ID] = order
	return order, nil
}

func (t *tx) LockByID(_ context.Context, id int64) (orders.Order, error) {
	o, ok := t.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, nil
}

func (t *tx) UpdateStatus(_ context.Context, id int64, status orders.Status) (time.Time, error) {
	o, ok := t.orders[id]
	if !ok {
		return time.Time{}, orders.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = t.clock()
	t.orders[id] = o
	return o.UpdatedAt, nil
}

func (t *tx) InsertHistory(_ context.Context, change orders.StatusChange) (orders.StatusChange, error) {
	t.histID++
	change.ID = t.histID
	change.CreatedAt = t.clock()
	t.history = append(t.history, change)
	return change, nil
}
