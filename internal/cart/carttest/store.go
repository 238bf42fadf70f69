// Package carttest provides an in-memory cart store for tests.
package carttest

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven/internal/cart"
	"github.com/bookhaven/bookhaven/internal/shared"
)

type entry struct {
	quantity int
	selected bool
	seq      int
}

// Store keeps products and cart lines in memory.
type Store struct {
	mu       sync.Mutex
	products map[int64]cart.Line
	items    map[int64]map[int64]entry
	seq      int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{products: make(map[int64]cart.Line), items: make(map[int64]map[int64]entry)}
}

// AddProduct registers a product the cart can join against.
func (s *Store) AddProduct(id int64, title string, price decimal.Decimal, active bool) {
	s.products[id] = cart.Line{ProductID: id, Title: title, UnitPrice: price, Active: active}
}

// Put places a line directly, bypassing service checks.
func (s *Store) Put(userID, productID int64, quantity int, selected bool) {
	if s.items[userID] == nil {
		s.items[userID] = make(map[int64]entry)
	}
	s.seq++
	s.items[userID][productID] = entry{quantity: quantity, selected: selected, seq: s.seq}
}

// Tx exposes the store without locking for composition into a caller's unit of work.
func (s *Store) Tx() cart.TxRepository {
	return (*tx)(s)
}

// Snapshot captures the cart lines and returns a restore function.
func (s *Store) Snapshot() func() {
	saved := make(map[int64]map[int64]entry, len(s.items))
	for user, lines := range s.items {
		copied := make(map[int64]entry, len(lines))
		for k, v := range lines {
			copied[k] = v
		}
		saved[user] = copied
	}
	seq := s.seq
	return func() {
		s.items = saved
		s.seq = seq
	}
}

// Available implements cart.ProductLookup.
func (s *Store) Available(_ context.Context, productID int64) (bool, error) {
	p, ok := s.products[productID]
	if !ok {
		return false, shared.ErrProductNotFound
	}
	return p.Active, nil
}

// Lines implements cart.RepositoryPort.
func (s *Store) Lines(_ context.Context, userID int64) ([]cart.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines(userID, false), nil
}

// Quantity implements cart.RepositoryPort.
func (s *Store) Quantity(_ context.Context, userID, productID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[userID][productID].quantity, nil
}

// Upsert implements cart.RepositoryPort.
func (s *Store) Upsert(_ context.Context, userID, productID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.items[userID][productID]; ok {
		current.quantity = quantity
		s.items[userID][productID] = current
		return nil
	}
	s.Put(userID, productID, quantity, true)
	return nil
}

// SetSelected implements cart.RepositoryPort.
func (s *Store) SetSelected(_ context.Context, userID, productID int64, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[userID][productID]
	if !ok {
		return cart.ErrCartItemNotFound
	}
	current.selected = selected
	s.items[userID][productID] = current
	return nil
}

// Remove implements cart.RepositoryPort.
func (s *Store) Remove(_ context.Context, userID, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[userID][productID]; !ok {
		return cart.ErrCartItemNotFound
	}
	delete(s.items[userID], productID)
	return nil
}

// Clear implements cart.RepositoryPort.
func (s *Store) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, userID)
	return nil
}

func (s *Store) lines(userID int64, selectedOnly bool) []cart.Line {
	type keyed struct {
		line cart.Line
		seq  int
	}
	var rows []keyed
	for productID, e := range s.items[userID] {
		if selectedOnly && !e.selected {
			continue
		}
		line := s.products[productID]
		line.ProductID = productID
		line.Quantity = e.quantity
		line.Selected = e.selected
		rows = append(rows, keyed{line: line, seq: e.seq})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]cart.Line, len(rows))
	for i, r := range rows {
		out[i] = r.line
	}
	return out
}

type tx Store

func (t *tx) SelectedLines(_ context.Context, userID int64) ([]cart.Line, error) {
	return (*Store)(t).lines(userID, true), nil
}

func (t *tx) RemoveItems(_ context.Context, userID int64, productIDs []int64) error {
	for _, id := range productIDs {
		delete(t.items[userID], id)
	}
	return nil
}
