// Package voucherstest provides an in-memory voucher ledger for tests.
package voucherstest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bookhaven/bookhaven/internal/vouchers"
)

// Store keeps vouchers and usages in memory. WithTx serialises callers, which stands
// in for the voucher row lock, and restores state when the callback fails.
type Store struct {
	mu       sync.Mutex
	vouchers map[int64]vouchers.Voucher
	usages   []vouchers.Usage
	nextID   int64
	usageID  int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{vouchers: make(map[int64]vouchers.Voucher)}
}

// Add seeds a voucher and returns it with an ID assigned.
func (s *Store) Add(v vouchers.Voucher) vouchers.Voucher {
	s.nextID++
	v.ID = s.nextID
	v.Code = vouchers.NormalizeCode(v.Code)
	s.vouchers[v.ID] = v
	return v
}

// Usages returns a copy of the recorded usages.
func (s *Store) Usages() []vouchers.Usage {
	out := make([]vouchers.Usage, len(s.usages))
	copy(out, s.usages)
	return out
}

// Tx exposes the store as a TxRepository without locking.
func (s *Store) Tx() vouchers.TxRepository {
	return (*tx)(s)
}

// Snapshot captures usages and vouchers and returns a restore function.
func (s *Store) Snapshot() func() {
	usages := s.Usages()
	list := make(map[int64]vouchers.Voucher, len(s.vouchers))
	for k, v := range s.vouchers {
		list[k] = v
	}
	nextID, usageID := s.nextID, s.usageID
	return func() {
		s.usages = usages
		s.vouchers = list
		s.nextID, s.usageID = nextID, usageID
	}
}

// WithTx implements vouchers.RepositoryPort.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, vouchers.TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	restore := s.Snapshot()
	if err := fn(ctx, s.Tx()); err != nil {
		restore()
		return err
	}
	return nil
}

// Reader implements vouchers.RepositoryPort.
func (s *Store) Reader() vouchers.Reader {
	return lockedReader{s: s}
}

// Create implements vouchers.RepositoryPort.
func (s *Store) Create(_ context.Context, v vouchers.Voucher) (vouchers.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.vouchers {
		if existing.Code == v.Code {
			return vouchers.Voucher{}, fmt.Errorf("vouchers: %s: %w", v.Code, vouchers.ErrVoucherCodeExists)
		}
	}
	now := time.Now()
	v.CreatedAt, v.UpdatedAt = now, now
	return s.Add(v), nil
}

// Update implements vouchers.RepositoryPort.
func (s *Store) Update(_ context.Context, v vouchers.Voucher) (vouchers.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vouchers[v.ID]; !ok {
		return vouchers.Voucher{}, vouchers.ErrVoucherNotFound
	}
	for id, existing := range s.vouchers {
		if id != v.ID && existing.Code == v.Code {
			return vouchers.Voucher{}, vouchers.ErrVoucherCodeExists
		}
	}
	v.UpdatedAt = time.Now()
	s.vouchers[v.ID] = v
	return v, nil
}

// Get implements vouchers.RepositoryPort.
func (s *Store) Get(_ context.Context, id int64) (vouchers.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[id]
	if !ok {
		return vouchers.Voucher{}, vouchers.ErrVoucherNotFound
	}
	v.UsedCount = s.count(id, 0)
	return v, nil
}

// List implements vouchers.RepositoryPort.
func (s *Store) List(_ context.Context, filter vouchers.ListFilter) ([]vouchers.Voucher, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []vouchers.Voucher
	for id := int64(1); id <= s.nextID; id++ {
		v, ok := s.vouchers[id]
		if !ok {
			continue
		}
		if filter.Active != nil && v.Active != *filter.Active {
			continue
		}
		if filter.Search != "" && !strings.Contains(v.Code, strings.ToUpper(filter.Search)) {
			continue
		}
		v.UsedCount = s.count(id, 0)
		out = append(out, v)
	}
	total := len(out)
	start := filter.Page.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Page.Limit()
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (s *Store) count(voucherID, userID int64) int {
	n := 0
	for _, u := range s.usages {
		if u.VoucherID == voucherID && (userID == 0 || u.UserID == userID) {
			n++
		}
	}
	return n
}

type lockedReader struct {
	s *Store
}

func (r lockedReader) GetByCode(ctx context.Context, code string) (vouchers.Voucher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.Tx().GetByCode(ctx, code)
}

func (r lockedReader) CountUsages(ctx context.Context, voucherID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.count(voucherID, 0), nil
}

func (r lockedReader) CountUserUsages(ctx context.Context, voucherID, userID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.count(voucherID, userID), nil
}

type tx Store

func (t *tx) GetByCode(_ context.Context, code string) (vouchers.Voucher, error) {
	for _, v := range t.vouchers {
		if v.Code == code {
			return v, nil
		}
	}
	return vouchers.Voucher{}, vouchers.ErrVoucherNotFound
}

func (t *tx) LockByID(_ context.Context, id int64) (vouchers.Voucher, error) {
	v, ok := t.vouchers[id]
	if !ok {
		return vouchers.Voucher{}, vouchers.ErrVoucherNotFound
	}
	return v, nil
}

func (t *tx) CountUsages(_ context.Context, voucherID int64) (int, error) {
	return (*Store)(t).count(voucherID, 0), nil
}

func (t *tx) CountUserUsages(_ context.Context, voucherID, userID int64) (int, error) {
	return (*Store)(t).count(voucherID, userID), nil
}

func (t *tx) InsertUsage(_ context.Context, usage vouchers.Usage) (vouchers.Usage, error) {
	for _, u := range t.usages {
		if u.VoucherID == usage.VoucherID && u.OrderID == usage.OrderID {
			return vouchers.Usage{}, fmt.Errorf("vouchers: voucher %d order %d: %w", usage.VoucherID, usage.OrderID, vouchers.ErrDuplicateVoucherUsage)
		}
	}
	t.usageID++
	usage.ID = t.usageID
	usage.UsedAt = time.Now()
	t.usages = append(t.usages, usage)
	return usage, nil
}
