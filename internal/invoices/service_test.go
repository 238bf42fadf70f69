package invoices_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven/internal/invoices"
	"github.com/bookhaven/bookhaven/internal/platform/httpx"
	"github.com/bookhaven/bookhaven/internal/shared"
)

type orderRow struct {
	user  int64
	total decimal.Decimal
}

type memRepo struct {
	mu       sync.Mutex
	orders   map[int64]orderRow
	invoices map[int64]invoices.Invoice
	next     int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders:   map[int64]orderRow{},
		invoices: map[int64]invoices.Invoice{},
	}
}

func (m *memRepo) addOrder(id, user int64, total string) {
	m.orders[id] = orderRow{user: user, total: decimal.RequireFromString(total)}
}

func (m *memRepo) OrderTotal(_ context.Context, orderID int64) (int64, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return 0, decimal.Zero, invoices.ErrInvoiceNotFound
	}
	return o.user, o.total, nil
}

func (m *memRepo) Insert(_ context.Context, inv invoices.Invoice) (invoices.Invoice, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.invoices[inv.OrderID]; ok {
		return existing, false, nil
	}
	m.next++
	inv.ID = m.next
	m.invoices[inv.OrderID] = inv
	return inv, true, nil
}

func (m *memRepo) ByOrder(_ context.Context, orderID int64) (invoices.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[orderID]
	if !ok {
		return invoices.Invoice{}, invoices.ErrInvoiceNotFound
	}
	return inv, nil
}

func (m *memRepo) ListByUser(_ context.Context, userID int64, limit, offset int) ([]invoices.Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []invoices.Invoice
	for _, inv := range m.invoices {
		if userID == 0 || inv.UserID == userID {
			out = append(out, inv)
		}
	}
	return out, len(out), nil
}

type notes struct {
	kinds []string
}

func (n *notes) Notify(_ context.Context, _ int64, kind, _, _ string) error {
	n.kinds = append(n.kinds, kind)
	return nil
}

func TestNumberFormat(t *testing.T) {
	at := time.Date(2026, 3, 9, 23, 30, 0, 0, time.FixedZone("WIB", 7*3600))
	require.Equal(t, "INV-20260309-77", invoices.Number(77, at))
}

func TestIssueForOrderIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	repo.addOrder(7, 3, "205000")
	n := &notes{}
	svc := invoices.NewService(repo, n, nil, nil).
		WithClock(func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) })

	first, err := svc.IssueForOrder(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "INV-20260501-7", first.Number)
	require.True(t, first.Amount.Equal(decimal.RequireFromString("205000")))

	second, err := svc.IssueForOrder(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, []string{"invoice_issued"}, n.kinds)
}

func TestIssueForMissingOrder(t *testing.T) {
	svc := invoices.NewService(newMemRepo(), nil, nil, nil)
	_, err := svc.IssueForOrder(context.Background(), 99)
	require.ErrorIs(t, err, invoices.ErrInvoiceNotFound)
}

func TestForOrderHidesOtherCustomers(t *testing.T) {
	repo := newMemRepo()
	repo.addOrder(7, 3, "100")
	svc := invoices.NewService(repo, nil, nil, nil)
	_, err := svc.IssueForOrder(context.Background(), 7)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/invoices", invoices.NewHandler(nil, svc).MountRoutes)

	get := func(p shared.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/invoices/orders/7", nil)
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), p))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, get(shared.Principal{UserID: 3, Role: shared.RoleCustomer}).Code)
	require.Equal(t, http.StatusOK, get(shared.Principal{UserID: 1, Role: shared.RoleAdmin}).Code)
	rec := get(shared.Principal{UserID: 4, Role: shared.RoleCustomer})
	require.Equal(t, http.StatusNotFound, rec.Code)
	var env httpx.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, invoices.ErrInvoiceNotFound.Code, env.Code)
}
