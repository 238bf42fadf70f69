package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven/internal/events"
	"github.com/bookhaven/bookhaven/internal/shared"
)

type memRepo struct {
	mu       sync.Mutex
	products map[int64]Product
	history  []PriceChange
	nextID   int64
}

func newMemRepo() *memRepo {
	return &memRepo{products: make(map[int64]Product)}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	products := make(map[int64]Product, len(m.products))
	for k, v := range m.products {
		products[k] = v
	}
	history := append([]PriceChange(nil), m.history...)
	if err := fn(ctx, memTx{m}); err != nil {
		m.products, m.history = products, history
		return err
	}
	return nil
}

func (m *memRepo) Create(_ context.Context, p Product) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.products {
		if existing.SKU == p.SKU {
			return Product{}, ErrSKUExists
		}
	}
	m.nextID++
	p.ID = m.nextID
	m.products[p.ID] = p
	return p, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (m *memRepo) List(_ context.Context, filter ListFilter) ([]Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Product
	for id := int64(1); id <= m.nextID; id++ {
		p, ok := m.products[id]
		if !ok || (filter.ActiveOnly && !p.Active) {
			continue
		}
		haystack := strings.ToLower(p.Title + " " + p.Author + " " + p.SKU)
		if filter.Search != "" && !strings.Contains(haystack, filter.Search) {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memRepo) PriceHistory(_ context.Context, productID int64) ([]PriceChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PriceChange
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ProductID == productID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

type memTx struct{ m *memRepo }

func (t memTx) LockByID(_ context.Context, id int64) (Product, error) {
	p, ok := t.m.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (t memTx) Update(_ context.Context, p Product) (Product, error) {
	current, ok := t.m.products[p.ID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	p.Stock = current.Stock
	t.m.products[p.ID] = p
	return p, nil
}

func (t memTx) InsertPriceChange(_ context.Context, c PriceChange) (PriceChange, error) {
	c.ID = int64(len(t.m.history) + 1)
	t.m.history = append(t.m.history, c)
	return c, nil
}

type capture struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capture) Publish(_ context.Context, evt events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capture) Close() error { return nil }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newBook(t *testing.T, svc *Service, sku string, price string) Product {
	t.Helper()
	p, err := svc.Create(context.Background(), Input{SKU: sku, Title: "The Go Programming Language", Author: "Donovan", Price: dec(price)}, 1)
	require.NoError(t, err)
	return p
}

func TestUpdateRecordsPriceHistory(t *testing.T) {
	repo := newMemRepo()
	pub := &capture{}
	svc := NewService(repo, nil, pub, nil)
	p := newBook(t, svc, "gopl-1", "100000")
	require.Equal(t, "GOPL-1", p.SKU)
	require.Zero(t, p.Stock)

	in := Input{SKU: p.SKU, Title: p.Title, Author: p.Author, Price: dec("125000")}
	_, err := svc.Update(context.Background(), p.ID, in, 1)
	require.NoError(t, err)
	in.Price = dec("83333.33")
	_, err = svc.Update(context.Background(), p.ID, in, 1)
	require.NoError(t, err)

	history, err := svc.PriceHistory(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "-33.33", history[0].ChangePercentage.StringFixed(2))
	require.Equal(t, "25.00", history[1].ChangePercentage.StringFixed(2))
	require.Len(t, pub.events, 2)
	require.Equal(t, events.TypePriceChanged, pub.events[0].Type)
}

func TestUpdateWithoutPriceChangeKeepsHistoryEmpty(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil, nil)
	p := newBook(t, svc, "sicp", "99000")

	updated, err := svc.Update(context.Background(), p.ID, Input{SKU: "sicp", Title: "SICP", Author: "Abelson", Price: dec("99000.00")}, 1)
	require.NoError(t, err)
	require.Equal(t, "SICP", updated.Title)
	history, err := svc.PriceHistory(context.Background(), p.ID)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestPriceChangeFromZeroHasNoPercentage(t *testing.T) {
	change := NewPriceChange(1, decimal.Zero, dec("50000"), 1)
	require.Nil(t, change.ChangePercentage)

	change = NewPriceChange(1, dec("3"), dec("2"), 1)
	require.Equal(t, "-33.33", change.ChangePercentage.StringFixed(2))
	change = NewPriceChange(1, dec("3"), dec("4.00005"), 1)
	require.Equal(t, "33.34", change.ChangePercentage.StringFixed(2))
}

func TestCreateRejectsDuplicateSKUAndNegativePrice(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil, nil)
	newBook(t, svc, "dup", "1000")

	_, err := svc.Create(context.Background(), Input{SKU: " DUP ", Title: "x", Author: "y", Price: dec("1")}, 1)
	require.ErrorIs(t, err, ErrSKUExists)
	_, err = svc.Create(context.Background(), Input{SKU: "neg", Title: "x", Author: "y", Price: dec("-1")}, 1)
	require.ErrorIs(t, err, ErrInvalidPrice)
}

func TestInactiveProductsHiddenFromCustomers(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil, nil)
	p := newBook(t, svc, "hidden", "1000")
	_, err := svc.SetActive(context.Background(), p.ID, false, 1)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), p.ID, false)
	require.ErrorIs(t, err, ErrProductNotFound)
	got, err := svc.Get(context.Background(), p.ID, true)
	require.NoError(t, err)
	require.False(t, got.Active)
}

func TestNormalizeSearch(t *testing.T) {
	require.Equal(t, "go programming", NormalizeSearch("  GO   Programming "))
	require.Equal(t, "abc", NormalizeSearch("ＡＢＣ"))
}

func TestListHandlerSearchesActiveProducts(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil, nil)
	newBook(t, svc, "gopl", "1000")
	hidden := newBook(t, svc, "gopl-old", "1000")
	_, err := svc.SetActive(context.Background(), hidden.ID, false, 1)
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(nil, svc, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?q=GO%20Programming", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Items      []Product         `json:"items"`
			Pagination shared.Pagination `json:"pagination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Items, 1)
	require.Equal(t, "GOPL", body.Data.Items[0].SKU)
}
