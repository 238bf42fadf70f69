package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven/internal/platform/httpx"
	"github.com/bookhaven/bookhaven/internal/shared"
)

type stubRepo struct {
	rows       []TimelineRow
	lastFilter TimelineFilters
	lastLimit  int
	lastOffset int
}

func (s *stubRepo) Window(_ context.Context, f TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	s.lastFilter, s.lastLimit, s.lastOffset = f, limit, offset
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func sampleRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	for i := range rows {
		rows[i] = TimelineRow{
			ID:       int64(n - i),
			At:       time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC).Add(-time.Duration(i) * time.Hour),
			ActorID:  1,
			Action:   "order:create",
			Entity:   "order",
			EntityID: "42",
			Meta:     json.RawMessage(`{"total":"100"}`),
		}
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{rows: sampleRows(5)}
	svc := NewService(repo)

	first, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Rows, 2)
	require.True(t, first.Paging.HasNext)
	require.Equal(t, 2, first.Paging.NextPage)
	require.Zero(t, first.Paging.PrevPage)
	require.Equal(t, 3, repo.lastLimit)

	last, err := svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, last.Rows, 1)
	require.False(t, last.Paging.HasNext)
	require.Equal(t, 2, last.Paging.PrevPage)
	require.Equal(t, 4, repo.lastOffset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{}
	result, err := NewService(repo).Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, maxPageSize, result.Paging.PageSize)
	require.NotNil(t, result.Rows)
}

func newTestRouter(repo *stubRepo) http.Handler {
	h := NewHandler(nil, NewService(repo))
	h.now = func() time.Time { return time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/audit", h.MountRoutes)
	return r
}

func doGet(handler http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1, Role: shared.RoleAdmin}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandlerDefaultWindowAndFilters(t *testing.T) {
	repo := &stubRepo{rows: sampleRows(1)}
	rec := doGet(newTestRouter(repo), "/audit/?entity=order&action=order:&actor_id=7")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), repo.lastFilter.From)
	require.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), repo.lastFilter.To)
	require.Equal(t, "order", repo.lastFilter.Entity)
	require.Equal(t, "order:", repo.lastFilter.Action)
	require.Equal(t, int64(7), repo.lastFilter.ActorID)
}

func TestHandlerRejectsWideRange(t *testing.T) {
	rec := doGet(newTestRouter(&stubRepo{}), "/audit/?from=2025-01-01&to=2026-01-01")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var env httpx.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, shared.ErrValidation.Code, env.Code)
}

func TestHandlerExportCSV(t *testing.T) {
	repo := &stubRepo{rows: sampleRows(3)}
	rec := doGet(newTestRouter(repo), "/audit/export.csv?from=2026-03-01&to=2026-03-15")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, MaxExportRows, repo.lastLimit)

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, `{"total":"100"}`, records[1][6])
}
