package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven/internal/auth"
	"github.com/bookhaven/bookhaven/internal/notifications"
	"github.com/bookhaven/bookhaven/internal/reports"
	"github.com/bookhaven/bookhaven/internal/shared"
)

func testRouter(t *testing.T, checks map[string]Pinger) (http.Handler, *auth.TokenIssuer) {
	t.Helper()
	tokens := auth.NewTokenIssuer("router-secret", time.Hour)
	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, RateLimitPerMinute: 1000}
	return NewRouter(RouterParams{
		Config:               cfg,
		Auth:                 auth.NewMiddleware(tokens, nil),
		Checks:               checks,
		NotificationsHandler: notifications.NewHandler(nil, nil),
		ReportsHandler:       reports.NewHandler(nil, nil),
	}), tokens
}

func TestHealthzReportsChecks(t *testing.T) {
	router, _ := testRouter(t, map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	router, _ = testRouter(t, map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "connection refused")
}

func TestProtectedRoutes(t *testing.T) {
	router, tokens := testRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := tokens.Issue(auth.User{ID: 7, Email: "c@example.com", Role: shared.RoleCustomer})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/sales", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	router, _ := testRouter(t, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":1010`)
}

func TestRateLimitAnswersWithEnvelope(t *testing.T) {
	limited := RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	first := httptest.NewRecorder()
	limited.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	limited.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Contains(t, second.Body.String(), `"code":1011`)
}
