package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/bookhaven/bookhaven/internal/platform/httpx"
	"github.com/bookhaven/bookhaven/internal/shared"
)

// Middleware resolves bearer tokens into principals.
type Middleware struct {
	tokens *TokenIssuer
	logger *slog.Logger
}

// NewMiddleware constructs Middleware.
func NewMiddleware(tokens *TokenIssuer, logger *slog.Logger) *Middleware {
	return &Middleware{tokens: tokens, logger: logger}
}

func bearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Require rejects requests without a valid bearer token.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearer(r)
		if raw == "" {
			httpx.RespondError(w, m.logger, shared.ErrUnauthenticated)
			return
		}
		principal, err := m.tokens.Parse(raw)
		if err != nil {
			httpx.RespondError(w, m.logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

// Optional attaches the principal when a valid token is present and ignores it otherwise.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := bearer(r); raw != "" {
			if principal, err := m.tokens.Parse(raw); err == nil {
				r = r.WithContext(shared.ContextWithPrincipal(r.Context(), principal))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects principals without role. It must run after Require.
func (m *Middleware) RequireRole(role shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, m.logger, shared.ErrUnauthenticated)
				return
			}
			if principal.Role != role {
				httpx.RespondError(w, m.logger, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Admin is RequireRole(shared.RoleAdmin).
func (m *Middleware) Admin(next http.Handler) http.Handler {
	return m.RequireRole(shared.RoleAdmin)(next)
}
