package checkout

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bookhaven/bookhaven/internal/platform/httpx"
	"github.com/bookhaven/bookhaven/internal/shared"
)

// IdempotencyHeader carries the client's replay key.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes checkout endpoints for the authenticated customer.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the checkout handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers checkout routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCheckout)
	r.Post("/quote", h.handleQuote)
}

func (h *Handler) decode(r *http.Request) (Request, error) {
	var req Request
	if err := httpx.Decode(r, h.validator, &req); err != nil {
		return Request{}, err
	}
	req.IdempotencyKey = r.Header.Get(IdempotencyHeader)
	if len(req.IdempotencyKey) > 128 {
		return Request{}, httpx.Invalid(IdempotencyHeader, "must be at most 128 characters")
	}
	return req, nil
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	quote, err := h.service.Quote(r.Context(), principal.UserID, req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "checkout quote", quote)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	order, err := h.service.Checkout(r.Context(), principal.UserID, req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, "order placed", order)
}
