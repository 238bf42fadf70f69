package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bookhaven/bookhaven/internal/platform/httpx"
	"github.com/bookhaven/bookhaven/internal/shared"
)

// Handler exposes product endpoints. Reads are public; writes need admin.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	admin     func(http.Handler) http.Handler
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service, admin func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), admin: admin}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Get("/{id}/price-history", h.handlePriceHistory)
	r.Group(func(r chi.Router) {
		if h.admin != nil {
			r.Use(h.admin)
		}
		r.Post("/", h.handleCreate)
		r.Put("/{id}", h.handleUpdate)
		r.Post("/{id}/activate", h.handleActive(true))
		r.Post("/{id}/deactivate", h.handleActive(false))
	})
}

func isAdmin(r *http.Request) bool {
	p, ok := shared.PrincipalFromContext(r.Context())
	return ok && p.IsAdmin()
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, page, err := h.service.List(r.Context(), ListFilter{
		Search:     r.URL.Query().Get("q"),
		ActiveOnly: !isAdmin(r),
		Page:       shared.PageFromRequest(r),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "products", map[string]any{"items": list, "pagination": page})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	p, err := h.service.Get(r.Context(), id, isAdmin(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "product", p)
}

func (h *Handler) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	history, err := h.service.PriceHistory(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "price history", history)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.Decode(r, h.validator, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	p, err := h.service.Create(r.Context(), in, principal.UserID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, "product created", p)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var in Input
	if err := httpx.Decode(r, h.validator, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	p, err := h.service.Update(r.Context(), id, in, principal.UserID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "product updated", p)
}

func (h *Handler) handleActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.PathID(r, "id")
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		principal, _ := shared.PrincipalFromContext(r.Context())
		p, err := h.service.SetActive(r.Context(), id, active, principal.UserID)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.OK(w, "product updated", p)
	}
}
