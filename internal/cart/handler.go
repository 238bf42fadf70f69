package cart

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bookhaven/bookhaven/internal/platform/httpx"
	"github.com/bookhaven/bookhaven/internal/shared"
)

// Handler exposes the caller's cart.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the cart handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers cart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleView)
	r.Delete("/", h.handleClear)
	r.Post("/items", h.handleAdd)
	r.Patch("/items/{productID}", h.handleUpdate)
	r.Delete("/items/{productID}", h.handleRemove)
}

type addRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type updateRequest struct {
	Quantity *int  `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	Selected *bool `json:"selected,omitempty"`
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	c, err := h.service.View(r.Context(), principal.UserID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "cart", c)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := httpx.Decode(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	c, err := h.service.Add(r.Context(), principal.UserID, req.ProductID, req.Quantity)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "item added", c)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.PathID(r, "productID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req updateRequest
	if err := httpx.Decode(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if req.Quantity == nil && req.Selected == nil {
		httpx.RespondError(w, h.logger, httpx.Invalid("body", "quantity or selected is required"))
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	var c Cart
	if req.Quantity != nil {
		if c, err = h.service.SetQuantity(r.Context(), principal.UserID, productID, *req.Quantity); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	if req.Selected != nil {
		if c, err = h.service.Select(r.Context(), principal.UserID, productID, *req.Selected); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	httpx.OK(w, "cart updated", c)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.PathID(r, "productID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	c, err := h.service.Remove(r.Context(), principal.UserID, productID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "item removed", c)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.Clear(r.Context(), principal.UserID); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "cart cleared", nil)
}
