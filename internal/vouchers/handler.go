package vouchers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven/internal/platform/httpx"
	"github.com/bookhaven/bookhaven/internal/shared"
)

// Handler wires HTTP endpoints for vouchers.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	admin     func(http.Handler) http.Handler
}

// NewHandler constructs voucher handler. admin guards the maintenance routes.
func NewHandler(logger *slog.Logger, service *Service, admin func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), admin: admin}
}

// MountRoutes registers voucher routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/validate", h.handleValidate)
	r.Group(func(r chi.Router) {
		if h.admin != nil {
			r.Use(h.admin)
		}
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Post("/{id}/deactivate", h.handleDeactivate)
	})
}

type validateRequest struct {
	Code        string          `json:"code" validate:"required,max=32"`
	OrderTotal  decimal.Decimal `json:"order_total"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
}

type rejection struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type validationView struct {
	Valid         bool            `json:"valid"`
	Code          string          `json:"code"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	ApplyTo       ApplyTo         `json:"apply_to,omitempty"`
	Error         *rejection      `json:"error,omitempty"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := httpx.Decode(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if req.OrderTotal.IsNegative() || req.ShippingFee.IsNegative() {
		httpx.RespondError(w, h.logger, httpx.Invalid("order_total", "amounts must not be negative"))
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	result, err := h.service.Validate(r.Context(), Check{
		Code:        req.Code,
		OrderTotal:  req.OrderTotal,
		ShippingFee: req.ShippingFee,
		UserID:      principal.UserID,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	view := validationView{
		Valid:         result.Valid,
		Code:          NormalizeCode(req.Code),
		DiscountValue: result.DiscountValue,
		ApplyTo:       result.ApplyTo,
	}
	if appErr, ok := shared.AsAppError(result.Err); ok {
		view.Error = &rejection{Code: appErr.Code, Message: appErr.Message}
	}
	httpx.OK(w, "voucher validated", view)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Search: r.URL.Query().Get("q"), Page: shared.PageFromRequest(r)}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.RespondError(w, h.logger, httpx.Invalid("active", "must be true or false"))
			return
		}
		filter.Active = &active
	}
	list, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "vouchers", map[string]any{"items": list, "pagination": page})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.Decode(r, h.validator, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	v, err := h.service.Create(r.Context(), in, principal.UserID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, "voucher created", v)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	v, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "voucher", v)
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
	v, err := h.service.Update(r.Context(), id, in, principal.UserID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "voucher updated", v)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	v, err := h.service.Deactivate(r.Context(), id, principal.UserID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "voucher deactivated", v)
}
