package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bookhaven/bookhaven/internal/platform/httpx"
	"github.com/bookhaven/bookhaven/internal/shared"
)

// Handler wires HTTP endpoints for the inventory ledger. Routes are admin-only; the
// router applies the role guard.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transactions", h.handleApply)
	r.Get("/transactions", h.handleList)
	r.Get("/transactions/{id}", h.handleGet)
	r.Get("/products/{id}/stock-card", h.handleStockCard)
}

type applyRequest struct {
	TransactionType TransactionType `json:"transaction_type" validate:"required,oneof=IN OUT DAMAGED STOCKTAKE"`
	ReferenceType   ReferenceType   `json:"reference_type" validate:"required,oneof=MANUAL STOCKTAKE"`
	ReferenceID     int64           `json:"reference_id" validate:"gte=0"`
	Items           []ItemInput     `json:"items" validate:"required,min=1,dive"`
	Note            string          `json:"note" validate:"max=500"`
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := httpx.Decode(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	header, err := h.service.ApplyTransaction(r.Context(), ApplyInput{
		Type:          req.TransactionType,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Items:         req.Items,
		Note:          req.Note,
		ActorID:       principal.UserID,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, "inventory transaction recorded", header)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	refID, err := httpx.QueryInt64(r, "reference_id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	productID, err := httpx.QueryInt64(r, "product_id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	headers, page, err := h.service.ListTransactions(r.Context(), ListFilter{
		Type:          TransactionType(q.Get("transaction_type")),
		ReferenceType: ReferenceType(q.Get("reference_type")),
		ReferenceID:   refID,
		ProductID:     productID,
		Page:          shared.PageFromRequest(r),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "inventory transactions", map[string]any{"items": headers, "pagination": page})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	header, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "inventory transaction", header)
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.StockCard(r.Context(), productID, limit)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "stock card", entries)
}
