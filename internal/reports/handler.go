package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookhaven/bookhaven/internal/platform/httpx"
)

// Handler exposes admin reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales", h.handleSales)
}

// handleSales reads ?from=YYYY-MM-DD&to=YYYY-MM-DD (to inclusive). Defaults to the last 30 days.
func (h *Handler) handleSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today := h.now().UTC().Truncate(24 * time.Hour)
	rng := Range{From: today.AddDate(0, 0, -29), To: today.AddDate(0, 0, 1)}
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			httpx.RespondError(w, h.logger, httpx.Invalid("from", "must be YYYY-MM-DD"))
			return
		}
		rng.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			httpx.RespondError(w, h.logger, httpx.Invalid("to", "must be YYYY-MM-DD"))
			return
		}
		rng.To = to.AddDate(0, 0, 1)
	}
	top, _ := strconv.Atoi(q.Get("top"))
	report, err := h.service.Sales(r.Context(), rng, top)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, "sales report", report)
}
