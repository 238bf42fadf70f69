package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookhaven/bookhaven/internal/audit"
	"github.com/bookhaven/bookhaven/internal/auth"
	"github.com/bookhaven/bookhaven/internal/cart"
	"github.com/bookhaven/bookhaven/internal/catalog"
	"github.com/bookhaven/bookhaven/internal/checkout"
	"github.com/bookhaven/bookhaven/internal/inventory"
	"github.com/bookhaven/bookhaven/internal/invoices"
	"github.com/bookhaven/bookhaven/internal/notifications"
	"github.com/bookhaven/bookhaven/internal/observability"
	"github.com/bookhaven/bookhaven/internal/orders"
	"github.com/bookhaven/bookhaven/internal/platform/httpx"
	"github.com/bookhaven/bookhaven/internal/reports"
	"github.com/bookhaven/bookhaven/internal/shared"
	"github.com/bookhaven/bookhaven/internal/vouchers"
	"github.com/bookhaven/bookhaven/jobs"
)

// Pinger reports dependency health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	Auth    *auth.Middleware
	Checks  map[string]Pinger

	AuthHandler          *auth.Handler
	CatalogHandler       *catalog.Handler
	CartHandler          *cart.Handler
	CheckoutHandler      *checkout.Handler
	OrdersHandler        *orders.Handler
	VouchersHandler      *vouchers.Handler
	InventoryHandler     *inventory.Handler
	InvoicesHandler      *invoices.Handler
	NotificationsHandler *notifications.Handler
	ReportsHandler       *reports.Handler
	AuditHandler         *audit.Handler
	JobHandler           *jobs.Handler
}

// NewRouter constructs the chi.Router with BookHaven defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, nil, shared.ErrNotFound)
	})
	r.Get("/healthz", healthHandler(params.Checks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	mw := params.Auth
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(mw.Require, mw.Admin)
			params.JobHandler.MountRoutes(r)
		})
	}
	r.Route("/api/v1", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.CatalogHandler != nil {
			r.Route("/products", func(r chi.Router) {
				r.Use(mw.Optional)
				params.CatalogHandler.MountRoutes(r)
			})
		}
		r.Group(func(r chi.Router) {
			r.Use(mw.Require)
			if params.CartHandler != nil {
				r.Route("/cart", params.CartHandler.MountRoutes)
			}
			if params.CheckoutHandler != nil {
				r.Route("/checkout", params.CheckoutHandler.MountRoutes)
			}
			if params.OrdersHandler != nil {
				r.Route("/orders", params.OrdersHandler.MountRoutes)
			}
			if params.VouchersHandler != nil {
				r.Route("/vouchers", params.VouchersHandler.MountRoutes)
			}
			if params.InvoicesHandler != nil {
				r.Route("/invoices", params.InvoicesHandler.MountRoutes)
			}
			if params.NotificationsHandler != nil {
				r.Route("/notifications", params.NotificationsHandler.MountRoutes)
			}
			r.Group(func(r chi.Router) {
				r.Use(mw.Admin)
				if params.InventoryHandler != nil {
					r.Route("/inventory", params.InventoryHandler.MountRoutes)
				}
				if params.ReportsHandler != nil {
					r.Route("/reports", params.ReportsHandler.MountRoutes)
				}
				if params.AuditHandler != nil {
					r.Route("/audit", params.AuditHandler.MountRoutes)
				}
			})
		})
	})

	return r
}

func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check.Ping(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			httpx.JSON(w, http.StatusServiceUnavailable, httpx.Envelope{Code: shared.ErrInternal.Code, Message: "degraded", Data: status})
			return
		}
		httpx.OK(w, "ok", status)
	}
}
