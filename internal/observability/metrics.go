package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	checkouts         *prometheus.CounterVec
	orderTransitions  *prometheus.CounterVec
	stockTransactions *prometheus.CounterVec
	voucherUsages     *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookhaven_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookhaven_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookhaven_checkouts_total",
		Help: "Checkout attempts partitioned by outcome.",
	}, []string{"result"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookhaven_order_transitions_total",
		Help: "Order status transitions partitioned by axis and target status.",
	}, []string{"axis", "to"})
	stock := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookhaven_inventory_transactions_total",
		Help: "Inventory ledger transactions partitioned by type.",
	}, []string{"type"})
	vouchers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookhaven_voucher_usages_total",
		Help: "Committed voucher usages partitioned by voucher type.",
	}, []string{"type"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookhaven_events_published_total",
		Help: "Domain events handed to the broker partitioned by event and status.",
	}, []string{"event", "status"})
	registry.MustRegister(
		requests, duration,
		checkouts, transitions, stock, vouchers, events,
		prometheus.NewGoCollector(),
	)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		checkouts:         checkouts,
		orderTransitions:  transitions,
		stockTransactions: stock,
		voucherUsages:     vouchers,
		eventsPublished:   events,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Checkout records the outcome of a checkout attempt.
func (m *Metrics) Checkout(result string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result).Inc()
}

// OrderTransition records an applied status change.
func (m *Metrics) OrderTransition(axis, to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(axis, to).Inc()
}

// StockTransaction records a committed ledger header.
func (m *Metrics) StockTransaction(txType string) {
	if m == nil {
		return
	}
	m.stockTransactions.WithLabelValues(txType).Inc()
}

// VoucherUsage records a committed voucher redemption.
func (m *Metrics) VoucherUsage(voucherType string) {
	if m == nil {
		return
	}
	m.voucherUsages.WithLabelValues(voucherType).Inc()
}

// EventPublished records a broker hand-off attempt.
func (m *Metrics) EventPublished(event string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.eventsPublished.WithLabelValues(event, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
