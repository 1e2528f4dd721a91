package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/tenant-dispatch/internal/api/handler"
	apimw "github.com/notifyhub/tenant-dispatch/internal/api/middleware"
	"github.com/notifyhub/tenant-dispatch/internal/ingest"
	"github.com/notifyhub/tenant-dispatch/internal/optout"
	"github.com/notifyhub/tenant-dispatch/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.EntryService,
	registry *optout.Registry,
	ingestor *ingest.Ingestor,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	eh := handler.NewEntryHandler(svc, logger)
	oh := handler.NewOptOutHandler(registry, logger)
	wh := handler.NewWebhookHandler(ingestor, logger)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Provider callbacks are not tenant-scoped: status reports carry only
	// the provider message id, inbound messages route by sender number.
	r.Post("/webhooks/status", wh.Status)
	r.Post("/webhooks/inbound", wh.Inbound)

	r.Route("/api/v1/tenants/{tenantID}", func(r chi.Router) {
		r.Post("/entries", eh.Create)
		r.Get("/entries", eh.List)
		r.Get("/entries/{id}", eh.GetByID)
		r.Post("/entries/{id}/schedule", eh.Schedule)
		r.Get("/stats", eh.Stats)

		r.Post("/optouts", oh.Create)
		r.Get("/optouts", oh.List)
		r.Delete("/optouts/{destination}", oh.Delete)
	})

	return r
}
