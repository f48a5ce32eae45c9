/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontends
  5. RateLimit:  Per-client token bucket (optional, /api only)

ROUTE GROUPS:
  /api/entitlements/*   Entitlement resolution
  /api/service-dates/*  Service date and SLA calculation
  /api/scenarios/*      Demo scenarios
  /healthz              Store health
  /metrics              Prometheus metrics

SECURITY NOTE:
  No authentication middleware. Run behind an authenticating proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures the router. Zero values disable the optional
// parts: no Gatherer means no /metrics, no RatePerSecond means no rate
// limit.
type RouterOptions struct {
	AllowedOrigins []string
	Gatherer       prometheus.Gatherer
	RatePerSecond  float64
	Burst          int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		if opts.RatePerSecond > 0 {
			r.Use(NewRateLimiter(opts.RatePerSecond, opts.Burst).Middleware)
		}

		r.Route("/entitlements", func(r chi.Router) {
			r.Post("/resolve", h.ResolveEntitlements)
			r.Post("/options", h.ListOptions)
			r.Get("/{recordID}/scores", h.GetScores)
		})

		r.Route("/service-dates", func(r chi.Router) {
			r.Post("/calculate", h.CalculateServiceDate)
			r.Post("/batch", h.CalculateBatch)
			r.Post("/staleness", h.CheckStaleness)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", nil)
	})

	return r
}
