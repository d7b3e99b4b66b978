// Package httpapi assembles the public router: the shared middleware stack,
// health and metrics endpoints, and the authenticated API surface.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	activationhandler "lendgate/internal/activation/handler"
	documenthandler "lendgate/internal/document/handler"
	"lendgate/internal/platform/metrics"
	"lendgate/internal/platform/middleware"
)

const requestTimeout = 30 * time.Second

// Deps carries everything the router needs. Handlers register their own
// routes; the router owns middleware ordering.
type Deps struct {
	Activation *activationhandler.Handler
	Documents  *documenthandler.Handler
	Verifier   middleware.TokenVerifier
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Health     func() error
}

// NewRouter wires all public endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Device)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Latency(deps.Metrics))

	r.Get("/healthz", handleHealth(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		api.Use(middleware.RequireAuth(deps.Verifier, deps.Logger))
		if deps.Activation != nil {
			deps.Activation.Register(api)
		}
		if deps.Documents != nil {
			deps.Documents.Register(api)
		}
	})

	return r
}

func handleHealth(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
