package api

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Priya8975/leadgateway/internal/delivery"
	"github.com/Priya8975/leadgateway/internal/ingest"
	"github.com/Priya8975/leadgateway/internal/store"
	ws "github.com/Priya8975/leadgateway/internal/websocket"
)

// NewRouter wires the HTTP surface: webhook ingest, lead/delivery
// observability, metrics, and the live status feed. healthDeps are probed
// by GET /api/v1/health, keyed by the name they should report under.
func NewRouter(pgStore *store.PostgresStore, ingestHandler *ingest.Handler, breaker *delivery.CircuitBreaker, hub *ws.Hub, dashboardFS fs.FS, healthDeps map[string]HealthChecker) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(corsMiddleware)

	leadHandler := NewLeadHandler(pgStore)
	metricsHandler := NewMetricsHandler(pgStore, breaker, hub)

	r.Get("/ws", hub.HandleWebSocket)

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/leads", ingestHandler.Ingest)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(healthDeps))
		r.Get("/metrics", metricsHandler.Metrics)

		r.Route("/leads", func(r chi.Router) {
			r.Get("/", leadHandler.List)
			r.Get("/{id}", leadHandler.Get)
			r.Get("/{id}/delivery-attempts", leadHandler.DeliveryAttempts)
		})
	})

	if dashboardFS != nil {
		fileServer := http.FileServer(http.FS(dashboardFS))
		r.Handle("/*", fileServer)
	}

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
