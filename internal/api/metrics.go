package api

import (
	"net/http"

	ws "github.com/Priya8975/leadgateway/internal/websocket"

	"github.com/Priya8975/leadgateway/internal/delivery"
	"github.com/Priya8975/leadgateway/internal/store"
)

type MetricsHandler struct {
	store   *store.PostgresStore
	breaker *delivery.CircuitBreaker
	hub     *ws.Hub
}

func NewMetricsHandler(s *store.PostgresStore, breaker *delivery.CircuitBreaker, hub *ws.Hub) *MetricsHandler {
	return &MetricsHandler{store: s, breaker: breaker, hub: hub}
}

type metricsResponse struct {
	store.LeadMetrics
	CircuitBreaker   delivery.CircuitBreakerState `json:"circuit_breaker"`
	WebSocketClients int                          `json:"websocket_clients"`
}

func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.store.GetLeadMetrics(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get metrics")
		return
	}

	respondJSON(w, http.StatusOK, metricsResponse{
		LeadMetrics:      *metrics,
		CircuitBreaker:   h.breaker.GetState(r.Context()),
		WebSocketClients: h.hub.ClientCount(),
	})
}
