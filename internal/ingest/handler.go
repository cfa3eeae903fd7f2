// Package ingest implements the webhook entry point: accept a lead
// submission, persist it as RECEIVED, and enqueue its process_lead job
// without making the caller wait on validation, mapping, or delivery.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Priya8975/leadgateway/internal/domain"
)

// Enqueuer is the slice of queue.Queue this handler depends on, defined
// here (the consumer) rather than in the queue package. Ingest only ever
// schedules the first attempt of a lead's process_lead job; it never
// drives validation, normalization, mapping, or delivery itself — those
// stages run on the worker pool once the job is dequeued.
type Enqueuer interface {
	Enqueue(ctx context.Context, leadID string, attempt int, runAfter time.Time) error
}

// LeadCreator is the slice of *store.PostgresStore this handler depends
// on, declared here so it can be exercised against a fake in tests.
type LeadCreator interface {
	CreateLead(ctx context.Context, id, correlationID string, rawPayload map[string]any, headers map[string]string) (*domain.Lead, error)
}

// AuthConfig controls the optional shared-secret header check in front of
// the webhook. When Enabled is false every request is accepted regardless
// of headers.
type AuthConfig struct {
	Enabled      bool
	HeaderName   string
	SharedSecret string
}

type Handler struct {
	store  LeadCreator
	queue  Enqueuer
	logger *slog.Logger
	auth   AuthConfig
}

func NewHandler(s LeadCreator, q Enqueuer, logger *slog.Logger, auth AuthConfig) *Handler {
	return &Handler{store: s, queue: q, logger: logger, auth: auth}
}

type ingestResponse struct {
	LeadID        string `json:"lead_id"`
	CorrelationID string `json:"correlation_id"`
	Status        string `json:"status"`
}

// Ingest accepts a webhook body, persists it, and enqueues its
// process_lead job — the handler itself only reports that the lead was
// received, not the outcome of screening or delivery.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	correlationID := r.Header.Get("X-Correlation-ID")
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	w.Header().Set("X-Correlation-ID", correlationID)

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respondErrorWithCorrelation(w, http.StatusBadRequest, "invalid JSON body", correlationID)
		return
	}
	if len(raw) == 0 {
		respondErrorWithCorrelation(w, http.StatusBadRequest, "body must not be empty", correlationID)
		return
	}

	if h.auth.Enabled {
		supplied := r.Header.Get(h.auth.HeaderName)
		if supplied == "" || supplied != h.auth.SharedSecret {
			respondErrorWithCorrelation(w, http.StatusUnauthorized, "unauthorized", correlationID)
			return
		}
	}

	headers := snapshotHeaders(r.Header)

	leadID := uuid.NewString()
	lead, err := h.store.CreateLead(r.Context(), leadID, correlationID, raw, headers)
	if err != nil {
		h.logger.Error("failed to persist ingested lead", "correlation_id", correlationID, "error", err)
		respondErrorWithCorrelation(w, http.StatusServiceUnavailable, "failed to record lead", correlationID)
		return
	}

	if err := h.queue.Enqueue(r.Context(), lead.ID, 1, time.Now()); err != nil {
		// The lead row persists; it sits in RECEIVED until the orphan
		// sweeper reclaims it by re-enqueuing, per the ingest-time
		// queue-failure design decision.
		h.logger.Error("failed to enqueue process_lead job", "lead_id", lead.ID, "error", err)
		respondErrorWithCorrelation(w, http.StatusServiceUnavailable, "failed to schedule processing", correlationID)
		return
	}

	respondJSON(w, http.StatusOK, ingestResponse{
		LeadID:        lead.ID,
		CorrelationID: lead.CorrelationID,
		Status:        string(lead.Status),
	})
}

// snapshotHeaders takes one representative value per header name — the
// full multi-value form isn't needed for audit.
func snapshotHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// respondErrorWithCorrelation puts the correlation id in the error body
// as well as the response header set earlier in Ingest.
func respondErrorWithCorrelation(w http.ResponseWriter, status int, message, correlationID string) {
	respondJSON(w, status, map[string]string{"error": message, "correlation_id": correlationID})
}
