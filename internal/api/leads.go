package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Priya8975/leadgateway/internal/store"
)

type LeadHandler struct {
	store *store.PostgresStore
}

func NewLeadHandler(s *store.PostgresStore) *LeadHandler {
	return &LeadHandler{store: s}
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	leads, err := h.store.ListLeads(r.Context(), status, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	respondJSON(w, http.StatusOK, leads)
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lead, err := h.store.GetLead(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get lead")
		return
	}
	if lead == nil {
		respondError(w, http.StatusNotFound, "lead not found")
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) DeliveryAttempts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	attempts, err := h.store.ListDeliveryAttempts(r.Context(), id, 0)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list delivery attempts")
		return
	}
	respondJSON(w, http.StatusOK, attempts)
}
