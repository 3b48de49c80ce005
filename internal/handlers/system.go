package handlers

import (
	"net/http"

	"finassist/internal/models"
	"finassist/internal/websocket"

	"github.com/go-chi/chi/v5"
)

// Health reports liveness together with the soft-failure counters, so a
// silently failing audit or snapshot write is visible from outside.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"soft_failures": h.health.Counts(),
	})
}

// ObjectHistory returns the audit trail of a transaction or adjustment that
// still exists and belongs to the caller.
func (h *Handler) ObjectHistory(w http.ResponseWriter, r *http.Request) {
	objectType := chi.URLParam(r, "objectType")
	objectID := chi.URLParam(r, "objectID")
	var accountID string
	switch objectType {
	case models.ObjectTransaction:
		t, err := h.ledger.GetTransaction(r.Context(), objectID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		accountID = t.AccountID
	case models.ObjectAdjustment:
		adj, err := h.ledger.GetAdjustment(r.Context(), objectID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		accountID = adj.AccountID
	default:
		respondError(w, http.StatusBadRequest, "invalid_object_type", "object type must be Transaction or Adjustment")
		return
	}
	if !h.ownsAccount(w, r, accountID) {
		return
	}
	entries, err := h.audit.ListByObject(r.Context(), objectType, objectID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	websocket.ServeWS(w, r, h.upgrader, h.hub, userID)
}
