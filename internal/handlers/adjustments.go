package handlers

import (
	"net/http"

	"finassist/internal/services"

	"github.com/go-chi/chi/v5"
)

type createAdjustmentRequest struct {
	OldAmount  string  `json:"old_amount"`
	NewAmount  string  `json:"new_amount"`
	Reason     string  `json:"reason"`
	Attachment *string `json:"attachment"`
}

type reverseAdjustmentRequest struct {
	ReasonPrefix string `json:"reason_prefix"`
}

func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ledger.ListAdjustments(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req createAdjustmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	oldAmount, err := parseAmount(req.OldAmount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", "old_amount: "+err.Error())
		return
	}
	newAmount, err := parseAmount(req.NewAmount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", "new_amount: "+err.Error())
		return
	}
	adj, err := h.ledger.CreateAdjustment(r.Context(), services.AdjustmentInput{
		AccountID:  chi.URLParam(r, "accountID"),
		OldAmount:  oldAmount,
		NewAmount:  newAmount,
		Reason:     req.Reason,
		UserID:     actor(r),
		Attachment: req.Attachment,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, adj)
}

func (h *Handler) GetAdjustment(w http.ResponseWriter, r *http.Request) {
	adj, err := h.ledger.GetAdjustment(r.Context(), chi.URLParam(r, "adjustmentID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !h.ownsAccount(w, r, adj.AccountID) {
		return
	}
	respondJSON(w, http.StatusOK, adj)
}

// ReverseAdjustment accepts an empty body; the reason prefix is optional.
func (h *Handler) ReverseAdjustment(w http.ResponseWriter, r *http.Request) {
	var req reverseAdjustmentRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	adj, err := h.ledger.GetAdjustment(r.Context(), chi.URLParam(r, "adjustmentID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !h.ownsAccount(w, r, adj.AccountID) {
		return
	}
	reversal, err := h.ledger.ReverseAdjustment(r.Context(), adj.ID, actor(r), req.ReasonPrefix)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, reversal)
}
