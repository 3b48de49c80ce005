package handlers

import (
	"net/http"

	"finassist/internal/models"
	"finassist/internal/services"

	"github.com/go-chi/chi/v5"
)

type createAccountRequest struct {
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Currency        string  `json:"currency"`
	InitialBalance  string  `json:"initial_balance"`
	NotifyThreshold *string `json:"notify_threshold"`
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	accounts, err := h.ledger.ListAccounts(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	initial := "0"
	if req.InitialBalance != "" {
		initial = req.InitialBalance
	}
	balance, err := parseAmount(initial)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", "initial_balance: "+err.Error())
		return
	}
	threshold, err := parseOptionalAmount(req.NotifyThreshold)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", "notify_threshold: "+err.Error())
		return
	}
	account, err := h.ledger.CreateAccount(r.Context(), services.AccountInput{
		OwnerID:         userID,
		Name:            req.Name,
		Type:            models.AccountType(req.Type),
		Currency:        req.Currency,
		InitialBalance:  balance,
		NotifyThreshold: threshold,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.GetAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteAccount(r.Context(), chi.URLParam(r, "accountID"), actor(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetBalance returns both the cached balance and the one derived from the
// ledger rows right now.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	account, err := h.ledger.GetAccount(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	computed, err := h.ledger.GetBalance(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"account_id":      accountID,
		"currency":        account.Currency,
		"balance":         account.Balance,
		"computed":        computed,
		"below_threshold": account.BelowThreshold(computed),
	})
}

func (h *Handler) RecalculateBalance(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.RecalculateBalance(r.Context(), chi.URLParam(r, "accountID"), parseFlag(r.URL.Query(), "snapshot"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	snapshots, err := h.ledger.ListSnapshots(r.Context(), chi.URLParam(r, "accountID"), from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshots)
}

// Reconcile reports drift between cached and derived balances for the
// caller's accounts.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	rows, err := h.ledger.Reconcile(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
