package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"finassist/internal/models"
	"finassist/internal/services"

	"github.com/go-chi/chi/v5"
)

type createTransactionRequest struct {
	Amount       string   `json:"amount"`
	Currency     string   `json:"currency"`
	Type         string   `json:"type"`
	Date         string   `json:"date"`
	CategoryID   *string  `json:"category_id"`
	Counterparty string   `json:"counterparty"`
	Tags         []string `json:"tags"`
	Description  string   `json:"description"`
	Attachment   *string  `json:"attachment"`
}

type updateTransactionRequest struct {
	Amount       *string   `json:"amount"`
	Date         *string   `json:"date"`
	CategoryID   *string   `json:"category_id"`
	Counterparty *string   `json:"counterparty"`
	Tags         *[]string `json:"tags"`
	Description  *string   `json:"description"`
	Attachment   *string   `json:"attachment"`
}

type transferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Date          string `json:"date"`
	Description   string `json:"description"`
}

type duplicatesRequest struct {
	TransactionIDs []string `json:"transaction_ids"`
	ByCounterparty bool     `json:"by_counterparty"`
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePage(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_page", err.Error())
		return
	}
	rows, err := h.ledger.ListTransactions(r.Context(), chi.URLParam(r, "accountID"), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	created, err := h.ledger.CreateTransaction(r.Context(), services.TransactionInput{
		AccountID:    chi.URLParam(r, "accountID"),
		Amount:       amount,
		Currency:     req.Currency,
		Type:         models.TransactionType(req.Type),
		Date:         date,
		CategoryID:   req.CategoryID,
		Counterparty: req.Counterparty,
		Tags:         req.Tags,
		Description:  req.Description,
		Attachment:   req.Attachment,
		CreatedBy:    actor(r),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	if !h.ownsAccount(w, r, req.FromAccountID) || !h.ownsAccount(w, r, req.ToAccountID) {
		return
	}
	pair, err := h.ledger.CreateTransfer(r.Context(), services.TransferInput{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        amount,
		Currency:      req.Currency,
		Date:          date,
		Description:   req.Description,
		CreatedBy:     actor(r),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, pair)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownedTransaction(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownedTransaction(w, r)
	if !ok {
		return
	}
	pair, err := h.ledger.GetTransfer(r.Context(), t.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pair)
}

func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req updateTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseOptionalAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}
	patch := services.TransactionPatch{
		Amount:       amount,
		CategoryID:   req.CategoryID,
		Counterparty: req.Counterparty,
		Tags:         req.Tags,
		Description:  req.Description,
		Attachment:   req.Attachment,
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil || date.IsZero() {
			respondError(w, http.StatusBadRequest, "invalid_date", errInvalidDate.Error())
			return
		}
		patch.Date = &date
	}
	t, ok := h.ownedTransaction(w, r)
	if !ok {
		return
	}
	updated, err := h.ledger.UpdateTransaction(r.Context(), t.ID, patch, actor(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DeleteTransaction reports every removed row; deleting a transfer leg
// removes its counterpart too.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownedTransaction(w, r)
	if !ok {
		return
	}
	deleted, err := h.ledger.DeleteTransaction(r.Context(), t.ID, actor(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (h *Handler) MarkDuplicates(w http.ResponseWriter, r *http.Request) {
	var req duplicatesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	accountID := chi.URLParam(r, "accountID")
	for _, id := range req.TransactionIDs {
		t, err := h.ledger.GetTransaction(r.Context(), id)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		if t.AccountID != accountID {
			respondError(w, http.StatusUnprocessableEntity, "foreign_transaction", "transaction "+id+" belongs to another account")
			return
		}
	}
	query := services.DuplicateQuery{
		AccountID:      accountID,
		TransactionIDs: req.TransactionIDs,
		ByCounterparty: req.ByCounterparty,
		Actor:          actor(r),
	}
	flagged, err := h.ledger.MarkDuplicates(r.Context(), query)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if flagged == nil {
		flagged = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"flagged": flagged})
}

// ownedTransaction loads the transaction named in the URL and checks that
// its account belongs to the caller.
func (h *Handler) ownedTransaction(w http.ResponseWriter, r *http.Request) (models.Transaction, bool) {
	t, err := h.ledger.GetTransaction(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		respondServiceError(w, r, err)
		return models.Transaction{}, false
	}
	if !h.ownsAccount(w, r, t.AccountID) {
		return models.Transaction{}, false
	}
	return t, true
}

func (h *Handler) ownsAccount(w http.ResponseWriter, r *http.Request, accountID string) bool {
	userID, ok := currentUser(w, r)
	if !ok {
		return false
	}
	if accountID == "" {
		respondError(w, http.StatusBadRequest, "invalid_account", "account id is required")
		return false
	}
	ownerID, err := h.owners.AccountOwner(r.Context(), accountID)
	if errors.Is(err, sql.ErrNoRows) {
		respondServiceError(w, r, services.ErrAccountNotFound)
		return false
	}
	if err != nil {
		respondServiceError(w, r, err)
		return false
	}
	if ownerID != userID {
		respondError(w, http.StatusForbidden, "forbidden", "account belongs to another user")
		return false
	}
	return true
}
