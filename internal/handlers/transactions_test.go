package handlers

import (
	"context"
	"net/http"
	"testing"

	"finassist/internal/models"
	"finassist/internal/money"
	"finassist/internal/services"
)

func TestCreateTransaction(t *testing.T) {
	h := newTestHandler(stubLedger{
		createTransactionFn: func(_ context.Context, in services.TransactionInput) (models.Transaction, error) {
			if in.AccountID != "acc-1" || in.Amount.String() != "-20.00" || in.Date.Format("2006-01-02") != "2024-03-01" {
				t.Fatalf("unexpected input: %#v", in)
			}
			if in.CreatedBy == nil || *in.CreatedBy != "user-1" {
				t.Fatalf("expected creator to be the caller")
			}
			return models.Transaction{ID: "tx-1", AccountID: in.AccountID, Amount: in.Amount}, nil
		},
	}, stubOwners{"acc-1": "user-1"})
	rr := serve(t, h, http.MethodPost, "/accounts/acc-1/transactions", "user-1", map[string]any{
		"amount": "-20.00",
		"date":   "2024-03-01",
		"tags":   []string{"food"},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateTransactionCurrencyMismatch(t *testing.T) {
	h := newTestHandler(stubLedger{
		createTransactionFn: func(context.Context, services.TransactionInput) (models.Transaction, error) {
			return models.Transaction{}, services.ErrCurrencyMismatch
		},
	}, stubOwners{"acc-1": "user-1"})
	rr := serve(t, h, http.MethodPost, "/accounts/acc-1/transactions", "user-1", map[string]any{"amount": "5", "currency": "EUR"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestCreateTransactionRejectsUnknownFields(t *testing.T) {
	h := newTestHandler(stubLedger{}, stubOwners{"acc-1": "user-1"})
	rr := serve(t, h, http.MethodPost, "/accounts/acc-1/transactions", "user-1", map[string]any{"amount": "5", "balance": "100"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCreateTransferChecksBothAccounts(t *testing.T) {
	h := newTestHandler(stubLedger{}, stubOwners{"acc-1": "user-1", "acc-2": "user-2"})
	rr := serve(t, h, http.MethodPost, "/transfers", "user-1", map[string]any{
		"from_account_id": "acc-1",
		"to_account_id":   "acc-2",
		"amount":          "30.00",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestCreateTransfer(t *testing.T) {
	h := newTestHandler(stubLedger{
		createTransferFn: func(_ context.Context, in services.TransferInput) (models.TransferPair, error) {
			return models.TransferPair{
				ID:       "tr-1",
				Outbound: models.Transaction{ID: "tx-out", AccountID: in.FromAccountID, Amount: in.Amount.Neg()},
				Inbound:  models.Transaction{ID: "tx-in", AccountID: in.ToAccountID, Amount: in.Amount},
			}, nil
		},
	}, stubOwners{"acc-1": "user-1", "acc-2": "user-1"})
	rr := serve(t, h, http.MethodPost, "/transfers", "user-1", map[string]any{
		"from_account_id": "acc-1",
		"to_account_id":   "acc-2",
		"amount":          "30.00",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var pair models.TransferPair
	decodeBody(t, rr, &pair)
	if pair.Outbound.Amount.String() != "-30.00" || pair.Inbound.Amount.String() != "30.00" {
		t.Fatalf("unexpected pair: %#v", pair)
	}
}

func TestUpdateTransferAmountConflict(t *testing.T) {
	h := newTestHandler(stubLedger{
		getTransactionFn: func(context.Context, string) (models.Transaction, error) {
			return models.Transaction{ID: "tx-1", AccountID: "acc-1", Type: models.TransactionTransfer}, nil
		},
		updateTransactionFn: func(_ context.Context, _ string, patch services.TransactionPatch, _ *string) (models.Transaction, error) {
			if patch.Amount == nil || patch.Amount.String() != "-6.00" {
				t.Fatalf("unexpected patch: %#v", patch)
			}
			return models.Transaction{}, services.ErrTransferAmountLocked
		},
	}, stubOwners{"acc-1": "user-1"})
	rr := serve(t, h, http.MethodPatch, "/transactions/tx-1", "user-1", map[string]any{"amount": "-6.00"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	h := newTestHandler(stubLedger{
		getTransactionFn: func(context.Context, string) (models.Transaction, error) {
			return models.Transaction{}, services.ErrTransactionNotFound
		},
	}, stubOwners{})
	rr := serve(t, h, http.MethodGet, "/transactions/missing", "user-1", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestDeleteTransactionReturnsAllRows(t *testing.T) {
	h := newTestHandler(stubLedger{
		getTransactionFn: func(context.Context, string) (models.Transaction, error) {
			return models.Transaction{ID: "tx-in", AccountID: "acc-1", Amount: money.MustParse("30.00")}, nil
		},
		deleteTransactionFn: func(context.Context, string, *string) ([]string, error) {
			return []string{"tx-out", "tx-in"}, nil
		},
	}, stubOwners{"acc-1": "user-1"})
	rr := serve(t, h, http.MethodDelete, "/transactions/tx-in", "user-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		Deleted []string `json:"deleted"`
	}
	decodeBody(t, rr, &payload)
	if len(payload.Deleted) != 2 {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestMarkDuplicatesRejectsForeignTransactions(t *testing.T) {
	h := newTestHandler(stubLedger{
		getTransactionFn: func(context.Context, string) (models.Transaction, error) {
			return models.Transaction{ID: "tx-9", AccountID: "acc-9"}, nil
		},
	}, stubOwners{"acc-1": "user-1"})
	rr := serve(t, h, http.MethodPost, "/accounts/acc-1/duplicates", "user-1", map[string]any{"transaction_ids": []string{"tx-9"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestMarkDuplicates(t *testing.T) {
	h := newTestHandler(stubLedger{
		markDuplicatesFn: func(_ context.Context, q services.DuplicateQuery) ([]string, error) {
			if q.AccountID != "acc-1" || !q.ByCounterparty {
				t.Fatalf("unexpected query: %#v", q)
			}
			return nil, nil
		},
	}, stubOwners{"acc-1": "user-1"})
	rr := serve(t, h, http.MethodPost, "/accounts/acc-1/duplicates", "user-1", map[string]any{"by_counterparty": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		Flagged []string `json:"flagged"`
	}
	decodeBody(t, rr, &payload)
	if payload.Flagged == nil {
		t.Fatal("expected an empty list, got null")
	}
}
