package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"finassist/internal/auth"
	"finassist/internal/config"
	"finassist/internal/models"
	"finassist/internal/money"
	"finassist/internal/services"
	"finassist/internal/store"
	"finassist/internal/websocket"

	"github.com/rs/zerolog"
)

const testSecret = "secret"

// stubLedger panics on any method a test did not expect.
type stubLedger struct {
	Ledger
	listAccountsFn      func(ctx context.Context, ownerID string) ([]models.Account, error)
	createAccountFn     func(ctx context.Context, in services.AccountInput) (models.Account, error)
	getAccountFn        func(ctx context.Context, accountID string) (models.Account, error)
	getBalanceFn        func(ctx context.Context, accountID string) (money.Money, error)
	reconcileFn         func(ctx context.Context, ownerID string) ([]store.BalanceDrift, error)
	createTransactionFn func(ctx context.Context, in services.TransactionInput) (models.Transaction, error)
	createTransferFn    func(ctx context.Context, in services.TransferInput) (models.TransferPair, error)
	getTransactionFn    func(ctx context.Context, transactionID string) (models.Transaction, error)
	updateTransactionFn func(ctx context.Context, transactionID string, patch services.TransactionPatch, actor *string) (models.Transaction, error)
	deleteTransactionFn func(ctx context.Context, transactionID string, actor *string) ([]string, error)
	markDuplicatesFn    func(ctx context.Context, q services.DuplicateQuery) ([]string, error)
	createAdjustmentFn  func(ctx context.Context, in services.AdjustmentInput) (models.Adjustment, error)
	getAdjustmentFn     func(ctx context.Context, adjustmentID string) (models.Adjustment, error)
	reverseFn           func(ctx context.Context, adjustmentID string, performedBy *string, reasonPrefix string) (models.Reversal, error)
}

func (s stubLedger) ListAccounts(ctx context.Context, ownerID string) ([]models.Account, error) {
	return s.listAccountsFn(ctx, ownerID)
}

func (s stubLedger) CreateAccount(ctx context.Context, in services.AccountInput) (models.Account, error) {
	return s.createAccountFn(ctx, in)
}

func (s stubLedger) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	return s.getAccountFn(ctx, accountID)
}

func (s stubLedger) GetBalance(ctx context.Context, accountID string) (money.Money, error) {
	return s.getBalanceFn(ctx, accountID)
}

func (s stubLedger) Reconcile(ctx context.Context, ownerID string) ([]store.BalanceDrift, error) {
	return s.reconcileFn(ctx, ownerID)
}

func (s stubLedger) CreateTransaction(ctx context.Context, in services.TransactionInput) (models.Transaction, error) {
	return s.createTransactionFn(ctx, in)
}

func (s stubLedger) CreateTransfer(ctx context.Context, in services.TransferInput) (models.TransferPair, error) {
	return s.createTransferFn(ctx, in)
}

func (s stubLedger) GetTransaction(ctx context.Context, transactionID string) (models.Transaction, error) {
	return s.getTransactionFn(ctx, transactionID)
}

func (s stubLedger) UpdateTransaction(ctx context.Context, transactionID string, patch services.TransactionPatch, actor *string) (models.Transaction, error) {
	return s.updateTransactionFn(ctx, transactionID, patch, actor)
}

func (s stubLedger) DeleteTransaction(ctx context.Context, transactionID string, actor *string) ([]string, error) {
	return s.deleteTransactionFn(ctx, transactionID, actor)
}

func (s stubLedger) MarkDuplicates(ctx context.Context, q services.DuplicateQuery) ([]string, error) {
	return s.markDuplicatesFn(ctx, q)
}

func (s stubLedger) CreateAdjustment(ctx context.Context, in services.AdjustmentInput) (models.Adjustment, error) {
	return s.createAdjustmentFn(ctx, in)
}

func (s stubLedger) GetAdjustment(ctx context.Context, adjustmentID string) (models.Adjustment, error) {
	return s.getAdjustmentFn(ctx, adjustmentID)
}

func (s stubLedger) ReverseAdjustment(ctx context.Context, adjustmentID string, performedBy *string, reasonPrefix string) (models.Reversal, error) {
	return s.reverseFn(ctx, adjustmentID, performedBy, reasonPrefix)
}

// stubOwners maps account ids to owners; unknown ids are missing rows.
type stubOwners map[string]string

func (s stubOwners) AccountOwner(_ context.Context, accountID string) (string, error) {
	owner, ok := s[accountID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return owner, nil
}

type stubAudit struct {
	listByObjectFn func(ctx context.Context, objectType, objectID string) ([]models.AuditLog, error)
}

func (s stubAudit) ListByObject(ctx context.Context, objectType, objectID string) ([]models.AuditLog, error) {
	return s.listByObjectFn(ctx, objectType, objectID)
}

type stubCounts map[string]int64

func (s stubCounts) Counts() map[string]int64 {
	return s
}

func newTestHandler(ledger Ledger, owners stubOwners) *Handler {
	return newTestHandlerWithAudit(ledger, owners, stubAudit{})
}

func newTestHandlerWithAudit(ledger Ledger, owners stubOwners, audit AuditReader) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: []string{"*"},
	}
	return New(cfg, ledger, owners, audit, stubCounts{"audit": 2}, websocket.NewHub(zerolog.Nop()), zerolog.Nop())
}

// serve sends the request through the full router. An empty userID sends no
// credentials.
func serve(t *testing.T, h *Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		payload = buf
	}
	req := httptest.NewRequest(method, path, payload)
	if userID != "" {
		token, err := auth.GenerateToken(testSecret, userID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dest); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func stringPtr(value string) *string {
	return &value
}
