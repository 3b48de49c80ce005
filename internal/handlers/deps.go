package handlers

import (
	"context"
	"time"

	"finassist/internal/models"
	"finassist/internal/money"
	"finassist/internal/services"
	"finassist/internal/store"
)

// Ledger is the part of services.LedgerService the HTTP layer drives.
type Ledger interface {
	CreateAccount(ctx context.Context, in services.AccountInput) (models.Account, error)
	GetAccount(ctx context.Context, accountID string) (models.Account, error)
	ListAccounts(ctx context.Context, ownerID string) ([]models.Account, error)
	DeleteAccount(ctx context.Context, accountID string, actor *string) error
	GetBalance(ctx context.Context, accountID string) (money.Money, error)
	RecalculateBalance(ctx context.Context, accountID string, persistSnapshot bool) (models.Account, error)
	Reconcile(ctx context.Context, ownerID string) ([]store.BalanceDrift, error)
	ListSnapshots(ctx context.Context, accountID string, from, to time.Time) ([]models.BalanceSnapshot, error)

	CreateTransaction(ctx context.Context, in services.TransactionInput) (models.Transaction, error)
	CreateTransfer(ctx context.Context, in services.TransferInput) (models.TransferPair, error)
	GetTransaction(ctx context.Context, transactionID string) (models.Transaction, error)
	ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error)
	GetTransfer(ctx context.Context, transactionID string) (models.TransferPair, error)
	UpdateTransaction(ctx context.Context, transactionID string, patch services.TransactionPatch, actor *string) (models.Transaction, error)
	DeleteTransaction(ctx context.Context, transactionID string, actor *string) ([]string, error)
	MarkDuplicates(ctx context.Context, q services.DuplicateQuery) ([]string, error)

	CreateAdjustment(ctx context.Context, in services.AdjustmentInput) (models.Adjustment, error)
	ReverseAdjustment(ctx context.Context, adjustmentID string, performedBy *string, reasonPrefix string) (models.Reversal, error)
	GetAdjustment(ctx context.Context, adjustmentID string) (models.Adjustment, error)
	ListAdjustments(ctx context.Context, accountID string) ([]models.Adjustment, error)
}

type AuditReader interface {
	ListByObject(ctx context.Context, objectType, objectID string) ([]models.AuditLog, error)
}

// SoftFailureCounter reports discarded audit and snapshot writes.
type SoftFailureCounter interface {
	Counts() map[string]int64
}
