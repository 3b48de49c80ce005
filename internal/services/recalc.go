package services

import (
	"context"
	"fmt"
	"time"

	"finassist/internal/db"
	"finassist/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const snapshotSoftFailureKind = "snapshot"

// Recalculator is the only code path that writes Account.balance.
type Recalculator struct {
	accounts  AccountStore
	snapshots SnapshotStore
	soft      *db.SoftFailer
	now       func() time.Time
}

func NewRecalculator(accounts AccountStore, snapshots SnapshotStore, soft *db.SoftFailer, now func() time.Time) *Recalculator {
	return &Recalculator{accounts: accounts, snapshots: snapshots, soft: soft, now: now}
}

// Recalculate locks the account, derives its balance from the ledger rows and
// stores it. With persistSnapshot it also upserts today's snapshot; a failed
// snapshot is discarded and never undoes the balance write.
func (r *Recalculator) Recalculate(ctx context.Context, tx *sqlx.Tx, accountID string, persistSnapshot bool) (models.Account, error) {
	account, err := r.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		return models.Account{}, notFound(err, ErrAccountNotFound)
	}
	balance, err := r.accounts.ComputeBalance(ctx, tx, accountID)
	if err != nil {
		return models.Account{}, fmt.Errorf("compute balance: %w", err)
	}
	now := r.now().UTC()
	if err := r.accounts.UpdateBalance(ctx, tx, accountID, balance, now); err != nil {
		return models.Account{}, fmt.Errorf("update balance: %w", err)
	}
	account.Balance = balance
	account.UpdatedAt = now

	if persistSnapshot {
		r.soft.Run(ctx, tx, snapshotSoftFailureKind, func() error {
			return r.snapshots.Upsert(ctx, tx, models.BalanceSnapshot{
				ID:        uuid.NewString(),
				AccountID: accountID,
				Date:      today(now),
				Balance:   balance,
				CreatedAt: now,
			})
		})
	}
	return account, nil
}
