package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finassist/internal/audit"
	"finassist/internal/models"
	"finassist/internal/money"
	"finassist/internal/store"
	"finassist/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AccountInput struct {
	OwnerID         string
	Name            string
	Type            models.AccountType
	Currency        string
	InitialBalance  money.Money
	NotifyThreshold *money.Money
}

// RecalcSummary reports a batch recalculation. Errors counts accounts that
// failed; the batch itself keeps going.
type RecalcSummary struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

func (s *LedgerService) CreateAccount(ctx context.Context, in AccountInput) (models.Account, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return models.Account{}, ErrInvalidAccount
	}
	if in.Type == "" || in.Type == models.AccountBankAlias {
		in.Type = models.AccountBank
	}
	if err := validator.ValidateAccountType(in.Type); err != nil {
		return models.Account{}, fmt.Errorf("%w: %v", ErrInvalidType, err)
	}
	if err := validator.ValidateName(in.Name); err != nil {
		return models.Account{}, fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if err := validator.ValidateCurrency(currency); err != nil {
		return models.Account{}, fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	now := s.clock()
	account := models.Account{
		ID:              uuid.NewString(),
		OwnerID:         in.OwnerID,
		Name:            strings.TrimSpace(in.Name),
		Type:            in.Type,
		Currency:        currency,
		InitialBalance:  in.InitialBalance,
		NotifyThreshold: in.NotifyThreshold,
		Balance:         in.InitialBalance,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.accounts.Create(ctx, tx, account)
	})
	if err != nil {
		return models.Account{}, err
	}
	s.logger.Info().Str("account_id", account.ID).Str("owner_id", account.OwnerID).Msg("account created")
	return account, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	account, err := s.accounts.GetByID(ctx, s.reader, accountID)
	if err != nil {
		return models.Account{}, notFound(err, ErrAccountNotFound)
	}
	return account, nil
}

func (s *LedgerService) ListAccounts(ctx context.Context, ownerID string) ([]models.Account, error) {
	return s.accounts.ListByOwner(ctx, ownerID)
}

// DeleteAccount removes the account with all of its transactions and
// adjustments. Each dependent row is audited as deleted first. Transfer legs
// take their counterparts on other accounts with them, and those accounts are
// recalculated.
func (s *LedgerService) DeleteAccount(ctx context.Context, accountID string, actor *string) error {
	var touched []models.Account
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		touched = nil
		if _, err := s.accounts.GetByID(ctx, tx, accountID); err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		transactions, err := s.transactions.ListAllByAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		var counterparts []models.Transaction
		lockIDs := []string{accountID}
		for _, t := range transactions {
			if !t.IsTransfer() {
				continue
			}
			other, err := s.counterpart(ctx, tx, t.ID)
			if err != nil {
				return err
			}
			counterparts = append(counterparts, other)
			lockIDs = append(lockIDs, other.AccountID)
		}
		if _, err := lockAccounts(ctx, tx, s.accounts, lockIDs...); err != nil {
			return err
		}

		var others []string
		for _, other := range counterparts {
			if _, err := s.transactions.Delete(ctx, tx, other.ID); err != nil {
				return err
			}
			s.emitDeleted(ctx, tx, models.ObjectTransaction, other.ID, other, actor, "account deleted")
			if other.AccountID != accountID {
				others = append(others, other.AccountID)
			}
		}
		for _, t := range transactions {
			s.emitDeleted(ctx, tx, models.ObjectTransaction, t.ID, t, actor, "account deleted")
		}
		adjustments, err := s.adjustments.ListByAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		for _, adj := range adjustments {
			s.emitDeleted(ctx, tx, models.ObjectAdjustment, adj.ID, adj, actor, "account deleted")
		}
		if _, err := s.accounts.Delete(ctx, tx, accountID); err != nil {
			return err
		}
		touched, err = s.recalculateAll(ctx, tx, others...)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("account_id", accountID).Int("counterparts_recalculated", len(touched)).Msg("account deleted")
	s.broadcast(touched...)
	return nil
}

func (s *LedgerService) emitDeleted(ctx context.Context, tx *sqlx.Tx, objectType, objectID string, before any, actor *string, reason string) {
	s.audit.OnMutation(ctx, tx, audit.Mutation{
		ObjectType: objectType,
		ObjectID:   objectID,
		Action:     models.AuditDeleted,
		Actor:      actor,
		Before:     before,
		Reason:     reason,
	})
}

// GetBalance derives the balance from the ledger rows without writing.
func (s *LedgerService) GetBalance(ctx context.Context, accountID string) (money.Money, error) {
	balance, err := s.accounts.ComputeBalance(ctx, s.reader, accountID)
	if err != nil {
		return money.Zero, notFound(err, ErrAccountNotFound)
	}
	return balance, nil
}

func (s *LedgerService) RecalculateBalance(ctx context.Context, accountID string, persistSnapshot bool) (models.Account, error) {
	var account models.Account
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		account, err = s.recalc.Recalculate(ctx, tx, accountID, persistSnapshot)
		return err
	})
	if err != nil {
		return models.Account{}, err
	}
	s.broadcast(account)
	return account, nil
}

// RecalculateAll walks every account in id order, batchSize ids at a time,
// each in its own transaction. A failing account is logged and counted.
func (s *LedgerService) RecalculateAll(ctx context.Context, batchSize int, persistSnapshot bool) (RecalcSummary, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	var summary RecalcSummary
	after := ""
	for {
		ids, err := s.accounts.ListIDsAfter(ctx, after, batchSize)
		if err != nil {
			return summary, fmt.Errorf("list accounts: %w", err)
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			if _, err := s.RecalculateBalance(ctx, id, persistSnapshot); err != nil {
				summary.Errors++
				s.logger.Error().Err(err).Str("account_id", id).Msg("recalculate balance failed")
				continue
			}
			summary.Processed++
		}
		if len(ids) < batchSize {
			break
		}
		after = ids[len(ids)-1]
	}
	s.logger.Info().Int("processed", summary.Processed).Int("errors", summary.Errors).Msg("balances recalculated")
	return summary, nil
}

// Reconcile reports cached and derived balances side by side. An empty owner
// covers every account.
func (s *LedgerService) Reconcile(ctx context.Context, ownerID string) ([]store.BalanceDrift, error) {
	return s.accounts.Reconcile(ctx, ownerID)
}

func (s *LedgerService) ListSnapshots(ctx context.Context, accountID string, from, to time.Time) ([]models.BalanceSnapshot, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.snapshots.List(ctx, accountID, from, to)
}
