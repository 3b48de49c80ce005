package services

import (
	"context"
	"fmt"
	"strings"

	"finassist/internal/audit"
	"finassist/internal/db"
	"finassist/internal/models"
	"finassist/internal/money"
	"finassist/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const DefaultReversalPrefix = "Reversal of"

type AdjustmentInput struct {
	AccountID  string
	OldAmount  money.Money
	NewAmount  money.Money
	Reason     string
	UserID     *string
	Attachment *string
}

// CreateAdjustment records a manual correction. Its balance contribution is
// NewAmount - OldAmount.
func (s *LedgerService) CreateAdjustment(ctx context.Context, in AdjustmentInput) (models.Adjustment, error) {
	if err := validator.ValidateReason(in.Reason); err != nil {
		return models.Adjustment{}, ErrMissingReason
	}
	if strings.TrimSpace(in.AccountID) == "" {
		return models.Adjustment{}, ErrInvalidAccount
	}
	var created models.Adjustment
	var touched models.Account
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, in.AccountID)
		if err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		created = models.Adjustment{
			ID:         uuid.NewString(),
			AccountID:  account.ID,
			UserID:     in.UserID,
			OldAmount:  in.OldAmount,
			NewAmount:  in.NewAmount,
			Reason:     strings.TrimSpace(in.Reason),
			Attachment: in.Attachment,
			CreatedAt:  s.clock(),
		}
		if err := s.adjustments.Create(ctx, tx, created); err != nil {
			return err
		}
		s.audit.OnMutation(ctx, tx, audit.Mutation{
			ObjectType: models.ObjectAdjustment,
			ObjectID:   created.ID,
			Action:     models.AuditCreated,
			Actor:      in.UserID,
			After:      created,
			Reason:     created.Reason,
		})
		touched, err = s.recalc.Recalculate(ctx, tx, account.ID, false)
		return err
	})
	if err != nil {
		return models.Adjustment{}, err
	}
	s.broadcast(touched)
	return created, nil
}

// ReverseAdjustment undoes an adjustment with a new one whose amounts are the
// original's swapped. An original can be reversed once; a reversal can never
// be reversed. Both rules are enforced under the account and adjustment
// locks, and the reversal link's primary key backs up the first one.
func (s *LedgerService) ReverseAdjustment(ctx context.Context, adjustmentID string, performedBy *string, reasonPrefix string) (models.Reversal, error) {
	prefix := strings.TrimSpace(reasonPrefix)
	if prefix == "" {
		prefix = DefaultReversalPrefix
	}
	var result models.Reversal
	var touched models.Account
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		unlocked, err := s.adjustments.GetByID(ctx, tx, adjustmentID)
		if err != nil {
			return notFound(err, ErrAdjustmentNotFound)
		}
		if _, err := s.accounts.GetForUpdate(ctx, tx, unlocked.AccountID); err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		if _, err := s.adjustments.LockAccountID(ctx, tx, adjustmentID); err != nil {
			return notFound(err, ErrAdjustmentNotFound)
		}
		original, err := s.adjustments.GetByID(ctx, tx, adjustmentID)
		if err != nil {
			return notFound(err, ErrAdjustmentNotFound)
		}
		switch original.State() {
		case models.AdjustmentReversalEntry:
			return ErrReversalNotReversible
		case models.AdjustmentReversed:
			return ErrAlreadyReversed
		}

		now := s.clock()
		reversal := models.Adjustment{
			ID:         uuid.NewString(),
			AccountID:  original.AccountID,
			UserID:     performedBy,
			OldAmount:  original.NewAmount,
			NewAmount:  original.OldAmount,
			Reason:     fmt.Sprintf("%s adjustment %s: %s", prefix, original.ID, original.Reason),
			IsReversal: true,
			ReversalOf: &original.ID,
			CreatedAt:  now,
		}
		if err := s.adjustments.Create(ctx, tx, reversal); err != nil {
			return err
		}
		if err := s.adjustments.LinkReversal(ctx, tx, original.ID, reversal.ID, now); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrAlreadyReversed
			}
			return err
		}
		original.ReversedBy = &reversal.ID
		s.audit.OnMutation(ctx, tx, audit.Mutation{
			ObjectType: models.ObjectAdjustment,
			ObjectID:   reversal.ID,
			Action:     models.AuditCreated,
			Actor:      performedBy,
			After:      reversal,
			Reason:     reversal.Reason,
		})
		result = models.Reversal{Original: original, Reversal: reversal}
		touched, err = s.recalc.Recalculate(ctx, tx, original.AccountID, false)
		return err
	})
	if err != nil {
		return models.Reversal{}, err
	}
	s.broadcast(touched)
	return result, nil
}

func (s *LedgerService) GetAdjustment(ctx context.Context, adjustmentID string) (models.Adjustment, error) {
	adj, err := s.adjustments.GetByID(ctx, s.reader, adjustmentID)
	if err != nil {
		return models.Adjustment{}, notFound(err, ErrAdjustmentNotFound)
	}
	return adj, nil
}

func (s *LedgerService) ListAdjustments(ctx context.Context, accountID string) ([]models.Adjustment, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.adjustments.ListByAccount(ctx, s.reader, accountID)
}
