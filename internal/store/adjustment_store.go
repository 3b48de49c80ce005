package store

import (
	"context"
	"time"

	"finassist/internal/db"
	"finassist/internal/models"
)

type AdjustmentStore struct {
	db      DB
	dialect db.Dialect
}

const adjustmentSelect = `
		SELECT a.id, a.account_id, a.user_id, a.old_amount, a.new_amount, a.reason, a.attachment, a.is_reversal, a.created_at,
		       (SELECT r.original_id FROM adjustment_reversals r WHERE r.reversal_id = a.id) AS reversal_of,
		       (SELECT r.reversal_id FROM adjustment_reversals r WHERE r.original_id = a.id) AS reversed_by
		FROM adjustments a
`

func NewAdjustmentStore(conn DB, dialect db.Dialect) *AdjustmentStore {
	return &AdjustmentStore{db: conn, dialect: dialect}
}

func (s *AdjustmentStore) Create(ctx context.Context, tx Execer, adj models.Adjustment) error {
	_, err := tx.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO adjustments (id, account_id, user_id, old_amount, new_amount, reason, attachment, is_reversal, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), adj.ID, adj.AccountID, adj.UserID, adj.OldAmount, adj.NewAmount, adj.Reason, adj.Attachment, adj.IsReversal, adj.CreatedAt)
	return err
}

func (s *AdjustmentStore) GetByID(ctx context.Context, q Getter, adjustmentID string) (models.Adjustment, error) {
	var row models.Adjustment
	err := q.GetContext(ctx, &row, s.dialect.Rebind(adjustmentSelect+` WHERE a.id = ?`), adjustmentID)
	if err != nil {
		return models.Adjustment{}, err
	}
	return row, nil
}

// LockAccountID locks the adjustment row and returns its account.
func (s *AdjustmentStore) LockAccountID(ctx context.Context, tx Getter, adjustmentID string) (string, error) {
	var accountID string
	err := tx.GetContext(ctx, &accountID, s.dialect.Rebind(`
		SELECT account_id
		FROM adjustments
		WHERE id = ?`+s.dialect.ForUpdate()), adjustmentID)
	return accountID, err
}

func (s *AdjustmentStore) ListByAccount(ctx context.Context, q Selecter, accountID string) ([]models.Adjustment, error) {
	rows := []models.Adjustment{}
	err := q.SelectContext(ctx, &rows, s.dialect.Rebind(adjustmentSelect+`
		WHERE a.account_id = ?
		ORDER BY a.created_at, a.id
	`), accountID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LinkReversal records the {original, reversal} pair. The primary key on
// original_id rejects a second reversal of the same adjustment.
func (s *AdjustmentStore) LinkReversal(ctx context.Context, tx Execer, originalID, reversalID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO adjustment_reversals (original_id, reversal_id, created_at)
		VALUES (?, ?, ?)
	`), originalID, reversalID, at)
	return err
}
