package store

import (
	"context"
	"time"

	"finassist/internal/db"
	"finassist/internal/models"

	"github.com/jmoiron/sqlx"
)

type TransactionStore struct {
	db      DB
	dialect db.Dialect
}

const transactionSelect = `
		SELECT t.id, t.account_id, t.amount, t.currency, t.type, t.date, t.category_id, t.counterparty,
		       t.tags, t.description, t.attachment, t.created_by, t.is_duplicate, t.created_at, t.updated_at,
		       (SELECT tr.id FROM transfers tr WHERE tr.outbound_id = t.id OR tr.inbound_id = t.id) AS transfer_id
		FROM transactions t
`

func NewTransactionStore(conn DB, dialect db.Dialect) *TransactionStore {
	return &TransactionStore{db: conn, dialect: dialect}
}

func (s *TransactionStore) Create(ctx context.Context, tx Execer, t models.Transaction) error {
	_, err := tx.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO transactions (id, account_id, amount, currency, type, date, category_id, counterparty, tags, description, attachment, created_by, is_duplicate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), t.ID, t.AccountID, t.Amount, t.Currency, string(t.Type), t.Date, t.CategoryID, t.Counterparty,
		t.Tags, t.Description, t.Attachment, t.CreatedBy, t.IsDuplicate, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *TransactionStore) GetByID(ctx context.Context, q Getter, transactionID string) (models.Transaction, error) {
	var row models.Transaction
	err := q.GetContext(ctx, &row, s.dialect.Rebind(transactionSelect+` WHERE t.id = ?`), transactionID)
	if err != nil {
		return models.Transaction{}, err
	}
	return row, nil
}

func (s *TransactionStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	rows := []models.Transaction{}
	err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(transactionSelect+`
		WHERE t.account_id = ?
		ORDER BY t.date DESC, t.created_at DESC, t.id DESC
		LIMIT ? OFFSET ?
	`), accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListAllByAccount returns every transaction of the account in ledger order.
func (s *TransactionStore) ListAllByAccount(ctx context.Context, q Selecter, accountID string) ([]models.Transaction, error) {
	rows := []models.Transaction{}
	err := q.SelectContext(ctx, &rows, s.dialect.Rebind(transactionSelect+`
		WHERE t.account_id = ?
		ORDER BY t.date, t.created_at, t.id
	`), accountID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByIDs returns the given transactions in ledger order. Unknown ids are
// skipped.
func (s *TransactionStore) ListByIDs(ctx context.Context, q Selecter, ids []string) ([]models.Transaction, error) {
	rows := []models.Transaction{}
	if len(ids) == 0 {
		return rows, nil
	}
	query, args, err := sqlx.In(transactionSelect+`
		WHERE t.id IN (?)
		ORDER BY t.date, t.created_at, t.id
	`, ids)
	if err != nil {
		return nil, err
	}
	if err := q.SelectContext(ctx, &rows, s.dialect.Rebind(query), args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// Update rewrites the mutable columns. Account, currency and type never change.
func (s *TransactionStore) Update(ctx context.Context, tx Execer, t models.Transaction) error {
	_, err := tx.ExecContext(ctx, s.dialect.Rebind(`
		UPDATE transactions
		SET amount = ?, type = ?, date = ?, category_id = ?, counterparty = ?, tags = ?, description = ?, attachment = ?, updated_at = ?
		WHERE id = ?
	`), t.Amount, t.Type, t.Date, t.CategoryID, t.Counterparty, t.Tags, t.Description, t.Attachment, t.UpdatedAt, t.ID)
	return err
}

func (s *TransactionStore) MarkDuplicates(ctx context.Context, tx Execer, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`UPDATE transactions SET is_duplicate = ?, updated_at = ? WHERE id IN (?)`, true, at, ids)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TransactionStore) Delete(ctx context.Context, tx Execer, transactionID string) (int64, error) {
	res, err := tx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM transactions WHERE id = ?`), transactionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
