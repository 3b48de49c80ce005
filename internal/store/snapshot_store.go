package store

import (
	"context"
	"time"

	"finassist/internal/db"
	"finassist/internal/models"
)

type SnapshotStore struct {
	db      DB
	dialect db.Dialect
}

func NewSnapshotStore(conn DB, dialect db.Dialect) *SnapshotStore {
	return &SnapshotStore{db: conn, dialect: dialect}
}

// Upsert writes the snapshot for (account, date), overwriting the balance of
// an existing one.
func (s *SnapshotStore) Upsert(ctx context.Context, tx Execer, snapshot models.BalanceSnapshot) error {
	_, err := tx.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO balance_snapshots (id, account_id, snapshot_date, balance, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (account_id, snapshot_date)
		DO UPDATE SET balance = excluded.balance, created_at = excluded.created_at
	`), snapshot.ID, snapshot.AccountID, snapshot.Date, snapshot.Balance, snapshot.CreatedAt)
	return err
}

// List returns snapshots of the account between from and to inclusive. Zero
// bounds are open.
func (s *SnapshotStore) List(ctx context.Context, accountID string, from, to time.Time) ([]models.BalanceSnapshot, error) {
	rows := []models.BalanceSnapshot{}
	query := `
		SELECT id, account_id, snapshot_date, balance, created_at
		FROM balance_snapshots
		WHERE account_id = ?
	`
	args := []any{accountID}
	if !from.IsZero() {
		query += " AND snapshot_date >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		query += " AND snapshot_date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY snapshot_date"
	if err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(query), args...); err != nil {
		return nil, err
	}
	return rows, nil
}
