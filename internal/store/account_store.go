package store

import (
	"context"
	"time"

	"finassist/internal/db"
	"finassist/internal/models"
	"finassist/internal/money"
)

type AccountStore struct {
	db      DB
	dialect db.Dialect
}

// BalanceDrift compares the cached balance with the one derived from ledger rows.
type BalanceDrift struct {
	AccountID  string      `db:"id" json:"account_id"`
	OwnerID    string      `db:"owner_id" json:"owner_id"`
	Currency   string      `db:"currency" json:"currency"`
	Cached     money.Money `db:"cached_balance" json:"cached"`
	Computed   money.Money `db:"computed_balance" json:"computed"`
	Difference money.Money `db:"difference" json:"difference"`
}

const accountColumns = `id, owner_id, name, type, currency, initial_balance, notify_threshold, balance, created_at, updated_at`

// computedBalance is initial + Σ amounts + Σ adjustment deltas for alias a.
const computedBalance = `(a.initial_balance
		+ COALESCE((SELECT SUM(t.amount) FROM transactions t WHERE t.account_id = a.id), 0)
		+ COALESCE((SELECT SUM(adj.new_amount - adj.old_amount) FROM adjustments adj WHERE adj.account_id = a.id), 0))`

func NewAccountStore(conn DB, dialect db.Dialect) *AccountStore {
	return &AccountStore{db: conn, dialect: dialect}
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, account models.Account) error {
	_, err := tx.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), account.ID, account.OwnerID, account.Name, string(account.Type), account.Currency,
		account.InitialBalance, account.NotifyThreshold, account.Balance, account.CreatedAt, account.UpdatedAt)
	return err
}

func (s *AccountStore) GetByID(ctx context.Context, q Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := q.GetContext(ctx, &row, s.dialect.Rebind(`
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ?
	`), accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

// GetForUpdate reads the account row and holds its lock until the enclosing
// transaction ends. The account row is the serialization point of the ledger.
func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, s.dialect.Rebind(`
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ?`+s.dialect.ForUpdate()), accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Account, error) {
	rows := []models.Account{}
	err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(`
		SELECT `+accountColumns+`
		FROM accounts
		WHERE owner_id = ?
		ORDER BY created_at, id
	`), ownerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListIDsAfter pages through account ids in ascending order.
func (s *AccountStore) ListIDsAfter(ctx context.Context, afterID string, limit int) ([]string, error) {
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids, s.dialect.Rebind(`
		SELECT id
		FROM accounts
		WHERE id > ?
		ORDER BY id
		LIMIT ?
	`), afterID, limit)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ComputeBalance aggregates the ledger rows of one account in a single
// statement. It never writes.
func (s *AccountStore) ComputeBalance(ctx context.Context, q Getter, accountID string) (money.Money, error) {
	var balance money.Money
	err := q.GetContext(ctx, &balance, s.dialect.Rebind(`
		SELECT CAST(`+computedBalance+` AS BIGINT)
		FROM accounts a
		WHERE a.id = ?
	`), accountID)
	return balance, err
}

func (s *AccountStore) UpdateBalance(ctx context.Context, tx Execer, accountID string, balance money.Money, at time.Time) error {
	_, err := tx.ExecContext(ctx, s.dialect.Rebind(`
		UPDATE accounts
		SET balance = ?, updated_at = ?
		WHERE id = ?
	`), balance, at, accountID)
	return err
}

func (s *AccountStore) Delete(ctx context.Context, tx Execer, accountID string) (int64, error) {
	res, err := tx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM accounts WHERE id = ?`), accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Reconcile lists every account whose cached balance may be compared with the
// derived one. An empty owner selects all accounts.
func (s *AccountStore) Reconcile(ctx context.Context, ownerID string) ([]BalanceDrift, error) {
	rows := []BalanceDrift{}
	query := `
		SELECT a.id,
		       a.owner_id,
		       a.currency,
		       a.balance AS cached_balance,
		       CAST(` + computedBalance + ` AS BIGINT) AS computed_balance,
		       CAST(a.balance - ` + computedBalance + ` AS BIGINT) AS difference
		FROM accounts a
	`
	var args []any
	if ownerID != "" {
		query += " WHERE a.owner_id = ?"
		args = append(args, ownerID)
	}
	query += " ORDER BY a.id"
	if err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(query), args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AccountStore) AccountOwner(ctx context.Context, accountID string) (string, error) {
	var ownerID string
	err := s.db.GetContext(ctx, &ownerID, s.dialect.Rebind(`SELECT owner_id FROM accounts WHERE id = ?`), accountID)
	return ownerID, err
}
