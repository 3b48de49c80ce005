package services

import (
	"context"
	"sort"
	"time"

	"finassist/internal/audit"
	"finassist/internal/db"
	"finassist/internal/models"
	"finassist/internal/money"
	"finassist/internal/store"
	"finassist/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, account models.Account) error
	GetByID(ctx context.Context, q store.Getter, accountID string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Account, error)
	ListIDsAfter(ctx context.Context, afterID string, limit int) ([]string, error)
	ComputeBalance(ctx context.Context, q store.Getter, accountID string) (money.Money, error)
	UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance money.Money, at time.Time) error
	Delete(ctx context.Context, tx store.Execer, accountID string) (int64, error)
	Reconcile(ctx context.Context, ownerID string) ([]store.BalanceDrift, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, t models.Transaction) error
	GetByID(ctx context.Context, q store.Getter, transactionID string) (models.Transaction, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error)
	ListAllByAccount(ctx context.Context, q store.Selecter, accountID string) ([]models.Transaction, error)
	ListByIDs(ctx context.Context, q store.Selecter, ids []string) ([]models.Transaction, error)
	Update(ctx context.Context, tx store.Execer, t models.Transaction) error
	MarkDuplicates(ctx context.Context, tx store.Execer, ids []string, at time.Time) (int64, error)
	Delete(ctx context.Context, tx store.Execer, transactionID string) (int64, error)
}

type TransferStore interface {
	Create(ctx context.Context, tx store.Execer, link store.TransferLink) error
	GetByTransaction(ctx context.Context, q store.Getter, transactionID string) (store.TransferLink, error)
}

type AdjustmentStore interface {
	Create(ctx context.Context, tx store.Execer, adj models.Adjustment) error
	GetByID(ctx context.Context, q store.Getter, adjustmentID string) (models.Adjustment, error)
	LockAccountID(ctx context.Context, tx store.Getter, adjustmentID string) (string, error)
	ListByAccount(ctx context.Context, q store.Selecter, accountID string) ([]models.Adjustment, error)
	LinkReversal(ctx context.Context, tx store.Execer, originalID, reversalID string, at time.Time) error
}

type SnapshotStore interface {
	Upsert(ctx context.Context, tx store.Execer, snapshot models.BalanceSnapshot) error
	List(ctx context.Context, accountID string, from, to time.Time) ([]models.BalanceSnapshot, error)
}

type AuditEmitter interface {
	OnMutation(ctx context.Context, tx *sqlx.Tx, m audit.Mutation)
}

type BalanceHub interface {
	BroadcastBalance(ownerID string, update websocket.BalanceUpdate)
}

// LedgerDeps wires a LedgerService. Reader serves plain reads outside a
// business transaction. Hub, Now and SoftFailer are optional.
type LedgerDeps struct {
	TxRunner     db.TxRunner
	Reader       store.DB
	Accounts     AccountStore
	Transactions TransactionStore
	Transfers    TransferStore
	Adjustments  AdjustmentStore
	Snapshots    SnapshotStore
	Audit        AuditEmitter
	SoftFailer   *db.SoftFailer
	Hub          BalanceHub
	Logger       zerolog.Logger
	Now          func() time.Time
}

// LedgerService owns every mutation of accounts, transactions and
// adjustments. Each public operation runs in exactly one database
// transaction; audit rows and balance recalculation happen inside it and the
// balance push happens after commit.
type LedgerService struct {
	txRunner     db.TxRunner
	reader       store.DB
	accounts     AccountStore
	transactions TransactionStore
	transfers    TransferStore
	adjustments  AdjustmentStore
	snapshots    SnapshotStore
	audit        AuditEmitter
	recalc       *Recalculator
	hub          BalanceHub
	logger       zerolog.Logger
	now          func() time.Time
}

func NewLedgerService(deps LedgerDeps) *LedgerService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	soft := deps.SoftFailer
	if soft == nil {
		soft = db.NewSoftFailer(deps.Logger)
	}
	return &LedgerService{
		txRunner:     deps.TxRunner,
		reader:       deps.Reader,
		accounts:     deps.Accounts,
		transactions: deps.Transactions,
		transfers:    deps.Transfers,
		adjustments:  deps.Adjustments,
		snapshots:    deps.Snapshots,
		audit:        deps.Audit,
		recalc:       NewRecalculator(deps.Accounts, deps.Snapshots, soft, now),
		hub:          deps.Hub,
		logger:       deps.Logger,
		now:          now,
	}
}

func (s *LedgerService) clock() time.Time {
	return s.now().UTC()
}

// today truncates t to its UTC calendar day.
func today(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// broadcast pushes committed balances. It must only be called after commit.
func (s *LedgerService) broadcast(accounts ...models.Account) {
	for _, account := range accounts {
		below := account.BelowThreshold(account.Balance)
		if below {
			s.logger.Info().
				Str("account_id", account.ID).
				Str("balance", account.Balance.String()).
				Msg("balance below notification threshold")
		}
		if s.hub == nil {
			continue
		}
		s.hub.BroadcastBalance(account.OwnerID, websocket.BalanceUpdate{
			AccountID:      account.ID,
			Balance:        account.Balance.String(),
			Currency:       account.Currency,
			BelowThreshold: below,
		})
	}
}

// lockAccounts takes the row lock of every account in ascending id order so
// that two operations touching the same accounts can never deadlock.
func lockAccounts(ctx context.Context, tx store.Getter, accountStore AccountStore, ids ...string) (map[string]models.Account, error) {
	ordered := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)
	locked := make(map[string]models.Account, len(ordered))
	for _, id := range ordered {
		account, err := accountStore.GetForUpdate(ctx, tx, id)
		if err != nil {
			return nil, notFound(err, ErrAccountNotFound)
		}
		locked[id] = account
	}
	return locked, nil
}

func lockTwoAccounts(ctx context.Context, tx store.Getter, accountStore AccountStore, firstID, secondID string) (models.Account, models.Account, error) {
	locked, err := lockAccounts(ctx, tx, accountStore, firstID, secondID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	return locked[firstID], locked[secondID], nil
}

// recalculateAll recalculates the given accounts in id order without
// snapshots and returns their fresh state in that order.
func (s *LedgerService) recalculateAll(ctx context.Context, tx *sqlx.Tx, ids ...string) ([]models.Account, error) {
	ordered := append([]string(nil), ids...)
	sort.Strings(ordered)
	updated := make([]models.Account, 0, len(ordered))
	for i, id := range ordered {
		if i > 0 && ordered[i-1] == id {
			continue
		}
		account, err := s.recalc.Recalculate(ctx, tx, id, false)
		if err != nil {
			return nil, err
		}
		updated = append(updated, account)
	}
	return updated, nil
}
