package services

import (
	"context"
	"fmt"
	"sort"
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

type TransactionInput struct {
	AccountID    string
	Amount       money.Money
	Currency     string
	Type         models.TransactionType
	Date         time.Time
	CategoryID   *string
	Counterparty string
	Tags         []string
	Description  string
	Attachment   *string
	CreatedBy    *string
}

type TransferInput struct {
	FromAccountID string
	ToAccountID   string
	Amount        money.Money
	Currency      string
	Date          time.Time
	Description   string
	CreatedBy     *string
}

// TransactionPatch holds the fields to change; nil means unchanged.
type TransactionPatch struct {
	Amount       *money.Money
	Date         *time.Time
	CategoryID   *string
	Counterparty *string
	Tags         *[]string
	Description  *string
	Attachment   *string
}

// DuplicateQuery selects the candidate set for MarkDuplicates: explicit ids
// when given, otherwise every transaction of the account.
type DuplicateQuery struct {
	AccountID      string
	TransactionIDs []string
	ByCounterparty bool
	Actor          *string
}

// CreateTransaction records a single income or expense row. An empty type is
// inferred from the sign and an empty currency defaults to the account's.
func (s *LedgerService) CreateTransaction(ctx context.Context, in TransactionInput) (models.Transaction, error) {
	if in.Amount.IsZero() {
		return models.Transaction{}, ErrZeroAmount
	}
	if strings.TrimSpace(in.AccountID) == "" {
		return models.Transaction{}, ErrInvalidAccount
	}
	if in.Type == "" {
		in.Type = typeForAmount(in.Amount)
	}
	if err := validator.ValidateTransactionType(in.Type); err != nil {
		return models.Transaction{}, fmt.Errorf("%w: %v", ErrInvalidType, err)
	}

	var created models.Transaction
	var touched models.Account
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, in.AccountID)
		if err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		currency, err := resolveCurrency(in.Currency, account)
		if err != nil {
			return err
		}
		now := s.clock()
		created = models.Transaction{
			ID:           uuid.NewString(),
			AccountID:    account.ID,
			Amount:       in.Amount,
			Currency:     currency,
			Type:         in.Type,
			Date:         transactionDate(in.Date, now),
			CategoryID:   in.CategoryID,
			Counterparty: strings.TrimSpace(in.Counterparty),
			Tags:         normalizeTags(in.Tags),
			Description:  in.Description,
			Attachment:   in.Attachment,
			CreatedBy:    in.CreatedBy,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.transactions.Create(ctx, tx, created); err != nil {
			return err
		}
		s.audit.OnMutation(ctx, tx, audit.Mutation{
			ObjectType: models.ObjectTransaction,
			ObjectID:   created.ID,
			Action:     models.AuditCreated,
			Actor:      in.CreatedBy,
			After:      created,
		})
		touched, err = s.recalc.Recalculate(ctx, tx, account.ID, false)
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}
	s.broadcast(touched)
	return created, nil
}

// CreateTransfer writes both legs of a transfer and their link atomically.
// The outbound leg carries -amount and the inbound leg +amount, both derived
// from the same value.
func (s *LedgerService) CreateTransfer(ctx context.Context, in TransferInput) (models.TransferPair, error) {
	if in.Amount.Sign() <= 0 {
		return models.TransferPair{}, ErrInvalidAmount
	}
	if strings.TrimSpace(in.FromAccountID) == "" || strings.TrimSpace(in.ToAccountID) == "" {
		return models.TransferPair{}, ErrInvalidAccount
	}
	if in.FromAccountID == in.ToAccountID {
		return models.TransferPair{}, ErrSameAccountTransfer
	}

	var pair models.TransferPair
	var touched []models.Account
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		from, to, err := lockTwoAccounts(ctx, tx, s.accounts, in.FromAccountID, in.ToAccountID)
		if err != nil {
			return err
		}
		currency, err := resolveCurrency(in.Currency, from)
		if err != nil {
			return err
		}
		if to.Currency != currency {
			return fmt.Errorf("%w: %s account holds %s, transfer is in %s", ErrCurrencyMismatch, to.ID, to.Currency, currency)
		}
		now := s.clock()
		date := transactionDate(in.Date, now)
		pair = models.TransferPair{ID: uuid.NewString(), CreatedAt: now}
		leg := func(account models.Account, amount money.Money, counterparty models.Account) models.Transaction {
			return models.Transaction{
				ID:           uuid.NewString(),
				AccountID:    account.ID,
				Amount:       amount,
				Currency:     currency,
				Type:         models.TransactionTransfer,
				Date:         date,
				Counterparty: counterparty.Name,
				Tags:         models.Tags{},
				Description:  in.Description,
				CreatedBy:    in.CreatedBy,
				TransferID:   &pair.ID,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
		}
		pair.Outbound = leg(from, in.Amount.Neg(), to)
		pair.Inbound = leg(to, in.Amount, from)
		if err := pair.EnsureBalanced(); err != nil {
			return err
		}
		for _, t := range pair.Legs() {
			if err := s.transactions.Create(ctx, tx, t); err != nil {
				return err
			}
		}
		if err := s.transfers.Create(ctx, tx, store.TransferLink{
			ID:         pair.ID,
			OutboundID: pair.Outbound.ID,
			InboundID:  pair.Inbound.ID,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		for _, t := range pair.Legs() {
			s.audit.OnMutation(ctx, tx, audit.Mutation{
				ObjectType: models.ObjectTransaction,
				ObjectID:   t.ID,
				Action:     models.AuditCreated,
				Actor:      in.CreatedBy,
				After:      t,
			})
		}
		touched, err = s.recalculateAll(ctx, tx, from.ID, to.ID)
		return err
	})
	if err != nil {
		return models.TransferPair{}, err
	}
	s.broadcast(touched...)
	return pair, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, transactionID string) (models.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, s.reader, transactionID)
	if err != nil {
		return models.Transaction{}, notFound(err, ErrTransactionNotFound)
	}
	return t, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.transactions.ListByAccount(ctx, accountID, limit, offset)
}

// GetTransfer returns the pair that either leg belongs to.
func (s *LedgerService) GetTransfer(ctx context.Context, transactionID string) (models.TransferPair, error) {
	return s.loadTransfer(ctx, s.reader, transactionID)
}

func (s *LedgerService) loadTransfer(ctx context.Context, q store.Getter, transactionID string) (models.TransferPair, error) {
	link, err := s.transfers.GetByTransaction(ctx, q, transactionID)
	if err != nil {
		return models.TransferPair{}, notFound(err, ErrTransferNotFound)
	}
	outbound, err := s.transactions.GetByID(ctx, q, link.OutboundID)
	if err != nil {
		return models.TransferPair{}, notFound(err, ErrTransactionNotFound)
	}
	inbound, err := s.transactions.GetByID(ctx, q, link.InboundID)
	if err != nil {
		return models.TransferPair{}, notFound(err, ErrTransactionNotFound)
	}
	return models.TransferPair{ID: link.ID, Outbound: outbound, Inbound: inbound, CreatedAt: link.CreatedAt}, nil
}

func (s *LedgerService) counterpart(ctx context.Context, q store.Getter, transactionID string) (models.Transaction, error) {
	pair, err := s.loadTransfer(ctx, q, transactionID)
	if err != nil {
		return models.Transaction{}, err
	}
	other, _ := pair.Counterpart(transactionID)
	return other, nil
}

// UpdateTransaction changes ordinary fields. The amount of a transfer leg is
// fixed because changing one side alone would break the pair, and a new date
// moves both legs. A non-transfer whose amount changes sign changes type.
func (s *LedgerService) UpdateTransaction(ctx context.Context, transactionID string, patch TransactionPatch, actor *string) (models.Transaction, error) {
	if patch.Amount != nil && patch.Amount.IsZero() {
		return models.Transaction{}, ErrZeroAmount
	}
	var updated models.Transaction
	var touched models.Account
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.transactions.GetByID(ctx, tx, transactionID)
		if err != nil {
			return notFound(err, ErrTransactionNotFound)
		}
		if patch.Amount != nil && current.IsTransfer() && !patch.Amount.Equal(current.Amount) {
			return ErrTransferAmountLocked
		}
		var other *models.Transaction
		lockIDs := []string{current.AccountID}
		if patch.Date != nil && current.IsTransfer() {
			leg, err := s.counterpart(ctx, tx, current.ID)
			if err != nil {
				return err
			}
			other = &leg
			lockIDs = append(lockIDs, leg.AccountID)
		}
		if _, err := lockAccounts(ctx, tx, s.accounts, lockIDs...); err != nil {
			return err
		}

		updated = applyPatch(current, patch)
		updated.UpdatedAt = s.clock()
		if err := s.transactions.Update(ctx, tx, updated); err != nil {
			return err
		}
		s.audit.OnMutation(ctx, tx, audit.Mutation{
			ObjectType: models.ObjectTransaction,
			ObjectID:   updated.ID,
			Action:     models.AuditUpdated,
			Actor:      actor,
			Before:     current,
			After:      updated,
		})
		if other != nil && !other.Date.Equal(updated.Date) {
			moved := *other
			moved.Date = updated.Date
			moved.UpdatedAt = updated.UpdatedAt
			if err := s.transactions.Update(ctx, tx, moved); err != nil {
				return err
			}
			s.audit.OnMutation(ctx, tx, audit.Mutation{
				ObjectType: models.ObjectTransaction,
				ObjectID:   moved.ID,
				Action:     models.AuditUpdated,
				Actor:      actor,
				Before:     *other,
				After:      moved,
				Reason:     "transfer date changed",
			})
		}
		touched, err = s.recalc.Recalculate(ctx, tx, updated.AccountID, false)
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}
	s.broadcast(touched)
	return updated, nil
}

func applyPatch(t models.Transaction, patch TransactionPatch) models.Transaction {
	if patch.Amount != nil {
		if !t.IsTransfer() && patch.Amount.Sign() != t.Amount.Sign() {
			t.Type = typeForAmount(*patch.Amount)
		}
		t.Amount = *patch.Amount
	}
	if patch.Date != nil {
		t.Date = today(*patch.Date)
	}
	if patch.CategoryID != nil {
		t.CategoryID = patch.CategoryID
	}
	if patch.Counterparty != nil {
		t.Counterparty = strings.TrimSpace(*patch.Counterparty)
	}
	if patch.Tags != nil {
		t.Tags = normalizeTags(*patch.Tags)
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Attachment != nil {
		t.Attachment = patch.Attachment
	}
	return t
}

// DeleteTransaction removes the transaction. Deleting either leg of a
// transfer deletes the whole pair so the other side is never left behind.
// It returns the ids of every deleted row.
func (s *LedgerService) DeleteTransaction(ctx context.Context, transactionID string, actor *string) ([]string, error) {
	var deleted []string
	var touched []models.Account
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		deleted = nil
		current, err := s.transactions.GetByID(ctx, tx, transactionID)
		if err != nil {
			return notFound(err, ErrTransactionNotFound)
		}
		rows := []models.Transaction{current}
		if current.IsTransfer() {
			pair, err := s.loadTransfer(ctx, tx, transactionID)
			if err != nil {
				return err
			}
			rows = pair.Legs()
		}
		accountIDs := make([]string, 0, len(rows))
		for _, row := range rows {
			accountIDs = append(accountIDs, row.AccountID)
		}
		if _, err := lockAccounts(ctx, tx, s.accounts, accountIDs...); err != nil {
			return err
		}
		for _, row := range rows {
			if _, err := s.transactions.Delete(ctx, tx, row.ID); err != nil {
				return err
			}
			s.emitDeleted(ctx, tx, models.ObjectTransaction, row.ID, row, actor, "")
			deleted = append(deleted, row.ID)
		}
		touched, err = s.recalculateAll(ctx, tx, accountIDs...)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.broadcast(touched...)
	return deleted, nil
}

// MarkDuplicates flags every transaction after the first in each group of
// equal (account, amount, date) keys, optionally extended by counterparty.
// Rows are ordered by date, creation time and id. Nothing is deleted and the
// balance is untouched. It returns the ids flagged by this call.
func (s *LedgerService) MarkDuplicates(ctx context.Context, q DuplicateQuery) ([]string, error) {
	if strings.TrimSpace(q.AccountID) == "" && len(q.TransactionIDs) == 0 {
		return nil, ErrNoCandidates
	}
	var flagged []string
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		flagged = nil
		var candidates []models.Transaction
		var err error
		if len(q.TransactionIDs) > 0 {
			candidates, err = s.transactions.ListByIDs(ctx, tx, q.TransactionIDs)
		} else {
			if _, err := s.accounts.GetByID(ctx, tx, q.AccountID); err != nil {
				return notFound(err, ErrAccountNotFound)
			}
			candidates, err = s.transactions.ListAllByAccount(ctx, tx, q.AccountID)
		}
		if err != nil {
			return err
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})

		seen := make(map[string]struct{}, len(candidates))
		var marked []models.Transaction
		for _, t := range candidates {
			key := duplicateKey(t, q.ByCounterparty)
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				continue
			}
			if !t.IsDuplicate {
				marked = append(marked, t)
			}
		}
		if len(marked) == 0 {
			return nil
		}
		now := s.clock()
		ids := make([]string, 0, len(marked))
		for _, t := range marked {
			ids = append(ids, t.ID)
		}
		if _, err := s.transactions.MarkDuplicates(ctx, tx, ids, now); err != nil {
			return err
		}
		for _, before := range marked {
			after := before
			after.IsDuplicate = true
			after.UpdatedAt = now
			s.audit.OnMutation(ctx, tx, audit.Mutation{
				ObjectType: models.ObjectTransaction,
				ObjectID:   before.ID,
				Action:     models.AuditUpdated,
				Actor:      q.Actor,
				Before:     before,
				After:      after,
				Reason:     "marked as duplicate",
			})
		}
		flagged = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flagged, nil
}

func duplicateKey(t models.Transaction, byCounterparty bool) string {
	key := fmt.Sprintf("%s|%d|%s", t.AccountID, t.Amount.Minor(), t.Date.UTC().Format(time.DateOnly))
	if byCounterparty {
		key += "|" + t.Counterparty
	}
	return key
}

// resolveCurrency defaults an empty currency to the account's and rejects
// any other mismatch. Codes compare upper-cased; amounts are never converted.
func resolveCurrency(requested string, account models.Account) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(requested))
	if currency == "" {
		return account.Currency, nil
	}
	if currency != account.Currency {
		return "", fmt.Errorf("%w: account %s holds %s, got %s", ErrCurrencyMismatch, account.ID, account.Currency, currency)
	}
	return currency, nil
}

// typeForAmount is income for money in and expense for money out.
func typeForAmount(amount money.Money) models.TransactionType {
	if amount.Sign() < 0 {
		return models.TransactionExpense
	}
	return models.TransactionIncome
}

func transactionDate(requested, now time.Time) time.Time {
	if requested.IsZero() {
		return today(now)
	}
	return today(requested)
}

func normalizeTags(tags []string) models.Tags {
	out := models.Tags{}
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
