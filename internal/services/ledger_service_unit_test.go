package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
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

type fakeTxRunner struct {
	err   error
	calls *int
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.calls != nil {
		*f.calls++
	}
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// Stubs embed the interface so that an unexpected call panics.
type stubAccountStore struct {
	AccountStore
	getForUpdateFn   func(ctx context.Context, tx store.Getter, accountID string) (models.Account, error)
	computeBalanceFn func(ctx context.Context, q store.Getter, accountID string) (money.Money, error)
	updateBalanceFn  func(ctx context.Context, tx store.Execer, accountID string, balance money.Money, at time.Time) error
}

func (s stubAccountStore) GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error) {
	return s.getForUpdateFn(ctx, tx, accountID)
}

func (s stubAccountStore) ComputeBalance(ctx context.Context, q store.Getter, accountID string) (money.Money, error) {
	if s.computeBalanceFn == nil {
		return money.Zero, nil
	}
	return s.computeBalanceFn(ctx, q, accountID)
}

func (s stubAccountStore) UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance money.Money, at time.Time) error {
	if s.updateBalanceFn == nil {
		return nil
	}
	return s.updateBalanceFn(ctx, tx, accountID, balance, at)
}

type stubTransactionStore struct {
	TransactionStore
	createFn func(ctx context.Context, tx store.Execer, t models.Transaction) error
}

func (s stubTransactionStore) Create(ctx context.Context, tx store.Execer, t models.Transaction) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, t)
}

type stubTransferStore struct {
	TransferStore
	createFn func(ctx context.Context, tx store.Execer, link store.TransferLink) error
}

func (s stubTransferStore) Create(ctx context.Context, tx store.Execer, link store.TransferLink) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, link)
}

type stubSnapshotStore struct {
	SnapshotStore
	upsertFn func(ctx context.Context, tx store.Execer, snapshot models.BalanceSnapshot) error
}

func (s stubSnapshotStore) Upsert(ctx context.Context, tx store.Execer, snapshot models.BalanceSnapshot) error {
	return s.upsertFn(ctx, tx, snapshot)
}

type stubAuditEmitter struct {
	mu        sync.Mutex
	mutations []audit.Mutation
}

func (s *stubAuditEmitter) OnMutation(_ context.Context, _ *sqlx.Tx, m audit.Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations = append(s.mutations, m)
}

type stubHub struct {
	mu      sync.Mutex
	updates []websocket.BalanceUpdate
}

func (h *stubHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
}

func newUnitService(txRunner db.TxRunner, accounts AccountStore, transactions TransactionStore, transfers TransferStore, snapshots SnapshotStore, emitter AuditEmitter, hub BalanceHub) *LedgerService {
	return NewLedgerService(LedgerDeps{
		TxRunner:     txRunner,
		Accounts:     accounts,
		Transactions: transactions,
		Transfers:    transfers,
		Snapshots:    snapshots,
		Audit:        emitter,
		SoftFailer:   db.NewSoftFailer(zerolog.Nop()),
		Hub:          hub,
		Logger:       zerolog.Nop(),
		Now:          fixedClock,
	})
}

func TestCreateTransactionValidationBeforeTx(t *testing.T) {
	calls := 0
	service := newUnitService(fakeTxRunner{calls: &calls}, stubAccountStore{}, stubTransactionStore{}, stubTransferStore{}, stubSnapshotStore{}, &stubAuditEmitter{}, &stubHub{})
	cases := []struct {
		name  string
		input TransactionInput
		want  error
	}{
		{"zero amount", TransactionInput{AccountID: "acc-1", Amount: money.Zero}, ErrZeroAmount},
		{"missing account", TransactionInput{Amount: money.FromMinor(100)}, ErrInvalidAccount},
		{"transfer type", TransactionInput{AccountID: "acc-1", Amount: money.FromMinor(100), Type: models.TransactionTransfer}, ErrInvalidType},
	}
	for _, tc := range cases {
		_, err := service.CreateTransaction(context.Background(), tc.input)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if calls != 0 {
		t.Fatalf("validation failures must not open a transaction, got %d", calls)
	}
}

func TestCreateTransactionCurrencyMismatch(t *testing.T) {
	service := newUnitService(fakeTxRunner{}, stubAccountStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Account, error) {
			return models.Account{ID: "acc-1", Currency: "USD"}, nil
		},
	}, stubTransactionStore{
		createFn: func(context.Context, store.Execer, models.Transaction) error {
			t.Fatalf("nothing may be written on a currency mismatch")
			return nil
		},
	}, stubTransferStore{}, stubSnapshotStore{}, &stubAuditEmitter{}, &stubHub{})
	for _, amount := range []int64{-2000, 1, 999999} {
		_, err := service.CreateTransaction(context.Background(), TransactionInput{
			AccountID: "acc-1", Amount: money.FromMinor(amount), Currency: "EUR",
		})
		if !errors.Is(err, ErrCurrencyMismatch) || KindOf(err) != KindValidation {
			t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
		}
	}
}

func TestCreateTransferRejectsBeforeTx(t *testing.T) {
	calls := 0
	service := newUnitService(fakeTxRunner{calls: &calls}, stubAccountStore{}, stubTransactionStore{}, stubTransferStore{}, stubSnapshotStore{}, &stubAuditEmitter{}, &stubHub{})
	_, err := service.CreateTransfer(context.Background(), TransferInput{FromAccountID: "a", ToAccountID: "a", Amount: money.FromMinor(100)})
	if err != ErrSameAccountTransfer {
		t.Fatalf("expected ErrSameAccountTransfer, got %v", err)
	}
	_, err = service.CreateTransfer(context.Background(), TransferInput{FromAccountID: "a", ToAccountID: "b", Amount: money.FromMinor(-100)})
	if err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no transaction, got %d", calls)
	}
}

func TestCreateTransferLocksInIDOrderAndBalancesLegs(t *testing.T) {
	var locked []string
	var legs []models.Transaction
	var link store.TransferLink
	emitter := &stubAuditEmitter{}
	hub := &stubHub{}
	service := newUnitService(fakeTxRunner{}, stubAccountStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, accountID string) (models.Account, error) {
			locked = append(locked, accountID)
			return models.Account{ID: accountID, OwnerID: "user-1", Name: "acct " + accountID, Currency: "USD"}, nil
		},
	}, stubTransactionStore{
		createFn: func(_ context.Context, _ store.Execer, t models.Transaction) error {
			legs = append(legs, t)
			return nil
		},
	}, stubTransferStore{
		createFn: func(_ context.Context, _ store.Execer, l store.TransferLink) error {
			link = l
			return nil
		},
	}, stubSnapshotStore{}, emitter, hub)

	pair, err := service.CreateTransfer(context.Background(), TransferInput{
		FromAccountID: "zeta", ToAccountID: "alpha", Amount: money.MustParse("30.00"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locked) < 2 || locked[0] != "alpha" || locked[1] != "zeta" {
		t.Fatalf("accounts must be locked in id order, got %v", locked)
	}
	if len(legs) != 2 || !legs[0].Amount.Add(legs[1].Amount).IsZero() {
		t.Fatalf("legs must sum to zero: %#v", legs)
	}
	if pair.Outbound.AccountID != "zeta" || pair.Outbound.Amount.String() != "-30.00" || pair.Inbound.Amount.String() != "30.00" {
		t.Fatalf("unexpected pair: %#v", pair)
	}
	if link.OutboundID != pair.Outbound.ID || link.InboundID != pair.Inbound.ID {
		t.Fatalf("unexpected link: %#v", link)
	}
	if len(emitter.mutations) != 2 || emitter.mutations[0].Action != models.AuditCreated {
		t.Fatalf("expected two created audit entries, got %#v", emitter.mutations)
	}
	if len(hub.updates) != 2 {
		t.Fatalf("expected two balance updates, got %d", len(hub.updates))
	}
}

func TestCreateTransferCurrencyMismatch(t *testing.T) {
	service := newUnitService(fakeTxRunner{}, stubAccountStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, accountID string) (models.Account, error) {
			if accountID == "from" {
				return models.Account{ID: accountID, Currency: "USD"}, nil
			}
			return models.Account{ID: accountID, Currency: "EUR"}, nil
		},
	}, stubTransactionStore{}, stubTransferStore{}, stubSnapshotStore{}, &stubAuditEmitter{}, &stubHub{})
	_, err := service.CreateTransfer(context.Background(), TransferInput{FromAccountID: "from", ToAccountID: "to", Amount: money.FromMinor(1000)})
	if !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestNoBroadcastWhenTxFails(t *testing.T) {
	hub := &stubHub{}
	service := newUnitService(fakeTxRunner{err: errors.New("db down")}, stubAccountStore{}, stubTransactionStore{}, stubTransferStore{}, stubSnapshotStore{}, &stubAuditEmitter{}, hub)
	if _, err := service.CreateTransaction(context.Background(), TransactionInput{AccountID: "acc-1", Amount: money.FromMinor(100)}); err == nil {
		t.Fatal("expected error")
	}
	if len(hub.updates) != 0 {
		t.Fatalf("expected no updates, got %d", len(hub.updates))
	}
}

func TestRecalculateSnapshotFailureIsSoft(t *testing.T) {
	var stored money.Money
	soft := db.NewSoftFailer(zerolog.Nop())
	recalc := NewRecalculator(stubAccountStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, accountID string) (models.Account, error) {
			return models.Account{ID: accountID}, nil
		},
		computeBalanceFn: func(context.Context, store.Getter, string) (money.Money, error) {
			return money.MustParse("85.00"), nil
		},
		updateBalanceFn: func(_ context.Context, _ store.Execer, _ string, balance money.Money, _ time.Time) error {
			stored = balance
			return nil
		},
	}, stubSnapshotStore{
		upsertFn: func(context.Context, store.Execer, models.BalanceSnapshot) error {
			return errors.New("snapshot race")
		},
	}, soft, fixedClock)

	account, err := recalc.Recalculate(context.Background(), nil, "acc-1", true)
	if err != nil {
		t.Fatalf("snapshot failures must not surface, got %v", err)
	}
	if account.Balance.String() != "85.00" || stored.String() != "85.00" {
		t.Fatalf("balance not written: %s / %s", account.Balance, stored)
	}
	if soft.Counts()["snapshot"] != 1 {
		t.Fatalf("expected one counted snapshot failure, got %#v", soft.Counts())
	}
}

func TestNewLedgerServiceDefaultsSoftFailer(t *testing.T) {
	service := NewLedgerService(LedgerDeps{
		TxRunner: fakeTxRunner{},
		Accounts: stubAccountStore{
			getForUpdateFn: func(_ context.Context, _ store.Getter, accountID string) (models.Account, error) {
				return models.Account{ID: accountID}, nil
			},
		},
		Snapshots: stubSnapshotStore{
			upsertFn: func(context.Context, store.Execer, models.BalanceSnapshot) error {
				return errors.New("snapshot race")
			},
		},
		Audit:  &stubAuditEmitter{},
		Logger: zerolog.Nop(),
		Now:    fixedClock,
	})
	account, err := service.RecalculateBalance(context.Background(), "acc-1", true)
	if err != nil {
		t.Fatalf("snapshot failures must not surface, got %v", err)
	}
	if account.ID != "acc-1" {
		t.Fatalf("unexpected account: %#v", account)
	}
}

func TestRecalculateSnapshotUsesCalendarDay(t *testing.T) {
	var snapshot models.BalanceSnapshot
	recalc := NewRecalculator(stubAccountStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, accountID string) (models.Account, error) {
			return models.Account{ID: accountID}, nil
		},
	}, stubSnapshotStore{
		upsertFn: func(_ context.Context, _ store.Execer, s models.BalanceSnapshot) error {
			snapshot = s
			return nil
		},
	}, db.NewSoftFailer(zerolog.Nop()), fixedClock)
	if _, err := recalc.Recalculate(context.Background(), nil, "acc-1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snapshot.Date.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected snapshot date: %s", snapshot.Date)
	}
}

func TestKindOfWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("%w: account acc-1 holds USD", ErrCurrencyMismatch)
	if KindOf(wrapped) != KindValidation {
		t.Fatalf("expected validation kind, got %s", KindOf(wrapped))
	}
	if KindOf(ErrAlreadyReversed) != KindConflict || KindOf(ErrAccountNotFound) != KindNotFound {
		t.Fatal("unexpected kinds")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatal("plain errors are internal")
	}
	typed, ok := AsError(wrapped)
	if !ok || typed.Code != "currency_mismatch" {
		t.Fatalf("unexpected typed error: %#v", typed)
	}
}
