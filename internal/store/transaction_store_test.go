package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"finassist/internal/models"
	"finassist/internal/money"
)

func TestTransactionStoreCreate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO transactions") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 15 || args[0] != "tx-1" || args[2] != money.MustParse("-20.00") || args[4] != "expense" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewTransactionStore(stubDB{}, pgDialect)
	err := store.Create(ctx, execer, models.Transaction{
		ID:        "tx-1",
		AccountID: "acc-1",
		Amount:    money.MustParse("-20.00"),
		Currency:  "USD",
		Type:      models.TransactionExpense,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransactionStoreGetByIDJoinsTransfer(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM transfers tr") || !strings.Contains(query, "WHERE t.id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			transferID := "trf-1"
			*dest.(*models.Transaction) = models.Transaction{ID: "tx-1", TransferID: &transferID}
			return nil
		},
	}
	store := NewTransactionStore(stubDB{}, pgDialect)
	row, err := store.GetByID(ctx, getter, "tx-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.TransferID == nil || *row.TransferID != "trf-1" {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestTransactionStoreListByAccount(t *testing.T) {
	ctx := context.Background()
	store := NewTransactionStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "WHERE t.account_id = $1") || !strings.Contains(query, "LIMIT $2 OFFSET $3") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[0] != "acc-1" || args[1] != 10 || args[2] != 0 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]models.Transaction) = []models.Transaction{{ID: "tx-1"}}
			return nil
		},
	}, pgDialect)
	rows, err := store.ListByAccount(ctx, "acc-1", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "tx-1" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestTransactionStoreListByIDsExpandsIn(t *testing.T) {
	ctx := context.Background()
	selecter := stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "WHERE t.id IN ($1, $2, $3)") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[2] != "tx-3" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return nil
		},
	}
	store := NewTransactionStore(stubDB{}, pgDialect)
	if _, err := store.ListByIDs(ctx, selecter, []string{"tx-1", "tx-2", "tx-3"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransactionStoreListByIDsEmpty(t *testing.T) {
	ctx := context.Background()
	selecter := stubDB{
		selectFn: func(context.Context, any, string, ...any) error {
			t.Fatal("no query expected for an empty id list")
			return nil
		},
	}
	store := NewTransactionStore(stubDB{}, pgDialect)
	rows, err := store.ListByIDs(ctx, selecter, nil)
	if err != nil || len(rows) != 0 {
		t.Fatalf("unexpected result: %#v %v", rows, err)
	}
}

func TestTransactionStoreMarkDuplicates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET is_duplicate = $1, updated_at = $2 WHERE id IN ($3, $4)") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 4 || args[0] != true || args[3] != "tx-3" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 2}, nil
		},
	}
	store := NewTransactionStore(stubDB{}, pgDialect)
	rows, err := store.MarkDuplicates(ctx, execer, []string{"tx-2", "tx-3"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 2 {
		t.Fatalf("expected 2 rows affected, got %d", rows)
	}
}

func TestTransactionStoreUpdate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "UPDATE transactions") || !strings.Contains(query, "type = $2") || !strings.Contains(query, "WHERE id = $10") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 10 || args[9] != "tx-1" || args[4] != "Grocer" || args[1] != models.TransactionIncome {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewTransactionStore(stubDB{}, pgDialect)
	err := store.Update(ctx, execer, models.Transaction{ID: "tx-1", Amount: money.FromMinor(500), Type: models.TransactionIncome, Counterparty: "Grocer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransactionStoreDelete(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "DELETE FROM transactions WHERE id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			return stubResult{rows: 0}, nil
		},
	}
	store := NewTransactionStore(stubDB{}, pgDialect)
	rows, err := store.Delete(ctx, execer, "tx-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected 0 rows affected, got %d", rows)
	}
}

func TestTransferStoreGetByTransaction(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "WHERE outbound_id = $1 OR inbound_id = $2") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 || args[0] != "tx-1" || args[1] != "tx-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*TransferLink) = TransferLink{ID: "trf-1", OutboundID: "tx-1", InboundID: "tx-2"}
			return nil
		},
	}
	store := NewTransferStore(stubDB{}, pgDialect)
	link, err := store.GetByTransaction(ctx, getter, "tx-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.InboundID != "tx-2" {
		t.Fatalf("unexpected link: %#v", link)
	}
}

func TestTransferStoreCreate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO transfers") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 4 || args[1] != "tx-out" || args[2] != "tx-in" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewTransferStore(stubDB{}, pgDialect)
	if err := store.Create(ctx, execer, TransferLink{ID: "trf-1", OutboundID: "tx-out", InboundID: "tx-in"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
