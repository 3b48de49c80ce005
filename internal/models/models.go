package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"finassist/internal/money"
)

type AccountType string

const (
	AccountCard   AccountType = "card"
	AccountBank   AccountType = "account"
	AccountWallet AccountType = "wallet"
	AccountCash   AccountType = "cash"

	// AccountBankAlias is accepted on input and stored as AccountBank.
	AccountBankAlias AccountType = "bank"
)

type TransactionType string

const (
	TransactionIncome   TransactionType = "income"
	TransactionExpense  TransactionType = "expense"
	TransactionTransfer TransactionType = "transfer"
)

type Account struct {
	ID              string       `db:"id" json:"id"`
	OwnerID         string       `db:"owner_id" json:"owner_id"`
	Name            string       `db:"name" json:"name"`
	Type            AccountType  `db:"type" json:"type"`
	Currency        string       `db:"currency" json:"currency"`
	InitialBalance  money.Money  `db:"initial_balance" json:"initial_balance"`
	NotifyThreshold *money.Money `db:"notify_threshold" json:"notify_threshold,omitempty"`
	Balance         money.Money  `db:"balance" json:"balance"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// BelowThreshold reports whether balance has dropped under the account's
// notification threshold. Accounts without a threshold never trigger.
func (a Account) BelowThreshold(balance money.Money) bool {
	return a.NotifyThreshold != nil && balance.LessThan(*a.NotifyThreshold)
}

type Transaction struct {
	ID           string          `db:"id" json:"id"`
	AccountID    string          `db:"account_id" json:"account_id"`
	Amount       money.Money     `db:"amount" json:"amount"`
	Currency     string          `db:"currency" json:"currency"`
	Type         TransactionType `db:"type" json:"type"`
	Date         time.Time       `db:"date" json:"date"`
	CategoryID   *string         `db:"category_id" json:"category_id,omitempty"`
	Counterparty string          `db:"counterparty" json:"counterparty"`
	Tags         Tags            `db:"tags" json:"tags"`
	Description  string          `db:"description" json:"description"`
	Attachment   *string         `db:"attachment" json:"attachment,omitempty"`
	CreatedBy    *string         `db:"created_by" json:"created_by,omitempty"`
	TransferID   *string         `db:"transfer_id" json:"transfer_id,omitempty"`
	IsDuplicate  bool            `db:"is_duplicate" json:"is_duplicate"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

func (t Transaction) IsTransfer() bool {
	return t.Type == TransactionTransfer
}

type Adjustment struct {
	ID         string      `db:"id" json:"id"`
	AccountID  string      `db:"account_id" json:"account_id"`
	UserID     *string     `db:"user_id" json:"user_id,omitempty"`
	OldAmount  money.Money `db:"old_amount" json:"old_amount"`
	NewAmount  money.Money `db:"new_amount" json:"new_amount"`
	Reason     string      `db:"reason" json:"reason"`
	Attachment *string     `db:"attachment" json:"attachment,omitempty"`
	IsReversal bool        `db:"is_reversal" json:"is_reversal"`
	ReversalOf *string     `db:"reversal_of" json:"reversal_of,omitempty"`
	ReversedBy *string     `db:"reversed_by" json:"reversed_by,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// Delta is the adjustment's signed contribution to the account balance.
func (a Adjustment) Delta() money.Money {
	return a.NewAmount.Sub(a.OldAmount)
}

type BalanceSnapshot struct {
	ID        string      `db:"id" json:"id"`
	AccountID string      `db:"account_id" json:"account_id"`
	Date      time.Time   `db:"snapshot_date" json:"date"`
	Balance   money.Money `db:"balance" json:"balance"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

type AuditAction string

const (
	AuditCreated AuditAction = "created"
	AuditUpdated AuditAction = "updated"
	AuditDeleted AuditAction = "deleted"
)

const (
	ObjectTransaction = "Transaction"
	ObjectAdjustment  = "Adjustment"
)

type AuditLog struct {
	ID         string      `db:"id" json:"id"`
	ObjectType string      `db:"object_type" json:"object_type"`
	ObjectID   string      `db:"object_id" json:"object_id"`
	Action     AuditAction `db:"action" json:"action"`
	ActorID    *string     `db:"actor_id" json:"actor_id,omitempty"`
	Before     JSON        `db:"before_state" json:"before"`
	After      JSON        `db:"after_state" json:"after"`
	Reason     string      `db:"reason" json:"reason"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// Tags is a free-form label list persisted as a JSON array.
type Tags []string

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	payload, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

func (t *Tags) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("tags: cannot scan %T", src)
	}
	var decoded []string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	*t = decoded
	return nil
}

// JSON is a nullable JSON document column.
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(JSON(nil), v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("json: cannot scan %T", src)
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append(JSON(nil), data...)
	return nil
}
