package services

import (
	"database/sql"
	"errors"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	}
	return "internal"
}

// Error is a hard, typed rejection of a ledger operation. Nothing has been
// written when one is returned.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrZeroAmount           = newError(KindValidation, "zero_amount", "amount must not be zero")
	ErrInvalidAmount        = newError(KindValidation, "invalid_amount", "invalid amount")
	ErrCurrencyMismatch     = newError(KindValidation, "currency_mismatch", "currency does not match the account currency")
	ErrMissingReason        = newError(KindValidation, "missing_reason", "reason is required")
	ErrSameAccountTransfer  = newError(KindValidation, "same_account_transfer", "cannot transfer to the same account")
	ErrInvalidType          = newError(KindValidation, "invalid_type", "invalid type")
	ErrInvalidAccount       = newError(KindValidation, "invalid_account", "invalid account")
	ErrNoCandidates         = newError(KindValidation, "no_candidates", "an account or a list of transactions is required")
	ErrTransferAmountLocked = newError(KindValidation, "transfer_amount_locked", "the amount of a transfer leg cannot be changed")

	ErrAlreadyReversed       = newError(KindConflict, "already_reversed", "adjustment has already been reversed")
	ErrReversalNotReversible = newError(KindConflict, "reversal_not_reversible", "a reversal cannot be reversed")

	ErrAccountNotFound     = newError(KindNotFound, "account_not_found", "account not found")
	ErrTransactionNotFound = newError(KindNotFound, "transaction_not_found", "transaction not found")
	ErrTransferNotFound    = newError(KindNotFound, "transfer_not_found", "transaction is not part of a transfer")
	ErrAdjustmentNotFound  = newError(KindNotFound, "adjustment_not_found", "adjustment not found")
)

// KindOf classifies err. Anything that is not an *Error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError returns the typed error wrapped in err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func notFound(err error, sentinel *Error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}
