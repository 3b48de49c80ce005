package validator

import (
	"errors"
	"regexp"
	"strings"

	"finassist/internal/models"
)

var (
	ErrInvalidAccountType     = errors.New("account type must be one of card, account (or bank), wallet, cash")
	ErrInvalidTransactionType = errors.New("transaction type must be income or expense")
	ErrInvalidCurrency        = errors.New("invalid currency code")
	ErrInvalidName            = errors.New("name must be 1 to 100 characters")
	ErrMissingReason          = errors.New("reason is required")
)

// Currency codes are compared for equality only; the format check just keeps
// obvious garbage out.
var currencyRegex = regexp.MustCompile(`^[A-Za-z0-9]{1,10}$`)

func ValidateAccountType(accountType models.AccountType) error {
	switch accountType {
	case models.AccountCard, models.AccountBank, models.AccountBankAlias, models.AccountWallet, models.AccountCash:
		return nil
	}
	return ErrInvalidAccountType
}

// ValidateTransactionType accepts the types a caller may create directly.
// Transfer legs are only created in pairs.
func ValidateTransactionType(txType models.TransactionType) error {
	switch txType {
	case models.TransactionIncome, models.TransactionExpense:
		return nil
	}
	return ErrInvalidTransactionType
}

func ValidateCurrency(currency string) error {
	if !currencyRegex.MatchString(currency) {
		return ErrInvalidCurrency
	}
	return nil
}

func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return ErrInvalidName
	}
	return nil
}

func ValidateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrMissingReason
	}
	return nil
}
