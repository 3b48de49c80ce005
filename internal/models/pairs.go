package models

import (
	"errors"
	"time"
)

var ErrUnbalancedTransfer = errors.New("transfer legs are not balanced")

// TransferPair links the outbound (debit) and inbound (credit) legs of a
// transfer. Both legs are always created and deleted together.
type TransferPair struct {
	ID        string      `json:"id"`
	Outbound  Transaction `json:"outbound"`
	Inbound   Transaction `json:"inbound"`
	CreatedAt time.Time   `json:"created_at"`
}

// Counterpart returns the other leg of the pair.
func (p TransferPair) Counterpart(transactionID string) (Transaction, bool) {
	switch transactionID {
	case p.Outbound.ID:
		return p.Inbound, true
	case p.Inbound.ID:
		return p.Outbound, true
	}
	return Transaction{}, false
}

func (p TransferPair) Legs() []Transaction {
	return []Transaction{p.Outbound, p.Inbound}
}

// EnsureBalanced checks the conservation rule: legs sum to exactly zero and
// live on different accounts.
func (p TransferPair) EnsureBalanced() error {
	if !p.Outbound.Amount.Add(p.Inbound.Amount).IsZero() {
		return ErrUnbalancedTransfer
	}
	if p.Outbound.AccountID == p.Inbound.AccountID {
		return ErrUnbalancedTransfer
	}
	if p.Outbound.Amount.Sign() >= 0 {
		return ErrUnbalancedTransfer
	}
	return nil
}

// Reversal links an original adjustment to the adjustment that undoes it.
type Reversal struct {
	Original Adjustment `json:"original"`
	Reversal Adjustment `json:"reversal"`
}

type AdjustmentState string

const (
	// AdjustmentReversible is an original adjustment with no reversal yet.
	AdjustmentReversible AdjustmentState = "reversible"
	// AdjustmentReversed is an original adjustment that has been undone.
	AdjustmentReversed AdjustmentState = "reversed"
	// AdjustmentReversalEntry is a reversal row; it can never be reversed.
	AdjustmentReversalEntry AdjustmentState = "reversal"
)

func (a Adjustment) State() AdjustmentState {
	switch {
	case a.IsReversal || a.ReversalOf != nil:
		return AdjustmentReversalEntry
	case a.ReversedBy != nil:
		return AdjustmentReversed
	}
	return AdjustmentReversible
}

func (a Adjustment) Reversible() bool {
	return a.State() == AdjustmentReversible
}
