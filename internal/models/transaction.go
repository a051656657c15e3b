package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind distinguishes money moving in from money moving out.
type TransactionKind string

const (
	// Deposit is a contribution into the pool.
	Deposit TransactionKind = "deposit"
	// Withdrawal is money paid out after an approved request.
	Withdrawal TransactionKind = "withdrawal"
)

// Transaction is an immutable ledger record.
type Transaction struct {
	// ID is the unique identifier. Locally issued IDs are provisional.
	ID string

	// GroupID is the group the transaction belongs to (back-reference).
	GroupID string

	// UserID is the member who deposited, or who received the withdrawal.
	UserID string

	// UserName is the display name of that member at the time of the record.
	UserName string

	// Amount is always positive; Kind carries the direction.
	Amount decimal.Decimal

	// Kind is Deposit or Withdrawal.
	Kind TransactionKind

	// Timestamp is when the transaction was recorded.
	Timestamp time.Time

	// Description is optional free text.
	Description string

	// Provisional is set on records created speculatively before the service
	// confirmed them. Reconciliation replaces them with authoritative records.
	Provisional bool
}
