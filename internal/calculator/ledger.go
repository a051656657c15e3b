// Package calculator holds the ledger arithmetic shared by the engine's
// speculative updates and the reference service.
package calculator

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mmynk/savingcircle/internal/models"
)

// ErrNonPositiveAmount is returned for deposits and withdrawals that are zero or negative.
var ErrNonPositiveAmount = errors.New("amount must be greater than zero")

// ApplyDeposit returns the balance after depositing amount.
func ApplyDeposit(current, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return current, ErrNonPositiveAmount
	}
	return current.Add(amount), nil
}

// ApplyWithdrawal returns the balance after paying out amount, floored at zero.
// The pool never goes negative even when the request exceeds the balance.
func ApplyWithdrawal(current, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return current, ErrNonPositiveAmount
	}
	next := current.Sub(amount)
	if next.IsNegative() {
		return decimal.Zero, nil
	}
	return next, nil
}

// Balance derives the pooled balance from the ledger: the sum of deposits
// minus the sum of approved withdrawal requests, floored at zero.
//
// Withdrawal transactions are ignored here because every approved request is
// already counted through its request.
func Balance(transactions []models.Transaction, requests []models.WithdrawalRequest) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range transactions {
		if tx.Kind == models.Deposit {
			total = total.Add(tx.Amount)
		}
	}
	for _, r := range requests {
		if r.Status == models.StatusApproved {
			total = total.Sub(r.Amount)
		}
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Pending sums the amounts of pending withdrawal requests. Those funds stay in the
// pool until decided.
func Pending(requests []models.WithdrawalRequest) decimal.Decimal {
	total := decimal.Zero
	for _, r := range requests {
		if r.Status == models.StatusPending {
			total = total.Add(r.Amount)
		}
	}
	return total
}
