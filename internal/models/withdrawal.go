package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus is the state of a withdrawal request.
type WithdrawalStatus string

const (
	// StatusPending is the initial state; funds stay in the pool.
	StatusPending WithdrawalStatus = "pending"
	// StatusApproved is terminal; the amount has left the pool.
	StatusApproved WithdrawalStatus = "approved"
	// StatusRejected is terminal; nothing moved.
	StatusRejected WithdrawalStatus = "rejected"
)

// ErrInvalidTransition is returned when a status change is not pending → terminal.
var ErrInvalidTransition = errors.New("invalid withdrawal status transition")

// ParseWithdrawalStatus maps a wire status to a WithdrawalStatus.
func ParseWithdrawalStatus(s string) (WithdrawalStatus, bool) {
	switch WithdrawalStatus(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return WithdrawalStatus(s), true
	}
	return "", false
}

// IsTerminal reports whether no further transition is possible.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// IsDecision reports whether s is a valid administrator decision.
func (s WithdrawalStatus) IsDecision() bool {
	return s.IsTerminal()
}

// WithdrawalRequest is a proposed withdrawal awaiting an administrator decision.
type WithdrawalRequest struct {
	// ID is the unique identifier. Locally issued IDs are provisional.
	ID string

	// GroupID is the group the request draws from.
	GroupID string

	// UserID is the requesting member.
	UserID string

	// UserName is the requesting member's display name.
	UserName string

	// Amount is fixed at creation and always positive.
	Amount decimal.Decimal

	// Timestamp is when the request was raised.
	Timestamp time.Time

	// Status moves only from pending to approved or rejected.
	Status WithdrawalStatus

	// Reason is optional free text from the requester.
	Reason string

	// ProcessedAt is when the decision was recorded. Zero while pending.
	ProcessedAt time.Time

	// ProcessedBy is the admin user ID that decided. Empty while pending.
	ProcessedBy string

	// Provisional marks a request created locally before the service confirmed it.
	Provisional bool
}

// Decide returns a copy of the request moved to the given terminal status.
// Only pending requests can be decided.
func (r WithdrawalRequest) Decide(status WithdrawalStatus, by string, at time.Time) (WithdrawalRequest, error) {
	if r.Status != StatusPending || !status.IsDecision() {
		return r, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, r.Status, status)
	}
	r.Status = status
	r.ProcessedBy = by
	r.ProcessedAt = at
	return r, nil
}
