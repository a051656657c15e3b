package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Group represents a shared savings pool.
type Group struct {
	// ID is the unique identifier for the group (UUID format on the reference service).
	ID string

	// Name is the display name of the group (e.g., "Trip Fund").
	Name string

	// Description is free text shown alongside the name. May be empty.
	Description string

	// TargetAmount is the savings goal. Never negative.
	TargetAmount decimal.Decimal

	// CurrentAmount is the pooled balance: deposits minus approved withdrawals.
	// Never negative; approvals are clamped at zero.
	CurrentAmount decimal.Decimal

	// CreatedDate is when the service of record created the group.
	CreatedDate time.Time

	// CreatedBy is the user ID of the creator (the first admin).
	CreatedBy string

	// Members is the ordered set of participants, unique by ID.
	Members []Member

	// MemberCount is the number of members reported by the service. Listings of
	// discoverable groups carry the count without the member details.
	MemberCount int

	// Transactions is the append-only ledger, oldest first.
	Transactions []Transaction

	// WithdrawalRequests are the requests raised against this group, oldest first.
	WithdrawalRequests []WithdrawalRequest
}

// Member represents a participant in a Group.
type Member struct {
	// ID is the user ID of the member.
	ID string

	// Name is the member's display name.
	Name string

	// Email is the member's email address.
	Email string

	// Avatar is an optional avatar reference (URL or asset key). Empty when unset.
	Avatar string

	// IsAdmin marks group administrators. The creator is the only admin at creation.
	IsAdmin bool

	// JoinedAt is when the member joined. Zero when the service did not report it.
	JoinedAt time.Time
}

// Clone returns a deep copy of the group so the copy's slices can be changed
// without affecting the original.
func (g Group) Clone() Group {
	out := g
	out.Members = append([]Member(nil), g.Members...)
	out.Transactions = append([]Transaction(nil), g.Transactions...)
	out.WithdrawalRequests = append([]WithdrawalRequest(nil), g.WithdrawalRequests...)
	return out
}

// Member returns the member with the given user ID.
func (g Group) Member(userID string) (Member, bool) {
	for _, m := range g.Members {
		if m.ID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// IsAdmin reports whether the given user administers the group.
func (g Group) IsAdmin(userID string) bool {
	m, ok := g.Member(userID)
	return ok && m.IsAdmin
}

// WithdrawalRequest returns the request with the given ID and its index.
func (g Group) WithdrawalRequest(requestID string) (WithdrawalRequest, int, bool) {
	for i, r := range g.WithdrawalRequests {
		if r.ID == requestID {
			return r, i, true
		}
	}
	return WithdrawalRequest{}, -1, false
}

// Progress returns CurrentAmount as a percentage of TargetAmount, capped at 100.
// A zero target reports 0.
func (g Group) Progress() decimal.Decimal {
	if !g.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	pct := g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100))
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return pct.Round(2)
}
