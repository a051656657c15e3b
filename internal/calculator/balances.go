package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/savingcircle/internal/models"
)

// MemberBalance is one member's share of a group's ledger.
type MemberBalance struct {
	MemberID   string
	MemberName string
	Deposited  decimal.Decimal // Sum of the member's deposits
	Withdrawn  decimal.Decimal // Sum of the member's approved withdrawals
	Requested  decimal.Decimal // Sum of the member's pending requests
}

// Net is what the member has put in minus what was paid out to them.
// Positive = net contributor, negative = net recipient.
func (b MemberBalance) Net() decimal.Decimal {
	return b.Deposited.Sub(b.Withdrawn)
}

// MemberBalances aggregates the group's ledger per member.
//
// Algorithm:
// - Every current member gets a row, even with no activity
// - Deposits count toward the depositor
// - Approved requests count as withdrawn, pending ones as requested
// - Users who left the member list still get a row from their ledger entries
//
// Rows are ordered by net contribution, largest first, then by name.
func MemberBalances(g models.Group) []MemberBalance {
	balances := make(map[string]*MemberBalance)
	row := func(id, name string) *MemberBalance {
		b, ok := balances[id]
		if !ok {
			b = &MemberBalance{MemberID: id, MemberName: name}
			balances[id] = b
		}
		if b.MemberName == "" {
			b.MemberName = name
		}
		return b
	}

	for _, m := range g.Members {
		row(m.ID, m.Name)
	}
	for _, tx := range g.Transactions {
		if tx.Kind != models.Deposit {
			// Approved requests already account for payouts.
			continue
		}
		b := row(tx.UserID, tx.UserName)
		b.Deposited = b.Deposited.Add(tx.Amount)
	}
	for _, r := range g.WithdrawalRequests {
		b := row(r.UserID, r.UserName)
		switch r.Status {
		case models.StatusApproved:
			b.Withdrawn = b.Withdrawn.Add(r.Amount)
		case models.StatusPending:
			b.Requested = b.Requested.Add(r.Amount)
		}
	}

	result := make([]MemberBalance, 0, len(balances))
	for _, b := range balances {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		if c := result[i].Net().Cmp(result[j].Net()); c != 0 {
			return c > 0
		}
		return result[i].MemberName < result[j].MemberName
	})
	return result
}
