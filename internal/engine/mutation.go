package engine

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/savingcircle/internal/calculator"
	"github.com/mmynk/savingcircle/internal/models"
	"github.com/mmynk/savingcircle/internal/normalize"
)

// MutationState is the phase of a speculative change.
type MutationState string

const (
	// Tentative changes are visible locally and awaiting the service's answer.
	Tentative MutationState = "tentative"
	// Committed changes were accepted by the service. They stay visible until a
	// snapshot fetched after the commit replaces them.
	Committed MutationState = "committed"
	// Discarded changes were rejected, rolled back, or superseded.
	Discarded MutationState = "discarded"
)

// MutationKind identifies what a speculative change does to its group.
type MutationKind string

const (
	KindDeposit           MutationKind = "deposit"
	KindWithdrawalRequest MutationKind = "withdrawal_request"
	KindDecision          MutationKind = "decision"
)

// Mutation is one speculative change to a group in the caller's collection.
type Mutation struct {
	Seq     uint64
	Kind    MutationKind
	State   MutationState
	GroupID string

	// ProvisionalID is the locally issued ID of the record the change adds, or
	// the target request ID for decisions.
	ProvisionalID string

	// ConfirmedID is the ID the service assigned, once committed.
	ConfirmedID string

	Amount    decimal.Decimal
	CreatedAt time.Time

	commitTick uint64
	apply      func(g models.Group, confirmedID string) models.Group
}

// live reports whether the change still has to be replayed on a snapshot
// fetched at startTick.
//
// A tentative change is always replayed, even on a snapshot that already holds
// the service's record of it: between the service storing a contribution and
// the call returning, the deposit has no ConfirmedID yet and is counted twice
// by any refetch that lands in that window. The commit removes the duplicate.
// Tentative changes must stay live across unrelated refetches.
func (m *Mutation) live(startTick uint64) bool {
	switch m.State {
	case Tentative:
		return true
	case Committed:
		return m.commitTick >= startTick
	}
	return false
}

// mutationLog holds the changes that are not yet reflected in an authoritative
// snapshot, in the order they were made. Callers synchronize access.
type mutationLog struct {
	seq     uint64
	entries []*Mutation
}

func (l *mutationLog) add(m *Mutation) *Mutation {
	l.seq++
	m.Seq = l.seq
	m.State = Tentative
	l.entries = append(l.entries, m)
	return m
}

func (l *mutationLog) get(seq uint64) *Mutation {
	for _, m := range l.entries {
		if m.Seq == seq {
			return m
		}
	}
	return nil
}

// commit promotes a tentative change. tick orders it against snapshot fetches.
func (l *mutationLog) commit(seq uint64, confirmedID string, tick uint64) (Mutation, bool) {
	m := l.get(seq)
	if m == nil || m.State != Tentative {
		return Mutation{}, false
	}
	m.State = Committed
	m.ConfirmedID = confirmedID
	m.commitTick = tick
	return *m, true
}

// discard drops a change from the log.
func (l *mutationLog) discard(seq uint64) (Mutation, bool) {
	idx := slices.IndexFunc(l.entries, func(m *Mutation) bool { return m.Seq == seq })
	if idx < 0 {
		return Mutation{}, false
	}
	m := l.entries[idx]
	m.State = Discarded
	l.entries = slices.Delete(l.entries, idx, idx+1)
	return *m, true
}

// prune drops committed changes that a snapshot fetched at startTick already
// contains.
func (l *mutationLog) prune(startTick uint64) []Mutation {
	var dropped []Mutation
	l.entries = slices.DeleteFunc(l.entries, func(m *Mutation) bool {
		if m.State == Committed && !m.live(startTick) {
			dropped = append(dropped, *m)
			return true
		}
		return false
	})
	return dropped
}

func (l *mutationLog) tentative() int {
	n := 0
	for _, m := range l.entries {
		if m.State == Tentative {
			n++
		}
	}
	return n
}

func (l *mutationLog) snapshot() []Mutation {
	out := make([]Mutation, len(l.entries))
	for i, m := range l.entries {
		out[i] = *m
	}
	return out
}

func (l *mutationLog) reset() []Mutation {
	out := l.snapshot()
	for i := range out {
		out[i].State = Discarded
	}
	l.entries = nil
	return out
}

// replay applies the live changes on top of the snapshot groups. The snapshot
// is not modified. See live for the window in which a tentative deposit shows
// next to its own confirmed record.
func (l *mutationLog) replay(base []models.Group, startTick uint64) []models.Group {
	out := make([]models.Group, len(base))
	for i, g := range base {
		changed := false
		for _, m := range l.entries {
			if m.GroupID != g.ID || !m.live(startTick) {
				continue
			}
			if !changed {
				g = g.Clone()
				changed = true
			}
			g = m.apply(g, m.ConfirmedID)
		}
		out[i] = g
	}
	return out
}

// depositChange appends a provisional deposit and raises the balance. It does
// nothing once the confirmed record is in the group.
func depositChange(tx models.Transaction) func(models.Group, string) models.Group {
	return func(g models.Group, confirmedID string) models.Group {
		for _, existing := range g.Transactions {
			if existing.ID == tx.ID || (confirmedID != "" && existing.ID == confirmedID) {
				return g
			}
		}
		next, err := calculator.ApplyDeposit(g.CurrentAmount, tx.Amount)
		if err != nil {
			return g
		}
		g.Transactions = append(g.Transactions, tx)
		g.CurrentAmount = next
		return g
	}
}

// requestChange appends a provisional pending request. The balance is unchanged.
func requestChange(r models.WithdrawalRequest) func(models.Group, string) models.Group {
	return func(g models.Group, confirmedID string) models.Group {
		for _, existing := range g.WithdrawalRequests {
			if existing.ID == r.ID || (confirmedID != "" && existing.ID == confirmedID) {
				return g
			}
		}
		g.WithdrawalRequests = append(g.WithdrawalRequests, r)
		return g
	}
}

// decisionChange moves a pending request to status. Approvals lower the
// balance, floored at zero, and append a withdrawal transaction with ID txID.
// Requests that are missing or already decided are left alone.
func decisionChange(requestID string, status models.WithdrawalStatus, by string, at time.Time, txID string) func(models.Group, string) models.Group {
	return func(g models.Group, _ string) models.Group {
		r, idx, ok := g.WithdrawalRequest(requestID)
		if !ok {
			return g
		}
		decided, err := r.Decide(status, by, at)
		if err != nil {
			return g
		}
		decided.Provisional = true
		g.WithdrawalRequests[idx] = decided

		if status != models.StatusApproved {
			return g
		}
		if next, err := calculator.ApplyWithdrawal(g.CurrentAmount, decided.Amount); err == nil {
			g.CurrentAmount = next
		}
		tx := normalize.ApprovedWithdrawal(decided)
		tx.ID = txID
		tx.GroupID = g.ID
		g.Transactions = append(g.Transactions, tx)
		return g
	}
}
