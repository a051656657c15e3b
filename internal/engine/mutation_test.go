package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/savingcircle/internal/models"
)

func TestMutationLogReplay(t *testing.T) {
	base := []models.Group{fundedGroup("a", 100), fundedGroup("b", 50)}
	var log mutationLog

	dep := models.Transaction{ID: "temp-1", GroupID: "a", Amount: amount(10), Kind: models.Deposit}
	m1 := log.add(&Mutation{GroupID: "a", Kind: KindDeposit, apply: depositChange(dep)})
	m2 := log.add(&Mutation{GroupID: "b", Kind: KindWithdrawalRequest, apply: requestChange(pending("temp-2", 5))})

	out := log.replay(base, 1)
	assert.True(t, out[0].CurrentAmount.Equal(amount(110)))
	assert.Len(t, out[1].WithdrawalRequests, 1)
	assert.True(t, base[0].CurrentAmount.Equal(amount(100)), "snapshot untouched")
	assert.Empty(t, base[1].WithdrawalRequests)

	committed, ok := log.commit(m1.Seq, "c9", 5)
	require.True(t, ok)
	assert.Equal(t, Committed, committed.State)
	_, ok = log.commit(m1.Seq, "c9", 6)
	assert.False(t, ok, "only tentative changes commit")

	assert.Empty(t, log.prune(3), "snapshot started before the commit keeps it")
	dropped := log.prune(6)
	require.Len(t, dropped, 1)
	assert.Equal(t, m1.Seq, dropped[0].Seq)

	discarded, ok := log.discard(m2.Seq)
	require.True(t, ok)
	assert.Equal(t, Discarded, discarded.State)
	assert.Empty(t, log.snapshot())
}

func TestDepositChangeSkipsConfirmedRecord(t *testing.T) {
	g := fundedGroup("a", 100)
	g.Transactions = append(g.Transactions, models.Transaction{ID: "c9", Amount: amount(10), Kind: models.Deposit})
	g.CurrentAmount = amount(110)

	apply := depositChange(models.Transaction{ID: "temp-1", Amount: amount(10), Kind: models.Deposit})
	got := apply(g.Clone(), "c9")
	assert.True(t, got.CurrentAmount.Equal(amount(110)))
	assert.Len(t, got.Transactions, len(g.Transactions))
}

func TestTentativeDepositOverlapsConfirmedRecordUntilCommit(t *testing.T) {
	var log mutationLog
	dep := models.Transaction{ID: "temp-1", GroupID: "a", Amount: amount(10), Kind: models.Deposit}
	m := log.add(&Mutation{GroupID: "a", Kind: KindDeposit, apply: depositChange(dep)})

	// The service already stored the deposit as c9; the call has not returned.
	stored := fundedGroup("a", 110)
	stored.Transactions = append(stored.Transactions, models.Transaction{ID: "c9", GroupID: "a", Amount: amount(10), Kind: models.Deposit})

	out := log.replay([]models.Group{stored}, 1)
	assert.True(t, out[0].CurrentAmount.Equal(amount(120)), "counted twice while tentative")
	assert.Len(t, out[0].Transactions, len(stored.Transactions)+1)

	_, ok := log.commit(m.Seq, "c9", 2)
	require.True(t, ok)
	out = log.replay([]models.Group{stored}, 1)
	assert.True(t, out[0].CurrentAmount.Equal(amount(110)), "commit removes the duplicate")
	assert.Len(t, out[0].Transactions, len(stored.Transactions))
}

func TestDecisionChange(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		current     int64
		status      models.WithdrawalStatus
		wantCurrent int64
		wantTx      bool
	}{
		{name: "approve", current: 100, status: models.StatusApproved, wantCurrent: 60, wantTx: true},
		{name: "approve beyond balance", current: 10, status: models.StatusApproved, wantCurrent: 0, wantTx: true},
		{name: "reject", current: 100, status: models.StatusRejected, wantCurrent: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := fundedGroup("a", tt.current, pending("w1", 40))
			got := decisionChange("w1", tt.status, "u1", at, "withdrawal-1")(g.Clone(), "")

			assert.True(t, got.CurrentAmount.Equal(amount(tt.wantCurrent)), "got %s", got.CurrentAmount)
			assert.False(t, got.CurrentAmount.IsNegative())
			assert.Equal(t, tt.status, got.WithdrawalRequests[0].Status)
			assert.Equal(t, at, got.WithdrawalRequests[0].ProcessedAt)
			assert.Equal(t, models.StatusPending, g.WithdrawalRequests[0].Status, "input group untouched")
			if tt.wantTx {
				require.Len(t, got.Transactions, len(g.Transactions)+1)
				tx := got.Transactions[len(got.Transactions)-1]
				assert.Equal(t, "withdrawal-1", tx.ID)
				assert.True(t, tx.Amount.Equal(amount(40)))
			} else {
				assert.Len(t, got.Transactions, len(g.Transactions))
			}

			again := decisionChange("w1", models.StatusApproved, "u1", at, "withdrawal-2")(got.Clone(), "")
			assert.Equal(t, got.CurrentAmount, again.CurrentAmount, "decided requests are not decided again")
			assert.Equal(t, tt.status, again.WithdrawalRequests[0].Status)
		})
	}
}

func TestQueuesRunJobsInOrder(t *testing.T) {
	qs := newQueues()
	var order []int
	for i := 0; i < 5; i++ {
		require.NoError(t, qs.do("g", func() { order = append(order, i) }))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)

	qs.close()
	assert.ErrorIs(t, qs.do("g", func() {}), ErrClosed)
	assert.ErrorIs(t, qs.do("other", func() {}), ErrClosed)
}
