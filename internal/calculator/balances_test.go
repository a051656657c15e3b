package calculator

import (
	"testing"

	"github.com/mmynk/savingcircle/internal/models"
)

func TestMemberBalances(t *testing.T) {
	g := models.Group{
		Members: []models.Member{
			{ID: "alice", Name: "Alice", IsAdmin: true},
			{ID: "bob", Name: "Bob"},
			{ID: "carol", Name: "Carol"},
		},
		Transactions: []models.Transaction{
			{UserID: "alice", UserName: "Alice", Kind: models.Deposit, Amount: dec("100")},
			{UserID: "bob", UserName: "Bob", Kind: models.Deposit, Amount: dec("30")},
			{UserID: "alice", UserName: "Alice", Kind: models.Deposit, Amount: dec("20.50")},
			{UserID: "bob", UserName: "Bob", Kind: models.Withdrawal, Amount: dec("50")},
			{UserID: "dave", UserName: "Dave", Kind: models.Deposit, Amount: dec("5")},
		},
		WithdrawalRequests: []models.WithdrawalRequest{
			{UserID: "bob", UserName: "Bob", Amount: dec("50"), Status: models.StatusApproved},
			{UserID: "bob", UserName: "Bob", Amount: dec("10"), Status: models.StatusPending},
			{UserID: "alice", UserName: "Alice", Amount: dec("999"), Status: models.StatusRejected},
		},
	}

	balances := MemberBalances(g)
	if len(balances) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(balances))
	}

	wantOrder := []string{"alice", "dave", "carol", "bob"}
	for i, id := range wantOrder {
		if balances[i].MemberID != id {
			t.Errorf("row %d = %s, want %s", i, balances[i].MemberID, id)
		}
	}

	alice := balances[0]
	if !alice.Deposited.Equal(dec("120.50")) || !alice.Withdrawn.IsZero() {
		t.Errorf("alice = %+v, want deposited 120.50 and nothing withdrawn", alice)
	}

	bob := balances[3]
	if !bob.Withdrawn.Equal(dec("50")) {
		t.Errorf("bob withdrawn = %s, want 50", bob.Withdrawn)
	}
	if !bob.Requested.Equal(dec("10")) {
		t.Errorf("bob requested = %s, want 10", bob.Requested)
	}
	if !bob.Net().Equal(dec("-20")) {
		t.Errorf("bob net = %s, want -20", bob.Net())
	}

	if balances[1].MemberName != "Dave" {
		t.Errorf("former member should keep ledger name, got %q", balances[1].MemberName)
	}
}

func TestMemberBalancesEmptyGroup(t *testing.T) {
	g := models.Group{Members: []models.Member{{ID: "b", Name: "Bea"}, {ID: "a", Name: "Al"}}}

	balances := MemberBalances(g)
	if len(balances) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(balances))
	}
	if balances[0].MemberName != "Al" {
		t.Errorf("ties should order by name, got %q first", balances[0].MemberName)
	}
	if !balances[0].Net().IsZero() {
		t.Errorf("net = %s, want 0", balances[0].Net())
	}
}
