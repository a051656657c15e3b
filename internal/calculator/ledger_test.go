package calculator

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/savingcircle/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestApplyWithdrawal(t *testing.T) {
	tests := []struct {
		name    string
		current string
		amount  string
		want    string
		wantErr bool
	}{
		{name: "within balance", current: "100", amount: "40", want: "60"},
		{name: "exact balance", current: "100", amount: "100", want: "0"},
		{name: "exceeds balance clamps at zero", current: "100", amount: "140", want: "0"},
		{name: "empty pool", current: "0", amount: "5", want: "0"},
		{name: "fractional", current: "10.50", amount: "0.25", want: "10.25"},
		{name: "zero amount", current: "100", amount: "0", want: "100", wantErr: true},
		{name: "negative amount", current: "100", amount: "-1", want: "100", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyWithdrawal(dec(tt.current), dec(tt.amount))
			if tt.wantErr != (err != nil) {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrNonPositiveAmount) {
				t.Errorf("unexpected error: %v", err)
			}
			if !got.Equal(dec(tt.want)) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
			if got.IsNegative() {
				t.Errorf("balance went negative: %s", got)
			}
		})
	}
}

func TestApplyDeposit(t *testing.T) {
	got, err := ApplyDeposit(dec("200"), dec("50"))
	if err != nil {
		t.Fatalf("ApplyDeposit failed: %v", err)
	}
	if !got.Equal(dec("250")) {
		t.Errorf("got %s, want 250", got)
	}

	if _, err := ApplyDeposit(dec("200"), dec("0")); !errors.Is(err, ErrNonPositiveAmount) {
		t.Errorf("expected ErrNonPositiveAmount for zero deposit, got %v", err)
	}
}

func TestBalance(t *testing.T) {
	txs := []models.Transaction{
		{Kind: models.Deposit, Amount: dec("100")},
		{Kind: models.Deposit, Amount: dec("50")},
		{Kind: models.Withdrawal, Amount: dec("40")},
	}
	reqs := []models.WithdrawalRequest{
		{Status: models.StatusApproved, Amount: dec("40")},
		{Status: models.StatusPending, Amount: dec("30")},
		{Status: models.StatusRejected, Amount: dec("500")},
	}

	if got := Balance(txs, reqs); !got.Equal(dec("110")) {
		t.Errorf("Balance = %s, want 110", got)
	}
	if got := Pending(reqs); !got.Equal(dec("30")) {
		t.Errorf("Pending = %s, want 30", got)
	}

	overdrawn := []models.WithdrawalRequest{{Status: models.StatusApproved, Amount: dec("1000")}}
	if got := Balance(txs, overdrawn); !got.IsZero() {
		t.Errorf("Balance with overdrawn approvals = %s, want 0", got)
	}
}
