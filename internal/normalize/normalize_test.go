package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/savingcircle/internal/models"
)

func object(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGroupFullDetail(t *testing.T) {
	s := object(t, map[string]any{
		"id":             7.0,
		"name":           "Trip Fund",
		"description":    "Save for a trip",
		"target_amount":  1000.0,
		"current_amount": "60",
		"created_at":     "2024-03-01T10:00:00",
		"members": []any{
			map[string]any{"id": 1.0, "name": "Ana", "email": "ana@example.com", "is_admin": true},
			map[string]any{"id": 2.0, "name": "Ben", "email": "ben@example.com", "is_admin": false},
			map[string]any{"id": 1.0, "name": "Ana (dup)"},
		},
		"contributions": []any{
			map[string]any{
				"id": 11.0, "amount": 100.0, "description": "first",
				"user":       map[string]any{"id": 1.0, "name": "Ana"},
				"created_at": "2024-03-02T10:00:00Z",
			},
		},
		"withdrawals": []any{
			map[string]any{
				"id": 21.0, "amount": 40.0, "reason": "tickets", "status": "approved",
				"user":         map[string]any{"id": 2.0, "name": "Ben"},
				"created_at":   "2024-03-03T10:00:00Z",
				"processed_at": "2024-03-04T10:00:00Z",
			},
			map[string]any{"id": 22.0, "amount": 5.0, "status": "on-hold", "created_at": "2024-03-05T10:00:00Z"},
		},
	})

	g := Group(s)

	assert.Equal(t, "7", g.ID)
	assert.Equal(t, "Trip Fund", g.Name)
	assert.True(t, g.TargetAmount.Equal(dec("1000")))
	assert.True(t, g.CurrentAmount.Equal(dec("60")))
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), g.CreatedDate)
	assert.Equal(t, "1", g.CreatedBy)

	require.Len(t, g.Members, 2)
	assert.True(t, g.Members[0].IsAdmin)
	assert.Equal(t, "Ana", g.Members[0].Name)
	assert.Equal(t, 2, g.MemberCount)

	require.Len(t, g.WithdrawalRequests, 2)
	assert.Equal(t, models.StatusApproved, g.WithdrawalRequests[0].Status)
	assert.Equal(t, "2", g.WithdrawalRequests[0].UserID)
	assert.Equal(t, "7", g.WithdrawalRequests[0].GroupID)
	assert.Equal(t, models.StatusPending, g.WithdrawalRequests[1].Status, "unknown status reads as pending")

	require.Len(t, g.Transactions, 2)
	assert.Equal(t, models.Deposit, g.Transactions[0].Kind)
	assert.Equal(t, "first", g.Transactions[0].Description)
	assert.Equal(t, "Ana", g.Transactions[0].UserName)
	assert.Equal(t, models.Withdrawal, g.Transactions[1].Kind)
	assert.Equal(t, "Approved withdrawal: tickets", g.Transactions[1].Description)
	assert.True(t, g.Transactions[1].Amount.Equal(dec("40")))
}

func TestGroupAliases(t *testing.T) {
	s := object(t, map[string]any{
		"id":            "g1",
		"name":          "Camel",
		"targetAmount":  "500",
		"currentAmount": 25.0,
		"createdDate":   "2024-01-01T00:00:00Z",
		"transactions": []any{
			map[string]any{"id": "t2", "type": "withdrawal", "amount": 5.0, "userId": "u1", "userName": "Ana", "timestamp": "2024-01-03T00:00:00Z"},
			map[string]any{"id": "t1", "type": "deposit", "amount": 30.0, "userId": "u1", "timestamp": "2024-01-02T00:00:00Z"},
		},
		"withdrawalRequests": []any{
			map[string]any{"id": "w1", "amount": 5.0, "status": "rejected", "userId": "u1"},
		},
	})

	g := Group(s)

	assert.True(t, g.TargetAmount.Equal(dec("500")))
	assert.True(t, g.CurrentAmount.Equal(dec("25")))
	require.Len(t, g.Transactions, 2)
	assert.Equal(t, "t1", g.Transactions[0].ID, "transactions sorted oldest first")
	assert.Equal(t, models.Withdrawal, g.Transactions[1].Kind)
	assert.Equal(t, "Ana", g.Transactions[1].UserName)
	require.Len(t, g.WithdrawalRequests, 1)
	assert.Equal(t, models.StatusRejected, g.WithdrawalRequests[0].Status)
}

func TestGroupDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
	}{
		{name: "empty object", in: map[string]any{}},
		{name: "wrong types", in: map[string]any{
			"id":             true,
			"target_amount":  "lots",
			"current_amount": map[string]any{"value": 1.0},
			"members":        "nobody",
			"contributions":  []any{"junk", 3.0},
		}},
		{name: "negative amounts", in: map[string]any{"target_amount": -10.0, "current_amount": -5.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Group(object(t, tt.in))
			assert.True(t, g.TargetAmount.GreaterThanOrEqual(decimal.Zero))
			assert.True(t, g.CurrentAmount.GreaterThanOrEqual(decimal.Zero))
			assert.Empty(t, g.Members)
			assert.Empty(t, g.Transactions)
			assert.Empty(t, g.WithdrawalRequests)
		})
	}

	assert.Equal(t, models.Group{}.ID, Group(nil).ID)
}

func TestGroupDerivesBalanceWhenMissing(t *testing.T) {
	s := object(t, map[string]any{
		"id": "g1",
		"contributions": []any{
			map[string]any{"id": "c1", "amount": 100.0},
			map[string]any{"id": "c2", "amount": "50.5"},
		},
		"withdrawals": []any{
			map[string]any{"id": "w1", "amount": 30.0, "status": "approved"},
			map[string]any{"id": "w2", "amount": 10.0, "status": "pending"},
		},
	})

	g := Group(s)
	assert.True(t, g.CurrentAmount.Equal(dec("120.5")), "got %s", g.CurrentAmount)
}

func TestGroupsSkipsNonObjects(t *testing.T) {
	list, err := structpb.NewList([]any{
		map[string]any{"id": "a"},
		"junk",
		nil,
		map[string]any{"id": "b", "members_count": 4.0},
	})
	require.NoError(t, err)

	groups := Groups(list.GetValues())
	require.Len(t, groups, 2)
	assert.Equal(t, "a", groups[0].ID)
	assert.Equal(t, 4, groups[1].MemberCount)
}

func TestDepositFlatUserFields(t *testing.T) {
	tx := Deposit("g1", object(t, map[string]any{
		"id": "c1", "amount": 12.0, "user_id": "u9", "user_name": "Zed",
	}))
	assert.Equal(t, "u9", tx.UserID)
	assert.Equal(t, "Zed", tx.UserName)
	assert.Equal(t, "g1", tx.GroupID)
	assert.Equal(t, models.Deposit, tx.Kind)
}

func TestUser(t *testing.T) {
	u := User(object(t, map[string]any{"id": 3.0, "name": "Ana", "email": "ana@example.com", "avatar": "fox"}))
	assert.Equal(t, models.User{ID: "3", Name: "Ana", Email: "ana@example.com", Avatar: "fox"}, u)
}
