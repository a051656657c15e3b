// Package normalize maps wire-format groups onto the domain model.
//
// Decoding never fails. Missing or mistyped fields become zero values, list
// entries that are not objects are skipped, and unknown withdrawal statuses are
// read as pending. Both the snake_case names the services emit and the camelCase
// names older payloads used are accepted, so callers only ever see models.Group.
package normalize

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/savingcircle/internal/calculator"
	"github.com/mmynk/savingcircle/internal/models"
	"github.com/mmynk/savingcircle/pkg/wire"
)

// ApprovedWithdrawalPrefix starts the description of transactions derived from
// approved withdrawal requests.
const ApprovedWithdrawalPrefix = "Approved withdrawal: "

var (
	targetKeys      = []string{wire.FieldTargetAmount, "targetAmount"}
	currentKeys     = []string{wire.FieldCurrentAmount, "currentAmount"}
	createdKeys     = []string{wire.FieldCreatedAt, "createdDate", "createdAt", "created_date"}
	createdByKeys   = []string{wire.FieldCreatedBy, "createdBy"}
	membersKeys     = []string{wire.FieldMembers}
	countKeys       = []string{wire.FieldMembersCount, "memberCount", "membersCount", "member_count"}
	depositKeys     = []string{wire.FieldContributions}
	transactionKeys = []string{"transactions"}
	withdrawalKeys  = []string{wire.FieldWithdrawals, "withdrawalRequests", "withdrawal_requests"}
	adminKeys       = []string{wire.FieldIsAdmin, "isAdmin"}
	joinedKeys      = []string{wire.FieldJoinedAt, "joinedAt"}
	timestampKeys   = []string{wire.FieldCreatedAt, "timestamp", "createdAt"}
	processedKeys   = []string{wire.FieldProcessedAt, "processedAt"}
	processedByKeys = []string{wire.FieldProcessedBy, "processedBy"}
	userIDKeys      = []string{"user_id", "userId"}
	userNameKeys    = []string{"user_name", "userName"}
	groupIDKeys     = []string{wire.FieldGroupID, "groupId"}
	kindKeys        = []string{"type", "kind"}
)

// Groups decodes a list of wire groups. Entries that are not objects are skipped.
func Groups(values []*structpb.Value) []models.Group {
	groups := make([]models.Group, 0, len(values))
	for _, v := range values {
		s := v.GetStructValue()
		if s == nil {
			continue
		}
		groups = append(groups, Group(s))
	}
	return groups
}

// Group decodes one wire group. A nil struct yields the zero Group.
func Group(s *structpb.Struct) models.Group {
	g := models.Group{
		ID:           wire.String(s, wire.FieldID),
		Name:         wire.String(s, wire.FieldName),
		Description:  wire.String(s, wire.FieldDescription),
		TargetAmount: nonNegative(wire.Decimal(s, targetKeys...)),
		CreatedDate:  wire.Time(s, createdKeys...),
		CreatedBy:    wire.String(s, createdByKeys...),
	}

	g.Members = members(wire.List(s, membersKeys...))
	g.MemberCount = wire.Int(s, countKeys...)
	if g.MemberCount < len(g.Members) {
		g.MemberCount = len(g.Members)
	}
	if g.CreatedBy == "" {
		for _, m := range g.Members {
			if m.IsAdmin {
				g.CreatedBy = m.ID
				break
			}
		}
	}

	for _, v := range wire.List(s, withdrawalKeys...) {
		if item := v.GetStructValue(); item != nil {
			g.WithdrawalRequests = append(g.WithdrawalRequests, WithdrawalRequest(g.ID, item))
		}
	}
	sortByTime(g.WithdrawalRequests, func(r models.WithdrawalRequest) time.Time { return r.Timestamp })

	if txs := wire.List(s, transactionKeys...); txs != nil {
		for _, v := range txs {
			if item := v.GetStructValue(); item != nil {
				g.Transactions = append(g.Transactions, Transaction(g.ID, item))
			}
		}
	} else {
		for _, v := range wire.List(s, depositKeys...) {
			if item := v.GetStructValue(); item != nil {
				g.Transactions = append(g.Transactions, Deposit(g.ID, item))
			}
		}
		for _, r := range g.WithdrawalRequests {
			if r.Status == models.StatusApproved {
				g.Transactions = append(g.Transactions, ApprovedWithdrawal(r))
			}
		}
	}
	sortByTime(g.Transactions, func(tx models.Transaction) time.Time { return tx.Timestamp })

	current, ok := wire.DecimalOK(s, currentKeys...)
	if !ok && (len(g.Transactions) > 0 || len(g.WithdrawalRequests) > 0) {
		current = calculator.Balance(g.Transactions, g.WithdrawalRequests)
	}
	g.CurrentAmount = nonNegative(current)

	return g
}

// Member decodes a participant.
func Member(s *structpb.Struct) models.Member {
	return models.Member{
		ID:       wire.String(s, wire.FieldID, "user_id", "userId"),
		Name:     wire.String(s, wire.FieldName),
		Email:    wire.String(s, wire.FieldEmail),
		Avatar:   wire.String(s, wire.FieldAvatar),
		IsAdmin:  wire.Bool(s, adminKeys...),
		JoinedAt: wire.Time(s, joinedKeys...),
	}
}

// Deposit decodes a contribution sub-resource into a deposit transaction.
func Deposit(groupID string, s *structpb.Struct) models.Transaction {
	userID, userName := author(s)
	return models.Transaction{
		ID:          wire.String(s, wire.FieldID),
		GroupID:     firstNonEmpty(wire.String(s, groupIDKeys...), groupID),
		UserID:      userID,
		UserName:    userName,
		Amount:      wire.Decimal(s, wire.FieldAmount),
		Kind:        models.Deposit,
		Timestamp:   wire.Time(s, timestampKeys...),
		Description: wire.String(s, wire.FieldDescription),
	}
}

// Transaction decodes an already-typed ledger entry ({"type":"deposit"|"withdrawal"}).
// Anything that is not a withdrawal is read as a deposit.
func Transaction(groupID string, s *structpb.Struct) models.Transaction {
	tx := Deposit(groupID, s)
	if wire.String(s, kindKeys...) == string(models.Withdrawal) {
		tx.Kind = models.Withdrawal
	}
	return tx
}

// WithdrawalRequest decodes a withdrawal sub-resource.
func WithdrawalRequest(groupID string, s *structpb.Struct) models.WithdrawalRequest {
	userID, userName := author(s)
	status, ok := models.ParseWithdrawalStatus(wire.String(s, wire.FieldStatus))
	if !ok {
		status = models.StatusPending
	}
	return models.WithdrawalRequest{
		ID:          wire.String(s, wire.FieldID),
		GroupID:     firstNonEmpty(wire.String(s, groupIDKeys...), groupID),
		UserID:      userID,
		UserName:    userName,
		Amount:      wire.Decimal(s, wire.FieldAmount),
		Timestamp:   wire.Time(s, timestampKeys...),
		Status:      status,
		Reason:      wire.String(s, wire.FieldReason),
		ProcessedAt: wire.Time(s, processedKeys...),
		ProcessedBy: wire.String(s, processedByKeys...),
	}
}

// ApprovedWithdrawal is the withdrawal transaction that records an approved request.
func ApprovedWithdrawal(r models.WithdrawalRequest) models.Transaction {
	at := r.ProcessedAt
	if at.IsZero() {
		at = r.Timestamp
	}
	return models.Transaction{
		ID:          "withdrawal-" + r.ID,
		GroupID:     r.GroupID,
		UserID:      r.UserID,
		UserName:    r.UserName,
		Amount:      r.Amount,
		Kind:        models.Withdrawal,
		Timestamp:   at,
		Description: ApprovedWithdrawalPrefix + r.Reason,
		Provisional: r.Provisional,
	}
}

// User decodes an account record.
func User(s *structpb.Struct) models.User {
	return models.User{
		ID:        wire.String(s, wire.FieldID),
		Name:      wire.String(s, wire.FieldName),
		Email:     wire.String(s, wire.FieldEmail),
		Avatar:    wire.String(s, wire.FieldAvatar),
		CreatedAt: wire.Time(s, createdKeys...),
	}
}

func members(values []*structpb.Value) []models.Member {
	var out []models.Member
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		s := v.GetStructValue()
		if s == nil {
			continue
		}
		m := Member(s)
		if m.ID != "" {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
		}
		out = append(out, m)
	}
	return out
}

// author reads the acting user from a nested user object, falling back to flat fields.
func author(s *structpb.Struct) (id, name string) {
	if u := wire.Object(s, wire.FieldUser); u != nil {
		id = wire.String(u, wire.FieldID)
		name = wire.String(u, wire.FieldName)
	}
	if id == "" {
		id = wire.String(s, userIDKeys...)
	}
	if name == "" {
		name = wire.String(s, userNameKeys...)
	}
	return id, name
}

func sortByTime[T any](items []T, at func(T) time.Time) {
	slices.SortStableFunc(items, func(a, b T) int {
		return at(a).Compare(at(b))
	})
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
