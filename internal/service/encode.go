package service

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/savingcircle/internal/models"
	"github.com/mmynk/savingcircle/pkg/wire"
)

// groupSummary is the listing shape: no members or ledger, only the count.
func groupSummary(g *models.Group) *wire.Builder {
	return wire.NewBuilder().
		Str(wire.FieldID, g.ID).
		Str(wire.FieldName, g.Name).
		Str(wire.FieldDescription, g.Description).
		Money(wire.FieldTargetAmount, g.TargetAmount).
		Money(wire.FieldCurrentAmount, g.CurrentAmount).
		Time(wire.FieldCreatedAt, g.CreatedDate).
		Str(wire.FieldCreatedBy, g.CreatedBy).
		Int(wire.FieldMembersCount, g.MemberCount)
}

// groupDetail is the full shape returned to members. viewer decides is_admin.
func groupDetail(g *models.Group, viewer string) *structpb.Struct {
	avatars := make(map[string]string, len(g.Members))
	members := make([]*structpb.Struct, 0, len(g.Members))
	for _, m := range g.Members {
		avatars[m.ID] = m.Avatar
		members = append(members, memberMessage(m))
	}

	contributions := make([]*structpb.Struct, 0, len(g.Transactions))
	for _, tx := range g.Transactions {
		if tx.Kind != models.Deposit {
			continue
		}
		contributions = append(contributions, contributionMessage(tx).
			Obj(wire.FieldUser, authorMessage(tx.UserID, tx.UserName, avatars[tx.UserID])).
			Build())
	}

	withdrawals := make([]*structpb.Struct, 0, len(g.WithdrawalRequests))
	for _, r := range g.WithdrawalRequests {
		withdrawals = append(withdrawals, withdrawalMessage(r).
			Obj(wire.FieldUser, authorMessage(r.UserID, r.UserName, avatars[r.UserID])).
			Build())
	}

	return groupSummary(g).
		Bool(wire.FieldIsAdmin, g.IsAdmin(viewer)).
		List(wire.FieldMembers, members).
		List(wire.FieldContributions, contributions).
		List(wire.FieldWithdrawals, withdrawals).
		Build()
}

func memberMessage(m models.Member) *structpb.Struct {
	return wire.NewBuilder().
		Str(wire.FieldID, m.ID).
		Str(wire.FieldName, m.Name).
		Str(wire.FieldEmail, m.Email).
		StrOpt(wire.FieldAvatar, m.Avatar).
		Bool(wire.FieldIsAdmin, m.IsAdmin).
		Time(wire.FieldJoinedAt, m.JoinedAt).
		Build()
}

func authorMessage(id, name, avatar string) *structpb.Struct {
	return wire.NewBuilder().
		Str(wire.FieldID, id).
		Str(wire.FieldName, name).
		StrOpt(wire.FieldAvatar, avatar).
		Build()
}

func contributionMessage(tx models.Transaction) *wire.Builder {
	return wire.NewBuilder().
		Str(wire.FieldID, tx.ID).
		Str(wire.FieldGroupID, tx.GroupID).
		Money(wire.FieldAmount, tx.Amount).
		StrOpt(wire.FieldDescription, tx.Description).
		Time(wire.FieldCreatedAt, tx.Timestamp)
}

func withdrawalMessage(r models.WithdrawalRequest) *wire.Builder {
	b := wire.NewBuilder().
		Str(wire.FieldID, r.ID).
		Str(wire.FieldGroupID, r.GroupID).
		Money(wire.FieldAmount, r.Amount).
		Str(wire.FieldReason, r.Reason).
		Str(wire.FieldStatus, string(r.Status)).
		Time(wire.FieldCreatedAt, r.Timestamp).
		Time(wire.FieldProcessedAt, r.ProcessedAt)
	if r.ProcessedBy != "" {
		b.Str(wire.FieldProcessedBy, r.ProcessedBy)
	}
	return b
}

func userMessage(u *models.User) *structpb.Struct {
	return wire.NewBuilder().
		Str(wire.FieldID, u.ID).
		Str(wire.FieldName, u.Name).
		Str(wire.FieldEmail, u.Email).
		StrOpt(wire.FieldAvatar, u.Avatar).
		Time(wire.FieldCreatedAt, u.CreatedAt).
		Build()
}
