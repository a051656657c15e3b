package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/savingcircle/internal/auth"
	"github.com/mmynk/savingcircle/internal/calculator"
	"github.com/mmynk/savingcircle/internal/middleware"
	"github.com/mmynk/savingcircle/internal/models"
	"github.com/mmynk/savingcircle/internal/storage"
	"github.com/mmynk/savingcircle/pkg/wire"
)

var (
	errNameRequired        = errors.New("group name is required")
	errTargetRequired      = errors.New("target amount is required")
	errNegativeTarget      = errors.New("target amount cannot be negative")
	errGroupIDRequired     = errors.New("group_id is required")
	errWithdrawalRequired  = errors.New("withdrawal_id is required")
	errContributionAmount  = errors.New("contribution amount must be greater than zero")
	errWithdrawalAmount    = errors.New("withdrawal amount must be greater than zero")
	errExceedsBalance      = errors.New("withdrawal amount exceeds group's current amount")
	errNotMember           = errors.New("not a member of this group")
	errNotAdmin            = errors.New("not authorized to process withdrawals")
	errInvalidStatus       = errors.New("invalid status value")
	errAlreadyMember       = errors.New("already a member of this group")
	errGroupNotFound       = errors.New("group not found")
	errWithdrawalNotFound  = errors.New("withdrawal request not found")
	errWithdrawalProcessed = errors.New("withdrawal request has already been processed")
)

type (
	unaryRequest  = connect.Request[structpb.Struct]
	unaryResponse = connect.Response[structpb.Struct]
)

// LedgerService is the service of record for groups, contributions and
// withdrawal requests.
type LedgerService struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewLedgerService creates a LedgerService over store.
func NewLedgerService(store storage.Store, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// ListMyGroups returns the full detail of every group the caller belongs to.
func (s *LedgerService) ListMyGroups(ctx context.Context, _ *unaryRequest) (*unaryResponse, error) {
	userID := middleware.GetUserID(ctx)
	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		s.logger.Error("ListMyGroups failed", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out := make([]*structpb.Struct, len(groups))
	for i, g := range groups {
		out[i] = groupDetail(g, userID)
	}
	s.logger.Debug("ListMyGroups successful", "user_id", userID, "count", len(groups))
	return connect.NewResponse(wire.NewBuilder().List(wire.FieldGroups, out).Build()), nil
}

// ListDiscoverableGroups returns the groups the caller has not joined.
func (s *LedgerService) ListDiscoverableGroups(ctx context.Context, _ *unaryRequest) (*unaryResponse, error) {
	userID := middleware.GetUserID(ctx)
	groups, err := s.store.ListGroupsNotJoined(ctx, userID)
	if err != nil {
		s.logger.Error("ListDiscoverableGroups failed", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out := make([]*structpb.Struct, len(groups))
	for i, g := range groups {
		out[i] = groupSummary(g).Build()
	}
	return connect.NewResponse(wire.NewBuilder().List(wire.FieldGroups, out).Build()), nil
}

// GetGroup returns one group. Only members may read the detail.
func (s *LedgerService) GetGroup(ctx context.Context, req *unaryRequest) (*unaryResponse, error) {
	userID := middleware.GetUserID(ctx)
	groupID := wire.String(req.Msg, wire.FieldGroupID, wire.FieldID)
	if groupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errGroupIDRequired)
	}

	group, err := s.store.GetGroup(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, errGroupNotFound)
	}
	if err != nil {
		s.logger.Error("GetGroup failed", "group_id", groupID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if _, ok := group.Member(userID); !ok {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotMember)
	}
	return connect.NewResponse(wire.NewBuilder().Obj(wire.FieldGroup, groupDetail(group, userID)).Build()), nil
}

// CreateGroup creates a group with the caller as its only admin.
func (s *LedgerService) CreateGroup(ctx context.Context, req *unaryRequest) (*unaryResponse, error) {
	userID := middleware.GetUserID(ctx)
	name := strings.TrimSpace(wire.String(req.Msg, wire.FieldName))
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errNameRequired)
	}
	target, ok := wire.DecimalOK(req.Msg, wire.FieldTargetAmount, "targetAmount")
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, errTargetRequired)
	}
	if target.IsNegative() {
		return nil, connect.NewError(connect.CodeInvalidArgument, errNegativeTarget)
	}

	creator, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
	}

	group := &models.Group{
		Name:         name,
		Description:  wire.String(req.Msg, wire.FieldDescription),
		TargetAmount: target,
		CreatedDate:  s.now(),
	}
	if err := s.store.CreateGroup(ctx, group, creator); err != nil {
		s.logger.Error("CreateGroup failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Group created", "group_id", group.ID, "user_id", userID)
	return connect.NewResponse(wire.NewBuilder().Obj(wire.FieldGroup, groupDetail(group, userID)).Build()), nil
}

// JoinGroup adds the caller as a regular member.
func (s *LedgerService) JoinGroup(ctx context.Context, req *unaryRequest) (*unaryResponse, error) {
	userID := middleware.GetUserID(ctx)
	groupID := wire.String(req.Msg, wire.FieldGroupID, wire.FieldID)
	if groupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errGroupIDRequired)
	}

	if err := s.store.AddMember(ctx, groupID, userID, s.now()); err != nil {
		s.logger.Warn("JoinGroup failed", "group_id", groupID, "user_id", userID, "error", err)
		return nil, s.toConnectError(err)
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, s.toConnectError(err)
	}

	s.logger.Info("Member joined", "group_id", groupID, "user_id", userID)
	return connect.NewResponse(wire.NewBuilder().
		Obj(wire.FieldGroup, wire.NewBuilder().Str(wire.FieldID, group.ID).Str(wire.FieldName, group.Name).Build()).
		Build()), nil
}

// Contribute records a deposit by the caller.
func (s *LedgerService) Contribute(ctx context.Context, req *unaryRequest) (*unaryResponse, error) {
	userID := middleware.GetUserID(ctx)
	groupID := wire.String(req.Msg, wire.FieldGroupID)
	amount := wire.Decimal(req.Msg, wire.FieldAmount)
	if !amount.IsPositive() {
		return nil, connect.NewError(connect.CodeInvalidArgument, errContributionAmount)
	}
	member, err := s.membership(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		GroupID:     groupID,
		UserID:      userID,
		UserName:    member.Name,
		Amount:      amount,
		Timestamp:   s.now(),
		Description: wire.String(req.Msg, wire.FieldDescription),
	}
	current, err := s.store.AddContribution(ctx, tx)
	if err != nil {
		s.logger.Error("Contribute failed", "group_id", groupID, "error", err)
		return nil, s.toConnectError(err)
	}

	s.logger.Info("Contribution recorded", "group_id", groupID, "user_id", userID, "amount", amount.String())
	return connect.NewResponse(wire.NewBuilder().
		Obj(wire.FieldContribution, contributionMessage(*tx).
			Obj(wire.FieldUser, authorMessage(userID, member.Name, member.Avatar)).
			Build()).
		Obj(wire.FieldGroup, wire.NewBuilder().
			Str(wire.FieldID, groupID).
			Money(wire.FieldCurrentAmount, current).
			Build()).
		Build()), nil
}

// RequestWithdrawal records a pending withdrawal request by the caller.
func (s *LedgerService) RequestWithdrawal(ctx context.Context, req *unaryRequest) (*unaryResponse, error) {
	userID := middleware.GetUserID(ctx)
	groupID := wire.String(req.Msg, wire.FieldGroupID)
	amount := wire.Decimal(req.Msg, wire.FieldAmount)
	if !amount.IsPositive() {
		return nil, connect.NewError(connect.CodeInvalidArgument, errWithdrawalAmount)
	}
	member, err := s.membership(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, s.toConnectError(err)
	}
	if amount.GreaterThan(group.CurrentAmount) {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errExceedsBalance)
	}

	request := &models.WithdrawalRequest{
		GroupID:   groupID,
		UserID:    userID,
		UserName:  member.Name,
		Amount:    amount,
		Timestamp: s.now(),
		Reason:    wire.String(req.Msg, wire.FieldReason),
	}
	if err := s.store.CreateWithdrawalRequest(ctx, request); err != nil {
		s.logger.Error("RequestWithdrawal failed", "group_id", groupID, "error", err)
		return nil, s.toConnectError(err)
	}

	s.logger.Info("Withdrawal requested", "group_id", groupID, "withdrawal_id", request.ID, "amount", amount.String())
	return connect.NewResponse(wire.NewBuilder().
		Obj(wire.FieldWithdrawal, withdrawalMessage(*request).
			Obj(wire.FieldUser, authorMessage(userID, member.Name, member.Avatar)).
			Build()).
		Build()), nil
}

// DecideWithdrawal approves or rejects a pending request. Only group admins
// may decide.
func (s *LedgerService) DecideWithdrawal(ctx context.Context, req *unaryRequest) (*unaryResponse, error) {
	userID := middleware.GetUserID(ctx)
	requestID := wire.String(req.Msg, wire.FieldWithdrawalID, wire.FieldID)
	if requestID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errWithdrawalRequired)
	}
	status, ok := models.ParseWithdrawalStatus(wire.String(req.Msg, wire.FieldStatus))
	if !ok || !status.IsDecision() {
		return nil, connect.NewError(connect.CodeInvalidArgument, errInvalidStatus)
	}

	request, err := s.store.GetWithdrawalRequest(ctx, requestID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, errWithdrawalNotFound)
	}
	if err != nil {
		return nil, s.toConnectError(err)
	}
	member, err := s.membership(ctx, request.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if !member.IsAdmin {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotAdmin)
	}

	decided, err := s.store.DecideWithdrawal(ctx, requestID, status, userID, s.now())
	if err != nil {
		s.logger.Warn("DecideWithdrawal failed", "withdrawal_id", requestID, "error", err)
		return nil, s.toConnectError(err)
	}

	s.logger.Info("Withdrawal decided", "withdrawal_id", requestID, "status", decided.Status, "by", userID)
	return connect.NewResponse(wire.NewBuilder().
		Obj(wire.FieldWithdrawal, wire.NewBuilder().
			Str(wire.FieldID, decided.ID).
			Str(wire.FieldGroupID, decided.GroupID).
			Str(wire.FieldStatus, string(decided.Status)).
			Time(wire.FieldProcessedAt, decided.ProcessedAt).
			Str(wire.FieldProcessedBy, decided.ProcessedBy).
			Build()).
		Str(wire.FieldMessage, "Withdrawal request "+string(decided.Status)).
		Build()), nil
}

// membership loads the caller's membership, mapping a missing group to
// NotFound and a non-member to PermissionDenied.
func (s *LedgerService) membership(ctx context.Context, groupID, userID string) (*models.Member, error) {
	if groupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errGroupIDRequired)
	}
	member, err := s.store.GetMember(ctx, groupID, userID)
	if err == nil {
		return member, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if _, err := s.store.GetGroup(ctx, groupID); errors.Is(err, storage.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, errGroupNotFound)
	}
	return nil, connect.NewError(connect.CodePermissionDenied, errNotMember)
}

func (s *LedgerService) toConnectError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, errGroupNotFound)
	case errors.Is(err, storage.ErrAlreadyMember):
		return connect.NewError(connect.CodeAlreadyExists, errAlreadyMember)
	case errors.Is(err, storage.ErrNotPending), errors.Is(err, models.ErrInvalidTransition):
		return connect.NewError(connect.CodeFailedPrecondition, errWithdrawalProcessed)
	case errors.Is(err, calculator.ErrNonPositiveAmount):
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
