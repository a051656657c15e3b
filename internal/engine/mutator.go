package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/savingcircle/internal/groupstore"
	"github.com/mmynk/savingcircle/internal/models"
)

// Provisional ID prefixes. Records carrying them are replaced by the service's
// records on reconciliation.
const (
	ProvisionalPrefix = "temp-"
	WithdrawalPrefix  = "withdrawal-"
)

// CreateGroup creates a group administered by the caller. Nothing is added
// locally until the refetch of the caller's groups returns it.
func (e *Engine) CreateGroup(ctx context.Context, name, description string, target decimal.Decimal) (models.Group, error) {
	const op = "create_group"
	if _, ok := e.caller(); !ok {
		return models.Group{}, e.reject(op, "You must be logged in to create a group", ErrNotAuthenticated)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, e.reject(op, "Group name is required", fmt.Errorf("%w: name is required", ErrInvalidInput))
	}
	if target.IsNegative() {
		return models.Group{}, e.reject(op, "Target amount cannot be negative", fmt.Errorf("%w: target amount is negative", ErrInvalidInput))
	}
	if e.isClosed() {
		return models.Group{}, ErrClosed
	}

	group, err := e.client.CreateGroup(context.WithoutCancel(ctx), name, strings.TrimSpace(description), target)
	if err != nil {
		e.logger.Error("Failed to create group", "name", name, "error", err)
		e.fail("Failed to create group. Please try again.")
		e.count(op, "failed")
		return models.Group{}, fmt.Errorf("%w: %w", ErrRemote, err)
	}

	if err := e.refreshMine(ctx); err != nil {
		e.logger.Warn("Group created but refetch failed", "group_id", group.ID, "error", err)
	}
	e.logger.Info("Group created", "group_id", group.ID, "name", name)
	e.success("Group created successfully!")
	e.count(op, "ok")
	return group, nil
}

// JoinGroup adds the caller to a group, then refetches both collections so the
// group moves from discoverable to mine.
func (e *Engine) JoinGroup(ctx context.Context, groupID string) error {
	const op = "join_group"
	if _, ok := e.caller(); !ok {
		return e.reject(op, "You must be logged in to join a group", ErrNotAuthenticated)
	}

	var err error
	if qerr := e.queues.do(groupID, func() { err = e.join(ctx, groupID) }); qerr != nil {
		return qerr
	}
	return err
}

func (e *Engine) join(ctx context.Context, groupID string) error {
	const op = "join_group"
	if err := e.client.JoinGroup(context.WithoutCancel(ctx), groupID); err != nil {
		e.logger.Error("Failed to join group", "group_id", groupID, "error", err)
		e.fail("Failed to join group. Please try again.")
		e.count(op, "failed")
		return fmt.Errorf("%w: %w", ErrRemote, err)
	}

	if err := errors.Join(e.refreshMine(ctx), e.refreshDiscoverable(ctx)); err != nil {
		e.logger.Warn("Joined group but refetch failed", "group_id", groupID, "error", err)
	}
	e.logger.Info("Joined group", "group_id", groupID)
	e.success("Joined group successfully!")
	e.count(op, "ok")
	return nil
}

// ContributeToGroup deposits amount into one of the caller's groups. The
// deposit and the higher balance are visible as soon as the call is issued;
// the service's answer then commits or discards them and the caller's groups
// are refetched either way. On success the service's transaction is returned.
func (e *Engine) ContributeToGroup(ctx context.Context, groupID string, amount decimal.Decimal, description string) (models.Transaction, error) {
	const op = "contribute"
	user, ok := e.caller()
	if !ok {
		return models.Transaction{}, e.reject(op, "You must be logged in to contribute", ErrNotAuthenticated)
	}
	if !amount.IsPositive() {
		return models.Transaction{}, e.reject(op, "Contribution amount must be greater than zero", ErrInvalidAmount)
	}

	var (
		tx  models.Transaction
		err error
	)
	if qerr := e.queues.do(groupID, func() { tx, err = e.contribute(ctx, user, groupID, amount, description) }); qerr != nil {
		return models.Transaction{}, qerr
	}
	return tx, err
}

func (e *Engine) contribute(ctx context.Context, user models.User, groupID string, amount decimal.Decimal, description string) (models.Transaction, error) {
	const op = "contribute"
	provisional := models.Transaction{
		ID:          ProvisionalPrefix + e.newID(),
		GroupID:     groupID,
		UserID:      user.ID,
		UserName:    user.Name,
		Amount:      amount,
		Kind:        models.Deposit,
		Timestamp:   e.clock.Now().UTC(),
		Description: orDefault(description, "Contribution"),
		Provisional: true,
	}
	m, err := e.speculate(groupID, KindDeposit, provisional.ID, amount, depositChange(provisional))
	if errors.Is(err, ErrClosed) {
		return models.Transaction{}, err
	}
	if err != nil {
		return models.Transaction{}, e.reject(op, "Group not found", err)
	}

	confirmed, err := e.client.Contribute(context.WithoutCancel(ctx), groupID, amount, description)
	if err != nil {
		e.discard(m.Seq)
		e.logger.Error("Failed to contribute", "group_id", groupID, "amount", amount, "error", err)
		e.fail("Failed to make contribution. Please try again.")
		if rerr := e.refreshMine(ctx); rerr != nil {
			e.logger.Warn("Rollback refetch failed", "group_id", groupID, "error", rerr)
		}
		e.count(op, "failed")
		return models.Transaction{}, fmt.Errorf("%w: %w", ErrRemote, err)
	}

	e.commit(m.Seq, confirmed.ID)
	if err := e.refreshMine(ctx); err != nil {
		e.logger.Warn("Contribution recorded but refetch failed", "group_id", groupID, "error", err)
	}
	e.logger.Info("Contribution recorded", "group_id", groupID, "transaction_id", confirmed.ID, "amount", amount)
	e.success(fmt.Sprintf("Contributed $%s successfully!", amount.StringFixed(2)))
	e.count(op, "ok")
	return confirmed, nil
}

// RequestWithdrawal raises a pending withdrawal request. The request is
// visible immediately; the balance does not change until a decision.
func (e *Engine) RequestWithdrawal(ctx context.Context, groupID string, amount decimal.Decimal, reason string) (models.WithdrawalRequest, error) {
	const op = "request_withdrawal"
	user, ok := e.caller()
	if !ok {
		return models.WithdrawalRequest{}, e.reject(op, "You must be logged in to request a withdrawal", ErrNotAuthenticated)
	}
	if !amount.IsPositive() {
		return models.WithdrawalRequest{}, e.reject(op, "Withdrawal amount must be greater than zero", ErrInvalidAmount)
	}

	var (
		req models.WithdrawalRequest
		err error
	)
	if qerr := e.queues.do(groupID, func() { req, err = e.requestWithdrawal(ctx, user, groupID, amount, reason) }); qerr != nil {
		return models.WithdrawalRequest{}, qerr
	}
	return req, err
}

func (e *Engine) requestWithdrawal(ctx context.Context, user models.User, groupID string, amount decimal.Decimal, reason string) (models.WithdrawalRequest, error) {
	const op = "request_withdrawal"
	provisional := models.WithdrawalRequest{
		ID:          ProvisionalPrefix + e.newID(),
		GroupID:     groupID,
		UserID:      user.ID,
		UserName:    user.Name,
		Amount:      amount,
		Timestamp:   e.clock.Now().UTC(),
		Status:      models.StatusPending,
		Reason:      orDefault(reason, "Withdrawal request"),
		Provisional: true,
	}
	m, err := e.speculate(groupID, KindWithdrawalRequest, provisional.ID, amount, requestChange(provisional))
	if errors.Is(err, ErrClosed) {
		return models.WithdrawalRequest{}, err
	}
	if err != nil {
		return models.WithdrawalRequest{}, e.reject(op, "Group not found", err)
	}

	confirmed, err := e.client.RequestWithdrawal(context.WithoutCancel(ctx), groupID, amount, reason)
	if err != nil {
		e.discard(m.Seq)
		e.logger.Error("Failed to request withdrawal", "group_id", groupID, "amount", amount, "error", err)
		e.fail("Failed to request withdrawal. Please try again.")
		if rerr := e.refreshMine(ctx); rerr != nil {
			e.logger.Warn("Rollback refetch failed", "group_id", groupID, "error", rerr)
		}
		e.count(op, "failed")
		return models.WithdrawalRequest{}, fmt.Errorf("%w: %w", ErrRemote, err)
	}

	e.commit(m.Seq, confirmed.ID)
	if err := e.refreshMine(ctx); err != nil {
		e.logger.Warn("Withdrawal request recorded but refetch failed", "group_id", groupID, "error", err)
	}
	e.logger.Info("Withdrawal requested", "group_id", groupID, "withdrawal_id", confirmed.ID, "amount", amount)
	e.success("Withdrawal request submitted for approval")
	e.count(op, "ok")
	return confirmed, nil
}

// ApproveWithdrawal asks the service to approve a pending request. If the
// service call fails the approval is applied locally instead: the request is
// marked approved, the balance drops by its amount (never below zero), and a
// withdrawal transaction is appended. The caller's groups are then refetched
// after the reconcile delay, and the returned error wraps both
// ErrDecidedLocally and the ErrRemote failure.
func (e *Engine) ApproveWithdrawal(ctx context.Context, groupID, requestID string) error {
	return e.decide(ctx, groupID, requestID, models.StatusApproved)
}

// RejectWithdrawal is ApproveWithdrawal for rejection. The local fallback only
// changes the request's status.
func (e *Engine) RejectWithdrawal(ctx context.Context, groupID, requestID string) error {
	return e.decide(ctx, groupID, requestID, models.StatusRejected)
}

// DecideWithdrawal routes a decision to ApproveWithdrawal or RejectWithdrawal.
func (e *Engine) DecideWithdrawal(ctx context.Context, groupID, requestID string, status models.WithdrawalStatus) error {
	switch status {
	case models.StatusApproved:
		return e.ApproveWithdrawal(ctx, groupID, requestID)
	case models.StatusRejected:
		return e.RejectWithdrawal(ctx, groupID, requestID)
	}
	return e.reject("decide_withdrawal", "Invalid withdrawal status", fmt.Errorf("%w: %q", ErrInvalidStatus, status))
}

func (e *Engine) decide(ctx context.Context, groupID, requestID string, status models.WithdrawalStatus) error {
	op, verb := "approve_withdrawal", "approve"
	if status == models.StatusRejected {
		op, verb = "reject_withdrawal", "reject"
	}
	user, ok := e.caller()
	if !ok {
		return e.reject(op, fmt.Sprintf("You must be logged in to %s a withdrawal", verb), ErrNotAuthenticated)
	}

	var err error
	if qerr := e.queues.do(groupID, func() { err = e.decideInQueue(ctx, op, user, groupID, requestID, status) }); qerr != nil {
		return qerr
	}
	return err
}

func (e *Engine) decideInQueue(ctx context.Context, op string, user models.User, groupID, requestID string, status models.WithdrawalStatus) error {
	if _, ok := e.mineGroup(groupID); !ok {
		return e.reject(op, "Group not found", fmt.Errorf("%w: %s", ErrGroupNotFound, groupID))
	}

	_, err := e.client.DecideWithdrawal(context.WithoutCancel(ctx), requestID, status)
	if err == nil {
		if rerr := e.refreshMine(ctx); rerr != nil {
			e.logger.Warn("Decision recorded but refetch failed", "group_id", groupID, "error", rerr)
		}
		e.logger.Info("Withdrawal decided", "group_id", groupID, "withdrawal_id", requestID, "status", status)
		e.success("Withdrawal request " + string(status))
		e.count(op, "ok")
		return nil
	}

	remoteErr := fmt.Errorf("%w: %w", ErrRemote, err)
	e.logger.Warn("Withdrawal decision failed, applying locally",
		"group_id", groupID,
		"withdrawal_id", requestID,
		"status", status,
		"error", err,
	)

	if lerr := e.decideLocally(user, groupID, requestID, status); lerr != nil {
		msg := "Could not find withdrawal request locally"
		switch {
		case errors.Is(lerr, ErrRequestNotPending):
			msg = "Withdrawal request has already been processed"
		case errors.Is(lerr, ErrGroupNotFound):
			msg = "Group not found"
		}
		e.fail(msg)
		if rerr := e.refreshMine(ctx); rerr != nil {
			e.logger.Warn("Refetch after failed decision failed", "group_id", groupID, "error", rerr)
		}
		e.count(op, "failed")
		return fmt.Errorf("%w: %w", lerr, remoteErr)
	}

	e.metrics.Fallbacks.WithLabelValues(string(status)).Inc()
	e.warn("Withdrawal request " + string(status) + " (optimistic update)")
	e.count(op, "local")
	return fmt.Errorf("%w: %w", ErrDecidedLocally, remoteErr)
}

// decideLocally records the decision as a tentative mutation and schedules the
// delayed refetch that supersedes it.
func (e *Engine) decideLocally(user models.User, groupID, requestID string, status models.WithdrawalStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.mineGroupLocked(groupID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	r, _, ok := g.WithdrawalRequest(requestID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	if r.Status != models.StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrRequestNotPending, requestID, r.Status)
	}

	change := decisionChange(requestID, status, user.ID, e.clock.Now().UTC(), WithdrawalPrefix+e.newID())
	m, err := e.speculateLocked(groupID, KindDecision, requestID, r.Amount, change)
	if err != nil {
		return err
	}
	e.scheduleRefreshLocked(groupID, m.Seq)
	return nil
}

// speculate applies a tentative mutation to the caller's group.
func (e *Engine) speculate(groupID string, kind MutationKind, id string, amount decimal.Decimal, apply func(models.Group, string) models.Group) (Mutation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speculateLocked(groupID, kind, id, amount, apply)
}

func (e *Engine) speculateLocked(groupID string, kind MutationKind, id string, amount decimal.Decimal, apply func(models.Group, string) models.Group) (Mutation, error) {
	if e.closed {
		return Mutation{}, ErrClosed
	}
	m := &Mutation{
		Kind:          kind,
		GroupID:       groupID,
		ProvisionalID: id,
		Amount:        amount,
		CreatedAt:     e.clock.Now().UTC(),
		apply:         apply,
	}
	err := e.store.UpsertOne(groupstore.Mine, groupID, func(g models.Group) models.Group {
		return apply(g, "")
	})
	if err != nil {
		return Mutation{}, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	e.log.add(m)
	e.observeLocked(*m)
	e.metrics.PendingMutation.Set(float64(e.log.tentative()))
	return *m, nil
}

// commit promotes a tentative mutation after the service accepted it.
func (e *Engine) commit(seq uint64, confirmedID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tick++
	if m, ok := e.log.commit(seq, confirmedID, e.tick); ok {
		e.observeLocked(m)
	}
	e.metrics.PendingMutation.Set(float64(e.log.tentative()))
}

// discard rolls a tentative mutation back immediately.
func (e *Engine) discard(seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if m, ok := e.log.discard(seq); ok {
		e.observeLocked(m)
	}
	e.publishMineLocked()
}

func (e *Engine) mineGroup(groupID string) (models.Group, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mineGroupLocked(groupID)
}

func (e *Engine) mineGroupLocked(groupID string) (models.Group, bool) {
	for _, g := range e.store.Mine() {
		if g.ID == groupID {
			return g, true
		}
	}
	return models.Group{}, false
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// reject reports a failure detected before any remote call.
func (e *Engine) reject(op, msg string, err error) error {
	e.fail(msg)
	e.count(op, "invalid")
	e.logger.Debug("Operation rejected", "operation", op, "error", err)
	return err
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
