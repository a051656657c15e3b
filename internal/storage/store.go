// Package storage defines persistence for the reference ledger service.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/savingcircle/internal/models"
)

var (
	// ErrNotFound is returned when a user, group or request does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyMember is returned when a user joins a group twice.
	ErrAlreadyMember = errors.New("already a member of this group")
	// ErrNotPending is returned when deciding a request that was already decided.
	ErrNotPending = errors.New("withdrawal request has already been processed")
)

// Store defines the storage operations of the ledger service.
// This abstraction allows swapping storage backends without changing the
// service layer.
type Store interface {
	UserStore
	GroupStore
	LedgerStore

	// Close releases any resources held by the store.
	Close() error
}

// UserStore persists accounts.
type UserStore interface {
	// CreateUser persists a new user. Fails when the email is taken.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail returns ErrNotFound when no account uses email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns ErrNotFound when the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// UpdateUser overwrites email, name, avatar and password hash. Returns
	// ErrNotFound when the user does not exist.
	UpdateUser(ctx context.Context, user *models.User) error
}

// GroupStore persists groups and their membership.
type GroupStore interface {
	// CreateGroup persists a group together with its creator as the first admin.
	// ID and CreatedDate are assigned when empty.
	CreateGroup(ctx context.Context, group *models.Group, creator *models.User) error

	// GetGroup returns the group with members, contributions and withdrawal
	// requests, oldest first.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroupsForUser returns the full detail of every group userID belongs to.
	ListGroupsForUser(ctx context.Context, userID string) ([]*models.Group, error)

	// ListGroupsNotJoined returns the groups userID does not belong to, without
	// sub-resources but with MemberCount set.
	ListGroupsNotJoined(ctx context.Context, userID string) ([]*models.Group, error)

	// AddMember adds a non-admin member. Returns ErrAlreadyMember on repeats.
	AddMember(ctx context.Context, groupID, userID string, joinedAt time.Time) error

	// GetMember returns ErrNotFound when userID does not belong to groupID.
	GetMember(ctx context.Context, groupID, userID string) (*models.Member, error)
}

// LedgerStore persists contributions and withdrawal requests.
type LedgerStore interface {
	// AddContribution records a deposit and raises the group's current amount
	// in one transaction. Returns the new current amount.
	AddContribution(ctx context.Context, tx *models.Transaction) (decimal.Decimal, error)

	// CreateWithdrawalRequest records a pending request.
	CreateWithdrawalRequest(ctx context.Context, req *models.WithdrawalRequest) error

	// GetWithdrawalRequest returns ErrNotFound when the request does not exist.
	GetWithdrawalRequest(ctx context.Context, requestID string) (*models.WithdrawalRequest, error)

	// DecideWithdrawal moves a pending request to status. An approval lowers the
	// group's current amount, floored at zero, in the same transaction.
	// Returns ErrNotPending when the request was already decided.
	DecideWithdrawal(ctx context.Context, requestID string, status models.WithdrawalStatus, by string, at time.Time) (*models.WithdrawalRequest, error)
}
