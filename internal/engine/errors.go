package engine

import "errors"

var (
	// ErrNotAuthenticated is returned before any remote call when no one is signed in.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidAmount is returned for amounts that are zero or negative.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInvalidInput is returned for other rejected arguments (empty name, negative target).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidStatus is returned when a decision is neither approved nor rejected.
	ErrInvalidStatus = errors.New("invalid withdrawal status")

	// ErrGroupNotFound is returned when the group is not among the caller's groups.
	ErrGroupNotFound = errors.New("group not found")

	// ErrRequestNotFound is returned when a withdrawal request is not known locally.
	ErrRequestNotFound = errors.New("withdrawal request not found")

	// ErrRequestNotPending is returned when a local decision targets a decided request.
	ErrRequestNotPending = errors.New("withdrawal request is not pending")

	// ErrRemote wraps failures of the service of record.
	ErrRemote = errors.New("remote call failed")

	// ErrDecidedLocally is returned when a withdrawal decision could not be recorded
	// by the service and was applied locally instead, pending a delayed refetch.
	// It is always joined with the ErrRemote failure that caused it.
	ErrDecidedLocally = errors.New("decision applied locally")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine closed")
)
