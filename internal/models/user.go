package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Name is the display name of the user.
	Name string

	// Email is the user's email address (unique). Used for login.
	Email string

	// Avatar is an optional avatar reference.
	Avatar string

	// PasswordHash is the bcrypt hash. Only the reference service populates it;
	// it never leaves the service.
	PasswordHash string

	// CreatedAt is when the account was created.
	CreatedAt time.Time
}

// NewUser creates a user with a fresh ID and creation time.
func NewUser(email, name, passwordHash string) *User {
	return &User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
}

// DisplayName returns Name, or fallback when the name is empty.
func (u User) DisplayName(fallback string) string {
	if u.Name == "" {
		return fallback
	}
	return u.Name
}
