package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/savingcircle/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrNameRequired       = errors.New("name is required")
)

// UserStorage is the slice of storage the authenticator needs.
type UserStorage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
}

// PasswordAuthenticator authenticates with bcrypt-hashed passwords.
type PasswordAuthenticator struct {
	storage UserStorage
	cost    int
}

// NewPasswordAuthenticator creates a password authenticator over storage.
func NewPasswordAuthenticator(storage UserStorage) *PasswordAuthenticator {
	return &PasswordAuthenticator{storage: storage, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (a *PasswordAuthenticator) WithCost(cost int) *PasswordAuthenticator {
	a.cost = cost
	return a
}

// ValidateCredential checks the minimum password length.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// Register creates an account with a hashed password. Emails are compared
// case-insensitively.
func (a *PasswordAuthenticator) Register(ctx context.Context, email, displayName, avatar, credential string) (*models.User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, ErrNameRequired
	}
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	if existing, err := a.storage.GetUserByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(credential), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewUser(email, displayName, string(hashed))
	user.Avatar = strings.TrimSpace(avatar)
	if err := a.storage.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Authenticate verifies email and password.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.User, error) {
	user, err := a.storage.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// UpdateProfile changes name, email, avatar and password. A new email must be
// valid and unused; a new password must pass ValidateCredential.
func (a *PasswordAuthenticator) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error) {
	user, err := a.storage.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated := *user

	if name := strings.TrimSpace(update.Name); name != "" {
		updated.Name = name
	}
	if email := normalizeEmail(update.Email); email != "" && email != user.Email {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, ErrInvalidEmail
		}
		if existing, err := a.storage.GetUserByEmail(ctx, email); err == nil && existing != nil {
			return nil, ErrEmailExists
		}
		updated.Email = email
	}
	if avatar := strings.TrimSpace(update.Avatar); avatar != "" {
		updated.Avatar = avatar
	}
	if update.Credential != "" {
		if err := a.ValidateCredential(update.Credential); err != nil {
			return nil, err
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(update.Credential), a.cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		updated.PasswordHash = string(hashed)
	}

	if err := a.storage.UpdateUser(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &updated, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
