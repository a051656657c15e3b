package auth

import (
	"context"

	"github.com/mmynk/savingcircle/internal/models"
)

// Authenticator verifies and registers accounts for the ledger service.
type Authenticator interface {
	// Register creates an account. The credential format depends on the implementation.
	Register(ctx context.Context, email, displayName, avatar, credential string) (*models.User, error)

	// Authenticate returns the user owning email when credential matches.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks a credential before it is stored.
	ValidateCredential(credential string) error

	// UpdateProfile applies the non-empty fields of update to the user.
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error)
}

// ProfileUpdate holds the account fields to change. Empty fields are left as they are.
type ProfileUpdate struct {
	Name       string
	Email      string
	Avatar     string
	Credential string
}
