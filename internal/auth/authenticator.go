package auth

import (
	"context"

	"github.com/mmynk/tally/internal/models"
)

// Authenticator verifies credentials for login accounts.
// Implementations can be swapped (password, passkeys, OAuth) without
// changing the service layer.
type Authenticator interface {
	// Register creates a new account with the given email and credential.
	Register(ctx context.Context, email, displayName, credential string) (*models.Account, error)

	// Authenticate verifies the credential and returns the account.
	Authenticate(ctx context.Context, email, credential string) (*models.Account, error)

	// ValidateCredential checks the credential against the implementation's
	// requirements.
	ValidateCredential(credential string) error
}

// Directory resolves user ids to the profile data the identity provider holds.
type Directory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}
