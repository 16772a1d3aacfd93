package services

import (
	"context"

	"datum/internal/domain/models"
)

// IdentityProvider is the Keycloak admin surface used for onboarding and
// account maintenance. Every call takes an admin bearer from AdminToken;
// tokens are not cached between operations.
type IdentityProvider interface {
	AdminToken(ctx context.Context) (string, error)

	// CreateUser returns the subject of the new account.
	CreateUser(ctx context.Context, token string, user *models.IdpUser) (string, error)
	GetUser(ctx context.Context, token, subject string) (*models.IdpUser, error)
	UpdateUser(ctx context.Context, token, subject string, user *models.IdpUser) error
	SetEnabled(ctx context.Context, token, subject string, enabled bool) error

	GetRealmRole(ctx context.Context, token, name string) (*models.IdpRole, error)
	AssignRealmRoles(ctx context.Context, token, subject string, roles []models.IdpRole) error
	ResetPassword(ctx context.Context, token, subject, password string, temporary bool) error
}

// TokenIssuer performs the OAuth password grant for end users.
type TokenIssuer interface {
	PasswordGrant(ctx context.Context, clientID, username, password string) (*models.TokenSet, error)
}

// DocumentStore keeps receipt blobs under their canonical DMS path.
type DocumentStore interface {
	// Upload creates any missing ancestor folders, stores content and
	// returns the canonical path.
	Upload(ctx context.Context, purchaseID int64, date models.Date, filename string, content []byte) (string, error)

	// Download fails with domain.ErrNotFound when the blob is missing.
	Download(ctx context.Context, path string) ([]byte, error)

	// Delete succeeds when the blob is already gone.
	Delete(ctx context.Context, path string) error

	// Replace deletes oldPath (failures are only logged) and uploads content.
	Replace(ctx context.Context, oldPath string, purchaseID int64, date models.Date, filename string, content []byte) (string, error)

	// Exists reports whether a blob is present at path.
	Exists(ctx context.Context, path string) (bool, error)
}
