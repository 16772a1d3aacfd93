package services

import (
	"context"

	"datum/internal/domain/models"
)

// UserService onboards and maintains users across Keycloak and the local store.
type UserService interface {
	// CreateUser provisions the IdP account, assigns the realm role and
	// persists the local profile. The temporary password is returned once.
	CreateUser(ctx context.Context, req *CreateUserRequest) (*CreateUserResult, error)

	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByNickname(ctx context.Context, nickname string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id int64, req *UpdateUserRequest) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error

	// ResolveSubject returns the local profile linked to an IdP subject.
	ResolveSubject(ctx context.Context, subject string) (*models.User, error)
}

// CreateUserRequest represents an onboarding request
type CreateUserRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Nickname  string `json:"nickname"`
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"` // defaults to employee
}

// UpdateUserRequest represents a profile edit
type UpdateUserRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Nickname  string `json:"nickname"`
	Email     string `json:"email"`
}

// CreateUserResult carries the one-time credentials of a new account.
type CreateUserResult struct {
	User              *models.User `json:"user"`
	TemporaryPassword string       `json:"temporaryPassword"`
	Message           string       `json:"message"`
}
