package services

import "context"

// AccountService covers self-service login and password changes.
type AccountService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)

	// ChangePassword sets a permanent password for subject and clears the
	// temporary-password flag.
	ChangePassword(ctx context.Context, subject, newPassword string) error
}

// LoginResult is returned on a successful password grant.
type LoginResult struct {
	Success                bool      `json:"success"`
	AccessToken            string    `json:"accessToken"`
	RefreshToken           string    `json:"refreshToken"`
	TokenType              string    `json:"tokenType"`
	ExpiresIn              int       `json:"expiresIn"`
	User                   LoginUser `json:"user"`
	PasswordChangeRequired bool      `json:"passwordChangeRequired"`
}

type LoginUser struct {
	ID       string   `json:"id"`
	UserID   int64    `json:"userId,omitempty"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}
