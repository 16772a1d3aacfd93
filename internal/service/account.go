package service

import (
	"context"
	"log/slog"
	"slices"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"datum/internal/config"
	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/domain/repositories"
	"datum/internal/domain/services"
)

// tokenVerifier validates access tokens issued by the password grant.
type tokenVerifier interface {
	VerifyToken(tokenString string) (*models.KeycloakClaims, error)
}

// accountService implements the AccountService interface
type accountService struct {
	clientID string
	tokens   services.TokenIssuer
	verifier tokenVerifier
	idp      services.IdentityProvider
	userRepo repositories.UserRepository
	logger   *slog.Logger
}

// NewAccountService creates a new account service. clientID is the public
// client the UI logs in through.
func NewAccountService(
	clientID string,
	tokens services.TokenIssuer,
	verifier tokenVerifier,
	idp services.IdentityProvider,
	userRepo repositories.UserRepository,
	logger *slog.Logger,
) services.AccountService {
	return &accountService{
		clientID: clientID,
		tokens:   tokens,
		verifier: verifier,
		idp:      idp,
		userRepo: userRepo,
		logger:   logger,
	}
}

// Login exchanges credentials for tokens and describes the caller.
func (s *accountService) Login(ctx context.Context, username, password string) (*services.LoginResult, error) {
	err := validation.Errors{
		"username": validation.Validate(username, validation.Required),
		"password": validation.Validate(password, validation.Required),
	}.Filter()
	if err != nil {
		return nil, domain.Validationf("%v", err)
	}

	tokens, err := s.tokens.PasswordGrant(ctx, s.clientID, username, password)
	if err != nil {
		return nil, err
	}

	claims, err := s.verifier.VerifyToken(tokens.AccessToken)
	if err != nil {
		s.logger.Error("identity provider issued an unverifiable token", "username", username, "error", err)
		return nil, &domain.UpstreamError{
			Service: "keycloak",
			Op:      "login",
			Detail:  "issued access token failed verification",
		}
	}

	result := &services.LoginResult{
		Success:      true,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		ExpiresIn:    tokens.ExpiresIn,
		User: services.LoginUser{
			ID:       claims.Subject,
			Username: claims.PreferredUsername,
			Email:    claims.Email,
			Roles:    claims.RealmAccess.Roles,
		},
	}
	if result.User.Roles == nil {
		result.User.Roles = []string{}
	}

	if user, err := s.userRepo.GetBySubject(ctx, claims.Subject); err == nil {
		result.User.UserID = user.ID
	}

	required, err := s.passwordChangeRequired(ctx, claims.Subject)
	if err != nil {
		s.logger.Warn("could not read password change flag", "subject", claims.Subject, "error", err)
	}
	result.PasswordChangeRequired = required

	s.logger.Info("user logged in", "subject", claims.Subject, "username", claims.PreferredUsername)
	return result, nil
}

func (s *accountService) passwordChangeRequired(ctx context.Context, subject string) (bool, error) {
	token, err := s.idp.AdminToken(ctx)
	if err != nil {
		return false, err
	}
	user, err := s.idp.GetUser(ctx, token, subject)
	if err != nil {
		return false, err
	}
	return user.PasswordChangeRequired(), nil
}

// ChangePassword sets a permanent password, then clears the temporary-password
// flags best-effort.
func (s *accountService) ChangePassword(ctx context.Context, subject, newPassword string) error {
	if subject == "" {
		return domain.ErrUnauthorized
	}
	if err := validation.Validate(newPassword, validation.Required, validation.RuneLength(config.MinPasswordLength, 0)); err != nil {
		return domain.Validationf("newPassword: %v", err)
	}

	token, err := s.idp.AdminToken(ctx)
	if err != nil {
		return err
	}
	if err := s.idp.ResetPassword(ctx, token, subject, newPassword, false); err != nil {
		return err
	}
	s.logger.Info("password changed", "subject", subject)

	if err := s.clearTemporaryFlag(ctx, token, subject); err != nil {
		s.logger.Warn("temporary password flag not cleared", "subject", subject, "error", err)
	}
	return nil
}

func (s *accountService) clearTemporaryFlag(ctx context.Context, token, subject string) error {
	user, err := s.idp.GetUser(ctx, token, subject)
	if err != nil {
		return err
	}
	if user.Attributes == nil {
		user.Attributes = map[string][]string{}
	}
	user.Attributes[models.TemporaryPasswordAttribute] = []string{"false"}
	actions := slices.DeleteFunc(slices.Clone(user.RequiredActions), func(a string) bool {
		return a == models.RequiredActionUpdatePassword
	})
	if actions == nil {
		actions = []string{}
	}
	user.RequiredActions = actions
	user.Credentials = nil
	return s.idp.UpdateUser(ctx, token, subject, user)
}
