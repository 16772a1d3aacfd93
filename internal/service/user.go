package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"datum/internal/config"
	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/domain/repositories"
	"datum/internal/domain/services"
)

// assignableRoles are the realm roles an administrator may grant on onboarding.
var assignableRoles = []any{models.RoleEmployee, models.RoleFinance, models.RoleAdministrator}

// userService implements the UserService interface
type userService struct {
	userRepo   repositories.UserRepository
	folderRepo repositories.FolderRepository
	idp        services.IdentityProvider
	now        func() time.Time
	logger     *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(
	userRepo repositories.UserRepository,
	folderRepo repositories.FolderRepository,
	idp services.IdentityProvider,
	logger *slog.Logger,
) services.UserService {
	return &userService{
		userRepo:   userRepo,
		folderRepo: folderRepo,
		idp:        idp,
		now:        time.Now,
		logger:     logger,
	}
}

// TemporaryPassword derives the onboarding password handed to a new user.
func TemporaryPassword(firstName string, now time.Time) string {
	return fmt.Sprintf("%s@Datum%d", firstName, now.Year())
}

func validateProfile(firstName, lastName, nickname, email string) error {
	err := validation.Errors{
		"firstName": validation.Validate(firstName, validation.Required, validation.RuneLength(1, config.MaxNameLength)),
		"lastName":  validation.Validate(lastName, validation.Required, validation.RuneLength(1, config.MaxNameLength)),
		"nickname":  validation.Validate(nickname, validation.Required, validation.RuneLength(1, config.MaxNameLength)),
		"email":     validation.Validate(email, validation.Required, is.EmailFormat),
	}.Filter()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func normalizeProfile(first, last, nickname, email *string) {
	*first = strings.TrimSpace(*first)
	*last = strings.TrimSpace(*last)
	*nickname = strings.TrimSpace(*nickname)
	*email = strings.ToLower(strings.TrimSpace(*email))
}

// CreateUser onboards an employee: the IdP account first, then the local row.
// There is no IdP rollback, so a failed insert leaves the account behind.
func (s *userService) CreateUser(ctx context.Context, req *services.CreateUserRequest) (*services.CreateUserResult, error) {
	normalizeProfile(&req.FirstName, &req.LastName, &req.Nickname, &req.Email)
	if req.Role == "" {
		req.Role = models.RoleEmployee
	}
	if err := validateProfile(req.FirstName, req.LastName, req.Nickname, req.Email); err != nil {
		return nil, err
	}
	if err := validation.Validate(req.Role, validation.In(assignableRoles...)); err != nil {
		return nil, fmt.Errorf("%w: role: %v", domain.ErrValidation, err)
	}

	exists, err := s.userRepo.ExistsByNickname(ctx, req.Nickname)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.Validationf("nickname %q already exists", req.Nickname)
	}

	password := TemporaryPassword(req.FirstName, s.now())

	token, err := s.idp.AdminToken(ctx)
	if err != nil {
		return nil, err
	}

	enabled := true
	subject, err := s.idp.CreateUser(ctx, token, &models.IdpUser{
		Username:  req.Email,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Enabled:   &enabled,
		Attributes: map[string][]string{
			models.TemporaryPasswordAttribute: {"true"},
		},
		Credentials: []models.IdpCredential{
			{Type: "password", Value: password, Temporary: false},
		},
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("identity provider account created", "subject", subject, "nickname", req.Nickname)

	if err := s.assignRole(ctx, token, subject, req.Role); err != nil {
		// the account still works; an administrator can grant the role later
		s.logger.Warn("realm role assignment failed",
			"subject", subject,
			"role", req.Role,
			"error", err,
		)
	}

	user := &models.User{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Nickname:   req.Nickname,
		Email:      req.Email,
		IdpSubject: subject,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		s.logger.Error("identity provider account leaked",
			"subject", subject,
			"nickname", req.Nickname,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("user onboarded", "id", user.ID, "subject", subject, "role", req.Role)
	return &services.CreateUserResult{
		User:              user,
		TemporaryPassword: password,
		Message:           "User created. The temporary password must be changed on first login.",
	}, nil
}

func (s *userService) assignRole(ctx context.Context, token, subject, roleName string) error {
	role, err := s.idp.GetRealmRole(ctx, token, roleName)
	if err != nil {
		return err
	}
	return s.idp.AssignRealmRoles(ctx, token, subject, []models.IdpRole{*role})
}

// GetUser retrieves a user by ID
func (s *userService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetUserByNickname retrieves a user by nickname
func (s *userService) GetUserByNickname(ctx context.Context, nickname string) (*models.User, error) {
	return s.userRepo.GetByNickname(ctx, strings.TrimSpace(nickname))
}

// ListUsers retrieves every local profile
func (s *userService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.userRepo.List(ctx)
}

// ResolveSubject returns the local profile linked to an IdP subject
func (s *userService) ResolveSubject(ctx context.Context, subject string) (*models.User, error) {
	return s.userRepo.GetBySubject(ctx, subject)
}

// UpdateUser edits the local profile and mirrors names and e-mail to the IdP.
// The IdP sync is best-effort.
func (s *userService) UpdateUser(ctx context.Context, id int64, req *services.UpdateUserRequest) (*models.User, error) {
	normalizeProfile(&req.FirstName, &req.LastName, &req.Nickname, &req.Email)
	if err := validateProfile(req.FirstName, req.LastName, req.Nickname, req.Email); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Nickname != user.Nickname {
		exists, err := s.userRepo.ExistsByNickname(ctx, req.Nickname)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, domain.Validationf("nickname %q already exists", req.Nickname)
		}
	}

	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Nickname = req.Nickname
	user.Email = req.Email
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user updated", "id", id)

	if user.IdpSubject != "" {
		if err := s.syncProfile(ctx, user); err != nil {
			s.logger.Warn("identity provider profile sync failed", "id", id, "subject", user.IdpSubject, "error", err)
		}
	}
	return user, nil
}

// syncProfile writes back the full IdP representation so attributes and
// required actions survive the update.
func (s *userService) syncProfile(ctx context.Context, user *models.User) error {
	token, err := s.idp.AdminToken(ctx)
	if err != nil {
		return err
	}
	idpUser, err := s.idp.GetUser(ctx, token, user.IdpSubject)
	if err != nil {
		return err
	}
	idpUser.FirstName = user.FirstName
	idpUser.LastName = user.LastName
	idpUser.Email = user.Email
	idpUser.Credentials = nil
	return s.idp.UpdateUser(ctx, token, user.IdpSubject, idpUser)
}

// DeleteUser removes a user that owns no folders and disables the IdP account.
func (s *userService) DeleteUser(ctx context.Context, id int64) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.folderRepo.CountByOwner(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.InvalidStatef("user %d still owns %d folder(s)", id, count)
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", "id", id, "subject", user.IdpSubject)

	if user.IdpSubject == "" {
		return nil
	}
	token, err := s.idp.AdminToken(ctx)
	if err == nil {
		err = s.idp.SetEnabled(ctx, token, user.IdpSubject, false)
	}
	if err != nil {
		s.logger.Warn("identity provider account not disabled", "subject", user.IdpSubject, "error", err)
	}
	return nil
}
