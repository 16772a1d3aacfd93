package repositories

import (
	"context"

	"datum/internal/domain/models"
)

// UserRepository defines data access operations for local user profiles
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByNickname(ctx context.Context, nickname string) (*models.User, error)

	// GetBySubject resolves the local profile linked to an IdP subject.
	GetBySubject(ctx context.Context, subject string) (*models.User, error)

	ExistsByNickname(ctx context.Context, nickname string) (bool, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error
}
