package repositories

import (
	"context"

	"datum/internal/domain/models"
)

// FolderFilter narrows folder listings; nil fields are ignored.
type FolderFilter struct {
	OwnerUserID *int64
	Status      *models.ValidationStatus
}

// FolderRepository defines data access operations for folders
type FolderRepository interface {
	Create(ctx context.Context, folder *models.Folder) error
	GetByID(ctx context.Context, id int64) (*models.Folder, error)

	// GetByIDForUpdate reads the folder and locks its row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Folder, error)

	List(ctx context.Context, filter FolderFilter) ([]models.Folder, error)
	CountByOwner(ctx context.Context, ownerUserID int64) (int, error)
	Update(ctx context.Context, folder *models.Folder) error
	Delete(ctx context.Context, id int64) error
}
