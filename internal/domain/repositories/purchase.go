package repositories

import (
	"context"

	"datum/internal/domain/models"
)

// PurchaseFilter narrows purchase listings; nil fields are ignored.
type PurchaseFilter struct {
	OwnerUserID  *int64
	FolderID     *int64
	Status       *models.ValidationStatus
	WithDocument bool
}

// PurchaseRepository defines data access operations for purchases
type PurchaseRepository interface {
	Create(ctx context.Context, purchase *models.Purchase) error
	GetByID(ctx context.Context, id int64) (*models.Purchase, error)

	// GetByIDForUpdate reads the purchase and locks its row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Purchase, error)

	List(ctx context.Context, filter PurchaseFilter) ([]models.Purchase, error)
	Update(ctx context.Context, purchase *models.Purchase) error
	Delete(ctx context.Context, id int64) error

	// DeleteByFolder removes every purchase of a folder and returns the
	// DMS paths that were attached to them.
	DeleteByFolder(ctx context.Context, folderID int64) ([]string, error)
}
