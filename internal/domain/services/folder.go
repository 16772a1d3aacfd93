package services

import (
	"context"

	"datum/internal/domain/models"
	"datum/internal/domain/repositories"
)

// FolderService enforces the folder lifecycle and derives folder status from
// its purchases.
type FolderService interface {
	CreateFolder(ctx context.Context, req *CreateFolderRequest) (*models.Folder, error)
	GetFolder(ctx context.Context, id int64) (*models.Folder, error)
	ListFolders(ctx context.Context, filter repositories.FolderFilter) ([]models.Folder, error)

	// UpdateFolder and DeleteFolder require a DRAFT folder. Deleting also
	// removes the folder's purchases and, best-effort, their documents.
	UpdateFolder(ctx context.Context, id int64, req *UpdateFolderRequest) (*models.Folder, error)
	DeleteFolder(ctx context.Context, id int64) error

	// SubmitFolder moves every DRAFT purchase and the folder itself to
	// UNDER_REVIEW and returns how many purchases moved.
	SubmitFolder(ctx context.Context, id int64) (*models.Folder, int, error)

	// RejectFolder overrides derivation and rejects an UNDER_REVIEW folder.
	RejectFolder(ctx context.Context, id, reviewerID int64, notes string) (*models.Folder, error)

	// Rederive recomputes the folder status after a purchase decision.
	Rederive(ctx context.Context, id, reviewerID int64) (*models.Folder, error)
}

// CreateFolderRequest represents a folder creation request
type CreateFolderRequest struct {
	OwnerUserID int64        `json:"-"`
	FolderName  string       `json:"folderName"`
	Description string       `json:"description"`
	StartDate   *models.Date `json:"startDate"`
	EndDate     *models.Date `json:"endDate"`
}

// UpdateFolderRequest replaces the editable fields of a folder
type UpdateFolderRequest struct {
	FolderName  string       `json:"folderName"`
	Description string       `json:"description"`
	StartDate   *models.Date `json:"startDate"`
	EndDate     *models.Date `json:"endDate"`
}
