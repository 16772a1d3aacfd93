package auth

import (
	"context"
	"fmt"

	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/domain/repositories"
	"datum/internal/domain/services"
)

// OwnerBasedAuthorizer implements ResourceAuthorizer using ownership checks.
// Owners act on their own folders and purchases; finance and administrator
// callers may additionally view and review everyone's.
type OwnerBasedAuthorizer struct {
	folderRepo   repositories.FolderRepository
	purchaseRepo repositories.PurchaseRepository
}

var _ services.ResourceAuthorizer = (*OwnerBasedAuthorizer)(nil)

// NewOwnerBasedAuthorizer creates a new ownership-based authorizer
func NewOwnerBasedAuthorizer(
	folderRepo repositories.FolderRepository,
	purchaseRepo repositories.PurchaseRepository,
) *OwnerBasedAuthorizer {
	return &OwnerBasedAuthorizer{
		folderRepo:   folderRepo,
		purchaseRepo: purchaseRepo,
	}
}

// CanActAs checks that the caller is the user named in the path
func (a *OwnerBasedAuthorizer) CanActAs(caller *models.Principal, userID int64) error {
	if caller == nil {
		return domain.ErrUnauthorized
	}
	if !caller.HasLocalUser() || caller.UserID != userID {
		return fmt.Errorf("access denied to user %d: %w", userID, domain.ErrForbidden)
	}
	return nil
}

func (a *OwnerBasedAuthorizer) checkOwner(caller *models.Principal, ownerID int64, allowReviewer bool, what string) error {
	if caller == nil {
		return domain.ErrUnauthorized
	}
	if allowReviewer && caller.IsReviewer() {
		return nil
	}
	if !caller.HasLocalUser() || caller.UserID != ownerID {
		return fmt.Errorf("access denied to %s: %w", what, domain.ErrForbidden)
	}
	return nil
}

func (a *OwnerBasedAuthorizer) folderAccess(ctx context.Context, caller *models.Principal, folderID int64, allowReviewer bool) error {
	folder, err := a.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return fmt.Errorf("get folder for auth: %w", err)
	}
	return a.checkOwner(caller, folder.OwnerUserID, allowReviewer, fmt.Sprintf("folder %d", folderID))
}

func (a *OwnerBasedAuthorizer) purchaseAccess(ctx context.Context, caller *models.Principal, purchaseID int64, allowReviewer bool) error {
	purchase, err := a.purchaseRepo.GetByID(ctx, purchaseID)
	if err != nil {
		return fmt.Errorf("get purchase for auth: %w", err)
	}
	return a.checkOwner(caller, purchase.OwnerUserID, allowReviewer, fmt.Sprintf("purchase %d", purchaseID))
}

// CanModifyFolder checks if the caller owns the folder
func (a *OwnerBasedAuthorizer) CanModifyFolder(ctx context.Context, caller *models.Principal, folderID int64) error {
	return a.folderAccess(ctx, caller, folderID, false)
}

// CanViewFolder checks if the caller owns the folder or reviews folders
func (a *OwnerBasedAuthorizer) CanViewFolder(ctx context.Context, caller *models.Principal, folderID int64) error {
	return a.folderAccess(ctx, caller, folderID, true)
}

// CanModifyPurchase checks if the caller owns the purchase
func (a *OwnerBasedAuthorizer) CanModifyPurchase(ctx context.Context, caller *models.Principal, purchaseID int64) error {
	return a.purchaseAccess(ctx, caller, purchaseID, false)
}

// CanViewPurchase checks if the caller owns the purchase or reviews purchases
func (a *OwnerBasedAuthorizer) CanViewPurchase(ctx context.Context, caller *models.Principal, purchaseID int64) error {
	return a.purchaseAccess(ctx, caller, purchaseID, true)
}
