package services

import (
	"context"

	"datum/internal/domain/models"
)

// ResourceAuthorizer decides whether a caller may act on a user's resources.
// Handlers call it before dispatching to the folder and purchase engines.
//
// Owner checks require the caller's local user id to match the resource
// owner. View and review checks additionally admit finance and administrator
// callers.
type ResourceAuthorizer interface {
	// CanActAs checks that the {userId} path segment is the caller.
	CanActAs(caller *models.Principal, userID int64) error

	// CanModifyFolder checks that the caller owns the folder.
	CanModifyFolder(ctx context.Context, caller *models.Principal, folderID int64) error

	// CanViewFolder admits the owner and reviewers.
	CanViewFolder(ctx context.Context, caller *models.Principal, folderID int64) error

	// CanModifyPurchase checks that the caller owns the purchase.
	CanModifyPurchase(ctx context.Context, caller *models.Principal, purchaseID int64) error

	// CanViewPurchase admits the owner and reviewers.
	CanViewPurchase(ctx context.Context, caller *models.Principal, purchaseID int64) error
}
