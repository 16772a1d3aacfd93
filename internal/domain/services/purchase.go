package services

import (
	"context"

	"github.com/shopspring/decimal"

	"datum/internal/domain/models"
	"datum/internal/domain/repositories"
)

// PurchaseService enforces the purchase lifecycle and document pointer rules.
type PurchaseService interface {
	CreatePurchase(ctx context.Context, req *CreatePurchaseRequest) (*models.Purchase, error)
	GetPurchase(ctx context.Context, id int64) (*models.Purchase, error)
	ListPurchases(ctx context.Context, filter repositories.PurchaseFilter) ([]models.Purchase, error)

	// UpdatePurchase applies a partial edit to a DRAFT purchase.
	UpdatePurchase(ctx context.Context, id int64, req *UpdatePurchaseRequest) (*models.Purchase, error)

	// DeletePurchase removes a DRAFT or REJECTED purchase. The attached
	// document is deleted best-effort after the row is gone.
	DeletePurchase(ctx context.Context, id int64) error

	AttachDocument(ctx context.Context, id int64, path string) (*models.Purchase, error)
	DetachDocument(ctx context.Context, id int64) (*models.Purchase, error)

	SubmitPurchase(ctx context.Context, id int64) (*models.Purchase, error)
	ApprovePurchase(ctx context.Context, id, reviewerID int64, notes *string) (*models.Purchase, error)
	RejectPurchase(ctx context.Context, id, reviewerID int64, notes *string) (*models.Purchase, error)
}

// CreatePurchaseRequest represents a purchase creation request
type CreatePurchaseRequest struct {
	OwnerUserID     int64
	FolderID        int64
	CategoryID      int64
	PaymentMethodID int64
	CostCenterID    *int64
	TotalAmount     decimal.Decimal
	Description     string
	GuestName       string
	PurchaseDate    models.Date
}

// UpdatePurchaseRequest is a partial edit; nil fields keep their value.
type UpdatePurchaseRequest struct {
	CategoryID      *int64
	PaymentMethodID *int64
	CostCenterID    *int64
	TotalAmount     *decimal.Decimal
	Description     *string
	GuestName       *string
	PurchaseDate    *models.Date
}

// IsEmpty reports whether the request changes nothing.
func (r *UpdatePurchaseRequest) IsEmpty() bool {
	return r.CategoryID == nil && r.PaymentMethodID == nil && r.CostCenterID == nil &&
		r.TotalAmount == nil && r.Description == nil && r.GuestName == nil && r.PurchaseDate == nil
}
