package models

import (
	"time"

	"github.com/shopspring/decimal"

	"datum/internal/domain"
)

// Purchase is a single receipt line filed into a folder.
type Purchase struct {
	ID              int64            `json:"idPurchase"`
	OwnerUserID     int64            `json:"idUser"`
	FolderID        int64            `json:"idFolder"`
	CategoryID      int64            `json:"idPType"`
	PaymentMethodID int64            `json:"idPaymentMethod"`
	CostCenterID    *int64           `json:"idCostCenter"`
	TotalAmount     decimal.Decimal  `json:"totalAmount"`
	Description     string           `json:"description"`
	GuestName       string           `json:"guestName"`
	PurchaseDate    Date             `json:"purchaseDate"`
	ImgURL          *string          `json:"imgUrl"`
	Status          ValidationStatus `json:"validationStatus"`
	ValidatedAt     *time.Time       `json:"validatedDate"`
	ValidatedBy     *int64           `json:"validatedBy"`
	ValidationNotes *string          `json:"validationNotes"`
	CreatedAt       time.Time        `json:"createdDate"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// CanEdit reports whether fields and the attached document may change.
func (p *Purchase) CanEdit() bool {
	return p.Status == StatusDraft
}

// CanDelete reports whether the purchase may be removed.
func (p *Purchase) CanDelete() bool {
	return p.Status == StatusDraft || p.Status == StatusRejected
}

// HasDocument reports whether a receipt blob is attached.
func (p *Purchase) HasDocument() bool {
	return p.ImgURL != nil && *p.ImgURL != ""
}

// ValidateAmount enforces a positive amount with at most two fractional digits.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.Validationf("total amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return domain.Validationf("total amount %s has more than two decimal places", amount)
	}
	return nil
}

// AttachDocument points the purchase at a DMS path, replacing any previous one.
func (p *Purchase) AttachDocument(path string) error {
	if !p.CanEdit() {
		return domain.InvalidStatef("purchase %d is %s; documents can only change in DRAFT", p.ID, p.Status)
	}
	p.ImgURL = &path
	return nil
}

// DetachDocument clears the DMS pointer.
func (p *Purchase) DetachDocument() error {
	if !p.CanEdit() {
		return domain.InvalidStatef("purchase %d is %s; documents can only change in DRAFT", p.ID, p.Status)
	}
	p.ImgURL = nil
	return nil
}

// Submit moves a DRAFT purchase to UNDER_REVIEW.
func (p *Purchase) Submit() error {
	if p.Status != StatusDraft {
		return domain.InvalidStatef("purchase %d cannot be submitted from %s", p.ID, p.Status)
	}
	p.Status = StatusUnderReview
	return nil
}

// Approve moves an UNDER_REVIEW purchase to VALIDATED.
func (p *Purchase) Approve(reviewerID int64, notes *string, now time.Time) error {
	return p.decide(StatusValidated, reviewerID, notes, now)
}

// Reject moves an UNDER_REVIEW purchase to REJECTED.
func (p *Purchase) Reject(reviewerID int64, notes *string, now time.Time) error {
	return p.decide(StatusRejected, reviewerID, notes, now)
}

func (p *Purchase) decide(status ValidationStatus, reviewerID int64, notes *string, now time.Time) error {
	if p.Status != StatusUnderReview {
		return domain.InvalidStatef("purchase %d cannot move to %s from %s", p.ID, status, p.Status)
	}
	p.Status = status
	p.ValidatedAt = &now
	p.ValidatedBy = &reviewerID
	p.ValidationNotes = notes
	return nil
}
