package models

import (
	"fmt"
	"time"

	"datum/internal/domain"
)

// Folder groups an owner's purchases for a time window and is the unit of review.
type Folder struct {
	ID              int64            `json:"id"`
	OwnerUserID     int64            `json:"userId"`
	FolderName      string           `json:"folderName"`
	Description     string           `json:"description"`
	StartDate       *Date            `json:"startDate"`
	EndDate         *Date            `json:"endDate"`
	Status          ValidationStatus `json:"validationStatus"`
	ValidatedAt     *time.Time       `json:"validatedDate"`
	ValidatedBy     *int64           `json:"validatedBy"`
	ValidationNotes *string          `json:"validationNotes"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// CanEdit reports whether the owner may still change the folder or its purchases.
func (f *Folder) CanEdit() bool {
	return f.Status == StatusDraft
}

// CanSubmit reports whether the folder may be (re)submitted for review.
func (f *Folder) CanSubmit() bool {
	return f.Status == StatusDraft || f.Status == StatusRejected
}

// AcceptsPurchases reports whether new purchases may be filed into the folder.
func (f *Folder) AcceptsPurchases() bool {
	return f.CanSubmit()
}

// ValidateDateRange enforces startDate <= endDate when both are present.
func ValidateDateRange(start, end *Date) error {
	if start != nil && end != nil && start.After(*end) {
		return domain.Validationf("start date %s is after end date %s", start, end)
	}
	return nil
}

// Submit moves the folder to UNDER_REVIEW. Resubmitting a REJECTED folder
// clears the previous review outcome.
func (f *Folder) Submit() error {
	if !f.CanSubmit() {
		return domain.InvalidStatef("folder %d cannot be submitted from %s", f.ID, f.Status)
	}
	f.Status = StatusUnderReview
	f.clearReview()
	return nil
}

// RejectManually moves an UNDER_REVIEW folder straight to REJECTED,
// regardless of its purchases.
func (f *Folder) RejectManually(reviewerID int64, notes string, now time.Time) error {
	if f.Status != StatusUnderReview {
		return domain.InvalidStatef("folder %d cannot be rejected from %s", f.ID, f.Status)
	}
	f.decide(StatusRejected, reviewerID, &notes, now)
	return nil
}

// ApplyDerived records a status computed by DeriveFolderStatus.
func (f *Folder) ApplyDerived(next ValidationStatus, reviewerID int64, now time.Time) error {
	if !next.Decided() {
		return fmt.Errorf("derived folder status must be terminal, got %s", next)
	}
	if f.Status != StatusUnderReview {
		return domain.InvalidStatef("folder %d is %s, not under review", f.ID, f.Status)
	}
	f.decide(next, reviewerID, nil, now)
	return nil
}

func (f *Folder) decide(status ValidationStatus, reviewerID int64, notes *string, now time.Time) {
	f.Status = status
	f.ValidatedAt = &now
	f.ValidatedBy = &reviewerID
	f.ValidationNotes = notes
}

func (f *Folder) clearReview() {
	f.ValidatedAt = nil
	f.ValidatedBy = nil
	f.ValidationNotes = nil
}
