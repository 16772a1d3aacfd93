package models

import "fmt"

// ValidationStatus is the review state shared by folders and purchases.
type ValidationStatus string

const (
	StatusDraft       ValidationStatus = "DRAFT"
	StatusUnderReview ValidationStatus = "UNDER_REVIEW"
	StatusValidated   ValidationStatus = "VALIDATED"
	StatusRejected    ValidationStatus = "REJECTED"
)

// Valid reports whether s is one of the four known tokens.
func (s ValidationStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusUnderReview, StatusValidated, StatusRejected:
		return true
	}
	return false
}

// Decided reports whether s carries reviewer fields (validatedAt/By/notes).
func (s ValidationStatus) Decided() bool {
	return s == StatusValidated || s == StatusRejected
}

// ParseValidationStatus parses a status token as stored and sent over the wire.
func ParseValidationStatus(s string) (ValidationStatus, error) {
	status := ValidationStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown validation status %q", s)
	}
	return status, nil
}
