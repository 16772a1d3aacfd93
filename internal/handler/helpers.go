package handler

import (
	"fmt"
	"net/http"

	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/httputil"
)

// principal returns the authenticated caller. Protected routes always have one.
func principal(r *http.Request) (*models.Principal, error) {
	p := httputil.GetPrincipal(r)
	if p == nil {
		return nil, domain.ErrUnauthorized
	}
	return p, nil
}

// reviewerID returns the local id recorded on review decisions.
func reviewerID(r *http.Request) (int64, error) {
	p, err := principal(r)
	if err != nil {
		return 0, err
	}
	if !p.HasLocalUser() {
		return 0, fmt.Errorf("caller has no local profile: %w", domain.ErrForbidden)
	}
	return p.UserID, nil
}

// notesRequest is the body of review decisions.
type notesRequest struct {
	Notes *string `json:"notes"`
}
