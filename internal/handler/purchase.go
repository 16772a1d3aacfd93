package handler

import (
	"context"
	"log/slog"
	"net/http"

	"datum/internal/domain/models"
	"datum/internal/domain/repositories"
	"datum/internal/domain/services"
	"datum/internal/httputil"
)

// PurchaseHandler handles purchase HTTP requests
type PurchaseHandler struct {
	purchaseService services.PurchaseService
	documentService services.DocumentService
	authorizer      services.ResourceAuthorizer
	logger          *slog.Logger
}

// NewPurchaseHandler creates a new purchase handler
func NewPurchaseHandler(
	purchaseService services.PurchaseService,
	documentService services.DocumentService,
	authorizer services.ResourceAuthorizer,
	logger *slog.Logger,
) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseService: purchaseService,
		documentService: documentService,
		authorizer:      authorizer,
		logger:          logger,
	}
}

// purchaseID parses {id} and runs check against the caller.
func (h *PurchaseHandler) purchaseID(r *http.Request, check func(*http.Request, int64) error) (int64, error) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		return 0, err
	}
	if err := check(r, id); err != nil {
		return 0, err
	}
	return id, nil
}

func (h *PurchaseHandler) canView(r *http.Request, id int64) error {
	return h.authorizer.CanViewPurchase(r.Context(), httputil.GetPrincipal(r), id)
}

func (h *PurchaseHandler) canModify(r *http.Request, id int64) error {
	return h.authorizer.CanModifyPurchase(r.Context(), httputil.GetPrincipal(r), id)
}

// ListUserPurchases returns the caller's purchases across folders
// GET /api/users/{userId}/purchases
func (h *PurchaseHandler) ListUserPurchases(w http.ResponseWriter, r *http.Request) {
	userID, err := httputil.PathInt64(r, "userId")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if err := h.authorizer.CanActAs(httputil.GetPrincipal(r), userID); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	purchases, err := h.purchaseService.ListPurchases(r.Context(), repositories.PurchaseFilter{OwnerUserID: &userID})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, purchases)
}

// GetPurchase
// GET /api/purchases/{id}
func (h *PurchaseHandler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := h.purchaseID(r, h.canView)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	purchase, err := h.purchaseService.GetPurchase(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, purchase)
}

// UpdatePurchase edits a DRAFT purchase from a multipart form; a file part
// replaces the document.
// PUT /api/purchases/{id}/update
func (h *PurchaseHandler) UpdatePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := h.purchaseID(r, h.canModify)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if err := httputil.ParseMultipart(w, r); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	req, err := parsePurchaseUpdate(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	file, err := httputil.FormFile(r, fieldFile)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	purchase, err := h.documentService.UpdateWithDocument(r.Context(), id, req, file)
	if err != nil {
		handleDocumentError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, purchase)
}

// ApprovePurchase
// POST /api/purchases/{id}/approve
func (h *PurchaseHandler) ApprovePurchase(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.purchaseService.ApprovePurchase)
}

// RejectPurchase
// POST /api/purchases/{id}/reject
func (h *PurchaseHandler) RejectPurchase(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.purchaseService.RejectPurchase)
}

type decisionFunc func(ctx context.Context, id, reviewerID int64, notes *string) (*models.Purchase, error)

func (h *PurchaseHandler) decide(w http.ResponseWriter, r *http.Request, decision decisionFunc) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	reviewer, err := reviewerID(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	var req notesRequest
	if err := httputil.ParseOptionalJSON(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	purchase, err := decision(r.Context(), id, reviewer, req.Notes)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, purchase)
}
