package handler

import (
	"log/slog"
	"net/http"

	"datum/internal/domain/models"
	"datum/internal/domain/repositories"
	"datum/internal/domain/services"
	"datum/internal/httputil"
)

// FolderHandler handles folder HTTP requests
type FolderHandler struct {
	folderService   services.FolderService
	purchaseService services.PurchaseService
	authorizer      services.ResourceAuthorizer
	logger          *slog.Logger
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(
	folderService services.FolderService,
	purchaseService services.PurchaseService,
	authorizer services.ResourceAuthorizer,
	logger *slog.Logger,
) *FolderHandler {
	return &FolderHandler{
		folderService:   folderService,
		purchaseService: purchaseService,
		authorizer:      authorizer,
		logger:          logger,
	}
}

type submitFolderResponse struct {
	Folder         *models.Folder `json:"folder"`
	SubmittedCount int            `json:"submittedCount"`
}

// actingUser checks that {userId} is the caller and returns it.
func (h *FolderHandler) actingUser(r *http.Request) (int64, error) {
	userID, err := httputil.PathInt64(r, "userId")
	if err != nil {
		return 0, err
	}
	caller, err := principal(r)
	if err != nil {
		return 0, err
	}
	if err := h.authorizer.CanActAs(caller, userID); err != nil {
		return 0, err
	}
	return userID, nil
}

// ownedFolder checks that {userId} is the caller and owns {folderId}.
func (h *FolderHandler) ownedFolder(r *http.Request) (int64, error) {
	if _, err := h.actingUser(r); err != nil {
		return 0, err
	}
	folderID, err := httputil.PathInt64(r, "folderId")
	if err != nil {
		return 0, err
	}
	if err := h.authorizer.CanModifyFolder(r.Context(), httputil.GetPrincipal(r), folderID); err != nil {
		return 0, err
	}
	return folderID, nil
}

// ListFolders returns the caller's folders
// GET /api/users/{userId}/folders
func (h *FolderHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	userID, err := h.actingUser(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	folders, err := h.folderService.ListFolders(r.Context(), repositories.FolderFilter{OwnerUserID: &userID})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, folders)
}

// CreateFolder creates a DRAFT folder for the caller
// POST /api/users/{userId}/folders
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	userID, err := h.actingUser(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	var req services.CreateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	req.OwnerUserID = userID

	folder, err := h.folderService.CreateFolder(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, folder)
}

// GetFolder
// GET /api/users/{userId}/folders/{folderId}
func (h *FolderHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.ownedFolder(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	folder, err := h.folderService.GetFolder(r.Context(), folderID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, folder)
}

// UpdateFolder replaces the editable fields of a DRAFT folder
// PUT /api/users/{userId}/folders/{folderId}
func (h *FolderHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.ownedFolder(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	var req services.UpdateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	folder, err := h.folderService.UpdateFolder(r.Context(), folderID, &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, folder)
}

// DeleteFolder removes a DRAFT folder and its purchases
// DELETE /api/users/{userId}/folders/{folderId}
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.ownedFolder(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if err := h.folderService.DeleteFolder(r.Context(), folderID); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitFolder sends a folder and its DRAFT purchases to review
// POST /api/users/{userId}/folders/{folderId}/submit
func (h *FolderHandler) SubmitFolder(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.ownedFolder(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	folder, submitted, err := h.folderService.SubmitFolder(r.Context(), folderID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, submitFolderResponse{Folder: folder, SubmittedCount: submitted})
}

// ListReviewFolders returns folders awaiting review, optionally for one user
// GET /api/folders/review?userId=
func (h *FolderHandler) ListReviewFolders(w http.ResponseWriter, r *http.Request) {
	userID, err := httputil.QueryInt64(r, "userId")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	status := models.StatusUnderReview
	folders, err := h.folderService.ListFolders(r.Context(), repositories.FolderFilter{
		OwnerUserID: userID,
		Status:      &status,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, folders)
}

// ListFolderPurchases returns the purchases of a folder to its owner or a reviewer
// GET /api/folders/{folderId}/purchases
func (h *FolderHandler) ListFolderPurchases(w http.ResponseWriter, r *http.Request) {
	folderID, err := httputil.PathInt64(r, "folderId")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if err := h.authorizer.CanViewFolder(r.Context(), httputil.GetPrincipal(r), folderID); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	purchases, err := h.purchaseService.ListPurchases(r.Context(), repositories.PurchaseFilter{FolderID: &folderID})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, purchases)
}

// RejectFolder rejects a folder under review
// POST /api/folders/{folderId}/reject
func (h *FolderHandler) RejectFolder(w http.ResponseWriter, r *http.Request) {
	folderID, err := httputil.PathInt64(r, "folderId")
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

	folder, err := h.folderService.RejectFolder(r.Context(), folderID, reviewer, derefNotes(req.Notes))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, folder)
}

func derefNotes(notes *string) string {
	if notes == nil {
		return ""
	}
	return *notes
}
