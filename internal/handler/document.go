package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"datum/internal/domain/services"
	"datum/internal/httputil"
)

// Multipart field names of the purchase forms
const (
	fieldUserID        = "idUser"
	fieldFolderID      = "idFolder"
	fieldCategoryID    = "idPType"
	fieldPaymentMethod = "idPaymentMethod"
	fieldCostCenter    = "idCostCenter"
	fieldTotalAmount   = "totalAmount"
	fieldDescription   = "description"
	fieldGuestName     = "guestName"
	fieldPurchaseDate  = "purchaseDate"
	fieldFile          = "file"
)

// DocumentHandler handles receipt uploads and downloads
type DocumentHandler struct {
	documentService services.DocumentService
	purchaseService services.PurchaseService
	authorizer      services.ResourceAuthorizer
	logger          *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(
	documentService services.DocumentService,
	purchaseService services.PurchaseService,
	authorizer services.ResourceAuthorizer,
	logger *slog.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		purchaseService: purchaseService,
		authorizer:      authorizer,
		logger:          logger,
	}
}

// CreateWithDocument creates a purchase and uploads its receipt
// POST /api/purchases/document
func (h *DocumentHandler) CreateWithDocument(w http.ResponseWriter, r *http.Request) {
	if err := httputil.ParseMultipart(w, r); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	req, err := parsePurchaseCreate(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if err := h.authorizer.CanActAs(httputil.GetPrincipal(r), req.OwnerUserID); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	file, err := httputil.FormFile(r, fieldFile)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	result, err := h.documentService.CreateWithDocument(r.Context(), req, file)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, result)
}

// UploadDocument attaches or replaces the receipt of a DRAFT purchase
// POST /api/purchases/{id}/document
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	id, err := h.ownedPurchase(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if err := httputil.ParseMultipart(w, r); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	file, err := httputil.FormFile(r, fieldFile)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	result, err := h.documentService.UploadDocument(r.Context(), id, file)
	if err != nil {
		handleDocumentError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, result)
}

// DownloadDocument streams the receipt to the owner or a reviewer
// GET /api/purchases/{id}/document
func (h *DocumentHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if err := h.authorizer.CanViewPurchase(r.Context(), httputil.GetPrincipal(r), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	doc, err := h.documentService.Download(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Content)))
	w.Header().Set("Content-Disposition", contentDisposition(doc.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Content); err != nil {
		h.logger.Warn("write document", "purchase_id", id, "error", err)
	}
}

// DeletePurchase removes the purchase together with its receipt
// DELETE /api/purchases/{id}/document
func (h *DocumentHandler) DeletePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := h.ownedPurchase(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if err := h.purchaseService.DeletePurchase(r.Context(), id); err != nil {
		handleDocumentError(w, r, h.logger, err)
		return
	}
	httputil.RespondMessage(w, http.StatusOK, "Purchase and document deleted successfully")
}

// RemoveDocument detaches the receipt of a DRAFT purchase and keeps the purchase
// DELETE /api/purchases/{id}/attachment
func (h *DocumentHandler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	id, err := h.ownedPurchase(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	purchase, err := h.documentService.RemoveDocument(r.Context(), id)
	if err != nil {
		handleDocumentError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, purchase)
}

func (h *DocumentHandler) ownedPurchase(r *http.Request) (int64, error) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		return 0, err
	}
	if err := h.authorizer.CanModifyPurchase(r.Context(), httputil.GetPrincipal(r), id); err != nil {
		return 0, err
	}
	return id, nil
}

// parsePurchaseCreate reads the creation fields. Missing values are left at
// their zero value for the purchase engine to reject.
func parsePurchaseCreate(r *http.Request) (*services.CreatePurchaseRequest, error) {
	form := httputil.NewForm(r)
	req := &services.CreatePurchaseRequest{
		OwnerUserID:     form.RequiredInt64(fieldUserID),
		FolderID:        form.RequiredInt64(fieldFolderID),
		CategoryID:      derefInt64(form.Int64(fieldCategoryID)),
		PaymentMethodID: derefInt64(form.Int64(fieldPaymentMethod)),
		CostCenterID:    form.Int64(fieldCostCenter),
	}
	if amount := form.Decimal(fieldTotalAmount); amount != nil {
		req.TotalAmount = *amount
	}
	if v := form.String(fieldDescription); v != nil {
		req.Description = *v
	}
	if v := form.String(fieldGuestName); v != nil {
		req.GuestName = *v
	}
	if d := form.Date(fieldPurchaseDate); d != nil {
		req.PurchaseDate = *d
	}
	if err := form.Err(); err != nil {
		return nil, err
	}
	return req, nil
}

// parsePurchaseUpdate reads a partial edit; absent fields stay nil.
func parsePurchaseUpdate(r *http.Request) (*services.UpdatePurchaseRequest, error) {
	form := httputil.NewForm(r)
	req := &services.UpdatePurchaseRequest{
		CategoryID:      form.Int64(fieldCategoryID),
		PaymentMethodID: form.Int64(fieldPaymentMethod),
		CostCenterID:    form.Int64(fieldCostCenter),
		TotalAmount:     form.Decimal(fieldTotalAmount),
		Description:     form.String(fieldDescription),
		GuestName:       form.String(fieldGuestName),
		PurchaseDate:    form.Date(fieldPurchaseDate),
	}
	if err := form.Err(); err != nil {
		return nil, err
	}
	return req, nil
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// contentDisposition builds an attachment header with a quoted file name.
func contentDisposition(name string) string {
	name = strings.NewReplacer(`"`, "", "\\", "", "\r", "", "\n", "").Replace(name)
	if name == "" {
		name = "document"
	}
	return fmt.Sprintf(`attachment; filename="%s"`, name)
}
