package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"datum/internal/config"
	"datum/internal/dms"
	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/domain/services"
	"datum/internal/metrics"
)

const defaultContentType = "application/octet-stream"

// documentService implements the DocumentService interface
type documentService struct {
	purchases services.PurchaseService
	store     services.DocumentStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(
	purchases services.PurchaseService,
	store services.DocumentStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) services.DocumentService {
	return &documentService{
		purchases: purchases,
		store:     store,
		metrics:   m,
		logger:    logger,
	}
}

// NormalizeContentType lowercases a MIME type and drops its parameters.
func NormalizeContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// ValidateUpload checks a receipt against the size limit and MIME allow-list.
func ValidateUpload(file *services.UploadedFile) error {
	if file == nil {
		return domain.Validationf("file is required")
	}
	if file.Size() == 0 {
		return domain.Validationf("file is empty")
	}
	if utf8.RuneCountInString(file.Name) > config.MaxFilenameLength {
		return domain.Validationf("file name exceeds %d characters", config.MaxFilenameLength)
	}
	if file.Size() > config.MaxUploadSize {
		return domain.Validationf("file exceeds the %d MiB limit", config.MaxUploadSize>>20)
	}
	if !config.AllowedUploadTypes[NormalizeContentType(file.ContentType)] {
		return domain.Validationf("file type %q is not allowed; upload a JPEG, PNG, HEIC or PDF", file.ContentType)
	}
	return nil
}

func (s *documentService) result(purchaseID int64, docPath string, file *services.UploadedFile) *services.DocumentResult {
	return &services.DocumentResult{
		PurchaseID: purchaseID,
		FileName:   dms.FileName(docPath),
		MimeType:   NormalizeContentType(file.ContentType),
		FileSize:   file.Size(),
		OpenKMPath: docPath,
		UploadDate: time.Now().UTC(),
		Message:    "Document uploaded successfully",
	}
}

// CreateWithDocument inserts the purchase first, so the document can be filed
// under its id, then uploads and records the path.
func (s *documentService) CreateWithDocument(ctx context.Context, req *services.CreatePurchaseRequest, file *services.UploadedFile) (*services.DocumentResult, error) {
	if err := ValidateUpload(file); err != nil {
		return nil, err
	}

	purchase, err := s.purchases.CreatePurchase(ctx, req)
	if err != nil {
		return nil, err
	}

	docPath, err := s.store.Upload(ctx, purchase.ID, purchase.PurchaseDate, file.Name, file.Content)
	if err != nil {
		s.logger.Error("document upload failed; purchase kept without document",
			"purchase_id", purchase.ID,
			"error", err,
		)
		return nil, err
	}

	if err := s.attach(ctx, purchase.ID, docPath, ""); err != nil {
		return nil, err
	}
	return s.result(purchase.ID, docPath, file), nil
}

// UploadDocument attaches a receipt to a DRAFT purchase, replacing any
// document it already has.
func (s *documentService) UploadDocument(ctx context.Context, purchaseID int64, file *services.UploadedFile) (*services.DocumentResult, error) {
	if err := ValidateUpload(file); err != nil {
		return nil, err
	}

	purchase, err := s.purchases.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if !purchase.CanEdit() {
		return nil, domain.InvalidStatef("purchase %d is %s; documents can only change in DRAFT", purchaseID, purchase.Status)
	}

	var (
		docPath string
		oldPath string
	)
	if purchase.HasDocument() {
		oldPath = *purchase.ImgURL
		docPath, err = s.store.Replace(ctx, oldPath, purchase.ID, purchase.PurchaseDate, file.Name, file.Content)
	} else {
		docPath, err = s.store.Upload(ctx, purchase.ID, purchase.PurchaseDate, file.Name, file.Content)
	}
	if err != nil {
		return nil, err
	}

	if err := s.attach(ctx, purchase.ID, docPath, oldPath); err != nil {
		return nil, err
	}
	return s.result(purchase.ID, docPath, file), nil
}

// attach records docPath on the purchase. If the purchase left DRAFT while the
// upload ran, the fresh blob is removed again unless it overwrote oldPath.
func (s *documentService) attach(ctx context.Context, purchaseID int64, docPath, oldPath string) error {
	if _, err := s.purchases.AttachDocument(ctx, purchaseID, docPath); err != nil {
		if docPath != oldPath {
			s.deleteBlob(ctx, purchaseID, docPath)
		}
		return err
	}
	return nil
}

func (s *documentService) deleteBlob(ctx context.Context, purchaseID int64, docPath string) {
	if err := s.store.Delete(ctx, docPath); err != nil {
		s.metrics.ObserveOrphanedDocument()
		s.logger.Warn("orphaned document left in DMS", "purchase_id", purchaseID, "path", docPath, "error", err)
	}
}

// UpdateWithDocument patches the purchase fields and, when a file is given,
// replaces its document.
func (s *documentService) UpdateWithDocument(ctx context.Context, purchaseID int64, req *services.UpdatePurchaseRequest, file *services.UploadedFile) (*models.Purchase, error) {
	if (req == nil || req.IsEmpty()) && file == nil {
		return nil, domain.Validationf("nothing to update")
	}
	if file != nil {
		if err := ValidateUpload(file); err != nil {
			return nil, err
		}
	}

	var (
		purchase *models.Purchase
		err      error
	)
	if req != nil && !req.IsEmpty() {
		purchase, err = s.purchases.UpdatePurchase(ctx, purchaseID, req)
		if err != nil {
			return nil, err
		}
	}
	if file == nil {
		return purchase, nil
	}

	if _, err := s.UploadDocument(ctx, purchaseID, file); err != nil {
		return nil, err
	}
	return s.purchases.GetPurchase(ctx, purchaseID)
}

// Download fetches the attached receipt.
func (s *documentService) Download(ctx context.Context, purchaseID int64) (*services.DownloadedDocument, error) {
	purchase, err := s.purchases.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if !purchase.HasDocument() {
		return nil, fmt.Errorf("purchase %d has no document: %w", purchaseID, domain.ErrNotFound)
	}

	content, err := s.store.Download(ctx, *purchase.ImgURL)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// the row points at a blob the DMS lost
			s.logger.Error("attached document missing from DMS", "purchase_id", purchaseID, "path", *purchase.ImgURL)
			return nil, &domain.UpstreamError{
				Service: "openkm",
				Op:      "download document",
				Detail:  "attached document missing from document store",
			}
		}
		return nil, err
	}

	name := dms.FileName(*purchase.ImgURL)
	contentType := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if contentType == "" {
		contentType = defaultContentType
	}
	return &services.DownloadedDocument{
		FileName:    name,
		ContentType: contentType,
		Content:     content,
	}, nil
}

// RemoveDocument detaches the receipt of a DRAFT purchase, then deletes the
// blob best-effort.
func (s *documentService) RemoveDocument(ctx context.Context, purchaseID int64) (*models.Purchase, error) {
	current, err := s.purchases.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if !current.HasDocument() {
		return nil, fmt.Errorf("purchase %d has no document: %w", purchaseID, domain.ErrNotFound)
	}
	docPath := *current.ImgURL

	purchase, err := s.purchases.DetachDocument(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	s.deleteBlob(ctx, purchaseID, docPath)
	return purchase, nil
}
