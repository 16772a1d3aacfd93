package services

import (
	"context"
	"time"

	"datum/internal/domain/models"
)

// DocumentService keeps receipt blobs and purchase rows in step.
// The database is authoritative; the DMS follows.
type DocumentService interface {
	// CreateWithDocument inserts the purchase, uploads the file and records
	// its path. When the upload fails the purchase remains without a document.
	CreateWithDocument(ctx context.Context, req *CreatePurchaseRequest, file *UploadedFile) (*DocumentResult, error)

	// UploadDocument attaches or replaces the document of a DRAFT purchase.
	UploadDocument(ctx context.Context, purchaseID int64, file *UploadedFile) (*DocumentResult, error)

	// UpdateWithDocument edits a DRAFT purchase and optionally replaces its document.
	UpdateWithDocument(ctx context.Context, purchaseID int64, req *UpdatePurchaseRequest, file *UploadedFile) (*models.Purchase, error)

	Download(ctx context.Context, purchaseID int64) (*DownloadedDocument, error)

	// RemoveDocument detaches the document of a DRAFT purchase and deletes the blob.
	RemoveDocument(ctx context.Context, purchaseID int64) (*models.Purchase, error)
}

// UploadedFile is a validated receipt received from a client.
type UploadedFile struct {
	Name        string
	ContentType string
	Content     []byte
}

func (f *UploadedFile) Size() int64 {
	return int64(len(f.Content))
}

// DocumentResult describes a stored receipt.
type DocumentResult struct {
	PurchaseID int64     `json:"purchaseId"`
	FileName   string    `json:"fileName"`
	MimeType   string    `json:"mimeType"`
	FileSize   int64     `json:"fileSize"`
	OpenKMPath string    `json:"openkmPath"`
	UploadDate time.Time `json:"uploadDate"`
	Message    string    `json:"message"`
}

// DownloadedDocument is a receipt blob ready to stream.
type DownloadedDocument struct {
	FileName    string
	ContentType string
	Content     []byte
}
