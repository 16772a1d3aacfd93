package service

import (
	"context"
	"fmt"
	"log/slog"

	"datum/internal/domain/repositories"
	"datum/internal/domain/services"
)

// DanglingDocument is a purchase whose recorded document path is missing
// from the document store.
type DanglingDocument struct {
	PurchaseID  int64  `json:"purchaseId"`
	OwnerUserID int64  `json:"ownerUserId"`
	FolderID    int64  `json:"folderId"`
	Path        string `json:"path"`
}

// DocumentAuditor compares the document pointers in the database with the
// document store. It only reads; repairing drift is left to an operator.
type DocumentAuditor struct {
	purchaseRepo repositories.PurchaseRepository
	store        services.DocumentStore
	logger       *slog.Logger
}

// NewDocumentAuditor creates a new auditor
func NewDocumentAuditor(purchaseRepo repositories.PurchaseRepository, store services.DocumentStore, logger *slog.Logger) *DocumentAuditor {
	return &DocumentAuditor{
		purchaseRepo: purchaseRepo,
		store:        store,
		logger:       logger,
	}
}

// FindDangling lists purchases whose document the store reports missing.
// A store failure aborts the scan.
func (a *DocumentAuditor) FindDangling(ctx context.Context) ([]DanglingDocument, error) {
	purchases, err := a.purchaseRepo.List(ctx, repositories.PurchaseFilter{WithDocument: true})
	if err != nil {
		return nil, fmt.Errorf("list purchases with documents: %w", err)
	}

	var dangling []DanglingDocument
	for _, p := range purchases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !p.HasDocument() {
			continue
		}

		exists, err := a.store.Exists(ctx, *p.ImgURL)
		if err != nil {
			return nil, fmt.Errorf("check document of purchase %d: %w", p.ID, err)
		}
		if !exists {
			dangling = append(dangling, DanglingDocument{
				PurchaseID:  p.ID,
				OwnerUserID: p.OwnerUserID,
				FolderID:    p.FolderID,
				Path:        *p.ImgURL,
			})
		}
	}

	a.logger.Info("document audit finished", "checked", len(purchases), "dangling", len(dangling))
	return dangling, nil
}
