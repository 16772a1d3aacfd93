package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"datum/internal/config"
	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/domain/repositories"
	"datum/internal/domain/services"
	"datum/internal/metrics"
)

const entityFolder = "folder"

// folderService implements the FolderService interface
type folderService struct {
	folderRepo   repositories.FolderRepository
	purchaseRepo repositories.PurchaseRepository
	txManager    repositories.TransactionManager
	store        services.DocumentStore
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewFolderService creates a new folder service
func NewFolderService(
	folderRepo repositories.FolderRepository,
	purchaseRepo repositories.PurchaseRepository,
	txManager repositories.TransactionManager,
	store services.DocumentStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) services.FolderService {
	return &folderService{
		folderRepo:   folderRepo,
		purchaseRepo: purchaseRepo,
		txManager:    txManager,
		store:        store,
		metrics:      m,
		logger:       logger,
	}
}

func validateFolderFields(name, description string, start, end *models.Date) error {
	err := validation.Errors{
		"folderName":  validation.Validate(strings.TrimSpace(name), validation.Required, validation.RuneLength(1, config.MaxFolderNameLength)),
		"description": validation.Validate(description, validation.RuneLength(0, config.MaxFolderDescriptionLength)),
	}.Filter()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return models.ValidateDateRange(start, end)
}

// CreateFolder creates a DRAFT folder for its owner
func (s *folderService) CreateFolder(ctx context.Context, req *services.CreateFolderRequest) (*models.Folder, error) {
	if req.OwnerUserID == 0 {
		return nil, domain.Validationf("owner user id is required")
	}
	if err := validateFolderFields(req.FolderName, req.Description, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	folder := &models.Folder{
		OwnerUserID: req.OwnerUserID,
		FolderName:  strings.TrimSpace(req.FolderName),
		Description: strings.TrimSpace(req.Description),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      models.StatusDraft,
	}
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, err
	}

	s.logger.Info("folder created",
		"id", folder.ID,
		"owner_user_id", folder.OwnerUserID,
		"name", folder.FolderName,
	)
	return folder, nil
}

// GetFolder retrieves a folder by ID
func (s *folderService) GetFolder(ctx context.Context, id int64) (*models.Folder, error) {
	return s.folderRepo.GetByID(ctx, id)
}

// ListFolders retrieves folders by owner and/or status
func (s *folderService) ListFolders(ctx context.Context, filter repositories.FolderFilter) ([]models.Folder, error) {
	return s.folderRepo.List(ctx, filter)
}

// UpdateFolder replaces the editable fields of a DRAFT folder
func (s *folderService) UpdateFolder(ctx context.Context, id int64, req *services.UpdateFolderRequest) (*models.Folder, error) {
	if err := validateFolderFields(req.FolderName, req.Description, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	var folder *models.Folder
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		f, err := s.folderRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !f.CanEdit() {
			return domain.InvalidStatef("folder %d is %s; only DRAFT folders can be edited", id, f.Status)
		}

		f.FolderName = strings.TrimSpace(req.FolderName)
		f.Description = strings.TrimSpace(req.Description)
		f.StartDate = req.StartDate
		f.EndDate = req.EndDate
		if err := s.folderRepo.Update(txCtx, f); err != nil {
			return err
		}
		folder = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder updated", "id", id)
	return folder, nil
}

// DeleteFolder deletes a DRAFT folder together with its purchases. Their
// documents are removed from the DMS after the transaction commits.
func (s *folderService) DeleteFolder(ctx context.Context, id int64) error {
	var paths []string
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		f, err := s.folderRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !f.CanEdit() {
			return domain.InvalidStatef("folder %d is %s; only DRAFT folders can be deleted", id, f.Status)
		}

		children, err := s.purchaseRepo.List(txCtx, repositories.PurchaseFilter{FolderID: &id})
		if err != nil {
			return err
		}
		for _, p := range children {
			if !p.CanDelete() {
				return domain.InvalidStatef("folder %d holds purchase %d in %s; it cannot be deleted", id, p.ID, p.Status)
			}
		}

		paths, err = s.purchaseRepo.DeleteByFolder(txCtx, id)
		if err != nil {
			return err
		}
		return s.folderRepo.Delete(txCtx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("folder deleted", "id", id, "documents", len(paths))
	for _, path := range paths {
		if err := s.store.Delete(ctx, path); err != nil {
			s.metrics.ObserveOrphanedDocument()
			s.logger.Warn("orphaned document left in DMS", "folder_id", id, "path", path, "error", err)
		}
	}
	return nil
}

// SubmitFolder moves every DRAFT purchase of the folder to UNDER_REVIEW and,
// if at least one moved, the folder too.
func (s *folderService) SubmitFolder(ctx context.Context, id int64) (*models.Folder, int, error) {
	var (
		folder    *models.Folder
		submitted int
	)
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		f, err := s.folderRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !f.CanSubmit() {
			return domain.InvalidStatef("folder %d cannot be submitted from %s", id, f.Status)
		}

		draft := models.StatusDraft
		drafts, err := s.purchaseRepo.List(txCtx, repositories.PurchaseFilter{FolderID: &id, Status: &draft})
		if err != nil {
			return err
		}

		count := 0
		for _, d := range drafts {
			p, err := s.purchaseRepo.GetByIDForUpdate(txCtx, d.ID)
			if err != nil {
				return err
			}
			if p.Submit() != nil {
				// changed since listing
				continue
			}
			if err := s.purchaseRepo.Update(txCtx, p); err != nil {
				return err
			}
			count++
		}
		if count == 0 {
			return domain.InvalidStatef("folder %d has no draft purchases to submit", id)
		}

		if err := f.Submit(); err != nil {
			return err
		}
		if err := s.folderRepo.Update(txCtx, f); err != nil {
			return err
		}
		folder, submitted = f, count
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	s.metrics.ObserveTransition(entityFolder, models.StatusUnderReview)
	for i := 0; i < submitted; i++ {
		s.metrics.ObserveTransition(entityPurchase, models.StatusUnderReview)
	}
	s.logger.Info("folder submitted for review", "id", id, "purchases", submitted)
	return folder, submitted, nil
}

// RejectFolder rejects an UNDER_REVIEW folder without touching its purchases
func (s *folderService) RejectFolder(ctx context.Context, id, reviewerID int64, notes string) (*models.Folder, error) {
	if err := validation.Validate(notes, validation.RuneLength(0, config.MaxValidationNotesLength)); err != nil {
		return nil, fmt.Errorf("%w: notes: %v", domain.ErrValidation, err)
	}

	var folder *models.Folder
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		f, err := s.folderRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := f.RejectManually(reviewerID, notes, time.Now()); err != nil {
			return err
		}
		if err := s.folderRepo.Update(txCtx, f); err != nil {
			return err
		}
		folder = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition(entityFolder, models.StatusRejected)
	s.logger.Info("folder rejected", "id", id, "reviewer_id", reviewerID)
	return folder, nil
}

// Rederive recomputes the folder status from its purchases. Called inside the
// transaction of a purchase decision, it runs in a savepoint.
func (s *folderService) Rederive(ctx context.Context, id, reviewerID int64) (*models.Folder, error) {
	var (
		folder  *models.Folder
		changed bool
	)
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		f, err := s.folderRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		purchases, err := s.purchaseRepo.List(txCtx, repositories.PurchaseFilter{FolderID: &id})
		if err != nil {
			return err
		}

		statuses := make([]models.ValidationStatus, len(purchases))
		for i, p := range purchases {
			statuses[i] = p.Status
		}

		folder = f
		next, ok := models.DeriveFolderStatus(f.Status, statuses)
		if !ok {
			return nil
		}
		if err := f.ApplyDerived(next, reviewerID, time.Now()); err != nil {
			return err
		}
		changed = true
		return s.folderRepo.Update(txCtx, f)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.ObserveTransition(entityFolder, folder.Status)
		s.logger.Info("folder status derived", "id", id, "status", folder.Status, "reviewer_id", reviewerID)
	}
	return folder, nil
}
