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

const entityPurchase = "purchase"

// folderDeriver is the part of the folder engine a purchase decision triggers.
type folderDeriver interface {
	Rederive(ctx context.Context, id, reviewerID int64) (*models.Folder, error)
}

// purchaseService implements the PurchaseService interface
type purchaseService struct {
	purchaseRepo repositories.PurchaseRepository
	folderRepo   repositories.FolderRepository
	txManager    repositories.TransactionManager
	folders      folderDeriver
	store        services.DocumentStore
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(
	purchaseRepo repositories.PurchaseRepository,
	folderRepo repositories.FolderRepository,
	txManager repositories.TransactionManager,
	folders services.FolderService,
	store services.DocumentStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) services.PurchaseService {
	return &purchaseService{
		purchaseRepo: purchaseRepo,
		folderRepo:   folderRepo,
		txManager:    txManager,
		folders:      folders,
		store:        store,
		metrics:      m,
		logger:       logger,
	}
}

var requiredDate = validation.By(func(value any) error {
	if d, ok := value.(models.Date); ok && d.IsZero() {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
})

func validateText(description, guestName string) error {
	return validation.Errors{
		"description": validation.Validate(description, validation.RuneLength(0, config.MaxPurchaseDescriptionLength)),
		"guestName":   validation.Validate(guestName, validation.RuneLength(0, config.MaxGuestNameLength)),
	}.Filter()
}

func validateNotes(notes *string) error {
	if notes == nil {
		return nil
	}
	if err := validation.Validate(*notes, validation.RuneLength(0, config.MaxValidationNotesLength)); err != nil {
		return fmt.Errorf("%w: notes: %v", domain.ErrValidation, err)
	}
	return nil
}

// CreatePurchase files a DRAFT purchase into one of the owner's open folders
func (s *purchaseService) CreatePurchase(ctx context.Context, req *services.CreatePurchaseRequest) (*models.Purchase, error) {
	err := validation.ValidateStruct(req,
		validation.Field(&req.OwnerUserID, validation.Required),
		validation.Field(&req.FolderID, validation.Required),
		validation.Field(&req.CategoryID, validation.Required),
		validation.Field(&req.PaymentMethodID, validation.Required),
		validation.Field(&req.PurchaseDate, requiredDate),
	)
	if err == nil {
		err = validateText(req.Description, req.GuestName)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := models.ValidateAmount(req.TotalAmount); err != nil {
		return nil, err
	}

	purchase := &models.Purchase{
		OwnerUserID:     req.OwnerUserID,
		FolderID:        req.FolderID,
		CategoryID:      req.CategoryID,
		PaymentMethodID: req.PaymentMethodID,
		CostCenterID:    req.CostCenterID,
		TotalAmount:     req.TotalAmount,
		Description:     strings.TrimSpace(req.Description),
		GuestName:       strings.TrimSpace(req.GuestName),
		PurchaseDate:    req.PurchaseDate,
		Status:          models.StatusDraft,
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		// lock so a concurrent submit cannot close the folder underneath us
		folder, err := s.folderRepo.GetByIDForUpdate(txCtx, req.FolderID)
		if err != nil {
			return err
		}
		if folder.OwnerUserID != req.OwnerUserID {
			return domain.Validationf("folder %d belongs to another user", folder.ID)
		}
		if !folder.AcceptsPurchases() {
			return domain.InvalidStatef("folder %d is %s and does not accept purchases", folder.ID, folder.Status)
		}
		return s.purchaseRepo.Create(txCtx, purchase)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase created",
		"id", purchase.ID,
		"folder_id", purchase.FolderID,
		"owner_user_id", purchase.OwnerUserID,
		"amount", purchase.TotalAmount.StringFixed(2),
	)
	return purchase, nil
}

// GetPurchase retrieves a purchase by ID
func (s *purchaseService) GetPurchase(ctx context.Context, id int64) (*models.Purchase, error) {
	return s.purchaseRepo.GetByID(ctx, id)
}

// ListPurchases retrieves purchases by owner, folder and/or status
func (s *purchaseService) ListPurchases(ctx context.Context, filter repositories.PurchaseFilter) ([]models.Purchase, error) {
	return s.purchaseRepo.List(ctx, filter)
}

// mutate loads the purchase under a row lock, applies fn and saves it.
func (s *purchaseService) mutate(ctx context.Context, id int64, fn func(txCtx context.Context, p *models.Purchase) error) (*models.Purchase, error) {
	var purchase *models.Purchase
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		p, err := s.purchaseRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := fn(txCtx, p); err != nil {
			return err
		}
		if err := s.purchaseRepo.Update(txCtx, p); err != nil {
			return err
		}
		purchase = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// UpdatePurchase edits the fields of a DRAFT purchase
func (s *purchaseService) UpdatePurchase(ctx context.Context, id int64, req *services.UpdatePurchaseRequest) (*models.Purchase, error) {
	if req.TotalAmount != nil {
		if err := models.ValidateAmount(*req.TotalAmount); err != nil {
			return nil, err
		}
	}
	if err := validateText(derefString(req.Description), derefString(req.GuestName)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if req.PurchaseDate != nil && req.PurchaseDate.IsZero() {
		return nil, domain.Validationf("purchaseDate: cannot be blank")
	}

	purchase, err := s.mutate(ctx, id, func(_ context.Context, p *models.Purchase) error {
		if !p.CanEdit() {
			return domain.InvalidStatef("purchase %d is %s; only DRAFT purchases can be edited", id, p.Status)
		}
		applyPurchasePatch(p, req)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase updated", "id", id)
	return purchase, nil
}

func applyPurchasePatch(p *models.Purchase, req *services.UpdatePurchaseRequest) {
	if req.CategoryID != nil {
		p.CategoryID = *req.CategoryID
	}
	if req.PaymentMethodID != nil {
		p.PaymentMethodID = *req.PaymentMethodID
	}
	if req.CostCenterID != nil {
		p.CostCenterID = req.CostCenterID
	}
	if req.TotalAmount != nil {
		p.TotalAmount = *req.TotalAmount
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.GuestName != nil {
		p.GuestName = strings.TrimSpace(*req.GuestName)
	}
	if req.PurchaseDate != nil {
		p.PurchaseDate = *req.PurchaseDate
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// DeletePurchase deletes a DRAFT or REJECTED purchase. The database delete is
// authoritative; a document the DMS fails to delete is logged and left behind.
func (s *purchaseService) DeletePurchase(ctx context.Context, id int64) error {
	var deleted *models.Purchase
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		p, err := s.purchaseRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !p.CanDelete() {
			return domain.InvalidStatef("purchase %d is %s; only DRAFT or REJECTED purchases can be deleted", id, p.Status)
		}
		deleted = p
		return s.purchaseRepo.Delete(txCtx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("purchase deleted", "id", id, "folder_id", deleted.FolderID)
	if deleted.HasDocument() {
		if err := s.store.Delete(ctx, *deleted.ImgURL); err != nil {
			s.metrics.ObserveOrphanedDocument()
			s.logger.Warn("orphaned document left in DMS", "purchase_id", id, "path", *deleted.ImgURL, "error", err)
		}
	}
	return nil
}

// AttachDocument points a DRAFT purchase at a DMS path. The caller removes any
// superseded blob first.
func (s *purchaseService) AttachDocument(ctx context.Context, id int64, path string) (*models.Purchase, error) {
	if strings.TrimSpace(path) == "" {
		return nil, domain.Validationf("document path is required")
	}
	purchase, err := s.mutate(ctx, id, func(_ context.Context, p *models.Purchase) error {
		return p.AttachDocument(path)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("document attached", "purchase_id", id, "path", path)
	return purchase, nil
}

// DetachDocument clears the DMS pointer of a DRAFT purchase
func (s *purchaseService) DetachDocument(ctx context.Context, id int64) (*models.Purchase, error) {
	purchase, err := s.mutate(ctx, id, func(_ context.Context, p *models.Purchase) error {
		return p.DetachDocument()
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("document detached", "purchase_id", id)
	return purchase, nil
}

// SubmitPurchase moves a single DRAFT purchase to UNDER_REVIEW
func (s *purchaseService) SubmitPurchase(ctx context.Context, id int64) (*models.Purchase, error) {
	purchase, err := s.mutate(ctx, id, func(_ context.Context, p *models.Purchase) error {
		return p.Submit()
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(entityPurchase, purchase.Status)
	s.logger.Info("purchase submitted", "id", id)
	return purchase, nil
}

// ApprovePurchase validates an UNDER_REVIEW purchase and re-derives its folder
func (s *purchaseService) ApprovePurchase(ctx context.Context, id, reviewerID int64, notes *string) (*models.Purchase, error) {
	return s.decide(ctx, id, reviewerID, notes, (*models.Purchase).Approve)
}

// RejectPurchase rejects an UNDER_REVIEW purchase and re-derives its folder
func (s *purchaseService) RejectPurchase(ctx context.Context, id, reviewerID int64, notes *string) (*models.Purchase, error) {
	return s.decide(ctx, id, reviewerID, notes, (*models.Purchase).Reject)
}

type decision func(p *models.Purchase, reviewerID int64, notes *string, now time.Time) error

// decide applies a review decision under the purchase row lock, so of two
// racing decisions the later one sees the first outcome and fails. Folder
// re-derivation runs in a savepoint of the same transaction; its failure is
// logged and the decision still commits.
func (s *purchaseService) decide(ctx context.Context, id, reviewerID int64, notes *string, apply decision) (*models.Purchase, error) {
	if err := validateNotes(notes); err != nil {
		return nil, err
	}

	var purchase *models.Purchase
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		// lock order: purchase, then folder
		p, err := s.purchaseRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := apply(p, reviewerID, notes, time.Now()); err != nil {
			return err
		}
		if err := s.purchaseRepo.Update(txCtx, p); err != nil {
			return err
		}
		purchase = p

		if _, err := s.folders.Rederive(txCtx, p.FolderID, reviewerID); err != nil {
			s.logger.Warn("folder re-derivation failed",
				"folder_id", p.FolderID,
				"purchase_id", id,
				"error", err,
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition(entityPurchase, purchase.Status)
	s.logger.Info("purchase reviewed",
		"id", id,
		"status", purchase.Status,
		"reviewer_id", reviewerID,
	)
	return purchase, nil
}
