package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/domain/repositories"
)

var purchaseColumns = []string{
	"id", "owner_user_id", "folder_id", "category_id", "payment_method_id", "cost_center_id",
	"total_amount", "description", "guest_name", "purchase_date", "img_url",
	"validation_status", "validated_at", "validated_by", "validation_notes", "created_at", "updated_at",
}

// PostgresPurchaseRepository implements the PurchaseRepository interface
type PostgresPurchaseRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewPurchaseRepository creates a new purchase repository
func NewPurchaseRepository(config *RepositoryConfig) repositories.PurchaseRepository {
	return &PostgresPurchaseRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanPurchase(row rowScanner) (*models.Purchase, error) {
	var (
		p                  models.Purchase
		description, guest *string
		purchaseDate       time.Time
	)
	err := row.Scan(
		&p.ID,
		&p.OwnerUserID,
		&p.FolderID,
		&p.CategoryID,
		&p.PaymentMethodID,
		&p.CostCenterID,
		&p.TotalAmount,
		&description,
		&guest,
		&purchaseDate,
		&p.ImgURL,
		&p.Status,
		&p.ValidatedAt,
		&p.ValidatedBy,
		&p.ValidationNotes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Description = stringValue(description)
	p.GuestName = stringValue(guest)
	p.PurchaseDate = models.DateOf(purchaseDate)
	return &p, nil
}

// Create inserts a purchase and fills in its id and timestamps
func (r *PostgresPurchaseRepository) Create(ctx context.Context, purchase *models.Purchase) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (owner_user_id, folder_id, category_id, payment_method_id, cost_center_id,
			total_amount, description, guest_name, purchase_date, img_url, validation_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, r.tables.Purchases)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		purchase.OwnerUserID,
		purchase.FolderID,
		purchase.CategoryID,
		purchase.PaymentMethodID,
		purchase.CostCenterID,
		purchase.TotalAmount,
		nullString(purchase.Description),
		nullString(purchase.GuestName),
		purchase.PurchaseDate.Time(),
		purchase.ImgURL,
		purchase.Status,
	).Scan(&purchase.ID, &purchase.CreatedAt, &purchase.UpdatedAt)

	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("folder %d or owner %d: %w", purchase.FolderID, purchase.OwnerUserID, domain.ErrNotFound)
		}
		if IsPgCheckError(err) {
			return fmt.Errorf("%w: purchase violates a table constraint", domain.ErrValidation)
		}
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

func (r *PostgresPurchaseRepository) get(ctx context.Context, id int64, lock bool) (*models.Purchase, error) {
	q := psql.Select(purchaseColumns...).From(r.tables.Purchases).Where(sq.Eq{"id": id})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build purchase query: %w", err)
	}

	executor := GetExecutor(ctx, r.pool)
	purchase, err := scanPurchase(executor.QueryRow(ctx, query, args...))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("purchase %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return purchase, nil
}

// GetByID retrieves a purchase by ID
func (r *PostgresPurchaseRepository) GetByID(ctx context.Context, id int64) (*models.Purchase, error) {
	return r.get(ctx, id, false)
}

// GetByIDForUpdate retrieves a purchase and locks its row
func (r *PostgresPurchaseRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Purchase, error) {
	return r.get(ctx, id, true)
}

// List retrieves purchases matching the filter, oldest first
func (r *PostgresPurchaseRepository) List(ctx context.Context, filter repositories.PurchaseFilter) ([]models.Purchase, error) {
	q := psql.Select(purchaseColumns...).From(r.tables.Purchases).OrderBy("id")
	if filter.OwnerUserID != nil {
		q = q.Where(sq.Eq{"owner_user_id": *filter.OwnerUserID})
	}
	if filter.FolderID != nil {
		q = q.Where(sq.Eq{"folder_id": *filter.FolderID})
	}
	if filter.Status != nil {
		q = q.Where(sq.Eq{"validation_status": string(*filter.Status)})
	}
	if filter.WithDocument {
		q = q.Where(sq.NotEq{"img_url": nil})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build purchase list: %w", err)
	}

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	purchases := []models.Purchase{}
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, *purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchases: %w", err)
	}
	return purchases, nil
}

// Update writes every mutable column of a purchase
func (r *PostgresPurchaseRepository) Update(ctx context.Context, purchase *models.Purchase) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET category_id = $1, payment_method_id = $2, cost_center_id = $3, total_amount = $4,
			description = $5, guest_name = $6, purchase_date = $7, img_url = $8,
			validation_status = $9, validated_at = $10, validated_by = $11, validation_notes = $12,
			updated_at = NOW()
		WHERE id = $13
		RETURNING updated_at
	`, r.tables.Purchases)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		purchase.CategoryID,
		purchase.PaymentMethodID,
		purchase.CostCenterID,
		purchase.TotalAmount,
		nullString(purchase.Description),
		nullString(purchase.GuestName),
		purchase.PurchaseDate.Time(),
		purchase.ImgURL,
		purchase.Status,
		purchase.ValidatedAt,
		purchase.ValidatedBy,
		purchase.ValidationNotes,
		purchase.ID,
	).Scan(&purchase.UpdatedAt)

	if err != nil {
		if IsPgNoRowsError(err) {
			return fmt.Errorf("purchase %d: %w", purchase.ID, domain.ErrNotFound)
		}
		if IsPgCheckError(err) {
			return fmt.Errorf("%w: purchase violates a table constraint", domain.ErrValidation)
		}
		return fmt.Errorf("update purchase: %w", err)
	}
	return nil
}

// Delete deletes a purchase
func (r *PostgresPurchaseRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Purchases)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete purchase: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("purchase %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteByFolder deletes every purchase of a folder and returns their document paths
func (r *PostgresPurchaseRepository) DeleteByFolder(ctx context.Context, folderID int64) ([]string, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE folder_id = $1 RETURNING img_url`, r.tables.Purchases)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, folderID)
	if err != nil {
		return nil, fmt.Errorf("delete folder purchases: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path *string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan deleted purchase: %w", err)
		}
		if path != nil && *path != "" {
			paths = append(paths, *path)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted purchases: %w", err)
	}
	return paths, nil
}
