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

var folderColumns = []string{
	"id", "owner_user_id", "folder_name", "description", "start_date", "end_date",
	"validation_status", "validated_at", "validated_by", "validation_notes", "created_at", "updated_at",
}

// psql builds PostgreSQL-flavoured ($1, $2, ...) statements
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *RepositoryConfig) repositories.FolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanFolder(row rowScanner) (*models.Folder, error) {
	var (
		f           models.Folder
		description *string
		start, end  *time.Time
	)
	err := row.Scan(
		&f.ID,
		&f.OwnerUserID,
		&f.FolderName,
		&description,
		&start,
		&end,
		&f.Status,
		&f.ValidatedAt,
		&f.ValidatedBy,
		&f.ValidationNotes,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.Description = stringValue(description)
	f.StartDate = dateFromTime(start)
	f.EndDate = dateFromTime(end)
	return &f, nil
}

// Create inserts a folder and fills in its id and timestamps
func (r *PostgresFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (owner_user_id, folder_name, description, start_date, end_date, validation_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		folder.OwnerUserID,
		folder.FolderName,
		nullString(folder.Description),
		dateArg(folder.StartDate),
		dateArg(folder.EndDate),
		folder.Status,
	).Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)

	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("owner %d: %w", folder.OwnerUserID, domain.ErrNotFound)
		}
		if IsPgCheckError(err) {
			return fmt.Errorf("%w: folder violates a table constraint", domain.ErrValidation)
		}
		return fmt.Errorf("create folder: %w", err)
	}
	return nil
}

func (r *PostgresFolderRepository) get(ctx context.Context, id int64, lock bool) (*models.Folder, error) {
	q := psql.Select(folderColumns...).From(r.tables.Folders).Where(sq.Eq{"id": id})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build folder query: %w", err)
	}

	executor := GetExecutor(ctx, r.pool)
	folder, err := scanFolder(executor.QueryRow(ctx, query, args...))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return folder, nil
}

// GetByID retrieves a folder by ID
func (r *PostgresFolderRepository) GetByID(ctx context.Context, id int64) (*models.Folder, error) {
	return r.get(ctx, id, false)
}

// GetByIDForUpdate retrieves a folder and locks its row
func (r *PostgresFolderRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Folder, error) {
	return r.get(ctx, id, true)
}

// List retrieves folders matching the filter, newest first
func (r *PostgresFolderRepository) List(ctx context.Context, filter repositories.FolderFilter) ([]models.Folder, error) {
	q := psql.Select(folderColumns...).From(r.tables.Folders).OrderBy("id DESC")
	if filter.OwnerUserID != nil {
		q = q.Where(sq.Eq{"owner_user_id": *filter.OwnerUserID})
	}
	if filter.Status != nil {
		q = q.Where(sq.Eq{"validation_status": string(*filter.Status)})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build folder list: %w", err)
	}

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, *folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return folders, nil
}

// CountByOwner counts the folders owned by a user
func (r *PostgresFolderRepository) CountByOwner(ctx context.Context, ownerUserID int64) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From(r.tables.Folders).
		Where(sq.Eq{"owner_user_id": ownerUserID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build folder count: %w", err)
	}

	var count int
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count folders: %w", err)
	}
	return count, nil
}

// Update writes every mutable column of a folder
func (r *PostgresFolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET folder_name = $1, description = $2, start_date = $3, end_date = $4,
			validation_status = $5, validated_at = $6, validated_by = $7, validation_notes = $8,
			updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at
	`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		folder.FolderName,
		nullString(folder.Description),
		dateArg(folder.StartDate),
		dateArg(folder.EndDate),
		folder.Status,
		folder.ValidatedAt,
		folder.ValidatedBy,
		folder.ValidationNotes,
		folder.ID,
	).Scan(&folder.UpdatedAt)

	if err != nil {
		if IsPgNoRowsError(err) {
			return fmt.Errorf("folder %d: %w", folder.ID, domain.ErrNotFound)
		}
		if IsPgCheckError(err) {
			return fmt.Errorf("%w: folder violates a table constraint", domain.ErrValidation)
		}
		return fmt.Errorf("update folder: %w", err)
	}
	return nil
}

// Delete deletes a folder; its purchases must already be gone
func (r *PostgresFolderRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		if IsPgForeignKeyError(err) {
			return domain.InvalidStatef("folder %d still has purchases", id)
		}
		return fmt.Errorf("delete folder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
