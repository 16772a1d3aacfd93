package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/domain/repositories"
)

const userColumns = "id, first_name, last_name, nickname, email, idp_subject, created_at, updated_at"

// PostgresUserRepository implements the UserRepository interface
type PostgresUserRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewUserRepository creates a new user repository
func NewUserRepository(config *RepositoryConfig) repositories.UserRepository {
	return &PostgresUserRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// userUniqueError maps a unique violation on the users table. A taken
// nickname reads the same as the service-level pre-check.
func userUniqueError(err error, user *models.User) error {
	switch {
	case IsPgUniqueOn(err, "nickname"):
		return domain.Validationf("nickname %q already exists", user.Nickname)
	case IsPgUniqueOn(err, "idp_subject"):
		return fmt.Errorf("subject %q is already linked to a user: %w", user.IdpSubject, domain.ErrConflict)
	default:
		return fmt.Errorf("user %q violates a unique constraint: %w", user.Nickname, domain.ErrConflict)
	}
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Nickname, &u.Email, &u.IdpSubject, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a user and fills in its id and timestamps
func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (first_name, last_name, nickname, email, idp_subject)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, r.tables.Users)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.Nickname,
		user.Email,
		user.IdpSubject,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if IsPgDuplicateError(err) {
			return userUniqueError(err, user)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) getOne(ctx context.Context, where, label string, arg any) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, userColumns, r.tables.Users, where)

	executor := GetExecutor(ctx, r.pool)
	user, err := scanUser(executor.QueryRow(ctx, query, arg))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("user %s %v: %w", label, arg, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, "id", "id", id)
}

// GetByNickname retrieves a user by nickname
func (r *PostgresUserRepository) GetByNickname(ctx context.Context, nickname string) (*models.User, error) {
	return r.getOne(ctx, "nickname", "nickname", nickname)
}

// GetBySubject retrieves the user linked to an IdP subject
func (r *PostgresUserRepository) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	return r.getOne(ctx, "idp_subject", "subject", subject)
}

// ExistsByNickname checks whether a nickname is taken
func (r *PostgresUserRepository) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE nickname = $1)`, r.tables.Users)

	var exists bool
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, nickname).Scan(&exists); err != nil {
		return false, fmt.Errorf("check nickname: %w", err)
	}
	return exists, nil
}

// List retrieves all users ordered by id
func (r *PostgresUserRepository) List(ctx context.Context) ([]models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, userColumns, r.tables.Users)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// Update writes the profile fields of a user
func (r *PostgresUserRepository) Update(ctx context.Context, user *models.User) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET first_name = $1, last_name = $2, nickname = $3, email = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`, r.tables.Users)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.Nickname,
		user.Email,
		user.ID,
	).Scan(&user.UpdatedAt)

	if err != nil {
		if IsPgNoRowsError(err) {
			return fmt.Errorf("user %d: %w", user.ID, domain.ErrNotFound)
		}
		if IsPgDuplicateError(err) {
			return userUniqueError(err, user)
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Delete deletes a user
// Fails with ErrInvalidState while folders or purchases still reference it
func (r *PostgresUserRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Users)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		if IsPgForeignKeyError(err) {
			return domain.InvalidStatef("user %d still owns folders", id)
		}
		return fmt.Errorf("delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
