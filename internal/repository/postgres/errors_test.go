package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"datum/internal/domain"
	"datum/internal/domain/models"
)

func uniqueViolation(constraint string) error {
	return fmt.Errorf("create user: %w", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraint})
}

func TestPgErrorClassification(t *testing.T) {
	assert.True(t, IsPgDuplicateError(uniqueViolation("dev_users_nickname_key")))
	assert.True(t, IsPgForeignKeyError(&pgconn.PgError{Code: pgForeignKeyViolation}))
	assert.True(t, IsPgCheckError(&pgconn.PgError{Code: pgCheckViolation}))
	assert.True(t, IsPgNoRowsError(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
	assert.False(t, IsPgDuplicateError(errors.New("connection reset")))
}

func TestIsPgUniqueOn(t *testing.T) {
	err := uniqueViolation("dev_users_nickname_key")

	assert.True(t, IsPgUniqueOn(err, "nickname"))
	assert.False(t, IsPgUniqueOn(err, "idp_subject"))
	assert.False(t, IsPgUniqueOn(&pgconn.PgError{Code: pgCheckViolation, ConstraintName: "dev_users_nickname_key"}, "nickname"))
	assert.False(t, IsPgUniqueOn(errors.New("boom"), "nickname"))
}

func TestUserUniqueError(t *testing.T) {
	user := &models.User{Nickname: "ana", IdpSubject: "sub-1"}

	tests := []struct {
		name       string
		constraint string
		want       error
		message    string
	}{
		{"nickname race", "users_nickname_key", domain.ErrValidation, `validation failed: nickname "ana" already exists`},
		{"subject already linked", "test_users_idp_subject_key", domain.ErrConflict, `subject "sub-1" is already linked to a user: already exists`},
		{"unknown constraint", "users_email_idx", domain.ErrConflict, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := userUniqueError(uniqueViolation(tt.constraint), user)
			assert.ErrorIs(t, err, tt.want)
			if tt.message != "" {
				assert.EqualError(t, err, tt.message)
			}
		})
	}
}
