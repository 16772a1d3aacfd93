package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const statusCheck = "CHECK (validation_status IN ('DRAFT', 'UNDER_REVIEW', 'VALIDATED', 'REJECTED'))"

// SchemaStatements returns the idempotent DDL for the given tables, in dependency order.
func SchemaStatements(t *TableNames) []string {
	return []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				first_name VARCHAR(50) NOT NULL,
				last_name VARCHAR(50) NOT NULL,
				nickname VARCHAR(50) NOT NULL UNIQUE CHECK (nickname <> ''),
				email VARCHAR(254) NOT NULL,
				idp_subject VARCHAR(64) NOT NULL UNIQUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, t.Users),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				owner_user_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE RESTRICT,
				folder_name VARCHAR(100) NOT NULL CHECK (folder_name <> ''),
				description VARCHAR(100),
				start_date DATE,
				end_date DATE,
				validation_status VARCHAR(20) NOT NULL DEFAULT 'DRAFT' %s,
				validated_at TIMESTAMPTZ,
				validated_by BIGINT,
				validation_notes VARCHAR(200),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CHECK (start_date IS NULL OR end_date IS NULL OR start_date <= end_date)
			)`, t.Folders, t.Users, statusCheck),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				owner_user_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE RESTRICT,
				folder_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE RESTRICT,
				category_id BIGINT NOT NULL,
				payment_method_id BIGINT NOT NULL,
				cost_center_id BIGINT,
				total_amount NUMERIC(12,2) NOT NULL CHECK (total_amount > 0),
				description VARCHAR(75),
				guest_name VARCHAR(100),
				purchase_date DATE NOT NULL,
				img_url VARCHAR(255),
				validation_status VARCHAR(20) NOT NULL DEFAULT 'DRAFT' %s,
				validated_at TIMESTAMPTZ,
				validated_by BIGINT,
				validation_notes VARCHAR(200),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, t.Purchases, t.Users, t.Folders, statusCheck),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_owner ON %s(owner_user_id)`, t.Folders, t.Folders),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_status ON %s(validation_status)`, t.Folders, t.Folders),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_owner ON %s(owner_user_id)`, t.Purchases, t.Purchases),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_folder ON %s(folder_id)`, t.Purchases, t.Purchases),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_img_url ON %s(img_url) WHERE img_url IS NOT NULL`, t.Purchases, t.Purchases),
	}
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, t *TableNames) error {
	for _, stmt := range SchemaStatements(t) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// DropSchema drops the tables in reverse dependency order.
func DropSchema(ctx context.Context, pool *pgxpool.Pool, t *TableNames) error {
	for _, table := range []string{t.Purchases, t.Folders, t.Users} {
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}
