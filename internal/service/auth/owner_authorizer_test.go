package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/domain/repositories"
)

type folderLookup struct {
	repositories.FolderRepository
	owners map[int64]int64
}

func (f folderLookup) GetByID(_ context.Context, id int64) (*models.Folder, error) {
	owner, ok := f.owners[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &models.Folder{ID: id, OwnerUserID: owner}, nil
}

type purchaseLookup struct {
	repositories.PurchaseRepository
	owners map[int64]int64
}

func (p purchaseLookup) GetByID(_ context.Context, id int64) (*models.Purchase, error) {
	owner, ok := p.owners[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &models.Purchase{ID: id, OwnerUserID: owner}, nil
}

func TestOwnerBasedAuthorizer(t *testing.T) {
	authorizer := NewOwnerBasedAuthorizer(
		folderLookup{owners: map[int64]int64{10: 1}},
		purchaseLookup{owners: map[int64]int64{20: 1}},
	)
	ctx := context.Background()

	owner := &models.Principal{UserID: 1, Roles: []string{models.RoleEmployee}}
	stranger := &models.Principal{UserID: 2, Roles: []string{models.RoleEmployee}}
	finance := &models.Principal{UserID: 3, Roles: []string{models.RoleFinance}}
	unlinkedAdmin := &models.Principal{Roles: []string{models.RoleAdministrator}}

	tests := []struct {
		name    string
		check   func() error
		wantErr error
	}{
		{"owner acts as self", func() error { return authorizer.CanActAs(owner, 1) }, nil},
		{"acting as another user", func() error { return authorizer.CanActAs(stranger, 1) }, domain.ErrForbidden},
		{"unlinked caller acting as user", func() error { return authorizer.CanActAs(unlinkedAdmin, 0) }, domain.ErrForbidden},
		{"anonymous", func() error { return authorizer.CanActAs(nil, 1) }, domain.ErrUnauthorized},

		{"owner modifies folder", func() error { return authorizer.CanModifyFolder(ctx, owner, 10) }, nil},
		{"stranger modifies folder", func() error { return authorizer.CanModifyFolder(ctx, stranger, 10) }, domain.ErrForbidden},
		{"reviewer modifies folder", func() error { return authorizer.CanModifyFolder(ctx, finance, 10) }, domain.ErrForbidden},
		{"reviewer views folder", func() error { return authorizer.CanViewFolder(ctx, finance, 10) }, nil},
		{"stranger views folder", func() error { return authorizer.CanViewFolder(ctx, stranger, 10) }, domain.ErrForbidden},
		{"missing folder", func() error { return authorizer.CanViewFolder(ctx, owner, 99) }, domain.ErrNotFound},

		{"owner modifies purchase", func() error { return authorizer.CanModifyPurchase(ctx, owner, 20) }, nil},
		{"admin modifies purchase", func() error { return authorizer.CanModifyPurchase(ctx, unlinkedAdmin, 20) }, domain.ErrForbidden},
		{"admin views purchase", func() error { return authorizer.CanViewPurchase(ctx, unlinkedAdmin, 20) }, nil},
		{"stranger views purchase", func() error { return authorizer.CanViewPurchase(ctx, stranger, 20) }, domain.ErrForbidden},
		{"missing purchase", func() error { return authorizer.CanModifyPurchase(ctx, owner, 99) }, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}
