package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"datum/internal/domain/models"
	"datum/internal/domain/services"
	"datum/internal/metrics"
)

// testEnv wires the services over in-memory fakes.
type testEnv struct {
	store     *memStore
	users     *fakeUserRepo
	folderDB  *fakeFolderRepo
	purchDB   *fakePurchaseRepo
	docs      *fakeDocumentStore
	idp       *fakeIdentityProvider
	metrics   *metrics.Metrics
	folders   services.FolderService
	purchases services.PurchaseService
	documents services.DocumentService
	userSvc   *userService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	env := &testEnv{
		store:    store,
		users:    &fakeUserRepo{store: store},
		folderDB: &fakeFolderRepo{store: store},
		purchDB:  &fakePurchaseRepo{store: store},
		docs:     newFakeDocumentStore(),
		idp:      newFakeIdentityProvider(),
		metrics:  metrics.New(),
	}
	tx := &fakeTxManager{store: store}
	logger := discardLogger()

	env.folders = NewFolderService(env.folderDB, env.purchDB, tx, env.docs, env.metrics, logger)
	env.purchases = NewPurchaseService(env.purchDB, env.folderDB, tx, env.folders, env.docs, env.metrics, logger)
	env.documents = NewDocumentService(env.purchases, env.docs, env.metrics, logger)
	env.userSvc = NewUserService(env.users, env.folderDB, env.idp, logger).(*userService)
	env.userSvc.now = func() time.Time { return time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC) }
	return env
}

func (e *testEnv) user(t *testing.T, nickname string) *models.User {
	t.Helper()
	u := &models.User{FirstName: "Ana", LastName: "Lopez", Nickname: nickname, Email: nickname + "@example.com", IdpSubject: "sub-" + nickname}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) folder(t *testing.T, ownerID int64) *models.Folder {
	t.Helper()
	f, err := e.folders.CreateFolder(context.Background(), &services.CreateFolderRequest{
		OwnerUserID: ownerID,
		FolderName:  "Trip to Lima",
	})
	require.NoError(t, err)
	return f
}

func (e *testEnv) purchase(t *testing.T, ownerID, folderID int64, amount string) *models.Purchase {
	t.Helper()
	p, err := e.purchases.CreatePurchase(context.Background(), purchaseRequest(ownerID, folderID, amount))
	require.NoError(t, err)
	return p
}

func purchaseRequest(ownerID, folderID int64, amount string) *services.CreatePurchaseRequest {
	return &services.CreatePurchaseRequest{
		OwnerUserID:     ownerID,
		FolderID:        folderID,
		CategoryID:      1,
		PaymentMethodID: 2,
		TotalAmount:     decimal.RequireFromString(amount),
		Description:     "Taxi",
		PurchaseDate:    models.NewDate(2025, time.March, 14),
	}
}

// submitted builds a folder under review holding n purchases.
func (e *testEnv) submitted(t *testing.T, ownerID int64, n int) (*models.Folder, []*models.Purchase) {
	t.Helper()
	f := e.folder(t, ownerID)
	var ps []*models.Purchase
	for i := 0; i < n; i++ {
		ps = append(ps, e.purchase(t, ownerID, f.ID, "10.00"))
	}
	f, count, err := e.folders.SubmitFolder(context.Background(), f.ID)
	require.NoError(t, err)
	require.Equal(t, n, count)
	return f, ps
}

func (e *testEnv) folderStatus(t *testing.T, id int64) models.ValidationStatus {
	t.Helper()
	f, err := e.folderDB.GetByID(context.Background(), id)
	require.NoError(t, err)
	return f.Status
}

func (e *testEnv) purchaseStatus(t *testing.T, id int64) models.ValidationStatus {
	t.Helper()
	p, err := e.purchDB.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Status
}

func strPtr(s string) *string { return &s }
