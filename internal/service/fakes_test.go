package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"datum/internal/dms"
	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/domain/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore holds the rows shared by the fake repositories.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]models.User
	folders   map[int64]models.Folder
	purchases map[int64]models.Purchase
}

type memSnapshot struct {
	nextID    int64
	users     map[int64]models.User
	folders   map[int64]models.Folder
	purchases map[int64]models.Purchase
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[int64]models.User{},
		folders:   map[int64]models.Folder{},
		purchases: map[int64]models.Purchase{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{s.nextID, maps.Clone(s.users), maps.Clone(s.folders), maps.Clone(s.purchases)}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID, s.users, s.folders, s.purchases = snap.nextID, snap.users, snap.folders, snap.purchases
}

type txKey struct{}

// fakeTxManager serialises top-level transactions, standing in for row locks,
// and rolls back by restoring a snapshot. Nested calls behave as savepoints.
type fakeTxManager struct {
	store *memStore
	txMu  sync.Mutex
}

func (m *fakeTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if ctx.Value(txKey{}) == nil {
		m.txMu.Lock()
		defer m.txMu.Unlock()
		ctx = context.WithValue(ctx, txKey{}, true)
	}
	snap := m.store.snapshot()
	if err := fn(ctx); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// fakeUserRepo

type fakeUserRepo struct {
	store     *memStore
	createErr error
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.Nickname == user.Nickname {
			return fmt.Errorf("nickname %q already exists: %w", user.Nickname, domain.ErrValidation)
		}
	}
	user.ID = r.store.id()
	r.store.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) find(match func(models.User) bool) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) GetByNickname(_ context.Context, nickname string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Nickname == nickname })
}

func (r *fakeUserRepo) GetBySubject(_ context.Context, subject string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.IdpSubject == subject })
}

func (r *fakeUserRepo) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	_, err := r.GetByNickname(ctx, nickname)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *fakeUserRepo) List(_ context.Context) ([]models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	users := slices.Collect(maps.Values(r.store.users))
	slices.SortFunc(users, func(a, b models.User) int { return int(a.ID - b.ID) })
	return users, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.users[user.ID]; !ok {
		return domain.ErrNotFound
	}
	r.store.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.store.users, id)
	return nil
}

// fakeFolderRepo

type fakeFolderRepo struct {
	store *memStore
}

func (r *fakeFolderRepo) Create(_ context.Context, folder *models.Folder) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	folder.ID = r.store.id()
	r.store.folders[folder.ID] = *folder
	return nil
}

func (r *fakeFolderRepo) GetByID(_ context.Context, id int64) (*models.Folder, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f, ok := r.store.folders[id]
	if !ok {
		return nil, fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
	}
	return &f, nil
}

func (r *fakeFolderRepo) GetByIDForUpdate(ctx context.Context, id int64) (*models.Folder, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeFolderRepo) List(_ context.Context, filter repositories.FolderFilter) ([]models.Folder, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Folder
	for _, f := range r.store.folders {
		if filter.OwnerUserID != nil && f.OwnerUserID != *filter.OwnerUserID {
			continue
		}
		if filter.Status != nil && f.Status != *filter.Status {
			continue
		}
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b models.Folder) int { return int(a.ID - b.ID) })
	return out, nil
}

func (r *fakeFolderRepo) CountByOwner(ctx context.Context, ownerUserID int64) (int, error) {
	folders, err := r.List(ctx, repositories.FolderFilter{OwnerUserID: &ownerUserID})
	return len(folders), err
}

func (r *fakeFolderRepo) Update(_ context.Context, folder *models.Folder) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.folders[folder.ID]; !ok {
		return domain.ErrNotFound
	}
	r.store.folders[folder.ID] = *folder
	return nil
}

func (r *fakeFolderRepo) Delete(_ context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.folders, id)
	return nil
}

// fakePurchaseRepo

type fakePurchaseRepo struct {
	store *memStore
}

func (r *fakePurchaseRepo) Create(_ context.Context, p *models.Purchase) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p.ID = r.store.id()
	r.store.purchases[p.ID] = *p
	return nil
}

func (r *fakePurchaseRepo) GetByID(_ context.Context, id int64) (*models.Purchase, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.purchases[id]
	if !ok {
		return nil, fmt.Errorf("purchase %d: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

func (r *fakePurchaseRepo) GetByIDForUpdate(ctx context.Context, id int64) (*models.Purchase, error) {
	return r.GetByID(ctx, id)
}

func (r *fakePurchaseRepo) List(_ context.Context, filter repositories.PurchaseFilter) ([]models.Purchase, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Purchase
	for _, p := range r.store.purchases {
		if filter.OwnerUserID != nil && p.OwnerUserID != *filter.OwnerUserID {
			continue
		}
		if filter.FolderID != nil && p.FolderID != *filter.FolderID {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.WithDocument && !p.HasDocument() {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b models.Purchase) int { return int(a.ID - b.ID) })
	return out, nil
}

func (r *fakePurchaseRepo) Update(_ context.Context, p *models.Purchase) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.purchases[p.ID]; !ok {
		return domain.ErrNotFound
	}
	r.store.purchases[p.ID] = *p
	return nil
}

func (r *fakePurchaseRepo) Delete(_ context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.purchases, id)
	return nil
}

func (r *fakePurchaseRepo) DeleteByFolder(_ context.Context, folderID int64) ([]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var paths []string
	for id, p := range r.store.purchases {
		if p.FolderID != folderID {
			continue
		}
		if p.HasDocument() {
			paths = append(paths, *p.ImgURL)
		}
		delete(r.store.purchases, id)
	}
	slices.Sort(paths)
	return paths, nil
}

// fakeDocumentStore keeps blobs in memory under their canonical paths.
type fakeDocumentStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	uploadErr error
	deleteErr error
	uploads   int
}

const fakeBasePath = "/okm:root/datum/employee/purchase"

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{blobs: map[string][]byte{}}
}

func (s *fakeDocumentStore) Upload(_ context.Context, purchaseID int64, date models.Date, filename string, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.uploads++
	p := dms.CanonicalPath(fakeBasePath, purchaseID, date, filename)
	s.blobs[p] = slices.Clone(content)
	return p, nil
}

func (s *fakeDocumentStore) Download(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[path]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", path, domain.ErrNotFound)
	}
	return b, nil
}

func (s *fakeDocumentStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.blobs, path)
	return nil
}

func (s *fakeDocumentStore) Replace(ctx context.Context, oldPath string, purchaseID int64, date models.Date, filename string, content []byte) (string, error) {
	_ = s.Delete(ctx, oldPath)
	return s.Upload(ctx, purchaseID, date, filename, content)
}

func (s *fakeDocumentStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[path]
	return ok, nil
}

func (s *fakeDocumentStore) has(path string) bool {
	ok, _ := s.Exists(context.Background(), path)
	return ok
}

// fakeIdentityProvider records admin API calls.
type fakeIdentityProvider struct {
	mu        sync.Mutex
	users     map[string]*models.IdpUser
	roles     map[string][]string
	passwords map[string]string
	next      int

	tokenErr  error
	createErr error
	roleErr   error
	updateErr error
	tokens    int
}

func newFakeIdentityProvider() *fakeIdentityProvider {
	return &fakeIdentityProvider{
		users:     map[string]*models.IdpUser{},
		roles:     map[string][]string{},
		passwords: map[string]string{},
	}
}

func (f *fakeIdentityProvider) AdminToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	f.tokens++
	return "admin-token", nil
}

func (f *fakeIdentityProvider) CreateUser(_ context.Context, _ string, user *models.IdpUser) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.next++
	subject := fmt.Sprintf("subject-%d", f.next)
	stored := *user
	stored.ID = subject
	for _, c := range user.Credentials {
		f.passwords[subject] = c.Value
	}
	stored.Credentials = nil
	f.users[subject] = &stored
	return subject, nil
}

func (f *fakeIdentityProvider) GetUser(_ context.Context, _, subject string) (*models.IdpUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[subject]
	if !ok {
		return nil, fmt.Errorf("idp user %s: %w", subject, domain.ErrNotFound)
	}
	cp := *u
	cp.Attributes = maps.Clone(u.Attributes)
	cp.RequiredActions = slices.Clone(u.RequiredActions)
	return &cp, nil
}

func (f *fakeIdentityProvider) UpdateUser(_ context.Context, _, subject string, user *models.IdpUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.users[subject]; !ok {
		return domain.ErrNotFound
	}
	cp := *user
	f.users[subject] = &cp
	return nil
}

func (f *fakeIdentityProvider) SetEnabled(_ context.Context, _, subject string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[subject]
	if !ok {
		return domain.ErrNotFound
	}
	u.Enabled = &enabled
	return nil
}

func (f *fakeIdentityProvider) GetRealmRole(_ context.Context, _, name string) (*models.IdpRole, error) {
	if f.roleErr != nil {
		return nil, f.roleErr
	}
	return &models.IdpRole{ID: "role-" + name, Name: name}, nil
}

func (f *fakeIdentityProvider) AssignRealmRoles(_ context.Context, _, subject string, roles []models.IdpRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range roles {
		f.roles[subject] = append(f.roles[subject], r.Name)
	}
	return nil
}

func (f *fakeIdentityProvider) ResetPassword(_ context.Context, _, subject, password string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[subject]; !ok {
		return domain.ErrNotFound
	}
	f.passwords[subject] = password
	return nil
}
