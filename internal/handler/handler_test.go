package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datum/internal/authz"
	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/domain/services"
	"datum/internal/httputil"
	"datum/internal/metrics"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// testAuthenticate trusts the X-Test-User header ("<userID>:<role>,<role>").
func testAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Test-User")
		if raw == "" {
			httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, roles, _ := strings.Cut(raw, ":")
		p := &models.Principal{Subject: "sub-" + id, Roles: strings.Split(roles, ",")}
		fmt.Sscan(id, &p.UserID)
		next.ServeHTTP(w, httputil.WithPrincipal(r, p))
	})
}

type okPinger struct{ err error }

func (p okPinger) Ping(context.Context) error { return p.err }

// stubAuthorizer admits callers acting on their own id and owners of ids in owned.
type stubAuthorizer struct {
	owned map[int64]int64 // resource id -> owner
}

func (a stubAuthorizer) owner(caller *models.Principal, id int64, reviewerOK bool) error {
	if caller == nil {
		return domain.ErrUnauthorized
	}
	owner, ok := a.owned[id]
	if !ok {
		return domain.ErrNotFound
	}
	if reviewerOK && caller.IsReviewer() {
		return nil
	}
	if owner != caller.UserID {
		return domain.ErrForbidden
	}
	return nil
}

func (a stubAuthorizer) CanActAs(caller *models.Principal, userID int64) error {
	if caller == nil {
		return domain.ErrUnauthorized
	}
	if caller.UserID != userID {
		return domain.ErrForbidden
	}
	return nil
}

func (a stubAuthorizer) CanModifyFolder(_ context.Context, c *models.Principal, id int64) error {
	return a.owner(c, id, false)
}

func (a stubAuthorizer) CanViewFolder(_ context.Context, c *models.Principal, id int64) error {
	return a.owner(c, id, true)
}

func (a stubAuthorizer) CanModifyPurchase(_ context.Context, c *models.Principal, id int64) error {
	return a.owner(c, id, false)
}

func (a stubAuthorizer) CanViewPurchase(_ context.Context, c *models.Principal, id int64) error {
	return a.owner(c, id, true)
}

type stubAccounts struct {
	services.AccountService
	loginErr error
}

func (s *stubAccounts) Login(_ context.Context, username, _ string) (*services.LoginResult, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &services.LoginResult{Success: true, AccessToken: "at", User: services.LoginUser{Username: username}}, nil
}

type stubDocuments struct {
	services.DocumentService
	created  *services.CreatePurchaseRequest
	updated  *services.UpdatePurchaseRequest
	file     *services.UploadedFile
	err      error
	download *services.DownloadedDocument
}

func (s *stubDocuments) UpdateWithDocument(_ context.Context, id int64, req *services.UpdatePurchaseRequest, file *services.UploadedFile) (*models.Purchase, error) {
	s.updated, s.file = req, file
	if s.err != nil {
		return nil, s.err
	}
	return &models.Purchase{ID: id, Status: models.StatusDraft}, nil
}

func (s *stubDocuments) CreateWithDocument(_ context.Context, req *services.CreatePurchaseRequest, file *services.UploadedFile) (*services.DocumentResult, error) {
	s.created, s.file = req, file
	if s.err != nil {
		return nil, s.err
	}
	return &services.DocumentResult{PurchaseID: 1, FileName: file.Name, Message: "Document uploaded successfully"}, nil
}

func (s *stubDocuments) UploadDocument(_ context.Context, id int64, file *services.UploadedFile) (*services.DocumentResult, error) {
	s.file = file
	if s.err != nil {
		return nil, s.err
	}
	return &services.DocumentResult{PurchaseID: id, FileName: file.Name}, nil
}

func (s *stubDocuments) Download(context.Context, int64) (*services.DownloadedDocument, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.download, nil
}

type stubPurchases struct {
	services.PurchaseService
	decided struct {
		id, reviewer int64
		notes        *string
	}
	err error
}

func (s *stubPurchases) ApprovePurchase(_ context.Context, id, reviewer int64, notes *string) (*models.Purchase, error) {
	s.decided.id, s.decided.reviewer, s.decided.notes = id, reviewer, notes
	if s.err != nil {
		return nil, s.err
	}
	return &models.Purchase{ID: id, Status: models.StatusValidated, ValidatedBy: &reviewer}, nil
}

func (s *stubPurchases) DeletePurchase(context.Context, int64) error {
	return s.err
}

type fixture struct {
	router    *Router
	accounts  *stubAccounts
	documents *stubDocuments
	purchases *stubPurchases
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	policy, err := authz.Load()
	require.NoError(t, err)

	f := &fixture{
		accounts:  &stubAccounts{},
		documents: &stubDocuments{},
		purchases: &stubPurchases{},
	}
	authorizer := stubAuthorizer{owned: map[int64]int64{7: 42, 8: 99}}
	m := metrics.New()

	f.router = NewRouter(policy, testAuthenticate, m)
	err = f.router.RegisterRoutes(&Handlers{
		Health:    NewHealthHandler(okPinger{}, discard),
		Metrics:   m.Handler(),
		Auth:      NewAuthHandler(f.accounts, discard),
		Users:     NewUserHandler(nil, discard),
		Folders:   NewFolderHandler(nil, f.purchases, authorizer, discard),
		Purchases: NewPurchaseHandler(f.purchases, f.documents, authorizer, discard),
		Documents: NewDocumentHandler(f.documents, f.purchases, authorizer, discard),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterRoutesCoversPolicy(t *testing.T) {
	newFixture(t)
}

func TestRouterReportsUnmatchedPolicy(t *testing.T) {
	policy, err := authz.Parse([]byte(`
routes:
  "GET /health":
    public: true
  "GET /orphan":
    roles: [administrator]
`))
	require.NoError(t, err)

	rt := NewRouter(policy, testAuthenticate, nil)
	rt.HandleFunc("GET /health", NewHealthHandler(okPinger{}, discard).Health)
	rt.HandleFunc("GET /unlisted", func(http.ResponseWriter, *http.Request) {})

	err = rt.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"GET /unlisted"`)
	assert.Contains(t, err.Error(), `"GET /orphan"`)
}

func TestRouteAccess(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		method     string
		path       string
		user       string
		wantStatus int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics is public", http.MethodGet, "/metrics", "", http.StatusOK},
		{"protected without token", http.MethodGet, "/api/users", "", http.StatusUnauthorized},
		{"employee cannot administer users", http.MethodGet, "/api/users", "42:employee", http.StatusForbidden},
		{"employee cannot review", http.MethodGet, "/api/folders/review", "42:employee", http.StatusForbidden},
		{"finance cannot create folders", http.MethodPost, "/api/users/42/folders", "42:finance", http.StatusForbidden},
		{"other user's folders", http.MethodGet, "/api/users/41/folders", "42:employee", http.StatusForbidden},
		{"other user's purchase", http.MethodGet, "/api/purchases/8", "42:employee", http.StatusForbidden},
		{"unknown purchase", http.MethodGet, "/api/purchases/9/document", "42:employee", http.StatusNotFound},
		{"malformed id", http.MethodGet, "/api/purchases/abc/document", "42:employee", http.StatusBadRequest},
		{"purchases are submitted through their folder", http.MethodPost, "/api/purchases/7/submit", "42:employee", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.user != "" {
				req.Header.Set("X-Test-User", tt.user)
			}
			rec := f.do(req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.Validationf("amount must be positive"), http.StatusBadRequest},
		{domain.InvalidStatef("purchase is VALIDATED"), http.StatusBadRequest},
		{fmt.Errorf("purchase 3: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{&domain.UpstreamError{Service: "openkm", Op: "upload"}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, errorStatus(tt.err))
		})
	}
}

func TestHandleErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handleError(rec, req, discard, &domain.UpstreamError{Service: "openkm", Op: "download", Detail: "secret path"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "upstream service failure", body["detail"])
	assert.Equal(t, "openkm", body["service"])
	assert.NotContains(t, rec.Body.String(), "secret path")
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"alopez","password":"pw"}`)))

		assert.Equal(t, http.StatusOK, rec.Code)
		var body services.LoginResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, "alopez", body.User.Username)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		f := newFixture(t)
		f.accounts.loginErr = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"alopez","password":"bad"}`)))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"success":false,"message":"Invalid username or password"}`, rec.Body.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

type part struct {
	name, value string
}

func multipartRequest(t *testing.T, method, path string, fields []part, fileName, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		require.NoError(t, mw.WriteField(f.name, f.value))
	}
	if fileName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
		h.Set("Content-Type", contentType)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func purchaseFields(userID string) []part {
	return []part{
		{fieldUserID, userID},
		{fieldFolderID, "3"},
		{fieldCategoryID, "1"},
		{fieldPaymentMethod, "2"},
		{fieldTotalAmount, "12.50"},
		{fieldDescription, "Taxi"},
		{fieldPurchaseDate, "2025-10-14"},
	}
}

func TestCreateWithDocument(t *testing.T) {
	t.Run("parses the form", func(t *testing.T) {
		f := newFixture(t)
		req := multipartRequest(t, http.MethodPost, "/api/purchases/document", purchaseFields("42"), "r.jpg", "image/jpeg", []byte("jpeg"))
		req.Header.Set("X-Test-User", "42:employee")
		rec := f.do(req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.NotNil(t, f.documents.created)
		assert.Equal(t, int64(42), f.documents.created.OwnerUserID)
		assert.Equal(t, int64(3), f.documents.created.FolderID)
		assert.True(t, decimal.RequireFromString("12.50").Equal(f.documents.created.TotalAmount))
		assert.Equal(t, "2025-10-14", f.documents.created.PurchaseDate.String())
		assert.Nil(t, f.documents.created.CostCenterID)
		assert.Equal(t, "r.jpg", f.documents.file.Name)
		assert.Equal(t, []byte("jpeg"), f.documents.file.Content)
	})

	t.Run("malformed amount", func(t *testing.T) {
		f := newFixture(t)
		fields := purchaseFields("42")
		fields[4].value = "twelve"
		req := multipartRequest(t, http.MethodPost, "/api/purchases/document", fields, "r.jpg", "image/jpeg", []byte("jpeg"))
		req.Header.Set("X-Test-User", "42:employee")
		rec := f.do(req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Nil(t, f.documents.created)
	})

	t.Run("missing owner or folder", func(t *testing.T) {
		for _, missing := range []int{0, 1} {
			f := newFixture(t)
			fields := purchaseFields("42")
			fields = append(fields[:missing:missing], fields[missing+1:]...)
			req := multipartRequest(t, http.MethodPost, "/api/purchases/document", fields, "r.jpg", "image/jpeg", []byte("jpeg"))
			req.Header.Set("X-Test-User", "42:employee")
			rec := f.do(req)

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Nil(t, f.documents.created)
		}
	})

	t.Run("on behalf of another user", func(t *testing.T) {
		f := newFixture(t)
		req := multipartRequest(t, http.MethodPost, "/api/purchases/document", purchaseFields("41"), "r.jpg", "image/jpeg", []byte("jpeg"))
		req.Header.Set("X-Test-User", "42:employee")
		rec := f.do(req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Nil(t, f.documents.created)
	})

	t.Run("document store failure", func(t *testing.T) {
		f := newFixture(t)
		f.documents.err = &domain.UpstreamError{Service: "openkm", Op: "upload document"}
		req := multipartRequest(t, http.MethodPost, "/api/purchases/document", purchaseFields("42"), "r.jpg", "image/jpeg", []byte("jpeg"))
		req.Header.Set("X-Test-User", "42:employee")
		rec := f.do(req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestUploadDocumentOnSubmittedPurchaseIsForbidden(t *testing.T) {
	f := newFixture(t)
	f.documents.err = domain.InvalidStatef("purchase 7 is UNDER_REVIEW")
	req := multipartRequest(t, http.MethodPost, "/api/purchases/7/document", nil, "r.pdf", "application/pdf", []byte("%PDF"))
	req.Header.Set("X-Test-User", "42:employee")
	rec := f.do(req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdatePurchaseRoute(t *testing.T) {
	t.Run("multipart edit without file", func(t *testing.T) {
		f := newFixture(t)
		req := multipartRequest(t, http.MethodPut, "/api/purchases/7/update", []part{{fieldDescription, "Train"}}, "", "", nil)
		req.Header.Set("X-Test-User", "42:employee")
		rec := f.do(req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NotNil(t, f.documents.updated)
		assert.Equal(t, "Train", *f.documents.updated.Description)
		assert.Nil(t, f.documents.updated.TotalAmount)
		assert.Nil(t, f.documents.file)
	})

	t.Run("not the owner", func(t *testing.T) {
		f := newFixture(t)
		req := multipartRequest(t, http.MethodPut, "/api/purchases/8/update", []part{{fieldDescription, "Train"}}, "", "", nil)
		req.Header.Set("X-Test-User", "42:employee")
		rec := f.do(req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Nil(t, f.documents.updated)
	})
}

func TestDeletePurchaseWithDocument(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/purchases/7/document", nil)
	req.Header.Set("X-Test-User", "42:employee")
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Purchase and document deleted successfully"}`, rec.Body.String())
}

func TestDownloadDocument(t *testing.T) {
	f := newFixture(t)
	f.documents.download = &services.DownloadedDocument{
		FileName:    "receipt.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.4"),
	}

	// reviewers may download documents they do not own
	req := httptest.NewRequest(http.MethodGet, "/api/purchases/7/document", nil)
	req.Header.Set("X-Test-User", "5:finance")
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="receipt.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
}

func TestApprovePurchase(t *testing.T) {
	t.Run("records the reviewer", func(t *testing.T) {
		f := newFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/api/purchases/7/approve", strings.NewReader(`{"notes":"ok"}`))
		req.Header.Set("X-Test-User", "5:finance")
		rec := f.do(req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(7), f.purchases.decided.id)
		assert.Equal(t, int64(5), f.purchases.decided.reviewer)
		require.NotNil(t, f.purchases.decided.notes)
		assert.Equal(t, "ok", *f.purchases.decided.notes)
	})

	t.Run("empty body", func(t *testing.T) {
		f := newFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/api/purchases/7/approve", nil)
		req.Header.Set("X-Test-User", "5:finance")
		rec := f.do(req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, f.purchases.decided.notes)
	})

	t.Run("already decided", func(t *testing.T) {
		f := newFixture(t)
		f.purchases.err = domain.InvalidStatef("purchase 7 is VALIDATED")
		req := httptest.NewRequest(http.MethodPost, "/api/purchases/7/approve", nil)
		req.Header.Set("X-Test-User", "5:finance")
		rec := f.do(req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("reviewer without local profile", func(t *testing.T) {
		f := newFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/api/purchases/7/approve", nil)
		req.Header.Set("X-Test-User", "0:administrator")
		rec := f.do(req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
