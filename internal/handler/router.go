package handler

import (
	"errors"
	"fmt"
	"net/http"

	"datum/internal/authz"
	"datum/internal/metrics"
	"datum/internal/middleware"
)

// Router registers routes on a ServeMux and wraps each with the
// authentication and role checks its policy rule requires.
type Router struct {
	mux          *http.ServeMux
	policy       *authz.Policy
	authenticate func(http.Handler) http.Handler
	metrics      *metrics.Metrics
	registered   map[string]bool
	errs         []error
}

// NewRouter creates a router. authenticate runs before the role check on
// every non-public route.
func NewRouter(policy *authz.Policy, authenticate func(http.Handler) http.Handler, m *metrics.Metrics) *Router {
	return &Router{
		mux:          http.NewServeMux(),
		policy:       policy,
		authenticate: authenticate,
		metrics:      m,
		registered:   make(map[string]bool),
	}
}

// Handle registers h under pattern. Patterns without a policy rule are
// recorded and reported by Verify.
func (rt *Router) Handle(pattern string, h http.Handler) {
	rule, err := rt.policy.Rule(pattern)
	if err != nil {
		rt.errs = append(rt.errs, err)
		return
	}

	if !rule.Public {
		h = middleware.RequireRule(rule)(h)
		h = rt.authenticate(h)
	}
	rt.mux.Handle(pattern, rt.metrics.InstrumentRoute(pattern, h))
	rt.registered[pattern] = true
}

// HandleFunc registers a handler function under pattern.
func (rt *Router) HandleFunc(pattern string, h http.HandlerFunc) {
	rt.Handle(pattern, h)
}

// Verify reports routes registered without a rule and rules without a route.
func (rt *Router) Verify() error {
	errs := append([]error(nil), rt.errs...)
	for _, pattern := range rt.policy.Patterns() {
		if !rt.registered[pattern] {
			errs = append(errs, fmt.Errorf("policy rule %q has no registered route", pattern))
		}
	}
	return errors.Join(errs...)
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// Handlers groups the HTTP handlers of the API.
type Handlers struct {
	Health    *HealthHandler
	Metrics   http.Handler
	Auth      *AuthHandler
	Users     *UserHandler
	Folders   *FolderHandler
	Purchases *PurchaseHandler
	Documents *DocumentHandler
}

// RegisterRoutes wires every endpoint and checks the result against the policy.
func (rt *Router) RegisterRoutes(h *Handlers) error {
	rt.HandleFunc("GET /health", h.Health.Health)
	rt.Handle("GET /metrics", h.Metrics)

	rt.HandleFunc("POST /auth/login", h.Auth.Login)
	rt.HandleFunc("POST /auth/change-password", h.Auth.ChangePassword)

	rt.HandleFunc("GET /api/users", h.Users.ListUsers)
	rt.HandleFunc("POST /api/users", h.Users.CreateUser)
	rt.HandleFunc("GET /api/users/{id}", h.Users.GetUser)
	rt.HandleFunc("GET /api/users/nickname/{nickname}", h.Users.GetUserByNickname)
	rt.HandleFunc("PUT /api/users/{id}", h.Users.UpdateUser)
	rt.HandleFunc("DELETE /api/users/{id}", h.Users.DeleteUser)

	rt.HandleFunc("GET /api/users/{userId}/folders", h.Folders.ListFolders)
	rt.HandleFunc("POST /api/users/{userId}/folders", h.Folders.CreateFolder)
	rt.HandleFunc("GET /api/users/{userId}/folders/{folderId}", h.Folders.GetFolder)
	rt.HandleFunc("PUT /api/users/{userId}/folders/{folderId}", h.Folders.UpdateFolder)
	rt.HandleFunc("DELETE /api/users/{userId}/folders/{folderId}", h.Folders.DeleteFolder)
	rt.HandleFunc("POST /api/users/{userId}/folders/{folderId}/submit", h.Folders.SubmitFolder)
	rt.HandleFunc("GET /api/users/{userId}/purchases", h.Purchases.ListUserPurchases)

	rt.HandleFunc("GET /api/folders/review", h.Folders.ListReviewFolders)
	rt.HandleFunc("GET /api/folders/{folderId}/purchases", h.Folders.ListFolderPurchases)
	rt.HandleFunc("POST /api/folders/{folderId}/reject", h.Folders.RejectFolder)

	rt.HandleFunc("GET /api/purchases/{id}", h.Purchases.GetPurchase)
	rt.HandleFunc("PUT /api/purchases/{id}/update", h.Purchases.UpdatePurchase)
	rt.HandleFunc("POST /api/purchases/{id}/approve", h.Purchases.ApprovePurchase)
	rt.HandleFunc("POST /api/purchases/{id}/reject", h.Purchases.RejectPurchase)

	rt.HandleFunc("POST /api/purchases/document", h.Documents.CreateWithDocument)
	rt.HandleFunc("POST /api/purchases/{id}/document", h.Documents.UploadDocument)
	rt.HandleFunc("GET /api/purchases/{id}/document", h.Documents.DownloadDocument)
	rt.HandleFunc("DELETE /api/purchases/{id}/document", h.Documents.DeletePurchase)
	rt.HandleFunc("DELETE /api/purchases/{id}/attachment", h.Documents.RemoveDocument)

	return rt.Verify()
}
