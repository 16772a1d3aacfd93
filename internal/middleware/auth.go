package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"datum/internal/auth"
	"datum/internal/authz"
	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/httputil"
)

// SubjectResolver links a verified IdP subject to its local user.
type SubjectResolver interface {
	ResolveSubject(ctx context.Context, subject string) (*models.User, error)
}

// Authenticate verifies the bearer token and stores the caller's principal in
// the request context. Callers without a local profile get UserID 0.
func Authenticate(verifier auth.JWTVerifier, users SubjectResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("token rejected", "error", err, "path", r.URL.Path)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			principal := models.NewPrincipal(claims)
			user, err := users.ResolveSubject(r.Context(), principal.Subject)
			switch {
			case err == nil:
				principal.UserID = user.ID
			case errors.Is(err, domain.ErrNotFound):
			default:
				logger.Error("resolve subject",
					"error", err,
					"subject", principal.Subject,
					"request_id", httputil.GetRequestID(r.Context()),
				)
				httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, httputil.WithPrincipal(r, principal))
		})
	}
}

// RequireRule rejects callers the route rule does not admit. It runs after
// Authenticate.
func RequireRule(rule authz.Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := httputil.GetPrincipal(r)
			if principal == nil && !rule.Public {
				httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !rule.Allows(principal) {
				httputil.RespondError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
