package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/domain/services"
)

// AdminCredentials authenticate the service account used for admin API calls.
type AdminCredentials struct {
	Realm    string
	Username string
	Password string
}

// KeycloakAdminClient talks to /admin/realms/{realm}/users on behalf of onboarding.
type KeycloakAdminClient struct {
	baseURL     string
	realm       string
	credentials AdminCredentials
	tokens      *TokenClient
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ services.IdentityProvider = (*KeycloakAdminClient)(nil)

// NewKeycloakAdminClient creates an admin API client for realm.
func NewKeycloakAdminClient(baseURL, realm string, creds AdminCredentials, timeout time.Duration, logger *slog.Logger) *KeycloakAdminClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &KeycloakAdminClient{
		baseURL:     baseURL,
		realm:       realm,
		credentials: creds,
		tokens:      NewTokenClient(baseURL, creds.Realm, timeout),
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

func (c *KeycloakAdminClient) realmURL(segments ...string) string {
	u := fmt.Sprintf("%s/admin/realms/%s", c.baseURL, url.PathEscape(c.realm))
	for _, s := range segments {
		u += "/" + url.PathEscape(s)
	}
	return u
}

// AdminToken obtains a fresh admin bearer through the admin-cli client.
func (c *KeycloakAdminClient) AdminToken(ctx context.Context) (string, error) {
	tokens, err := c.tokens.PasswordGrant(ctx, AdminCLIClientID, c.credentials.Username, c.credentials.Password)
	if err != nil {
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) {
			return "", err
		}
		// bad service credentials are a deployment problem, not the caller's
		return "", &domain.UpstreamError{Service: serviceName, Op: "admin token", Err: err}
	}
	return tokens.AccessToken, nil
}

func (c *KeycloakAdminClient) do(ctx context.Context, method, target, token string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// CreateUser creates the account and returns the subject taken from the
// last segment of the Location header.
func (c *KeycloakAdminClient) CreateUser(ctx context.Context, token string, user *models.IdpUser) (string, error) {
	const op = "create user"
	resp, err := c.do(ctx, http.MethodPost, c.realmURL("users"), token, user)
	if err != nil {
		return "", transportError(op, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusConflict:
		return "", fmt.Errorf("%w: user %q already exists in identity provider", domain.ErrValidation, user.Username)
	default:
		return "", statusError(op, resp)
	}

	subject := SubjectFromLocation(resp.Header.Get("Location"))
	if subject == "" {
		return "", &domain.UpstreamError{Service: serviceName, Op: op, StatusCode: resp.StatusCode, Detail: "missing Location header"}
	}
	c.logger.Info("identity provider user created", "subject", subject, "username", user.Username)
	return subject, nil
}

// SubjectFromLocation extracts the user id from a Location header value.
func SubjectFromLocation(location string) string {
	if location == "" {
		return ""
	}
	if u, err := url.Parse(location); err == nil {
		location = u.Path
	}
	last := path.Base(strings.TrimRight(location, "/"))
	if last == "." || last == "/" || last == "users" {
		return ""
	}
	return last
}

// GetUser fetches the user representation, including attributes and required actions.
func (c *KeycloakAdminClient) GetUser(ctx context.Context, token, subject string) (*models.IdpUser, error) {
	const op = "get user"
	resp, err := c.do(ctx, http.MethodGet, c.realmURL("users", subject), token, nil)
	if err != nil {
		return nil, transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("identity provider user %s: %w", subject, domain.ErrNotFound)
	}
	if !isSuccess(resp.StatusCode) {
		return nil, statusError(op, resp)
	}

	var user models.IdpUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, transportError(op, fmt.Errorf("decode user: %w", err))
	}
	return &user, nil
}

// UpdateUser sends a partial representation; omitted fields are left unchanged.
func (c *KeycloakAdminClient) UpdateUser(ctx context.Context, token, subject string, user *models.IdpUser) error {
	const op = "update user"
	resp, err := c.do(ctx, http.MethodPut, c.realmURL("users", subject), token, user)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("identity provider user %s: %w", subject, domain.ErrNotFound)
	}
	if !isSuccess(resp.StatusCode) {
		return statusError(op, resp)
	}
	return nil
}

// SetEnabled enables or disables the account.
func (c *KeycloakAdminClient) SetEnabled(ctx context.Context, token, subject string, enabled bool) error {
	return c.UpdateUser(ctx, token, subject, &models.IdpUser{Enabled: &enabled})
}

// GetRealmRole resolves a realm role by name.
func (c *KeycloakAdminClient) GetRealmRole(ctx context.Context, token, name string) (*models.IdpRole, error) {
	const op = "get realm role"
	resp, err := c.do(ctx, http.MethodGet, c.realmURL("roles", name), token, nil)
	if err != nil {
		return nil, transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: unknown realm role %q", domain.ErrValidation, name)
	}
	if !isSuccess(resp.StatusCode) {
		return nil, statusError(op, resp)
	}

	var role models.IdpRole
	if err := json.NewDecoder(resp.Body).Decode(&role); err != nil {
		return nil, transportError(op, fmt.Errorf("decode role: %w", err))
	}
	return &role, nil
}

// AssignRealmRoles posts a realm role mapping for the user.
func (c *KeycloakAdminClient) AssignRealmRoles(ctx context.Context, token, subject string, roles []models.IdpRole) error {
	const op = "assign realm roles"
	target := c.realmURL("users", subject, "role-mappings", "realm")
	resp, err := c.do(ctx, http.MethodPost, target, token, roles)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return statusError(op, resp)
	}
	return nil
}

// ResetPassword replaces the user's password credential.
func (c *KeycloakAdminClient) ResetPassword(ctx context.Context, token, subject, password string, temporary bool) error {
	const op = "reset password"
	credential := models.IdpCredential{Type: "password", Value: password, Temporary: temporary}
	resp, err := c.do(ctx, http.MethodPut, c.realmURL("users", subject, "reset-password"), token, credential)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("identity provider user %s: %w", subject, domain.ErrNotFound)
	}
	if !isSuccess(resp.StatusCode) {
		return statusError(op, resp)
	}
	return nil
}
