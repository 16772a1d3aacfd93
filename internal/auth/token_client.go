package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"datum/internal/domain"
	"datum/internal/domain/models"
)

// AdminCLIClientID is the public client Keycloak provides for admin password grants.
const AdminCLIClientID = "admin-cli"

// TokenClient performs OAuth password grants against a realm's token endpoint.
type TokenClient struct {
	baseURL    string
	realm      string
	httpClient *http.Client
}

// NewTokenClient creates a token client for the given realm.
func NewTokenClient(baseURL, realm string, timeout time.Duration) *TokenClient {
	return &TokenClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		realm:      realm,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *TokenClient) tokenURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, url.PathEscape(c.realm))
}

// PasswordGrant exchanges user credentials for tokens. Rejected credentials
// return domain.ErrUnauthorized.
func (c *TokenClient) PasswordGrant(ctx context.Context, clientID, username, password string) (*models.TokenSet, error) {
	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {clientID},
		"username":   {username},
		"password":   {password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError("password grant", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	case !isSuccess(resp.StatusCode):
		return nil, statusError("password grant", resp)
	}

	var tokens models.TokenSet
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, transportError("password grant", fmt.Errorf("decode token response: %w", err))
	}
	if tokens.AccessToken == "" {
		return nil, &domain.UpstreamError{Service: serviceName, Op: "password grant", Detail: "response carried no access token"}
	}
	return &tokens, nil
}
