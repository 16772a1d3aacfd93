package models

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Realm roles carried in Keycloak access tokens.
const (
	RoleEmployee      = "employee"
	RoleFinance       = "finance"
	RoleAdministrator = "administrator"
)

// KeycloakClaims represents the access token claims issued by the Keycloak realm.
type KeycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string      `json:"preferred_username"`
	Email             string      `json:"email"`
	GivenName         string      `json:"given_name"`
	FamilyName        string      `json:"family_name"`
	AuthorizedParty   string      `json:"azp"`
	RealmAccess       RealmAccess `json:"realm_access"`
}

type RealmAccess struct {
	Roles []string `json:"roles"`
}

// GetUserID returns the IdP subject.
func (c *KeycloakClaims) GetUserID() string {
	return c.Subject
}

// Principal is the authenticated caller of a request.
type Principal struct {
	Subject  string
	Username string
	Email    string
	Roles    []string
	// UserID is the local user id resolved from Subject; 0 when the
	// account has no local profile (e.g. a bootstrap administrator).
	UserID int64
}

// NewPrincipal builds a principal from verified claims.
func NewPrincipal(claims *KeycloakClaims) *Principal {
	return &Principal{
		Subject:  claims.Subject,
		Username: claims.PreferredUsername,
		Email:    claims.Email,
		Roles:    claims.RealmAccess.Roles,
	}
}

func (p *Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

func (p *Principal) HasAnyRole(roles ...string) bool {
	return slices.ContainsFunc(roles, p.HasRole)
}

// IsReviewer reports whether the caller may read and decide on other users' work.
func (p *Principal) IsReviewer() bool {
	return p.HasAnyRole(RoleFinance, RoleAdministrator)
}

// HasLocalUser reports whether the caller is linked to a local profile.
func (p *Principal) HasLocalUser() bool {
	return p.UserID != 0
}
