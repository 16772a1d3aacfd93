package models

// IdpUser is the Keycloak user representation used by the admin API.
// Keycloak leaves null fields unchanged on update, so Attributes and
// RequiredActions are sent as null when nil and cleared when empty.
type IdpUser struct {
	ID              string              `json:"id,omitempty"`
	Username        string              `json:"username,omitempty"`
	Email           string              `json:"email,omitempty"`
	FirstName       string              `json:"firstName,omitempty"`
	LastName        string              `json:"lastName,omitempty"`
	Enabled         *bool               `json:"enabled,omitempty"`
	EmailVerified   *bool               `json:"emailVerified,omitempty"`
	Attributes      map[string][]string `json:"attributes"`
	RequiredActions []string            `json:"requiredActions"`
	Credentials     []IdpCredential     `json:"credentials,omitempty"`
}

// TemporaryPasswordAttribute flags accounts that still use the onboarding password.
const TemporaryPasswordAttribute = "temporary_password"

// RequiredActionUpdatePassword is Keycloak's forced password change action.
const RequiredActionUpdatePassword = "UPDATE_PASSWORD"

// PasswordChangeRequired reports whether the user must change the onboarding password.
func (u *IdpUser) PasswordChangeRequired() bool {
	for _, v := range u.Attributes[TemporaryPasswordAttribute] {
		if v == "true" {
			return true
		}
	}
	for _, a := range u.RequiredActions {
		if a == RequiredActionUpdatePassword {
			return true
		}
	}
	return false
}

type IdpCredential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// IdpRole is a realm role as returned by the admin API.
type IdpRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TokenSet is the result of a password grant.
type TokenSet struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
}
