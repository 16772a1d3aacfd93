package auth

import "datum/internal/domain/models"

// JWTVerifier validates access tokens issued by the Keycloak realm.
type JWTVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed claims.
	// Returns domain.ErrUnauthorized if the token is invalid, expired, or has an invalid signature.
	VerifyToken(tokenString string) (*models.KeycloakClaims, error)

	// Close releases any resources held by the verifier.
	Close() error
}
