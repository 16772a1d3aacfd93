package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"datum/internal/domain"
	"datum/internal/domain/models"
)

// allowedAlgorithms prevents algorithm confusion (e.g. HS256 signed with a public key)
var allowedAlgorithms = []string{"RS256", "ES256"}

// KeycloakJWTVerifier implements JWTVerifier using the realm JWKS.
type KeycloakJWTVerifier struct {
	keyfunc jwt.Keyfunc
	parser  *jwt.Parser
	logger  *slog.Logger
}

// NewJWTVerifier creates a verifier that fetches signing keys from the realm's
// certs endpoint. keyfunc caches the key set and refreshes it on unknown kids.
func NewJWTVerifier(ctx context.Context, jwksURL, issuer string, logger *slog.Logger) (JWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL, "issuer", issuer)
	return NewJWTVerifierWithKeyfunc(jwks.Keyfunc, issuer, logger), nil
}

// NewJWTVerifierWithKeyfunc creates a verifier around an existing key lookup.
// An empty issuer disables the iss check.
func NewJWTVerifierWithKeyfunc(kf jwt.Keyfunc, issuer string, logger *slog.Logger) *KeycloakJWTVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(allowedAlgorithms),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &KeycloakJWTVerifier{
		keyfunc: kf,
		parser:  jwt.NewParser(opts...),
		logger:  logger,
	}
}

// VerifyToken validates a JWT token and extracts Keycloak claims.
func (v *KeycloakJWTVerifier) VerifyToken(tokenString string) (*models.KeycloakClaims, error) {
	claims := &models.KeycloakClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keyfunc)
	if err != nil {
		v.logger.Debug("token rejected", "error", err)
		return nil, domain.ErrUnauthorized
	}
	if !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	if claims.Subject == "" {
		v.logger.Debug("token missing subject claim")
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}

// Close is a no-op; keyfunc v3 manages its own refresh goroutine lifetime via ctx.
func (v *KeycloakJWTVerifier) Close() error {
	v.logger.Info("JWT verifier closed")
	return nil
}
