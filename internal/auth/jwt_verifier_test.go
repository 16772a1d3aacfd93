package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datum/internal/domain"
	"datum/internal/domain/models"
)

const testIssuer = "http://kc.test/realms/datum"

func newTestVerifier(t *testing.T) (*KeycloakJWTVerifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	kf := func(*jwt.Token) (any, error) { return &key.PublicKey, nil }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewJWTVerifierWithKeyfunc(kf, testIssuer, logger), key
}

func signClaims(t *testing.T, key *rsa.PrivateKey, claims *models.KeycloakClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() *models.KeycloakClaims {
	return &models.KeycloakClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "sub-1",
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
		PreferredUsername: "ana",
		Email:             "ana@datum.test",
		RealmAccess:       models.RealmAccess{Roles: []string{"employee", "offline_access"}},
	}
}

func TestVerifyToken(t *testing.T) {
	verifier, key := newTestVerifier(t)

	claims, err := verifier.VerifyToken(signClaims(t, key, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "sub-1", claims.Subject)
	assert.Equal(t, "ana", claims.PreferredUsername)
	assert.Equal(t, []string{"employee", "offline_access"}, claims.RealmAccess.Roles)
}

func TestVerifyTokenRejects(t *testing.T) {
	verifier, key := newTestVerifier(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "http://evil.test/realms/datum"

	noSubject := validClaims()
	noSubject.Subject = ""

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	hmac, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("shared"))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      signClaims(t, key, expired),
		"wrong issuer": signClaims(t, key, wrongIssuer),
		"no subject":   signClaims(t, key, noSubject),
		"no expiry":    signClaims(t, key, noExpiry),
		"foreign key":  signClaims(t, otherKey, validClaims()),
		"hmac":         hmac,
		"garbage":      "not.a.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.VerifyToken(token)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}
