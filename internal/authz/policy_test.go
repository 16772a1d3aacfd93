package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datum/internal/domain/models"
)

func TestLoadEmbeddedPolicy(t *testing.T) {
	p, err := Load()
	require.NoError(t, err)

	tests := []struct {
		pattern string
		roles   []string
		allowed bool
	}{
		{"GET /health", nil, true},
		{"POST /auth/change-password", []string{}, true},
		{"POST /api/users", []string{models.RoleEmployee}, false},
		{"POST /api/users", []string{models.RoleAdministrator}, true},
		{"POST /api/purchases/{id}/approve", []string{models.RoleEmployee}, false},
		{"POST /api/purchases/{id}/approve", []string{models.RoleFinance}, true},
		{"GET /api/purchases/{id}/document", []string{models.RoleFinance}, true},
		{"DELETE /api/purchases/{id}/document", []string{models.RoleFinance}, false},
		{"GET /api/folders/review", []string{models.RoleEmployee, "offline_access"}, false},
		{"POST /api/users/{userId}/folders", []string{models.RoleEmployee}, true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			rule, err := p.Rule(tt.pattern)
			require.NoError(t, err)
			var principal *models.Principal
			if tt.roles != nil {
				principal = &models.Principal{Subject: "s", Roles: tt.roles}
			}
			assert.Equal(t, tt.allowed, rule.Allows(principal))
		})
	}
}

func TestRuleRequiresAuthentication(t *testing.T) {
	assert.False(t, Rule{}.Allows(nil))
	assert.False(t, Rule{Roles: []string{models.RoleFinance}}.Allows(nil))
	assert.True(t, Rule{Public: true}.Allows(nil))
}

func TestMissingRule(t *testing.T) {
	p, err := Load()
	require.NoError(t, err)

	_, err = p.Rule("GET /api/secret")
	assert.Error(t, err)
}

func TestParseRejectsBadPolicies(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "routes: {}"},
		{"unknown role", "routes:\n  \"GET /x\":\n    roles: [auditor]\n"},
		{"public with roles", "routes:\n  \"GET /x\":\n    public: true\n    roles: [finance]\n"},
		{"malformed", "routes: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestPatternsSorted(t *testing.T) {
	p, err := Parse([]byte("routes:\n  \"GET /b\": {}\n  \"GET /a\":\n    public: true\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /a", "GET /b"}, p.Patterns())
}
