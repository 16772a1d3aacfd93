// Package authz loads the role requirements of every HTTP route from an
// embedded YAML policy.
package authz

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"datum/internal/domain/models"
)

//go:embed policy.yaml
var policyFile []byte

var knownRoles = []string{models.RoleEmployee, models.RoleFinance, models.RoleAdministrator}

// Rule is the requirement attached to one route pattern.
type Rule struct {
	Public bool     `yaml:"public"`
	Roles  []string `yaml:"roles"`
}

// Allows reports whether an authenticated principal satisfies the rule.
func (r Rule) Allows(p *models.Principal) bool {
	if r.Public {
		return true
	}
	if p == nil {
		return false
	}
	return len(r.Roles) == 0 || p.HasAnyRole(r.Roles...)
}

// Policy maps ServeMux patterns to rules.
type Policy struct {
	routes map[string]Rule
}

type policyDocument struct {
	Routes map[string]Rule `yaml:"routes"`
}

// Load parses the embedded policy.
func Load() (*Policy, error) {
	return Parse(policyFile)
}

// Parse builds a policy from YAML and rejects unknown roles and public
// routes that also list roles.
func Parse(data []byte) (*Policy, error) {
	var doc policyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal policy: %w", err)
	}
	if len(doc.Routes) == 0 {
		return nil, fmt.Errorf("policy defines no routes")
	}

	for pattern, rule := range doc.Routes {
		if rule.Public && len(rule.Roles) > 0 {
			return nil, fmt.Errorf("route %q is public but lists roles", pattern)
		}
		for _, role := range rule.Roles {
			if !slices.Contains(knownRoles, role) {
				return nil, fmt.Errorf("route %q: unknown role %q", pattern, role)
			}
		}
	}
	return &Policy{routes: doc.Routes}, nil
}

// Rule returns the rule for pattern. Every registered route must have one.
func (p *Policy) Rule(pattern string) (Rule, error) {
	rule, ok := p.routes[pattern]
	if !ok {
		return Rule{}, fmt.Errorf("no authorization rule for route %q", pattern)
	}
	return rule, nil
}

// Patterns lists the routes the policy covers, sorted.
func (p *Policy) Patterns() []string {
	patterns := make([]string, 0, len(p.routes))
	for pattern := range p.routes {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)
	return patterns
}
