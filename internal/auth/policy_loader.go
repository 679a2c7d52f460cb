package auth

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/users-backend/internal/domain"
)

type policyFile struct {
	Rules []policyRule `yaml:"rules"`
}

type policyRule struct {
	Method string   `yaml:"method"`
	Path   string   `yaml:"path"`
	Access Access   `yaml:"access"`
	Roles  []string `yaml:"roles"`
}

// LoadPolicyFile reads a YAML policy table from path.
func LoadPolicyFile(path string) (*PolicyTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	table, err := ParsePolicy(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return table, nil
}

// ParsePolicy decodes a YAML document of the form
//
//	rules:
//	  - method: POST
//	    path: /api/users
//	    access: any_of
//	    roles: [ADMIN]
//
// Unknown keys are rejected so typos cannot silently widen access.
func ParsePolicy(r io.Reader) (*PolicyTable, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc policyFile
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty policy document")
		}
		return nil, fmt.Errorf("decode policy: %w", err)
	}

	rules := make([]Rule, 0, len(doc.Rules))
	for _, pr := range doc.Rules {
		roles := make([]domain.Role, 0, len(pr.Roles))
		for _, role := range pr.Roles {
			roles = append(roles, domain.Role(role))
		}
		rules = append(rules, Rule{Method: pr.Method, Pattern: pr.Path, Access: pr.Access, Roles: roles})
	}
	return NewPolicyTable(rules)
}

// DefaultRules mirrors the route protection of the original deployment.
// Order matters: GET /api/users/{id} is public because the permit_all rule precedes
// the role-gated one.
func DefaultRules() []Rule {
	admin := []domain.Role{domain.RoleAdmin}
	return []Rule{
		{Method: "GET", Pattern: "/api/users", Access: AccessPermitAll},
		{Method: "GET", Pattern: "/api/users/{id}", Access: AccessPermitAll},
		{Method: "GET", Pattern: "/api/customers", Access: AccessPermitAll},
		{Method: "GET", Pattern: "/api/customers/{lastname}", Access: AccessPermitAll},
		{Method: "GET", Pattern: "/api/products", Access: AccessPermitAll},
		{Method: "GET", Pattern: "/api/products/{id}", Access: AccessPermitAll},
		{Method: "POST", Pattern: "/api/products", Access: AccessAnyOf, Roles: admin},
		{Method: "POST", Pattern: "/api/customers", Access: AccessAnyOf, Roles: admin},
		{Method: "GET", Pattern: "/api/users/{id}", Access: AccessAnyOf, Roles: []domain.Role{domain.RoleUser, domain.RoleAdmin}},
		{Method: "POST", Pattern: "/api/users", Access: AccessAnyOf, Roles: admin},
		{Method: "PUT", Pattern: "/api/users/{id}", Access: AccessAnyOf, Roles: admin},
		{Method: "DELETE", Pattern: "/api/users/{id}", Access: AccessAnyOf, Roles: admin},
		{Method: "*", Pattern: "/v3/api-docs/**", Access: AccessPermitAll},
		{Method: "*", Pattern: "/swagger-ui/**", Access: AccessPermitAll},
		{Method: "*", Pattern: "/swagger-ui.html", Access: AccessPermitAll},
		{Method: "GET", Pattern: "/health/**", Access: AccessPermitAll},
		{Method: "GET", Pattern: "/metrics", Access: AccessAnyOf, Roles: admin},
	}
}

// DefaultPolicyTable compiles DefaultRules.
func DefaultPolicyTable() *PolicyTable {
	table, err := NewPolicyTable(DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("default policy table: %v", err))
	}
	return table
}
