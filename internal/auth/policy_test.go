package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/users-backend/internal/domain"
)

var (
	anonymous = &domain.SecurityContext{}
	plainUser = &domain.SecurityContext{Subject: "alice", Roles: []domain.Role{domain.RoleUser}}
	adminUser = &domain.SecurityContext{Subject: "root", Roles: []domain.Role{domain.RoleUser, domain.RoleAdmin}}
)

func TestDefaultPolicyTable(t *testing.T) {
	table := DefaultPolicyTable()

	cases := []struct {
		method string
		path   string
		sc     *domain.SecurityContext
		want   Decision
	}{
		{"GET", "/api/users", anonymous, Allow},
		{"GET", "/api/users", nil, Allow},
		{"GET", "/api/users/42", anonymous, Allow},
		{"GET", "/api/users/42/", anonymous, Allow},
		{"GET", "/api/customers/smith", anonymous, Allow},
		{"GET", "/api/products?page=2", anonymous, Allow},
		{"POST", "/api/users", anonymous, DenyUnauthenticated},
		{"POST", "/api/users", plainUser, DenyForbidden},
		{"POST", "/api/users", adminUser, Allow},
		{"PUT", "/api/users/42", plainUser, DenyForbidden},
		{"DELETE", "/api/users/42", adminUser, Allow},
		{"POST", "/api/products", plainUser, DenyForbidden},
		{"GET", "/swagger-ui/index.html", anonymous, Allow},
		{"GET", "/v3/api-docs", anonymous, Allow},
		{"GET", "/v3/api-docs/swagger-config", anonymous, Allow},
		{"GET", "/swagger-ui.html", anonymous, Allow},
		{"GET", "/health/live", anonymous, Allow},
		{"GET", "/metrics", plainUser, DenyForbidden},
		{"GET", "/metrics", adminUser, Allow},
		{"GET", "/api/invoices", anonymous, DenyUnauthenticated},
		{"GET", "/api/invoices", plainUser, Allow},
		{"PATCH", "/api/users/42", anonymous, DenyUnauthenticated},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, table.Evaluate(tc.method, tc.path, tc.sc))
		})
	}
}

func TestPolicyFirstMatchWins(t *testing.T) {
	table, err := NewPolicyTable([]Rule{
		{Method: "GET", Pattern: "/reports/{id}", Access: AccessAnyOf, Roles: []domain.Role{"AUDITOR"}},
		{Method: "GET", Pattern: "/reports/{id}", Access: AccessPermitAll},
		{Method: "*", Pattern: "/open/**", Access: AccessPermitAll},
	})
	require.NoError(t, err)

	assert.Equal(t, DenyForbidden, table.Evaluate("GET", "/reports/1", plainUser))
	assert.Equal(t, DenyUnauthenticated, table.Evaluate("GET", "/reports/1", anonymous))
	assert.Equal(t, Allow, table.Evaluate("GET", "/reports/1", &domain.SecurityContext{Subject: "a", Roles: []domain.Role{"ROLE_AUDITOR"}}))
	assert.Equal(t, Allow, table.Evaluate("DELETE", "/open/a/b/c", anonymous))
	assert.Equal(t, DenyUnauthenticated, table.Evaluate("GET", "/reports", anonymous), "no match falls back to authenticated")
	assert.Equal(t, DenyUnauthenticated, table.Evaluate("GET", "/reports/1/extra", anonymous), "variable matches exactly one segment")
}

func TestNewPolicyTableRejectsBadRules(t *testing.T) {
	cases := map[string]Rule{
		"relative pattern":  {Method: "GET", Pattern: "api", Access: AccessPermitAll},
		"inner double star": {Method: "GET", Pattern: "/a/**/b", Access: AccessPermitAll},
		"partial wildcard":  {Method: "GET", Pattern: "/a/b*", Access: AccessPermitAll},
		"unbalanced brace":  {Method: "GET", Pattern: "/a/{id", Access: AccessPermitAll},
		"empty variable":    {Method: "GET", Pattern: "/a/{}", Access: AccessPermitAll},
		"any_of no roles":   {Method: "GET", Pattern: "/a", Access: AccessAnyOf},
		"bad role":          {Method: "GET", Pattern: "/a", Access: AccessAnyOf, Roles: []domain.Role{"role admin"}},
		"unknown access":    {Method: "GET", Pattern: "/a", Access: "deny_all"},
	}
	for name, rule := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewPolicyTable([]Rule{rule})
			assert.Error(t, err)
		})
	}
}

func TestParsePolicy(t *testing.T) {
	doc := `
rules:
  - method: get
    path: /api/users
    access: permit_all
  - method: POST
    path: /api/users
    access: any_of
    roles: [ADMIN, ROLE_MANAGER]
  - path: /internal/**
    access: authenticated
`
	table, err := ParsePolicy(strings.NewReader(doc))
	require.NoError(t, err)

	rules := table.Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, "GET", rules[0].Method)
	assert.Equal(t, []domain.Role{domain.RoleAdmin, "ROLE_MANAGER"}, rules[1].Roles)
	assert.Equal(t, "*", rules[2].Method)

	assert.Equal(t, Allow, table.Evaluate("GET", "/api/users", anonymous))
	assert.Equal(t, DenyForbidden, table.Evaluate("POST", "/api/users", plainUser))
	assert.Equal(t, Allow, table.Evaluate("POST", "/api/users", adminUser))
	assert.Equal(t, DenyUnauthenticated, table.Evaluate("PUT", "/internal/x", anonymous))
}

func TestParsePolicyErrors(t *testing.T) {
	_, err := ParsePolicy(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ParsePolicy(strings.NewReader("rules:\n  - path: /a\n    acces: permit_all\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = ParsePolicy(strings.NewReader("rules:\n  - path: /a\n    access: any_of\n"))
	assert.Error(t, err)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "deny_unauthenticated", DenyUnauthenticated.String())
	assert.Equal(t, "deny_forbidden", DenyForbidden.String())
}
