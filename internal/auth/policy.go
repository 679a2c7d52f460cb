package auth

import (
	"fmt"
	"strings"

	"github.com/spec-kit/users-backend/internal/domain"
)

// Access is the requirement a rule places on the caller.
type Access string

const (
	AccessPermitAll     Access = "permit_all"
	AccessAnyOf         Access = "any_of"
	AccessAuthenticated Access = "authenticated"
)

// Decision is the outcome of evaluating the policy table.
type Decision int

const (
	Allow Decision = iota
	// DenyUnauthenticated maps to 401: the caller never presented a valid token.
	DenyUnauthenticated
	// DenyForbidden maps to 403: the caller is known but lacks a required role.
	DenyForbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	case DenyForbidden:
		return "deny_forbidden"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Rule grants access to requests matching Method and Pattern.
type Rule struct {
	Method  string
	Pattern string
	Access  Access
	Roles   []domain.Role

	segments []string
	anyTail  bool
}

// PolicyTable is an ordered rule list. The first matching rule decides.
type PolicyTable struct {
	rules []Rule
}

// NewPolicyTable validates and compiles rules, keeping their order.
func NewPolicyTable(rules []Rule) (*PolicyTable, error) {
	compiled := make([]Rule, 0, len(rules))
	for i, rule := range rules {
		r, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s %s): %w", i, rule.Method, rule.Pattern, err)
		}
		compiled = append(compiled, r)
	}
	return &PolicyTable{rules: compiled}, nil
}

// Rules returns a copy of the compiled rules in evaluation order.
func (t *PolicyTable) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Evaluate decides whether a request may proceed. A nil or empty security
// context is treated as unauthenticated.
func (t *PolicyTable) Evaluate(method, path string, sc *domain.SecurityContext) Decision {
	segments := splitPath(path)
	for i := range t.rules {
		rule := &t.rules[i]
		if !rule.matches(method, segments) {
			continue
		}
		switch rule.Access {
		case AccessPermitAll:
			return Allow
		case AccessAnyOf:
			if !sc.Authenticated() {
				return DenyUnauthenticated
			}
			if sc.HasAnyRole(rule.Roles...) {
				return Allow
			}
			return DenyForbidden
		default:
			return requireAuthenticated(sc)
		}
	}
	return requireAuthenticated(sc)
}

func requireAuthenticated(sc *domain.SecurityContext) Decision {
	if sc.Authenticated() {
		return Allow
	}
	return DenyUnauthenticated
}

func compileRule(rule Rule) (Rule, error) {
	rule.Method = strings.ToUpper(strings.TrimSpace(rule.Method))
	if rule.Method == "" {
		rule.Method = "*"
	}
	if !strings.HasPrefix(rule.Pattern, "/") {
		return rule, fmt.Errorf("pattern must start with '/'")
	}

	segments := splitPath(rule.Pattern)
	for i, seg := range segments {
		switch {
		case seg == "**":
			if i != len(segments)-1 {
				return rule, fmt.Errorf("'**' is only allowed as the last segment")
			}
			rule.anyTail = true
			segments = segments[:i]
		case seg == "{}" || strings.HasPrefix(seg, "{") != strings.HasSuffix(seg, "}"):
			return rule, fmt.Errorf("unbalanced path variable %q", seg)
		case strings.ContainsAny(seg, "*"):
			return rule, fmt.Errorf("unsupported wildcard in segment %q", seg)
		}
	}
	rule.segments = segments

	switch rule.Access {
	case AccessPermitAll, AccessAuthenticated:
		rule.Roles = nil
	case AccessAnyOf:
		if len(rule.Roles) == 0 {
			return rule, fmt.Errorf("any_of requires at least one role")
		}
		roles := make([]domain.Role, 0, len(rule.Roles))
		for _, role := range rule.Roles {
			r := normalizeRoleName(string(role))
			if !ValidRoleName(string(r)) {
				return rule, fmt.Errorf("invalid role %q", role)
			}
			roles = append(roles, r)
		}
		rule.Roles = roles
	default:
		return rule, fmt.Errorf("unknown access %q", rule.Access)
	}
	return rule, nil
}

// normalizeRoleName accepts "ADMIN" as shorthand for "ROLE_ADMIN".
func normalizeRoleName(name string) domain.Role {
	name = strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(name, rolePrefix) {
		name = rolePrefix + name
	}
	return domain.Role(name)
}

func (r *Rule) matches(method string, path []string) bool {
	if r.Method != "*" && !strings.EqualFold(r.Method, method) {
		return false
	}
	if r.anyTail {
		if len(path) < len(r.segments) {
			return false
		}
	} else if len(path) != len(r.segments) {
		return false
	}
	for i, seg := range r.segments {
		if isPathVariable(seg) {
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}

func isPathVariable(seg string) bool {
	return len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}'
}

// splitPath returns the non-empty segments of p, so "/api/users/" and "/api/users" match alike.
func splitPath(p string) []string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
