package domain

import (
	"context"
	"slices"
)

// Role is a granted authority such as ROLE_USER.
type Role string

const (
	RoleUser  Role = "ROLE_USER"
	RoleAdmin Role = "ROLE_ADMIN"
)

// Identity is the subject and role set proven at login and carried by tokens.
type Identity struct {
	Subject string
	Roles   []Role
}

// SecurityContext holds the caller reconstructed for a single request.
// The zero value is the unauthenticated context.
type SecurityContext struct {
	Subject string
	Roles   []Role
}

// Authenticated reports whether a token populated the context.
func (s *SecurityContext) Authenticated() bool {
	return s != nil && s.Subject != ""
}

// HasAnyRole reports whether the context holds at least one of roles.
func (s *SecurityContext) HasAnyRole(roles ...Role) bool {
	if !s.Authenticated() {
		return false
	}
	for _, want := range roles {
		if HasRole(s.Roles, want) {
			return true
		}
	}
	return false
}

// HasRole reports whether role is present in roles.
func HasRole(roles []Role, role Role) bool {
	return slices.Contains(roles, role)
}

type securityContextKey struct{}

// WithSecurityContext returns a copy of ctx carrying sc.
func WithSecurityContext(ctx context.Context, sc *SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey{}, sc)
}

// SecurityContextFrom extracts the security context placed by WithSecurityContext.
func SecurityContextFrom(ctx context.Context) (*SecurityContext, bool) {
	sc, ok := ctx.Value(securityContextKey{}).(*SecurityContext)
	return sc, ok && sc != nil
}
