package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spec-kit/users-backend/internal/domain"
)

// RoleClaimVersion is written to the "rv" claim. Decoding refuses any other version.
const RoleClaimVersion = 1

const rolePrefix = "ROLE_"

var errRoleClaim = errors.New("invalid role claim")

// NormalizeRoles validates role names, removes duplicates and sorts them.
func NormalizeRoles(roles []domain.Role) ([]domain.Role, error) {
	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: empty role set", errRoleClaim)
	}
	out := make([]domain.Role, 0, len(roles))
	for _, role := range roles {
		if !ValidRoleName(string(role)) {
			return nil, fmt.Errorf("%w: bad role name %q", errRoleClaim, role)
		}
		out = append(out, role)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// ValidRoleName reports whether name looks like ROLE_[A-Z0-9_]+.
func ValidRoleName(name string) bool {
	rest, ok := strings.CutPrefix(name, rolePrefix)
	if !ok || rest == "" {
		return false
	}
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}

func encodeRoleClaim(roles []domain.Role) (json.RawMessage, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errRoleClaim, err)
	}
	return raw, nil
}

// parseRoleClaim rebuilds the role set from a verified payload. Anything other than a
// version 1, non-empty, duplicate-free array of valid role names is rejected, as is an
// isAdmin flag that disagrees with the array.
func parseRoleClaim(raw json.RawMessage, version int, isAdmin bool) ([]domain.Role, error) {
	if version != RoleClaimVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", errRoleClaim, version)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("%w: not an array", errRoleClaim)
	}

	var names []string
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&names); err != nil {
		return nil, fmt.Errorf("%w: %v", errRoleClaim, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: empty role set", errRoleClaim)
	}

	roles := make([]domain.Role, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if !ValidRoleName(name) {
			return nil, fmt.Errorf("%w: bad role name %q", errRoleClaim, name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate role %q", errRoleClaim, name)
		}
		seen[name] = struct{}{}
		roles = append(roles, domain.Role(name))
	}

	if domain.HasRole(roles, domain.RoleAdmin) != isAdmin {
		return nil, fmt.Errorf("%w: isAdmin disagrees with roles", errRoleClaim)
	}
	return roles, nil
}
