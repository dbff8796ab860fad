package admin

import "strings"

// Role is the operator role. It is an open string set validated against
// an allow-list.
type Role string

const (
	// RoleAdmin can manage operators and read the audit trail
	RoleAdmin Role = "admin"
	// RoleAgent is a regular operator
	RoleAgent Role = "agent"
)

// DefaultRoles is the allow-list used when none is configured
func DefaultRoles() []Role {
	return []Role{RoleAdmin, RoleAgent}
}

// RoleSet is the allow-list of roles a directory accepts
type RoleSet []Role

// Contains reports whether role is in the set
func (s RoleSet) Contains(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// Strings returns the roles as plain strings
func (s RoleSet) Strings() []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func (s RoleSet) toAny() []any {
	out := make([]any, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// ParseRole normalizes roleStr and checks it against allowed
func ParseRole(roleStr string, allowed RoleSet) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(roleStr)))
	if role == "" {
		return "", false
	}
	if len(allowed) == 0 {
		allowed = DefaultRoles()
	}
	return role, allowed.Contains(role)
}

// HasRole is the role predicate: a nil user never satisfies any set
func HasRole(user *UserPublic, allowed ...Role) bool {
	if user == nil || len(allowed) == 0 {
		return false
	}
	return RoleSet(allowed).Contains(user.Role)
}
