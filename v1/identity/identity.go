package identity

import (
	"context"
	"fmt"
	"strings"
)

// Role is the coarse privilege level of a caller.
type Role string

const (
	Guest  Role = "guest"
	User   Role = "user"
	Admin  Role = "admin"
	System Role = "system"
)

// ParseRole converts a configuration or header value into a Role.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case Guest, "":
		return Guest, nil
	case User:
		return User, nil
	case Admin:
		return Admin, nil
	case System:
		return System, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

// Principal is the authenticated user attached to a request.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Identity is the resolved caller of a single request. It is created once by
// the auth collaborator and never mutated afterwards.
type Identity struct {
	Role Role       `json:"role"`
	User *Principal `json:"user,omitempty"`
}

// Anonymous returns the identity of an unauthenticated caller.
func Anonymous() Identity {
	return Identity{Role: Guest}
}

// ForUser returns an identity for a regular authenticated user.
func ForUser(p Principal) Identity {
	return Identity{Role: User, User: &p}
}

// ForAdmin returns an identity for an administrator.
func ForAdmin(p Principal) Identity {
	return Identity{Role: Admin, User: &p}
}

// SystemIdentity is used by scheduled jobs and the CLI.
func SystemIdentity() Identity {
	return Identity{Role: System}
}

// IsAuthenticated reports whether a principal with a non-empty id is attached.
func (i Identity) IsAuthenticated() bool {
	return i.User != nil && i.User.ID != ""
}

// IsPrivileged reports whether the caller bypasses row-level rules.
func (i Identity) IsPrivileged() bool {
	return i.Role == Admin || i.Role == System
}

// UserID returns the principal id or an empty string.
func (i Identity) UserID() string {
	if i.User == nil {
		return ""
	}
	return i.User.ID
}

type contextKey struct{}

// WithIdentity stores the identity on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored on ctx, or the anonymous identity.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(contextKey{}).(Identity); ok {
		return id
	}
	return Anonymous()
}
