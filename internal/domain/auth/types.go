package auth

// Package auth contains domain-level types for authentication, sessions and
// role-based authorization. It is pure and free of framework/adapter concerns.

import (
	"fmt"
	"strings"
	"time"
)

// Role represents an application's authorization role.
// The set of roles is closed; use ParseRole to convert persisted strings.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
	RoleAccountant  Role = "accountant"
	RoleStorekeeper Role = "storekeeper"
	RoleEmployee    Role = "employee"
	RoleViewer      Role = "viewer"
)

// Roles lists every known role in a stable order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleAccountant, RoleStorekeeper, RoleEmployee, RoleViewer}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleAccountant, RoleStorekeeper, RoleEmployee, RoleViewer:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

// ParseRole converts a persisted role tag into a Role.
// Unknown tags return an error instead of a zero-privilege guess.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// UnmarshalText implements encoding.TextUnmarshaler so roles can be read from env and JSON.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Credential is a salted, slow-hashed secret. It is replaced as a whole on password change.
type Credential struct {
	Salt       []byte `json:"salt"`
	Digest     []byte `json:"digest"`
	Iterations int    `json:"iterations"`
}

// IsZero reports whether no credential has been set.
func (c Credential) IsZero() bool { return len(c.Digest) == 0 }

// Identity is a registered principal able to authenticate.
// Identities are never deleted, only deactivated.
type Identity struct {
	ID          string
	Username    string
	Credential  Credential
	Role        Role
	Active      bool
	LockedUntil *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsLockedAt reports whether an administrative or persisted lock is still in force at now.
func (i Identity) IsLockedAt(now time.Time) bool {
	return i.LockedUntil != nil && now.Before(*i.LockedUntil)
}

// ClientMetadata describes where an authentication attempt came from.
type ClientMetadata struct {
	Origin    string `json:"origin,omitempty"`    // host name or IP of the workstation
	Agent     string `json:"agent,omitempty"`     // application build / platform string
	Workspace string `json:"workspace,omitempty"` // desktop profile name
}
