// Package authroles provides the built-in role to capability matrix used when
// permissions are not loaded from the database.
package authroles

import (
	"context"
	"fmt"
	"strings"

	domainauth "github.com/target/mmk-auth/internal/domain/auth"
	"github.com/target/mmk-auth/internal/ports"
)

// StaticMatrix is a ports.PermissionSource over a fixed table. Rules are
// "module:action" strings; "module:*" grants every action on a module.
// Admin is absent because the super role holds every capability anyway.
type StaticMatrix struct {
	Rules map[domainauth.Role][]string
}

var _ ports.PermissionSource = StaticMatrix{}

// DefaultRules is the shipped matrix for the business modules.
func DefaultRules() map[domainauth.Role][]string {
	return map[domainauth.Role][]string{
		domainauth.RoleManager: {
			"inventory:*", "projects:*", "purchasing:*", "hr:view", "hr:edit", "hr:approve",
			"reports:*", "notifications:*", "users:view",
		},
		domainauth.RoleAccountant: {
			"purchasing:view", "purchasing:approve", "purchasing:export",
			"reports:view", "reports:export", "inventory:view", "projects:view", "notifications:view",
		},
		domainauth.RoleStorekeeper: {
			"inventory:view", "inventory:create", "inventory:edit", "inventory:export",
			"purchasing:view", "purchasing:create", "notifications:view",
		},
		domainauth.RoleEmployee: {
			"projects:view", "projects:edit", "inventory:view", "hr:view", "notifications:view",
		},
		domainauth.RoleViewer: {
			"inventory:view", "projects:view", "reports:view",
		},
	}
}

// Default returns a StaticMatrix over DefaultRules.
func Default() StaticMatrix {
	return StaticMatrix{Rules: DefaultRules()}
}

// LoadRolePermissionMap expands the rules. An unknown module, action or role
// is an error so a typo never silently grants or drops access.
func (m StaticMatrix) LoadRolePermissionMap(_ context.Context) (domainauth.PermissionMap, error) {
	return Expand(m.Rules)
}

// Expand turns rule strings into a PermissionMap.
func Expand(rules map[domainauth.Role][]string) (domainauth.PermissionMap, error) {
	out := make(domainauth.PermissionMap, len(rules))
	for role, list := range rules {
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q", role)
		}
		set := domainauth.NewCapabilitySet()
		for _, rule := range list {
			caps, err := expandRule(rule)
			if err != nil {
				return nil, fmt.Errorf("role %s: %w", role, err)
			}
			for _, c := range caps {
				set[c] = struct{}{}
			}
		}
		out[role] = set
	}
	return out, nil
}

func expandRule(rule string) ([]domainauth.Capability, error) {
	module, action, ok := strings.Cut(strings.ToLower(strings.TrimSpace(rule)), ":")
	if !ok {
		return nil, fmt.Errorf("invalid rule %q: want module:action", rule)
	}
	if !knownModule(domainauth.Module(module)) {
		return nil, fmt.Errorf("unknown module %q", module)
	}
	if action == "*" {
		caps := make([]domainauth.Capability, 0, len(domainauth.Actions()))
		for _, a := range domainauth.Actions() {
			caps = append(caps, domainauth.Capability{Module: domainauth.Module(module), Action: a})
		}
		return caps, nil
	}
	if !knownAction(domainauth.Action(action)) {
		return nil, fmt.Errorf("unknown action %q", action)
	}
	return []domainauth.Capability{{Module: domainauth.Module(module), Action: domainauth.Action(action)}}, nil
}

func knownModule(m domainauth.Module) bool {
	for _, known := range domainauth.Modules() {
		if m == known {
			return true
		}
	}
	return false
}

func knownAction(a domainauth.Action) bool {
	for _, known := range domainauth.Actions() {
		if a == known {
			return true
		}
	}
	return false
}
