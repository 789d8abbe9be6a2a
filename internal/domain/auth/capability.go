package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Module names a business area guarded by permissions.
type Module string

const (
	ModuleInventory     Module = "inventory"
	ModuleProjects      Module = "projects"
	ModuleHR            Module = "hr"
	ModulePurchasing    Module = "purchasing"
	ModuleNotifications Module = "notifications"
	ModuleReports       Module = "reports"
	ModuleUsers         Module = "users"
	ModuleSettings      Module = "settings"
)

// Action names an operation within a module.
type Action string

const (
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
	ActionExport  Action = "export"
)

// Modules returns every known module in declaration order.
func Modules() []Module {
	return []Module{
		ModuleInventory, ModuleProjects, ModuleHR, ModulePurchasing,
		ModuleNotifications, ModuleReports, ModuleUsers, ModuleSettings,
	}
}

// Actions returns every known action in declaration order.
func Actions() []Action {
	return []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionApprove, ActionExport}
}

// Capability is a single (module, action) grant.
type Capability struct {
	Module Module `json:"module"`
	Action Action `json:"action"`
}

func (c Capability) String() string { return string(c.Module) + ":" + string(c.Action) }

// CapabilitySet is an immutable-by-convention set of capabilities.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s CapabilitySet) Has(module Module, action Action) bool {
	_, ok := s[Capability{Module: module, Action: action}]
	return ok
}

// Clone returns an independent copy. A nil set clones to an empty set.
func (s CapabilitySet) Clone() CapabilitySet {
	out := make(CapabilitySet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// Sorted returns the capabilities ordered by module then action.
func (s CapabilitySet) Sorted() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// AllCapabilities returns the full module x action matrix.
func AllCapabilities() CapabilitySet {
	s := make(CapabilitySet, len(Modules())*len(Actions()))
	for _, m := range Modules() {
		for _, a := range Actions() {
			s[Capability{Module: m, Action: a}] = struct{}{}
		}
	}
	return s
}

// ParseCapability parses "module:action".
func ParseCapability(s string) (Capability, error) {
	module, action, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || module == "" || action == "" {
		return Capability{}, fmt.Errorf("invalid capability %q: want module:action", s)
	}
	return Capability{Module: Module(strings.ToLower(module)), Action: Action(strings.ToLower(action))}, nil
}

// PermissionMap maps each role to its capability set.
type PermissionMap map[Role]CapabilitySet
