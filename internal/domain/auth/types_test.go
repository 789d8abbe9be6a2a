package auth

import (
	"testing"
	"time"
)

func TestSession_IsActive(t *testing.T) {
	s := Session{Status: SessionActive}
	if !s.IsActive() {
		t.Fatalf("expected active")
	}
	for _, st := range []SessionStatus{SessionExpired, SessionTerminated, SessionLocked} {
		if (Session{Status: st}).IsActive() {
			t.Fatalf("did not expect %s to be active", st)
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, r := range Roles() {
		got, err := ParseRole(" " + string(r) + " ")
		if err != nil || got != r {
			t.Fatalf("ParseRole(%q) = %q, %v", r, got, err)
		}
	}
	if _, err := ParseRole("ADMIN"); err != nil {
		t.Fatalf("expected case-insensitive parse, got %v", err)
	}
	if _, err := ParseRole("root"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestRole_UnmarshalText(t *testing.T) {
	var r Role
	if err := r.UnmarshalText([]byte("manager")); err != nil || r != RoleManager {
		t.Fatalf("unexpected %q %v", r, err)
	}
	if err := r.UnmarshalText([]byte("nobody")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestIdentity_IsLockedAt(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(time.Minute)
	id := Identity{LockedUntil: &until}
	if !id.IsLockedAt(now) {
		t.Fatalf("expected locked")
	}
	if id.IsLockedAt(until) {
		t.Fatalf("lock should end at LockedUntil")
	}
	if (Identity{}).IsLockedAt(now) {
		t.Fatalf("nil LockedUntil must not lock")
	}
}

func TestCapabilitySet(t *testing.T) {
	s := NewCapabilitySet(
		Capability{Module: ModuleInventory, Action: ActionView},
		Capability{Module: ModuleHR, Action: ActionEdit},
	)
	if !s.Has(ModuleInventory, ActionView) || s.Has(ModuleInventory, ActionDelete) {
		t.Fatalf("unexpected membership")
	}

	c := s.Clone()
	delete(c, Capability{Module: ModuleHR, Action: ActionEdit})
	if !s.Has(ModuleHR, ActionEdit) {
		t.Fatalf("clone must not alias")
	}

	sorted := s.Sorted()
	if len(sorted) != 2 || sorted[0].Module != ModuleHR {
		t.Fatalf("unexpected order: %v", sorted)
	}

	var nilSet CapabilitySet
	if nilSet.Has(ModuleHR, ActionView) || len(nilSet.Clone()) != 0 {
		t.Fatalf("nil set must behave as empty")
	}
}

func TestFailed_SharedCredentialMessage(t *testing.T) {
	if Failed(CodeAuthenticationFailed).Message != MessageInvalidCredentials {
		t.Fatalf("unexpected message")
	}
	if Failed(CodeLockedOut).Message != MessageLockedOut {
		t.Fatalf("unexpected locked message")
	}
	if Failed(CodeUnavailable).Success {
		t.Fatalf("failure must not succeed")
	}
}

func TestAllCapabilities(t *testing.T) {
	all := AllCapabilities()
	if len(all) != len(Modules())*len(Actions()) {
		t.Fatalf("unexpected matrix size %d", len(all))
	}
	if !all.Has(ModuleSettings, ActionDelete) {
		t.Fatalf("expected settings:delete in full matrix")
	}
}

func TestParseCapability(t *testing.T) {
	c, err := ParseCapability(" Inventory:VIEW ")
	if err != nil || c != (Capability{Module: ModuleInventory, Action: ActionView}) {
		t.Fatalf("ParseCapability = %v, %v", c, err)
	}
	for _, bad := range []string{"", "inventory", ":view", "inventory:"} {
		if _, err := ParseCapability(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
