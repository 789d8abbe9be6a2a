package core

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/target/mmk-auth/internal/domain/auth"
	"github.com/target/mmk-auth/internal/ports"
)

// PermissionResolverOptions groups dependencies for PermissionResolver.
type PermissionResolverOptions struct {
	Source ports.PermissionSource // Required for Reload
	// SuperRole, when set, is granted every capability regardless of the mapping.
	SuperRole domainauth.Role
	Clock     ports.Clock  // Optional
	Logger    *slog.Logger // Optional
}

// permissionSnapshot is an immutable, fully built mapping.
type permissionSnapshot struct {
	roles    domainauth.PermissionMap
	loadedAt time.Time
	version  uint64
}

// PermissionResolver answers role capability queries against a read-mostly
// mapping. Reloads build a complete replacement and swap it in atomically,
// so lookups never observe a partial mapping.
type PermissionResolver struct {
	current atomic.Pointer[permissionSnapshot]
	reloads singleflight.Group

	source    ports.PermissionSource
	superRole domainauth.Role
	clock     ports.Clock
	logger    *slog.Logger
}

// NewPermissionResolver constructs a resolver with an empty mapping; every
// query is denied until Reload succeeds.
func NewPermissionResolver(opts PermissionResolverOptions) *PermissionResolver {
	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &PermissionResolver{
		source:    opts.Source,
		superRole: opts.SuperRole,
		clock:     clock,
		logger:    logger.With("component", "permission_resolver"),
	}
	r.current.Store(&permissionSnapshot{roles: domainauth.PermissionMap{}})

	if opts.SuperRole != "" {
		r.logger.Info("super role configured; it is granted every capability", "role", opts.SuperRole)
	}
	return r
}

// SuperRole returns the configured super role, if any.
func (r *PermissionResolver) SuperRole() domainauth.Role { return r.superRole }

// Reload fetches the mapping from the source and swaps it in. Concurrent
// callers share one fetch. On error the previous mapping stays in place.
func (r *PermissionResolver) Reload(ctx context.Context) error {
	if r.source == nil {
		return errors.New("permission source is not configured")
	}
	_, err, _ := r.reloads.Do("reload", func() (any, error) {
		raw, err := r.source.LoadRolePermissionMap(ctx)
		if err != nil {
			return nil, err
		}
		r.Replace(raw)
		return nil, nil
	})
	return err
}

// Replace swaps in a mapping built from m. Unknown roles are dropped and every
// known role gets an entry, possibly empty.
func (r *PermissionResolver) Replace(m domainauth.PermissionMap) {
	next := make(domainauth.PermissionMap, len(domainauth.Roles()))
	for _, role := range domainauth.Roles() {
		next[role] = domainauth.NewCapabilitySet()
	}
	for role, caps := range m {
		if !role.Valid() {
			r.logger.Warn("ignoring permissions for unknown role", "role", role)
			continue
		}
		next[role] = caps.Clone()
	}

	var snap *permissionSnapshot
	for {
		prev := r.current.Load()
		snap = &permissionSnapshot{roles: next, loadedAt: r.clock.Now(), version: prev.version + 1}
		if r.current.CompareAndSwap(prev, snap) {
			break
		}
	}
	r.logger.Info("permission map loaded", "roles", len(next), "version", snap.version)
}

// Capabilities returns a copy of the capability set for role. Unknown roles
// yield an empty set; the super role yields the full matrix.
func (r *PermissionResolver) Capabilities(role domainauth.Role) domainauth.CapabilitySet {
	if r.isSuper(role) {
		return domainauth.AllCapabilities()
	}
	return r.current.Load().roles[role].Clone()
}

// HasPermission reports whether role may perform action on module.
func (r *PermissionResolver) HasPermission(role domainauth.Role, module domainauth.Module, action domainauth.Action) bool {
	if r.isSuper(role) {
		return true
	}
	caps, ok := r.current.Load().roles[role]
	if !ok {
		return false
	}
	return caps.Has(module, action)
}

// Version returns the number of mappings loaded so far and when the current one was loaded.
func (r *PermissionResolver) Version() (uint64, time.Time) {
	snap := r.current.Load()
	return snap.version, snap.loadedAt
}

func (r *PermissionResolver) isSuper(role domainauth.Role) bool {
	return r.superRole != "" && role == r.superRole && role.Valid()
}
