// Package mocks provides mock implementations for testing the auth core.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the persistence ports.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	identities := mocks.NewMockIdentityStore(ctrl)
//	identities.EXPECT().LoadIdentityByUsername(gomock.Any(), "alice").Return(identity, nil)
package mocks

// Generate mock for IdentityStore interface from internal/ports package.
// LoadIdentityByUsername, SaveIdentity
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=identity_store_mock.go github.com/target/mmk-auth/internal/ports IdentityStore

// Generate mock for SessionStore interface from internal/ports package.
// Save, Get, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=session_store_mock.go github.com/target/mmk-auth/internal/ports SessionStore

// Generate mock for LockoutStore interface from internal/ports package.
// SaveLockout, DeleteLockout, LoadLockouts
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=lockout_store_mock.go github.com/target/mmk-auth/internal/ports LockoutStore

// Generate mock for AuditSink interface from internal/ports package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=audit_sink_mock.go github.com/target/mmk-auth/internal/ports AuditSink

// Generate mock for PermissionSource interface from internal/ports package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=permission_source_mock.go github.com/target/mmk-auth/internal/ports PermissionSource
