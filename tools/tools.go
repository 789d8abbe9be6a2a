//go:build tools
// +build tools

// Package tools pins development tool dependencies in go.mod so
// `go generate ./...` runs the same mockgen version everywhere.
package tools

import (
	// mockgen regenerates internal/mocks and internal/mocks/auth.
	_ "go.uber.org/mock/mockgen"
)

// Other development tools are installed globally and are not tracked in go.mod:
//
// golangci-lint
//   Install: go install github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest
//   Docs: https://golangci-lint.run
