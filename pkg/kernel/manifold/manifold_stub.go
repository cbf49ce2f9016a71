//go:build !manifold

// Package manifold provides a CGo-based boolean kernel binding to the
// Manifold library. When the "manifold" build tag is not set, this stub
// package is compiled instead, returning an error from New() and leaving
// the kernel unregistered.
//
// Build with: go build -tags=manifold
package manifold

import (
	"fmt"

	"github.com/chazu/fixtura/pkg/kernel"
)

// New returns an error indicating Manifold is not available.
// Build with -tags=manifold to enable.
func New() (kernel.Kernel, error) {
	return nil, fmt.Errorf("manifold kernel not available: build with -tags=manifold: %w", kernel.ErrUnavailable)
}
