// Package kernel defines the boolean geometry kernel interface.
// Implementations (bsp, manifold) subtract one closed mesh from another
// behind this interface; shapers (sdfx) turn primitives into meshes. The
// abstraction allows swapping backends without changing the rest of the
// system.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/fixtura/pkg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrUnknownKernel is returned by Open for an unregistered name.
var ErrUnknownKernel = errors.New("kernel: unknown kernel")

// ErrUnavailable is returned by kernels whose backend is not compiled in.
var ErrUnavailable = errors.New("kernel: backend not available in this build")

// Progress receives integer completion percentages in [0, 100].
type Progress func(percent int)

// Report calls p if it is non-nil, clamping percent to [0, 100].
func (p Progress) Report(percent int) {
	if p == nil {
		return
	}
	switch {
	case percent < 0:
		percent = 0
	case percent > 100:
		percent = 100
	}
	p(percent)
}

// Kernel is a boolean evaluator over closed triangle meshes.
type Kernel interface {
	// Name identifies the kernel in logs and configuration.
	Name() string
	// Subtract returns target minus tool. Inputs must not be modified;
	// callers hand over clones. Both inputs carry a UV channel.
	Subtract(ctx context.Context, target, tool *mesh.Buffer, progress Progress) (*mesh.Buffer, error)
}

// Shaper generates closed primitive meshes. Every primitive is centred on
// the vertical axis and stands on Y=0.
type Shaper interface {
	Box(size r3.Vec) (*mesh.Buffer, error)
	Cylinder(radius, height float64) (*mesh.Buffer, error)
	Cone(bottomRadius, topRadius, height float64) (*mesh.Buffer, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Kernel{}
)

// Register makes a kernel available to Open. It is meant to be called from
// an implementation's init function and panics on duplicate names.
func Register(name string, factory func() Kernel) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("kernel: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("kernel: Register called twice for " + name)
	}
	registry[name] = factory
}

// Open returns a new instance of the named kernel.
func Open(name string) (Kernel, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownKernel, name, Names())
	}
	return factory(), nil
}

// Names lists the registered kernels in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
