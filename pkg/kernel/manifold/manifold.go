//go:build manifold

// Package manifold provides a CGo-based boolean kernel binding to the
// Manifold library (https://github.com/elalish/manifold). Manifold provides
// guaranteed-manifold mesh boolean operations.
//
// This package requires the Manifold C library (manifoldc) to be installed.
// Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"github.com/chazu/fixtura/pkg/kernel"
	"github.com/chazu/fixtura/pkg/mesh"
)

// Compile-time interface check.
var _ kernel.Kernel = (*ManifoldKernel)(nil)

// numProp is the MeshGL vertex layout used for inputs: position then UV.
const numProp = 5

// ErrNotManifold is returned when Manifold rejects an input mesh.
var ErrNotManifold = errors.New("manifold: input is not a closed manifold")

func init() {
	kernel.Register("manifold", func() kernel.Kernel { return &ManifoldKernel{} })
}

// ManifoldKernel implements kernel.Kernel using the Manifold C library.
// It holds no state and is safe for concurrent use.
type ManifoldKernel struct{}

// New creates a new ManifoldKernel.
func New() (kernel.Kernel, error) {
	return &ManifoldKernel{}, nil
}

// Name implements kernel.Kernel.
func (k *ManifoldKernel) Name() string { return "manifold" }

// Subtract returns target minus tool.
func (k *ManifoldKernel) Subtract(ctx context.Context, target, tool *mesh.Buffer, progress kernel.Progress) (*mesh.Buffer, error) {
	progress.Report(0)
	a, err := toManifold(target)
	if err != nil {
		return nil, fmt.Errorf("manifold: target: %w", err)
	}
	defer C.manifold_delete_manifold(a)

	b, err := toManifold(tool)
	if err != nil {
		return nil, fmt.Errorf("manifold: tool: %w", err)
	}
	defer C.manifold_delete_manifold(b)
	progress.Report(20)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	diff := C.manifold_difference(C.manifold_alloc_manifold(), a, b)
	defer C.manifold_delete_manifold(diff)
	if status := C.manifold_status(diff); status != C.MANIFOLD_NO_ERROR {
		return nil, fmt.Errorf("manifold: difference failed with status %d", int(status))
	}
	progress.Report(80)

	out, err := fromManifold(diff)
	if err != nil {
		return nil, err
	}
	out.PartName = target.PartName
	progress.Report(100)
	return out, nil
}

// toManifold builds a Manifold solid from a buffer. Soups are welded first
// since Manifold needs shared vertices to see a closed surface.
func toManifold(b *mesh.Buffer) (*C.ManifoldManifold, error) {
	if b.IsEmpty() {
		return nil, errors.New("empty mesh")
	}
	src := b
	if !b.Indexed() {
		src = mesh.Weld(b, mesh.WeldTolerance)
		if src == nil {
			return nil, errors.New("mesh collapsed during weld")
		}
	}

	numVert := src.VertexCount()
	hasUVs := len(src.UVs) == numVert*2
	props := make([]float32, numVert*numProp)
	for i := 0; i < numVert; i++ {
		copy(props[i*numProp:], src.Vertices[i*3:i*3+3])
		if hasUVs {
			props[i*numProp+3] = src.UVs[i*2]
			props[i*numProp+4] = src.UVs[i*2+1]
		}
	}
	indices := src.Indices
	if len(indices) == 0 {
		return nil, errors.New("mesh has no triangles")
	}

	meshGL := C.manifold_meshgl(C.manifold_alloc_meshgl(),
		(*C.float)(unsafe.Pointer(&props[0])), C.size_t(numVert), C.size_t(numProp),
		(*C.uint32_t)(unsafe.Pointer(&indices[0])), C.size_t(len(indices)/3),
	)
	defer C.manifold_delete_meshgl(meshGL)

	m := C.manifold_of_meshgl(C.manifold_alloc_manifold(), meshGL)
	if status := C.manifold_status(m); status != C.MANIFOLD_NO_ERROR {
		C.manifold_delete_manifold(m)
		return nil, fmt.Errorf("%w (status %d)", ErrNotManifold, int(status))
	}
	return m, nil
}

// fromManifold extracts a triangle mesh from the solid using Manifold's
// MeshGL format. Positions come first in the interleaved property array;
// the UV pair follows when present.
func fromManifold(m *C.ManifoldManifold) (*mesh.Buffer, error) {
	meshGL := C.manifold_get_meshgl(C.manifold_alloc_meshgl(), m)
	defer C.manifold_delete_meshgl(meshGL)

	numVert := int(C.manifold_meshgl_num_vert(meshGL))
	numTri := int(C.manifold_meshgl_num_tri(meshGL))
	if numVert == 0 || numTri == 0 {
		return &mesh.Buffer{}, nil
	}
	props := int(C.manifold_meshgl_num_prop(meshGL))
	if props < 3 {
		return nil, fmt.Errorf("manifold: unexpected property count %d", props)
	}

	propData := make([]float32, numVert*props)
	C.manifold_meshgl_vert_properties((*C.float)(unsafe.Pointer(&propData[0])), meshGL)

	indices := make([]uint32, numTri*3)
	C.manifold_meshgl_tri_verts((*C.uint32_t)(unsafe.Pointer(&indices[0])), meshGL)

	out := &mesh.Buffer{
		Vertices: make([]float32, numVert*3),
		Indices:  indices,
	}
	hasUVs := props >= numProp
	if hasUVs {
		out.UVs = make([]float32, numVert*2)
	}
	for i := 0; i < numVert; i++ {
		base := i * props
		copy(out.Vertices[i*3:i*3+3], propData[base:base+3])
		if hasUVs {
			out.UVs[i*2] = propData[base+3]
			out.UVs[i*2+1] = propData[base+4]
		}
	}
	mesh.ComputeNormals(out)
	return out, nil
}
