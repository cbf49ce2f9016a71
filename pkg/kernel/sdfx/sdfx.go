// Package sdfx implements the kernel.Shaper interface using the
// github.com/deadsy/sdfx SDF-based CAD library. Primitives are modelled as
// signed distance functions and tessellated with marching cubes.
package sdfx

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/fixtura/pkg/kernel"
	"github.com/chazu/fixtura/pkg/mesh"
)

// Compile-time interface check.
var _ kernel.Shaper = (*Shaper)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution along
// the longest side of a primitive.
const DefaultMeshCells = 64

// Shaper implements kernel.Shaper using sdfx.
type Shaper struct {
	cells int
	round float64
}

// New returns a Shaper that tessellates with the given number of cells
// along the longest bounding box side and rounds edges by round. Zero or
// negative cells select DefaultMeshCells.
func New(cells int, round float64) *Shaper {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	if round < 0 {
		round = 0
	}
	return &Shaper{cells: cells, round: round}
}

// upright turns a Z-axis primitive of the given height so its axis is +Y and
// its base sits on Y=0.
func upright(s sdf.SDF3, height float64) sdf.SDF3 {
	m := sdf.Translate3d(v3.Vec{Y: height / 2}).Mul(sdf.RotateX(-math.Pi / 2))
	return sdf.Transform3D(s, m)
}

// Box creates a box of the given size standing on Y=0.
func (k *Shaper) Box(size r3.Vec) (*mesh.Buffer, error) {
	s, err := sdf.Box3D(v3.Vec{X: size.X, Y: size.Y, Z: size.Z}, k.roundFor(size.X, size.Y, size.Z))
	if err != nil {
		return nil, fmt.Errorf("sdfx: box: %w", err)
	}
	// Box3D is centred on the origin; lift it onto the base plane.
	s = sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Y: size.Y / 2}))
	return k.toMesh("box", s)
}

// Cylinder creates an upright cylinder.
func (k *Shaper) Cylinder(radius, height float64) (*mesh.Buffer, error) {
	s, err := sdf.Cylinder3D(height, radius, k.roundFor(radius, height/2))
	if err != nil {
		return nil, fmt.Errorf("sdfx: cylinder: %w", err)
	}
	return k.toMesh("cylinder", upright(s, height))
}

// Cone creates an upright frustum from bottomRadius at Y=0 to topRadius at
// Y=height.
func (k *Shaper) Cone(bottomRadius, topRadius, height float64) (*mesh.Buffer, error) {
	s, err := sdf.Cone3D(height, bottomRadius, topRadius, k.roundFor(math.Max(bottomRadius, topRadius), height/2))
	if err != nil {
		return nil, fmt.Errorf("sdfx: cone: %w", err)
	}
	return k.toMesh("cone", upright(s, height))
}

// roundFor limits the edge rounding so it fits every given half-extent.
func (k *Shaper) roundFor(extents ...float64) float64 {
	r := k.round
	for _, e := range extents {
		r = math.Min(r, e/2)
	}
	return math.Max(r, 0)
}

// toMesh converts a solid to a welded triangle mesh using marching cubes.
func (k *Shaper) toMesh(name string, s sdf.SDF3) (*mesh.Buffer, error) {
	renderer := render.NewMarchingCubesUniform(k.cells)
	triangles := render.ToTriangles(s, renderer)
	if len(triangles) == 0 {
		return nil, fmt.Errorf("sdfx: %s: marching cubes produced no triangles", name)
	}

	soup := &mesh.Buffer{
		Vertices: make([]float32, 0, len(triangles)*9),
		PartName: name,
	}
	for _, tri := range triangles {
		for j := 0; j < 3; j++ {
			v := tri[j]
			soup.Vertices = append(soup.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
		}
	}
	bb := s.BoundingBox()
	dx, dy, dz := bb.Max.X-bb.Min.X, bb.Max.Y-bb.Min.Y, bb.Max.Z-bb.Min.Z
	cell := math.Max(dx, math.Max(dy, dz)) / float64(k.cells)
	welded := mesh.Weld(soup, math.Min(mesh.WeldTolerance, cell/100))
	if welded == nil {
		return nil, fmt.Errorf("sdfx: %s: mesh collapsed during weld", name)
	}
	if mesh.Volume(welded) < 0 {
		mesh.FlipWinding(welded)
	}
	return welded, nil
}
