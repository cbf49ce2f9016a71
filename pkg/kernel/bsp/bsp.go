// Package bsp implements kernel.Kernel with binary space partitioning trees
// in pure Go. It needs no native libraries and serves as the default and
// fallback boolean evaluator.
//
// Only target polygons near the tool are clipped; the rest pass through
// untouched. The target's tree is used for classification alone, so the
// target is never fragmented along its own planes. The surviving polygons
// are sealed into an indexed mesh by merging coincident vertices and
// splitting every edge another vertex lies on, which gives closed output
// for closed inputs.
package bsp

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/fixtura/pkg/kernel"
	"github.com/chazu/fixtura/pkg/mesh"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// Name is the registered kernel name.
const Name = "bsp"

func init() {
	kernel.Register(Name, func() kernel.Kernel { return New() })
}

// Kernel is the BSP boolean evaluator. It holds no state.
type Kernel struct{}

// New returns a BSP kernel.
func New() *Kernel { return &Kernel{} }

// Name implements kernel.Kernel.
func (k *Kernel) Name() string { return Name }

// Subtract returns target minus tool.
func (k *Kernel) Subtract(ctx context.Context, target, tool *mesh.Buffer, progress kernel.Progress) (*mesh.Buffer, error) {
	progress.Report(0)
	if target.IsEmpty() {
		return nil, fmt.Errorf("bsp: empty target")
	}
	if tool.IsEmpty() || !overlaps(target.Bounds(), tool.Bounds()) {
		progress.Report(100)
		return target.Clone(), nil
	}

	all := polygons(target)
	near := tool.Bounds()
	var active, passive []polygon
	for _, p := range all {
		if p.overlaps(near) {
			active = append(active, p)
		} else {
			passive = append(passive, p)
		}
	}
	cutter := polygons(tool)
	b := newNode(cutter)
	progress.Report(15)
	outside := newNode(all)
	outside.invert()
	progress.Report(35)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Target surface outside the tool.
	kept := flippedAll(b.clipWhole(flippedAll(active)))
	progress.Report(55)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Tool surface inside the target, facing into the cut. The second pass
	// drops tool faces lying on the target's own surface.
	walls := outside.clipWhole(flippedAll(outside.clipWhole(cutter)))
	progress.Report(75)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	polys := make([]polygon, 0, len(passive)+len(kept)+len(walls))
	polys = append(append(append(polys, passive...), kept...), walls...)
	out, splits := seal(polys, target.PartName)
	if splits > 0 {
		log.Debug().Int("split", splits).Msg("bsp: split edges at t-junctions")
	}
	progress.Report(100)
	return out, nil
}

func overlaps(a, b r3.Box) bool {
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X &&
		a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y &&
		a.Min.Z <= b.Max.Z && b.Min.Z <= a.Max.Z
}

// polygons converts the triangles of m, skipping degenerate ones.
func polygons(m *mesh.Buffer) []polygon {
	out := make([]polygon, 0, m.TriangleCount())
	for t := 0; t < m.TriangleCount(); t++ {
		i, j, k := m.Triangle(t)
		a, b, c := m.Position(i), m.Position(j), m.Position(k)
		pl, ok := planeFromPoints(a, b, c)
		if !ok {
			continue
		}
		out = append(out, polygon{verts: []r3.Vec{a, b, c}, plane: pl})
	}
	return out
}
