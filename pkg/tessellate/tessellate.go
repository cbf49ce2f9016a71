// Package tessellate turns a fixture design into meshes ready for the CSG
// orchestrator: one base solid and one merged cutout tool per support, both
// in the support's local frame.
package tessellate

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/fixtura/pkg/fixture"
	"github.com/chazu/fixtura/pkg/mesh"
	"github.com/chazu/fixtura/pkg/support"
)

// Instance is one support ready for boolean evaluation. Base and Tool are
// in the support's local frame; Placement moves the result to world space.
type Instance struct {
	ID        fixture.ID
	Name      string
	Base      *mesh.Buffer
	Tool      *mesh.Buffer // nil when no cutout targets the support
	Placement fixture.Placement
	Cutouts   int
}

// Dispose releases the instance meshes.
func (in *Instance) Dispose() {
	in.Base.Dispose()
	in.Tool.Dispose()
	in.Base, in.Tool = nil, nil
}

// Tessellate builds one Instance per support in design order. Supports are
// independent and built concurrently. The design is never mutated.
func Tessellate(ctx context.Context, d *fixture.Design, opts support.Options) ([]*Instance, error) {
	if d == nil {
		return nil, nil
	}

	out := make([]*Instance, len(d.Supports))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range d.Supports {
		cutouts := d.CutoutsFor(s.Name)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			in, err := build(s, cutouts, opts)
			if err != nil {
				return err
			}
			out[i] = in
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, in := range out {
			if in != nil {
				in.Dispose()
			}
		}
		return nil, err
	}
	return out, nil
}

func build(s *fixture.Support, cutouts []*fixture.Cutout, opts support.Options) (*Instance, error) {
	if s.Shape == nil {
		return nil, fmt.Errorf("tessellate: support %s has no shape", s.Name)
	}
	base, err := s.Shape.Solid(s.Height, opts)
	if err != nil {
		return nil, fmt.Errorf("tessellate: support %s: %w", s.Name, err)
	}
	if base.IsEmpty() {
		return nil, fmt.Errorf("tessellate: support %s: %w", s.Name, support.ErrDegenerate)
	}
	base.PartName = s.Name

	tool, err := Tool(s, cutouts, opts)
	if err != nil {
		base.Dispose()
		return nil, err
	}

	log.Debug().
		Str("support", s.Name).
		Int("base_triangles", base.TriangleCount()).
		Int("cutouts", len(cutouts)).
		Msg("tessellated support")

	return &Instance{
		ID:        s.ID,
		Name:      s.Name,
		Base:      base,
		Tool:      tool,
		Placement: s.Placement,
		Cutouts:   len(cutouts),
	}, nil
}

// Tool builds every cutout, moves it from world space into the support's
// local frame and merges the results into one welded tool mesh. It returns
// nil when cutouts is empty. Overlapping cutouts are merged as a soup, so
// their union is only exact when they do not intersect each other.
func Tool(s *fixture.Support, cutouts []*fixture.Cutout, opts support.Options) (*mesh.Buffer, error) {
	if len(cutouts) == 0 {
		return nil, nil
	}
	parts := make([]*mesh.Buffer, 0, len(cutouts))
	for _, c := range cutouts {
		raw, err := c.Tool(opts.Shaper, opts)
		if err != nil {
			for _, p := range parts {
				p.Dispose()
			}
			return nil, fmt.Errorf("tessellate: support %s: %w", s.Name, err)
		}
		parts = append(parts, s.Placement.Relative(c.Placement).Apply(raw))
		raw.Dispose()
	}
	if len(parts) == 1 {
		return parts[0], nil
	}

	name := s.Name + "-cutouts"
	soup := mesh.Merge(name, parts...)
	tol := opts.WeldTolerance
	if !(tol > 0) {
		tol = mesh.WeldTolerance
	}
	tool := mesh.Weld(soup, tol)
	soup.Dispose()
	return tool, nil
}
