package support

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/chazu/fixtura/pkg/mesh"
	"github.com/chazu/fixtura/pkg/poly"
)

// ErrDegenerate is returned when the footprint collapses during sampling.
var ErrDegenerate = errors.New("support: footprint is degenerate")

// parts are the unwelded pieces of a support solid in merge order. bottom
// and fillet are nil for a plain prism.
type parts struct {
	bottom, fillet, body *mesh.Buffer
}

func (p parts) list() []*mesh.Buffer {
	var out []*mesh.Buffer
	for _, b := range []*mesh.Buffer{p.bottom, p.fillet, p.body} {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

func buildParts(params Params, opts Options) (parts, error) {
	if err := params.Validate(); err != nil {
		return parts{}, err
	}
	opts = opts.sanitized()

	footprint, err := poly.Normalize(poly.Clean(params.Polygon, poly.DegenerateEdge))
	if err != nil {
		return parts{}, err
	}
	if poly.SelfIntersects(footprint) {
		log.Warn().Int("points", len(footprint)).Msg("support footprint is self-intersecting; building anyway")
	}

	fillet := params.EffectiveFillet()
	if fillet < MinFillet {
		fillet = 0
	}
	height := params.BodyHeight()
	ring := perimeter(poly.Corners(footprint, params.CornerRadius), fillet, opts)
	if len(ring) < 3 {
		return parts{}, ErrDegenerate
	}
	if fillet == 0 {
		return parts{body: bodyFromRing(ring, 0, height, opts.TopCap)}, nil
	}
	return parts{
		bottom: capMesh("bottom-cap", baseRing(ring, fillet), 0, false),
		fillet: filletFromRing(ring, fillet, opts.FilletSegments),
		body:   bodyFromRing(ring, fillet, height, opts.TopCap),
	}, nil
}

// Build generates the welded solid for params: bottom cap, fillet and body
// merged in that order and welded at opts.WeldTolerance.
func Build(params Params, opts Options) (*mesh.Buffer, error) {
	p, err := buildParts(params, opts)
	if err != nil {
		return nil, err
	}
	merged := mesh.Merge("support", p.list()...)
	if merged == nil {
		return nil, ErrDegenerate
	}
	welded := mesh.Weld(merged, opts.sanitized().WeldTolerance)
	merged.Dispose()
	if welded.IsEmpty() || welded.TriangleCount() == 0 {
		return nil, ErrDegenerate
	}
	if stats := mesh.Edges(welded); !stats.Closed() {
		log.Debug().
			Int("open", stats.Open).
			Int("nonManifold", stats.NonManifold).
			Msg("support solid is not closed")
	}
	return welded, nil
}

// BuildSupportSolid builds a support with the standard fillet and default
// tessellation. It returns nil on invalid input (fewer than 3 distinct
// points, non-positive height).
func BuildSupportSolid(polygon poly.Polygon, height, cornerRadius float64) *mesh.Buffer {
	if cornerRadius < 0 {
		cornerRadius = 0
	}
	m, err := Build(Params{
		Polygon:      polygon,
		Height:       height,
		CornerRadius: cornerRadius,
		FilletRadius: FilletRadiusConst,
	}, DefaultOptions())
	if err != nil {
		log.Debug().Err(err).Msg("support solid not built")
		return nil
	}
	return m
}

// String describes params for log output.
func (p Params) String() string {
	return fmt.Sprintf("support(%d pts, h=%.3g, r=%.3g, f=%.3g)", len(p.Polygon), p.Height, p.CornerRadius, p.FilletRadius)
}
