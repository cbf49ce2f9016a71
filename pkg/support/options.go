// Package support builds the watertight solid of a fixture support: a
// rounded skirt (fillet) at the base, a vertical body and flat caps, all
// sampled from one shared perimeter so that welding closes every seam.
package support

import (
	"errors"
	"math"

	"github.com/chazu/fixtura/pkg/kernel"
	"github.com/chazu/fixtura/pkg/mesh"
	"github.com/chazu/fixtura/pkg/poly"
)

const (
	// FilletRadiusConst is the largest fillet a support ever gets.
	FilletRadiusConst = 2.0
	// MinBodyHeight is the floor for the vertical body above the fillet.
	MinBodyHeight = 0.1
	// MinFillet is the effective fillet below which a plain prism is built.
	MinFillet = 0.01
	// DefaultFilletSegments is the number of profile steps from wall to base.
	DefaultFilletSegments = 16
	// DefaultStripLength is the target spacing of stations along an edge.
	DefaultStripLength = 5.0
	// DefaultCornerStep is the angular spacing of stations around a corner.
	DefaultCornerStep = math.Pi / 8

	capEpsilon = 1e-4
)

// Errors returned by Params.Validate.
var (
	ErrInvalidHeight = errors.New("support: height must be positive")
	ErrInvalidRadius = errors.New("support: radius must not be negative")
)

// Options tune the tessellation density. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	FilletSegments int     `toml:"fillet_segments"`
	StripLength    float64 `toml:"strip_length"`
	CornerStep     float64 `toml:"corner_step"`
	WeldTolerance  float64 `toml:"weld_tolerance"`
	// TopCap closes the top of the body. Without it the solid is open and
	// only useful for display.
	TopCap bool `toml:"top_cap"`
	// Shaper generates the shapes that are not swept from a footprint
	// (cones). Nil selects the built-in loft.
	Shaper kernel.Shaper `toml:"-"`
}

// DefaultOptions returns the standard tessellation settings.
func DefaultOptions() Options {
	return Options{
		FilletSegments: DefaultFilletSegments,
		StripLength:    DefaultStripLength,
		CornerStep:     DefaultCornerStep,
		WeldTolerance:  mesh.WeldTolerance,
		TopCap:         true,
	}
}

// sanitized replaces out-of-range values with the defaults.
func (o Options) sanitized() Options {
	d := DefaultOptions()
	if o.FilletSegments < 2 {
		o.FilletSegments = d.FilletSegments
	}
	if !(o.StripLength > 0) {
		o.StripLength = d.StripLength
	}
	if !(o.CornerStep > 0) {
		o.CornerStep = d.CornerStep
	}
	if !(o.WeldTolerance > 0) {
		o.WeldTolerance = d.WeldTolerance
	}
	return o
}

// Params are the inputs of one support solid.
type Params struct {
	Polygon      poly.Polygon
	Height       float64
	CornerRadius float64
	FilletRadius float64
}

// Validate reports whether p can produce a solid.
func (p Params) Validate() error {
	if len(poly.Clean(p.Polygon, poly.DegenerateEdge)) < 3 {
		return poly.ErrTooFewPoints
	}
	if !(p.Height > 0) || math.IsInf(p.Height, 0) {
		return ErrInvalidHeight
	}
	if p.CornerRadius < 0 || p.FilletRadius < 0 || math.IsNaN(p.CornerRadius) || math.IsNaN(p.FilletRadius) {
		return ErrInvalidRadius
	}
	return nil
}

// EffectiveFillet returns the fillet radius actually used:
// clamp(min(F, FilletRadiusConst, H − MinBodyHeight), 0).
func (p Params) EffectiveFillet() float64 {
	f := math.Min(p.FilletRadius, math.Min(FilletRadiusConst, p.Height-MinBodyHeight))
	if !(f > 0) {
		return 0
	}
	return f
}

// BodyHeight returns the height of the vertical body above the fillet. It
// never drops below MinBodyHeight.
func (p Params) BodyHeight() float64 {
	return math.Max(p.Height-p.EffectiveFillet(), MinBodyHeight)
}
