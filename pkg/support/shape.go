package support

import (
	"fmt"
	"math"

	"github.com/chazu/fixtura/pkg/mesh"
	"github.com/chazu/fixtura/pkg/poly"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultSegments is the number of sides used for round footprints.
const DefaultSegments = 32

// Shape is the footprint variant of a support. The set of variants is
// closed: Rect, Cylinder, Cone and Custom.
type Shape interface {
	// Bounds returns the bounding box of the solid built at height,
	// fillet included.
	Bounds(height float64) r3.Box
	// BaseArea returns the area of the footprint on the baseplate, fillet
	// excluded.
	BaseArea() float64
	// Caps returns the bottom (−Y, at Y=0) and top (+Y) patches of the
	// solid built at height.
	Caps(height float64, opts Options) (bottom, top *mesh.Buffer)
	// Solid builds the welded solid at height.
	Solid(height float64, opts Options) (*mesh.Buffer, error)

	isShape()
}

// Rect is a width × depth rectangle centred on the origin.
type Rect struct {
	Width, Depth float64
	CornerRadius float64
}

// Cylinder is a round footprint approximated by Segments sides.
type Cylinder struct {
	Radius   float64
	Segments int
}

// Cone is a frustum from BottomRadius at Y=0 to TopRadius at the top. It
// has no fillet.
type Cone struct {
	BottomRadius, TopRadius float64
	Segments                int
}

// Custom is an arbitrary footprint polygon.
type Custom struct {
	Polygon      poly.Polygon
	CornerRadius float64
}

func (Rect) isShape()     {}
func (Cylinder) isShape() {}
func (Cone) isShape()     {}
func (Custom) isShape()   {}

// Footprint returns the rectangle polygon.
func (r Rect) Footprint() poly.Polygon {
	w, d := r.Width/2, r.Depth/2
	return poly.Polygon{poly.Pt(-w, -d), poly.Pt(w, -d), poly.Pt(w, d), poly.Pt(-w, d)}
}

// Footprint returns the regular polygon approximating the circle.
func (c Cylinder) Footprint() poly.Polygon { return circle(c.Radius, c.Segments) }

// Footprint returns the polygon itself.
func (c Custom) Footprint() poly.Polygon { return c.Polygon }

func circle(radius float64, segments int) poly.Polygon {
	if segments < 3 {
		segments = DefaultSegments
	}
	out := make(poly.Polygon, segments)
	for i := range out {
		sin, cos := math.Sincos(2 * math.Pi * float64(i) / float64(segments))
		out[i] = poly.Pt(radius*cos, radius*sin)
	}
	return out
}

func (r Rect) params(height float64) Params {
	return Params{Polygon: r.Footprint(), Height: height, CornerRadius: r.CornerRadius, FilletRadius: FilletRadiusConst}
}

func (c Cylinder) params(height float64) Params {
	return Params{Polygon: c.Footprint(), Height: height, FilletRadius: FilletRadiusConst}
}

func (c Custom) params(height float64) Params {
	return Params{Polygon: c.Polygon, Height: height, CornerRadius: c.CornerRadius, FilletRadius: FilletRadiusConst}
}

func (r Rect) Bounds(height float64) r3.Box     { return filletBounds(r.params(height)) }
func (c Cylinder) Bounds(height float64) r3.Box { return filletBounds(c.params(height)) }
func (c Custom) Bounds(height float64) r3.Box   { return filletBounds(c.params(height)) }

func (c Cone) Bounds(height float64) r3.Box {
	r := math.Max(c.BottomRadius, c.TopRadius)
	return r3.Box{Min: r3.Vec{X: -r, Z: -r}, Max: r3.Vec{X: r, Y: height, Z: r}}
}

func filletBounds(p Params) r3.Box {
	min, max := poly.Bounds(p.Polygon)
	f := p.EffectiveFillet()
	return r3.Box{
		Min: r3.Vec{X: min.X - f, Y: 0, Z: min.Z - f},
		Max: r3.Vec{X: max.X + f, Y: f + p.BodyHeight(), Z: max.Z + f},
	}
}

// BaseArea counts rounded corners as circular arcs.
func (r Rect) BaseArea() float64 {
	cr := math.Min(r.CornerRadius, math.Min(r.Width, r.Depth)/2)
	if cr < 0 {
		cr = 0
	}
	return r.Width*r.Depth - (4-math.Pi)*cr*cr
}

func (c Cylinder) BaseArea() float64 { return poly.Area(c.Footprint()) }
func (c Custom) BaseArea() float64   { return poly.Area(c.Polygon) }

func (c Cone) BaseArea() float64 {
	return poly.Area(circle(c.BottomRadius, c.segments()))
}

func (r Rect) Caps(height float64, opts Options) (bottom, top *mesh.Buffer) {
	return filletCaps(r.params(height), opts)
}

func (c Cylinder) Caps(height float64, opts Options) (bottom, top *mesh.Buffer) {
	return filletCaps(c.params(height), opts)
}

func (c Custom) Caps(height float64, opts Options) (bottom, top *mesh.Buffer) {
	return filletCaps(c.params(height), opts)
}

func (c Cone) Caps(height float64, _ Options) (bottom, top *mesh.Buffer) {
	bottom = capMesh("bottom-cap", circle(c.BottomRadius, c.segments()), 0, false)
	if c.TopRadius >= MinFillet {
		top = capMesh("top-cap", circle(c.TopRadius, c.segments()), height, true)
	}
	return bottom, top
}

func filletCaps(p Params, opts Options) (bottom, top *mesh.Buffer) {
	if p.Validate() != nil {
		return nil, nil
	}
	footprint, err := poly.Normalize(poly.Clean(p.Polygon, poly.DegenerateEdge))
	if err != nil {
		return nil, nil
	}
	corners := poly.Corners(footprint, p.CornerRadius)
	f := p.EffectiveFillet()
	if f < MinFillet {
		f = 0
	}
	return BottomCap(corners, f, opts), TopCap(corners, f+p.BodyHeight(), opts)
}

func (r Rect) Solid(height float64, opts Options) (*mesh.Buffer, error) {
	return Build(r.params(height), opts)
}

func (c Cylinder) Solid(height float64, opts Options) (*mesh.Buffer, error) {
	return Build(c.params(height), opts)
}

func (c Custom) Solid(height float64, opts Options) (*mesh.Buffer, error) {
	return Build(c.params(height), opts)
}

// Solid builds the frustum. With opts.Shaper set the shaper generates it;
// otherwise it is lofted directly between the two rings.
func (c Cone) Solid(height float64, opts Options) (*mesh.Buffer, error) {
	if !(height > 0) {
		return nil, ErrInvalidHeight
	}
	if !(c.BottomRadius > 0) || c.TopRadius < 0 {
		return nil, fmt.Errorf("support: cone radii %g/%g: %w", c.BottomRadius, c.TopRadius, ErrInvalidRadius)
	}
	if opts.Shaper != nil {
		m, err := opts.Shaper.Cone(c.BottomRadius, c.TopRadius, height)
		if err != nil {
			return nil, fmt.Errorf("support: cone: %w", err)
		}
		return m, nil
	}
	return frustum(c.BottomRadius, c.TopRadius, height, c.segments(), opts.sanitized().WeldTolerance), nil
}

func (c Cone) segments() int {
	if c.Segments < 3 {
		return DefaultSegments
	}
	return c.Segments
}

// frustum lofts a closed frustum between two regular rings. A top radius
// below MinFillet ends in an apex.
func frustum(r0, r1, height float64, segments int, tol float64) *mesh.Buffer {
	ring, _ := poly.Normalize(circle(1, segments))
	n := uint32(len(ring))
	b := mesh.NewBuilder("cone")
	for _, p := range ring {
		b.AddVertex(r3.Vec{X: p.X * r0, Z: p.Z * r0})
	}
	bottom := make(poly.Polygon, len(ring))
	for i, p := range ring {
		bottom[i] = p.Scale(r0)
	}
	if r1 < MinFillet {
		apex := b.AddVertex(r3.Vec{Y: height})
		for j := uint32(0); j < n; j++ {
			b.AddTriangle(j, (j+1)%n, apex)
		}
	} else {
		top := make(poly.Polygon, len(ring))
		for i, p := range ring {
			top[i] = p.Scale(r1)
			b.AddVertex(r3.Vec{X: top[i].X, Y: height, Z: top[i].Z})
		}
		for j := uint32(0); j < n; j++ {
			next := (j + 1) % n
			b.AddQuad(j, next, n+next, n+j)
		}
		addCap(b, top, n, height, true)
	}
	addCap(b, bottom, 0, 0, false)
	out := b.Buffer()
	welded := mesh.Weld(out, tol)
	out.Dispose()
	return welded
}
