// Package fixture defines the design model for workholding fixtures: named
// supports standing on a baseplate and the cutouts subtracted from them.
package fixture

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/fixtura/pkg/kernel"
	"github.com/chazu/fixtura/pkg/mesh"
	"github.com/chazu/fixtura/pkg/support"
)

var (
	ErrDuplicateName  = errors.New("fixture: duplicate name")
	ErrUnknownSupport = errors.New("fixture: unknown support")
	ErrInvalidCutout  = errors.New("fixture: invalid cutout")
)

// ID identifies a support or cutout independently of its name.
type ID string

// NewID returns a random ID.
func NewID() ID { return ID(uuid.NewString()) }

// Short returns the first 8 characters of id.
func (id ID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// SourceRef locates the script form that created an object.
type SourceRef struct {
	Line int `json:"line,omitempty"`
}

// Support is one support solid standing at Y=0 in its local frame.
type Support struct {
	ID        ID
	Name      string
	Shape     support.Shape
	Height    float64
	Placement Placement
	Source    SourceRef
}

// Bounds returns the support's bounding box in its local frame.
func (s *Support) Bounds() r3.Box {
	if s.Shape == nil {
		return r3.Box{}
	}
	return s.Shape.Bounds(s.Height)
}

// CutoutKind selects the cutout tool geometry.
type CutoutKind int

const (
	CutoutBox CutoutKind = iota
	CutoutCylinder
	CutoutMesh
)

func (k CutoutKind) String() string {
	switch k {
	case CutoutBox:
		return "box"
	case CutoutCylinder:
		return "cylinder"
	case CutoutMesh:
		return "mesh"
	default:
		return fmt.Sprintf("CutoutKind(%d)", int(k))
	}
}

// Cutout is a tool volume subtracted from the support named Support. Box
// and cylinder tools stand on their local Y=0 centred on the Y axis; Mesh
// tools are used as given. Placement is in world space.
type Cutout struct {
	ID        ID
	Name      string
	Support   string
	Kind      CutoutKind
	Size      r3.Vec // box width, height, depth
	Radius    float64
	Height    float64
	Mesh      *mesh.Buffer
	Path      string // source file of Mesh, for diagnostics
	Placement Placement
	Source    SourceRef
}

// Tool builds the cutout volume in its own frame. A nil shaper selects
// flat-faced boxes and lofted cylinders.
func (c *Cutout) Tool(shaper kernel.Shaper, opts support.Options) (*mesh.Buffer, error) {
	var (
		m   *mesh.Buffer
		err error
	)
	switch c.Kind {
	case CutoutBox:
		if !(c.Size.X > 0 && c.Size.Y > 0 && c.Size.Z > 0) {
			return nil, fmt.Errorf("%w: box size %v", ErrInvalidCutout, c.Size)
		}
		if shaper != nil {
			m, err = shaper.Box(c.Size)
			break
		}
		half := r3.Vec{X: c.Size.X / 2, Z: c.Size.Z / 2}
		m = mesh.Box(c.label(), r3.Vec{X: -half.X, Z: -half.Z}, r3.Vec{X: half.X, Y: c.Size.Y, Z: half.Z})
	case CutoutCylinder:
		if !(c.Radius > 0 && c.Height > 0) {
			return nil, fmt.Errorf("%w: cylinder r=%g h=%g", ErrInvalidCutout, c.Radius, c.Height)
		}
		if shaper != nil {
			m, err = shaper.Cylinder(c.Radius, c.Height)
			break
		}
		opts.Shaper = nil
		m, err = support.Cone{BottomRadius: c.Radius, TopRadius: c.Radius}.Solid(c.Height, opts)
	case CutoutMesh:
		if c.Mesh.IsEmpty() {
			return nil, fmt.Errorf("%w: empty mesh %q", ErrInvalidCutout, c.Path)
		}
		m = c.Mesh.Clone()
	default:
		return nil, fmt.Errorf("%w: kind %v", ErrInvalidCutout, c.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("fixture: cutout %s: %w", c.label(), err)
	}
	m.PartName = c.label()
	return m, nil
}

// extent returns a horizontal radius and height bounding the tool.
func (c *Cutout) extent() (radius, bottom, top float64) {
	switch c.Kind {
	case CutoutBox:
		return math.Hypot(c.Size.X, c.Size.Z) / 2, 0, c.Size.Y
	case CutoutCylinder:
		return c.Radius, 0, c.Height
	case CutoutMesh:
		if c.Mesh.IsEmpty() {
			return 0, 0, 0
		}
		b := c.Mesh.Bounds()
		for _, v := range []r3.Vec{b.Min, b.Max, {X: b.Min.X, Z: b.Max.Z}, {X: b.Max.X, Z: b.Min.Z}} {
			radius = math.Max(radius, math.Hypot(v.X, v.Z))
		}
		return radius, b.Min.Y, b.Max.Y
	}
	return 0, 0, 0
}

func (c *Cutout) label() string {
	if c.Name != "" {
		return c.Name
	}
	return "cutout-" + c.ID.Short()
}

// Design is the full fixture: supports and cutouts in insertion order.
type Design struct {
	Supports []*Support
	Cutouts  []*Cutout
	Version  uint64

	byName map[string]*Support
}

// New returns an empty design.
func New() *Design {
	return &Design{byName: make(map[string]*Support)}
}

// AddSupport appends s, assigning an ID if it has none.
func (d *Design) AddSupport(s *Support) error {
	if d.byName == nil {
		d.byName = make(map[string]*Support)
	}
	if s.Name == "" {
		return fmt.Errorf("fixture: support needs a name")
	}
	if _, ok := d.byName[s.Name]; ok {
		return fmt.Errorf("%w: support %q", ErrDuplicateName, s.Name)
	}
	if s.ID == "" {
		s.ID = NewID()
	}
	d.Supports = append(d.Supports, s)
	d.byName[s.Name] = s
	d.Version++
	return nil
}

// AddCutout appends c, assigning an ID if it has none. The referenced
// support must already exist.
func (d *Design) AddCutout(c *Cutout) error {
	if d.Lookup(c.Support) == nil {
		return fmt.Errorf("%w: %q", ErrUnknownSupport, c.Support)
	}
	if c.ID == "" {
		c.ID = NewID()
	}
	d.Cutouts = append(d.Cutouts, c)
	d.Version++
	return nil
}

// Lookup returns the support with the given name, or nil.
func (d *Design) Lookup(name string) *Support {
	if d == nil {
		return nil
	}
	if d.byName != nil {
		return d.byName[name]
	}
	for _, s := range d.Supports {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// CutoutsFor returns the cutouts bound to the named support in insertion
// order.
func (d *Design) CutoutsFor(name string) []*Cutout {
	var out []*Cutout
	for _, c := range d.Cutouts {
		if c.Support == name {
			out = append(out, c)
		}
	}
	return out
}
