package fixture

import (
	"fmt"
	"math"

	"github.com/chazu/fixtura/pkg/poly"
	"github.com/chazu/fixtura/pkg/support"
)

// Severity indicates whether a finding blocks tessellation or is advisory.
type Severity int

const (
	SeverityError   Severity = iota // blocks tessellation
	SeverityWarning                 // informational
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// ValidationError describes a single finding.
type ValidationError struct {
	Object   string // support or cutout name, empty for design-level findings
	Line     int
	Message  string
	Severity Severity
}

func (e ValidationError) Error() string {
	where := ""
	if e.Object != "" {
		where = " " + e.Object + ":"
	}
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d:%s %s", e.Severity, e.Line, where, e.Message)
	}
	return fmt.Sprintf("[%s]%s %s", e.Severity, where, e.Message)
}

// ValidationResult bundles blocking errors and advisory warnings.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether there are no errors.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

func (r *ValidationResult) errorf(obj string, src SourceRef, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Object: obj, Line: src.Line, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
}

func (r *ValidationResult) warnf(obj string, src SourceRef, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationError{Object: obj, Line: src.Line, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning})
}

// Validate checks d without modifying it.
func Validate(d *Design) ValidationResult {
	var r ValidationResult
	if d == nil {
		return r
	}
	seen := make(map[string]bool)
	for _, s := range d.Supports {
		if seen[s.Name] {
			r.errorf(s.Name, s.Source, "duplicate support name")
		}
		seen[s.Name] = true
		validateSupport(&r, s)
	}
	for _, c := range d.Cutouts {
		validateCutout(&r, d, c)
	}
	return r
}

func validateSupport(r *ValidationResult, s *Support) {
	if !(s.Height > 0) || math.IsInf(s.Height, 0) {
		r.errorf(s.Name, s.Source, "height %g must be positive", s.Height)
	}
	switch sh := s.Shape.(type) {
	case nil:
		r.errorf(s.Name, s.Source, "no shape")
		return
	case support.Rect:
		if !(sh.Width > 0 && sh.Depth > 0) {
			r.errorf(s.Name, s.Source, "rect %gx%g must have positive width and depth", sh.Width, sh.Depth)
		}
		if sh.CornerRadius < 0 {
			r.errorf(s.Name, s.Source, "corner radius %g is negative", sh.CornerRadius)
		} else if half := math.Min(sh.Width, sh.Depth) / 2; sh.CornerRadius > half {
			r.warnf(s.Name, s.Source, "corner radius %g clamped to %g", sh.CornerRadius, half)
		}
	case support.Cylinder:
		if !(sh.Radius > 0) {
			r.errorf(s.Name, s.Source, "cylinder radius %g must be positive", sh.Radius)
		}
	case support.Cone:
		if !(sh.BottomRadius > 0) || sh.TopRadius < 0 {
			r.errorf(s.Name, s.Source, "cone radii %g/%g: bottom must be positive, top not negative", sh.BottomRadius, sh.TopRadius)
		}
	case support.Custom:
		clean := poly.Clean(sh.Polygon, poly.DegenerateEdge)
		if len(clean) < 3 {
			r.errorf(s.Name, s.Source, "footprint has %d distinct points, need at least 3", len(clean))
			return
		}
		if sh.CornerRadius < 0 {
			r.errorf(s.Name, s.Source, "corner radius %g is negative", sh.CornerRadius)
		}
		if poly.SelfIntersects(clean) {
			r.warnf(s.Name, s.Source, "footprint is self-intersecting; the solid may not be watertight")
		}
	}
	if _, ok := s.Shape.(support.Cone); !ok && s.Height > 0 {
		p := support.Params{Height: s.Height, FilletRadius: support.FilletRadiusConst}
		if f := p.EffectiveFillet(); f < support.FilletRadiusConst {
			r.warnf(s.Name, s.Source, "fillet reduced to %.3g by height %g", f, s.Height)
		}
	}
}

func validateCutout(r *ValidationResult, d *Design, c *Cutout) {
	name := c.label()
	s := d.Lookup(c.Support)
	if s == nil {
		r.errorf(name, c.Source, "references unknown support %q", c.Support)
		return
	}
	switch c.Kind {
	case CutoutBox:
		if !(c.Size.X > 0 && c.Size.Y > 0 && c.Size.Z > 0) {
			r.errorf(name, c.Source, "box size %.3g x %.3g x %.3g must be positive", c.Size.X, c.Size.Y, c.Size.Z)
			return
		}
	case CutoutCylinder:
		if !(c.Radius > 0 && c.Height > 0) {
			r.errorf(name, c.Source, "cylinder radius %g and height %g must be positive", c.Radius, c.Height)
			return
		}
	case CutoutMesh:
		if c.Mesh.IsEmpty() {
			r.errorf(name, c.Source, "mesh %q is empty", c.Path)
			return
		}
	default:
		r.errorf(name, c.Source, "unknown cutout kind %v", c.Kind)
		return
	}
	if s.Shape == nil {
		return
	}

	local := s.Placement.Relative(c.Placement)
	radius, bottom, top := c.extent()
	b := s.Bounds()
	p := local.Position
	outside := p.X+radius < b.Min.X || p.X-radius > b.Max.X ||
		p.Z+radius < b.Min.Z || p.Z-radius > b.Max.Z ||
		p.Y+top < b.Min.Y || p.Y+bottom > b.Max.Y
	if outside {
		r.warnf(name, c.Source, "does not reach support %q; nothing will be cut", s.Name)
	}
}
