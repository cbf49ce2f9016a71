package engine

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/fixtura/pkg/fixture"
	"github.com/chazu/fixtura/pkg/meshio"
	"github.com/chazu/fixtura/pkg/poly"
	"github.com/chazu/fixtura/pkg/support"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// locatedForms are the builtins that receive the line of their opening
// paren as a hidden :line keyword.
var locatedForms = map[string]bool{
	"support": true,
	"cutout":  true,
}

// preprocessSource transforms fixture Lisp source code before passing it to
// zygomys. It performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: corner-radius -> corner_radius
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
//  3. Line stamping: (support ...) -> (support "__kw_line" N ...)
//     so that the design can point back at the form that created an object.
//
// All transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	line, scanned := 1, 0
	lineAt := func(pos int) int {
		for ; scanned < pos; scanned++ {
			if b[scanned] == '\n' {
				line++
			}
		}
		return line
	}
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Stamp located forms with their line.
		if b[i] == '(' {
			j := i + 1
			for j < len(b) && isIdentChar(b[j]) {
				j++
			}
			if head := string(b[i+1 : j]); locatedForms[head] && (j == len(b) || !isKWChar(b[j])) {
				result = append(result, '(')
				result = append(result, head...)
				result = append(result, ` "`+kwPrefix+`line" `...)
				result = strconv.AppendInt(result, int64(lineAt(i)), 10)
				i = j
				continue
			}
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps an r3.Vec.
type sexpVec3 struct {
	vec r3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpPoint wraps a footprint point in the XZ plane.
type sexpPoint struct {
	pt poly.Point
}

func (p *sexpPoint) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(pt %g %g)", p.pt.X, p.pt.Z)
}
func (p *sexpPoint) Type() *zygo.RegisteredType { return nil }

// sexpShape wraps a support footprint returned by rect, cylinder, cone
// and polygon.
type sexpShape struct {
	shape support.Shape
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	switch sh := s.shape.(type) {
	case support.Rect:
		return fmt.Sprintf("(rect %g %g :corner %g)", sh.Width, sh.Depth, sh.CornerRadius)
	case support.Cylinder:
		return fmt.Sprintf("(cylinder %g)", sh.Radius)
	case support.Cone:
		return fmt.Sprintf("(cone %g %g)", sh.BottomRadius, sh.TopRadius)
	case support.Custom:
		return fmt.Sprintf("(polygon %d points)", len(sh.Polygon))
	}
	return "(shape)"
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

// sexpSupportRef names a support created by `support`.
type sexpSupportRef struct {
	id   fixture.ID
	name string
}

func (r *sexpSupportRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(support %q)", r.name)
}
func (r *sexpSupportRef) Type() *zygo.RegisteredType { return nil }

// sexpCutoutRef identifies a cutout created by `cutout`.
type sexpCutoutRef struct {
	id   fixture.ID
	name string
}

func (r *sexpCutoutRef) SexpString(ps *zygo.PrintState) string {
	if r.name != "" {
		return fmt.Sprintf("(cutout %q)", r.name)
	}
	return fmt.Sprintf("(cutout %s)", r.id.Short())
}
func (r *sexpCutoutRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// source returns the line stamped by preprocessSource.
func (a kwArgs) source() fixture.SourceRef {
	if v, ok := a.kw["line"]; ok {
		if n, err := toFloat64(v); err == nil {
			return fixture.SourceRef{Line: int(n)}
		}
	}
	return fixture.SourceRef{}
}

// float returns the keyword value key, or the positional argument at pos
// when the keyword is absent. pos < 0 disables the positional fallback.
func (a kwArgs) float(key string, pos int) (float64, bool, error) {
	v, ok := a.kw[key]
	if !ok && pos >= 0 && pos < len(a.positional) {
		v, ok = a.positional[pos], true
	}
	if !ok {
		return 0, false, nil
	}
	f, err := toFloat64(v)
	return f, true, err
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts an r3.Vec from a sexpVec3.
func toVec3(s zygo.Sexp) (r3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return r3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toPoint extracts a footprint point from a pt or a two-element list.
func toPoint(s zygo.Sexp) (poly.Point, error) {
	if p, ok := s.(*sexpPoint); ok {
		return p.pt, nil
	}
	items, err := sexpListToSlice(s)
	if err == nil && len(items) == 2 {
		x, errX := toFloat64(items[0])
		z, errZ := toFloat64(items[1])
		if errX == nil && errZ == nil {
			return poly.Pt(x, z), nil
		}
	}
	return poly.Point{}, fmt.Errorf("expected pt, got %T (%s)", s, s.SexpString(nil))
}

// toShape extracts a support footprint from a sexpShape.
func toShape(s zygo.Sexp) (support.Shape, error) {
	if sh, ok := s.(*sexpShape); ok {
		return sh.shape, nil
	}
	return nil, fmt.Errorf("expected shape (rect, cylinder, cone, polygon), got %T (%s)", s, s.SexpString(nil))
}

// toSupportName accepts a support reference or its name.
func toSupportName(s zygo.Sexp) (string, error) {
	if ref, ok := s.(*sexpSupportRef); ok {
		return ref.name, nil
	}
	if name, err := toString(s); err == nil {
		return name, nil
	}
	return "", fmt.Errorf("expected support or name, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// placement reads :at and :yaw (degrees).
func placement(fn string, a kwArgs) (fixture.Placement, error) {
	var p fixture.Placement
	if v, ok := a.kw["at"]; ok {
		vec, err := toVec3(v)
		if err != nil {
			return p, fmt.Errorf("%s: at: %w", fn, err)
		}
		p.Position = vec
	}
	yaw, _, err := a.float("yaw", -1)
	if err != nil {
		return p, fmt.Errorf("%s: yaw: %w", fn, err)
	}
	p.Yaw = fixture.Degrees(yaw)
	return p, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs all fixture DSL builtins into a zygomys
// environment. The builtins populate d during evaluation; relative STL paths
// resolve against dir.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, d *fixture.Design, dir string) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}

		return &sexpVec3{vec: r3.Vec{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (pt 10 -5)  ; a footprint point at X=10, Z=-5
	// -----------------------------------------------------------------------
	env.AddFunction("pt", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("pt requires exactly 2 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pt: x: %w", err)
		}
		z, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pt: z: %w", err)
		}
		return &sexpPoint{pt: poly.Pt(x, z)}, nil
	})

	// -----------------------------------------------------------------------
	// (rect 40 20 :corner 2)  or  (rect :width 40 :depth 20)
	// -----------------------------------------------------------------------
	env.AddFunction("rect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var r support.Rect
		var err error
		if r.Width, _, err = pa.float("width", 0); err != nil {
			return zygo.SexpNull, fmt.Errorf("rect: width: %w", err)
		}
		if r.Depth, _, err = pa.float("depth", 1); err != nil {
			return zygo.SexpNull, fmt.Errorf("rect: depth: %w", err)
		}
		if r.CornerRadius, _, err = pa.float("corner", -1); err != nil {
			return zygo.SexpNull, fmt.Errorf("rect: corner: %w", err)
		}
		return &sexpShape{shape: r}, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder 8 :segments 48)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var c support.Cylinder
		var err error
		if c.Radius, _, err = pa.float("radius", 0); err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: radius: %w", err)
		}
		segs, _, err := pa.float("segments", -1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: segments: %w", err)
		}
		c.Segments = int(segs)
		return &sexpShape{shape: c}, nil
	})

	// -----------------------------------------------------------------------
	// (cone 10 4)  ; bottom radius, top radius
	// -----------------------------------------------------------------------
	env.AddFunction("cone", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var c support.Cone
		var err error
		if c.BottomRadius, _, err = pa.float("bottom", 0); err != nil {
			return zygo.SexpNull, fmt.Errorf("cone: bottom: %w", err)
		}
		if c.TopRadius, _, err = pa.float("top", 1); err != nil {
			return zygo.SexpNull, fmt.Errorf("cone: top: %w", err)
		}
		segs, _, err := pa.float("segments", -1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cone: segments: %w", err)
		}
		c.Segments = int(segs)
		return &sexpShape{shape: c}, nil
	})

	// -----------------------------------------------------------------------
	// (polygon (pt 0 0) (pt 30 0) (pt 30 20) :corner 1.5)
	// (polygon :points (list (pt 0 0) ...))
	// -----------------------------------------------------------------------
	env.AddFunction("polygon", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		items := pa.positional
		if v, ok := pa.kw["points"]; ok {
			list, err := sexpListToSlice(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("polygon: points: %w", err)
			}
			items = list
		}
		var c support.Custom
		for i, item := range items {
			p, err := toPoint(item)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("polygon: point %d: %w", i, err)
			}
			c.Polygon = append(c.Polygon, p)
		}
		var err error
		if c.CornerRadius, _, err = pa.float("corner", -1); err != nil {
			return zygo.SexpNull, fmt.Errorf("polygon: corner: %w", err)
		}
		return &sexpShape{shape: c}, nil
	})

	// -----------------------------------------------------------------------
	// (support "left" :shape (rect 40 20 :corner 2) :height 15
	//                 :at (vec3 -30 0 0) :yaw 90)
	// -----------------------------------------------------------------------
	env.AddFunction("support", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("support requires a name argument")
		}
		supName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("support: name: %w", err)
		}

		s := &fixture.Support{Name: supName, Source: pa.source()}
		v, ok := pa.kw["shape"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("support %q: missing :shape", supName)
		}
		if s.Shape, err = toShape(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("support %q: shape: %w", supName, err)
		}
		if s.Height, _, err = pa.float("height", -1); err != nil {
			return zygo.SexpNull, fmt.Errorf("support %q: height: %w", supName, err)
		}
		if s.Placement, err = placement("support", pa); err != nil {
			return zygo.SexpNull, err
		}
		if err := d.AddSupport(s); err != nil {
			return zygo.SexpNull, err
		}

		return &sexpSupportRef{id: s.ID, name: s.Name}, nil
	})

	// -----------------------------------------------------------------------
	// (cutout "pocket" :on "left" :box (vec3 10 8 6) :at (vec3 -30 12 0))
	// (cutout :on left :cylinder 3 :height 20 :at (vec3 ...))
	// (cutout :on left :stl "part.stl" :yaw 45)
	// -----------------------------------------------------------------------
	env.AddFunction("cutout", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		c := &fixture.Cutout{Source: pa.source()}
		if len(pa.positional) > 0 {
			n, err := toString(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cutout: name: %w", err)
			}
			c.Name = n
		}
		on, ok := pa.kw["on"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("cutout: missing :on")
		}
		var err error
		if c.Support, err = toSupportName(on); err != nil {
			return zygo.SexpNull, fmt.Errorf("cutout: on: %w", err)
		}

		box, isBox := pa.kw["box"]
		_, isCyl := pa.kw["cylinder"]
		path, isSTL := pa.kw["stl"]
		switch {
		case isBox && !isCyl && !isSTL:
			c.Kind = fixture.CutoutBox
			if c.Size, err = toVec3(box); err != nil {
				return zygo.SexpNull, fmt.Errorf("cutout: box: %w", err)
			}
		case isCyl && !isBox && !isSTL:
			c.Kind = fixture.CutoutCylinder
			if c.Radius, _, err = pa.float("cylinder", -1); err != nil {
				return zygo.SexpNull, fmt.Errorf("cutout: cylinder: %w", err)
			}
			if c.Height, _, err = pa.float("height", -1); err != nil {
				return zygo.SexpNull, fmt.Errorf("cutout: height: %w", err)
			}
		case isSTL && !isBox && !isCyl:
			c.Kind = fixture.CutoutMesh
			if c.Path, err = toString(path); err != nil {
				return zygo.SexpNull, fmt.Errorf("cutout: stl: %w", err)
			}
			file := c.Path
			if !filepath.IsAbs(file) && dir != "" {
				file = filepath.Join(dir, file)
			}
			if c.Mesh, err = meshio.ReadSTLFile(file); err != nil {
				return zygo.SexpNull, fmt.Errorf("cutout: %w", err)
			}
		default:
			return zygo.SexpNull, fmt.Errorf("cutout: exactly one of :box, :cylinder or :stl is required")
		}

		if c.Placement, err = placement("cutout", pa); err != nil {
			return zygo.SexpNull, err
		}
		if err := d.AddCutout(c); err != nil {
			return zygo.SexpNull, err
		}

		return &sexpCutoutRef{id: c.ID, name: c.Name}, nil
	})
}
