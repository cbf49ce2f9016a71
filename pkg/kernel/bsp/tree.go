package bsp

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// epsilon is the plane thickness used to classify points.
const epsilon = 1e-5

type plane struct {
	n r3.Vec
	w float64
}

func planeFromPoints(a, b, c r3.Vec) (plane, bool) {
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if r3.Norm(n) < 1e-12 {
		return plane{}, false
	}
	n = r3.Unit(n)
	return plane{n: n, w: r3.Dot(n, a)}, true
}

func (p plane) flipped() plane { return plane{n: r3.Scale(-1, p.n), w: -p.w} }

// polygon is a convex planar polygon.
type polygon struct {
	verts []r3.Vec
	plane plane
}

// area returns the area of p measured along its own plane normal.
func (p polygon) area() float64 {
	var sum r3.Vec
	for i := 1; i+1 < len(p.verts); i++ {
		sum = r3.Add(sum, r3.Cross(r3.Sub(p.verts[i], p.verts[0]), r3.Sub(p.verts[i+1], p.verts[0])))
	}
	return r3.Dot(sum, p.plane.n) / 2
}

// overlaps reports whether the bounds of p touch box, widened by epsilon.
func (p polygon) overlaps(box r3.Box) bool {
	lo, hi := p.verts[0], p.verts[0]
	for _, v := range p.verts[1:] {
		lo = r3.Vec{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
		hi = r3.Vec{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
	}
	return lo.X <= box.Max.X+epsilon && box.Min.X-epsilon <= hi.X &&
		lo.Y <= box.Max.Y+epsilon && box.Min.Y-epsilon <= hi.Y &&
		lo.Z <= box.Max.Z+epsilon && box.Min.Z-epsilon <= hi.Z
}

// flippedAll flips every polygon of polys.
func flippedAll(polys []polygon) []polygon {
	out := make([]polygon, len(polys))
	for i, p := range polys {
		out[i] = p.flipped()
	}
	return out
}

func (p polygon) flipped() polygon {
	out := polygon{verts: make([]r3.Vec, len(p.verts)), plane: p.plane.flipped()}
	for i, v := range p.verts {
		out.verts[len(p.verts)-1-i] = v
	}
	return out
}

const (
	coplanar = 0
	front    = 1
	back     = 2
	spanning = front | back
)

// split sorts poly into the four lists relative to p, cutting spanning
// polygons in two.
func (p plane) split(poly polygon, coplanarFront, coplanarBack, fronts, backs *[]polygon) {
	kind := 0
	types := make([]int, len(poly.verts))
	for i, v := range poly.verts {
		t := r3.Dot(p.n, v) - p.w
		typ := coplanar
		if t < -epsilon {
			typ = back
		} else if t > epsilon {
			typ = front
		}
		kind |= typ
		types[i] = typ
	}

	switch kind {
	case coplanar:
		if r3.Dot(p.n, poly.plane.n) > 0 {
			*coplanarFront = append(*coplanarFront, poly)
		} else {
			*coplanarBack = append(*coplanarBack, poly)
		}
	case front:
		*fronts = append(*fronts, poly)
	case back:
		*backs = append(*backs, poly)
	case spanning:
		var f, b []r3.Vec
		n := len(poly.verts)
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			ti, tj := types[i], types[j]
			vi, vj := poly.verts[i], poly.verts[j]
			if ti != back {
				f = append(f, vi)
			}
			if ti != front {
				b = append(b, vi)
			}
			if ti|tj == spanning {
				d := r3.Sub(vj, vi)
				t := (p.w - r3.Dot(p.n, vi)) / r3.Dot(p.n, d)
				v := r3.Add(vi, r3.Scale(t, d))
				f = append(f, v)
				b = append(b, v)
			}
		}
		if len(f) >= 3 {
			*fronts = append(*fronts, polygon{verts: f, plane: poly.plane})
		}
		if len(b) >= 3 {
			*backs = append(*backs, polygon{verts: b, plane: poly.plane})
		}
	}
}

// node is a BSP tree node. Polygons coplanar with the node's plane are
// stored on the node itself.
type node struct {
	plane       *plane
	front, back *node
	polygons    []polygon
}

func newNode(polys []polygon) *node {
	n := &node{}
	n.build(polys)
	return n
}

// invert turns the solid inside out.
func (n *node) invert() {
	for i := range n.polygons {
		n.polygons[i] = n.polygons[i].flipped()
	}
	if n.plane != nil {
		f := n.plane.flipped()
		n.plane = &f
	}
	if n.front != nil {
		n.front.invert()
	}
	if n.back != nil {
		n.back.invert()
	}
	n.front, n.back = n.back, n.front
}

// clipPolygons removes the parts of polys that are inside this tree.
func (n *node) clipPolygons(polys []polygon) []polygon {
	if n.plane == nil {
		return append([]polygon(nil), polys...)
	}
	var f, b []polygon
	for _, p := range polys {
		n.plane.split(p, &f, &b, &f, &b)
	}
	if n.front != nil {
		f = n.front.clipPolygons(f)
	}
	if n.back != nil {
		b = n.back.clipPolygons(b)
	} else {
		b = nil
	}
	return append(f, b...)
}

// clipWhole clips each of polys against the tree on its own. A polygon that
// loses nothing is returned as it came in rather than as the fragments the
// tree's planes cut it into.
func (n *node) clipWhole(polys []polygon) []polygon {
	out := make([]polygon, 0, len(polys))
	for _, p := range polys {
		frags := n.clipPolygons([]polygon{p})
		var kept float64
		for _, f := range frags {
			kept += f.area()
		}
		whole := p.area()
		if math.Abs(kept-whole) <= 1e-9*math.Max(1, math.Abs(whole)) {
			out = append(out, p)
			continue
		}
		out = append(out, frags...)
	}
	return out
}

// build inserts polys into the tree, splitting as needed.
func (n *node) build(polys []polygon) {
	if len(polys) == 0 {
		return
	}
	if n.plane == nil {
		p := polys[0].plane
		n.plane = &p
	}
	var f, b []polygon
	for _, p := range polys {
		n.plane.split(p, &n.polygons, &n.polygons, &f, &b)
	}
	if len(f) > 0 {
		if n.front == nil {
			n.front = &node{}
		}
		n.front.build(f)
	}
	if len(b) > 0 {
		if n.back == nil {
			n.back = &node{}
		}
		n.back.build(b)
	}
}
