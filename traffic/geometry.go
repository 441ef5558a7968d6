package traffic

import (
	"math"

	"github.com/samber/lo"
)

// Point is a position in canvas units.
type Point struct {
	X float64
	Y float64
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Scale returns p*k.
func (p Point) Scale(k float64) Point { return Point{X: p.X * k, Y: p.Y * k} }

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Intersects reports whether r and o overlap. Touching edges do not count.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W &&
		r.X+r.W > o.X &&
		r.Y < o.Y+o.H &&
		r.Y+r.H > o.Y
}

// Contains reports whether p lies inside r (edges included).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Grow returns r expanded by m on every side.
func (r Rect) Grow(m float64) Rect {
	return Rect{X: r.X - m, Y: r.Y - m, W: r.W + 2*m, H: r.H + 2*m}
}

// Union returns the smallest rect containing r and o.
func (r Rect) Union(o Rect) Rect {
	x0 := math.Min(r.X, o.X)
	y0 := math.Min(r.Y, o.Y)
	x1 := math.Max(r.X+r.W, o.X+o.W)
	y1 := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Center returns the midpoint of r.
func (r Rect) Center() Point { return Point{X: r.X + r.W/2, Y: r.Y + r.H/2} }

// Bezier is a quadratic Bézier curve.
type Bezier struct {
	P0, P1, P2 Point
}

// At evaluates the curve at t, clamped to [0,1].
func (b Bezier) At(t float64) Point {
	t = lo.Clamp(t, 0, 1)
	u := 1 - t
	return Point{
		X: u*u*b.P0.X + 2*u*t*b.P1.X + t*t*b.P2.X,
		Y: u*u*b.P0.Y + 2*u*t*b.P1.Y + t*t*b.P2.Y,
	}
}

// Tangent returns the derivative of the curve at t.
func (b Bezier) Tangent(t float64) Point {
	t = lo.Clamp(t, 0, 1)
	u := 1 - t
	return Point{
		X: 2*u*(b.P1.X-b.P0.X) + 2*t*(b.P2.X-b.P1.X),
		Y: 2*u*(b.P1.Y-b.P0.Y) + 2*t*(b.P2.Y-b.P1.Y),
	}
}

// Heading returns the tangent angle at t in radians.
func (b Bezier) Heading(t float64) float64 {
	d := b.Tangent(t)
	return math.Atan2(d.Y, d.X)
}
