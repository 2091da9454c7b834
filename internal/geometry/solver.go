package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// MinPoints is the number of anchor distances trilateration consumes.
const MinPoints = 3

// collinearEpsilon rejects anchor triples whose determinant is too small to invert.
const collinearEpsilon = 1e-4

var (
	// ErrTooFewPoints is returned when fewer than MinPoints points are available.
	ErrTooFewPoints = errors.New("at least three points are required")
	// ErrCollinear is returned when the selected anchors are nearly collinear.
	ErrCollinear = errors.New("anchors are nearly collinear")
	// errEmptyBounds is returned by Bounds.Validate for inverted or empty boxes.
	errEmptyBounds = errors.New("bounds max must be greater than min on both axes")
)

// Point is an anchor coordinate with the measured distance to the tag.
type Point struct {
	Anchor   r2.Vec
	Distance float64
}

// Bounds is the axis-aligned box solved positions are clamped into.
type Bounds struct {
	Min r2.Vec
	Max r2.Vec
}

// NewBounds builds a box from its corner coordinates.
func NewBounds(minX, minY, maxX, maxY float64) Bounds {
	return Bounds{
		Min: r2.Vec{X: minX, Y: minY},
		Max: r2.Vec{X: maxX, Y: maxY},
	}
}

// Validate reports whether the box has positive extent on both axes.
func (b Bounds) Validate() error {
	if !(b.Max.X > b.Min.X) || !(b.Max.Y > b.Min.Y) {
		return fmt.Errorf("%w: min=%v max=%v", errEmptyBounds, b.Min, b.Max)
	}

	return nil
}

// Clamp returns v moved to the nearest point inside the box.
func (b Bounds) Clamp(v r2.Vec) r2.Vec {
	return r2.Vec{
		X: math.Max(b.Min.X, math.Min(b.Max.X, v.X)),
		Y: math.Max(b.Min.Y, math.Min(b.Max.Y, v.Y)),
	}
}

// Trilaterate solves the position from the first three points without clamping.
//
// Subtracting the circle equations pairwise (p1-p2, p2-p3) yields a 2x2 linear
// system that is solved by Cramer's rule.
func Trilaterate(points []Point) (r2.Vec, error) {
	if len(points) < MinPoints {
		return r2.Vec{}, ErrTooFewPoints
	}

	p1, p2, p3 := points[0], points[1], points[2]
	x1, y1, d1 := p1.Anchor.X, p1.Anchor.Y, p1.Distance
	x2, y2, d2 := p2.Anchor.X, p2.Anchor.Y, p2.Distance
	x3, y3, d3 := p3.Anchor.X, p3.Anchor.Y, p3.Distance

	a := 2 * (x2 - x1)
	b := 2 * (y2 - y1)
	c := d1*d1 - d2*d2 - x1*x1 + x2*x2 - y1*y1 + y2*y2
	d := 2 * (x3 - x2)
	e := 2 * (y3 - y2)
	f := d2*d2 - d3*d3 - x2*x2 + x3*x3 - y2*y2 + y3*y3

	denom := a*e - b*d
	if math.Abs(denom) < collinearEpsilon {
		return r2.Vec{}, ErrCollinear
	}

	return r2.Vec{
		X: (c*e - f*b) / denom,
		Y: (a*f - d*c) / denom,
	}, nil
}

// Solver trilaterates and clamps results into a deployment area.
type Solver struct {
	bounds Bounds
}

// NewSolver creates a solver clamping into bounds.
func NewSolver(bounds Bounds) *Solver {
	return &Solver{
		bounds: bounds,
	}
}

// Bounds returns the clamp box.
func (s *Solver) Bounds() Bounds {
	return s.bounds
}

// Solve returns the clamped position, or false when the points are insufficient
// or degenerate.
func (s *Solver) Solve(points []Point) (r2.Vec, bool) {
	v, err := Trilaterate(points)
	if err != nil {
		return r2.Vec{}, false
	}

	return s.bounds.Clamp(v), true
}
