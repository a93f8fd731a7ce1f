// Package kinematics converts body keypoints into joint angles.
package kinematics

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrDegenerateGeometry is returned when an angle cannot be measured because
// the vertex coincides with one of the other two points.
var ErrDegenerateGeometry = errors.New("degenerate joint geometry")

// degenerateEpsilon is the squared distance under which two points are
// considered coincident.
const degenerateEpsilon = 1e-12

// Point2D is a keypoint position in image pixel coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// vec converts the point to a gonum vector.
func (p Point2D) vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// finite reports whether both coordinates are finite numbers.
func (p Point2D) finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// JointTriple is an ordered (proximal, vertex, distal) set of points
// that defines an angle at Vertex.
type JointTriple struct {
	Proximal Point2D `json:"proximal"`
	Vertex   Point2D `json:"vertex"`
	Distal   Point2D `json:"distal"`
}

// Degenerate reports whether the triple has no well-defined angle: either
// arm has zero length or a coordinate is not finite.
func (j JointTriple) Degenerate() bool {
	if !j.Proximal.finite() || !j.Vertex.finite() || !j.Distal.finite() {
		return true
	}
	v := j.Vertex.vec()
	return r2.Norm2(r2.Sub(j.Proximal.vec(), v)) < degenerateEpsilon ||
		r2.Norm2(r2.Sub(j.Distal.vec(), v)) < degenerateEpsilon
}

// Angle returns the interior angle at the vertex and whether it is reliable.
// For degenerate triples it returns 0, false.
func (j JointTriple) Angle() (float64, bool) {
	if j.Degenerate() {
		return 0, false
	}
	return Angle(j.Proximal, j.Vertex, j.Distal), true
}

// Measure is like Angle but reports degenerate input as ErrDegenerateGeometry.
func (j JointTriple) Measure() (float64, error) {
	deg, ok := j.Angle()
	if !ok {
		return 0, ErrDegenerateGeometry
	}
	return deg, nil
}

// Angle computes the unsigned interior angle in degrees at b formed by the
// rays b->a and b->c. The result is in [0, 180] and does not depend on the
// winding of the points.
//
// When a or c coincides with b the angle is undefined and 0 is returned;
// use JointTriple.Angle to tell that case apart from a real 0.
func Angle(a, b, c Point2D) float64 {
	if (JointTriple{Proximal: a, Vertex: b, Distal: c}).Degenerate() {
		return 0
	}

	ba := r2.Sub(a.vec(), b.vec())
	bc := r2.Sub(c.vec(), b.vec())

	rad := math.Atan2(bc.Y, bc.X) - math.Atan2(ba.Y, ba.X)
	deg := math.Abs(rad * 180.0 / math.Pi)
	if deg > 180.0 {
		deg = 360.0 - deg
	}
	return deg
}
