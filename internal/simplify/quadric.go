package simplify

import (
	"gonum.org/v1/gonum/mat"

	"github.com/harshaverse/karmic/internal/mesh"
)

// Quadric is a symmetric 4x4 error quadric stored as its upper triangle:
// [a2 ab ac ad b2 bc bd c2 cd d2] for the plane (a, b, c, d).
type Quadric [10]float64

func (q *Quadric) Add(o *Quadric) {
	for i := range q {
		q[i] += o[i]
	}
}

// AddPlane accumulates the squared-distance quadric of an area-weighted plane.
func (q *Quadric) AddPlane(n [3]float64, d, weight float64) {
	a, b, c := n[0], n[1], n[2]
	q[0] += weight * a * a
	q[1] += weight * a * b
	q[2] += weight * a * c
	q[3] += weight * a * d
	q[4] += weight * b * b
	q[5] += weight * b * c
	q[6] += weight * b * d
	q[7] += weight * c * c
	q[8] += weight * c * d
	q[9] += weight * d * d
}

// Error evaluates v'Qv for the homogeneous point (v, 1).
func (q *Quadric) Error(v [3]float64) float64 {
	x, y, z := v[0], v[1], v[2]
	return q[0]*x*x + 2*q[1]*x*y + 2*q[2]*x*z + 2*q[3]*x +
		q[4]*y*y + 2*q[5]*y*z + 2*q[6]*y +
		q[7]*z*z + 2*q[8]*z +
		q[9]
}

// OptimalPosition solves for the point minimizing the quadric error. The
// bottom row is pinned to (0, 0, 0, 1); when the system is singular the
// caller falls back to candidate positions along the collapsing edge.
func (q *Quadric) OptimalPosition() ([3]float64, bool) {
	a := mat.NewDense(4, 4, []float64{
		q[0], q[1], q[2], q[3],
		q[1], q[4], q[5], q[6],
		q[2], q[5], q[7], q[8],
		0, 0, 0, 1,
	})
	b := mat.NewVecDense(4, []float64{0, 0, 0, 1})
	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return [3]float64{}, false
	}
	return [3]float64{x.AtVec(0), x.AtVec(1), x.AtVec(2)}, true
}

// faceQuadric builds the plane quadric of one triangle, weighted by area.
func faceQuadric(p0, p1, p2 [3]float64) (Quadric, bool) {
	cr := mesh.Cross(mesh.Sub(p1, p0), mesh.Sub(p2, p0))
	area := 0.5 * mesh.Length(cr)
	if area <= 0 {
		return Quadric{}, false
	}
	n := mesh.Normalize(cr)
	d := -mesh.Dot(n, p0)
	var q Quadric
	q.AddPlane(n, d, area)
	return q, true
}
