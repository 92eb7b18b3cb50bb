// Package mesh holds the unified in-memory triangle mesh shared by every
// pipeline stage. Each stage consumes a Mesh and returns a fresh one.
package mesh

import (
	"fmt"
	"math"

	kerr "github.com/harshaverse/karmic/internal/pkg/errors"
)

// Mesh is an indexed triangle mesh. Normals are optional: either empty or
// one per position.
type Mesh struct {
	Positions [][3]float64
	Triangles [][3]int
	Normals   [][3]float64
}

func (m *Mesh) VertexCount() int   { return len(m.Positions) }
func (m *Mesh) TriangleCount() int { return len(m.Triangles) }

// Validate checks the invariants every parsed mesh must hold: at least one
// triangle and every index in range.
func (m *Mesh) Validate() error {
	if len(m.Triangles) == 0 {
		return fmt.Errorf("mesh has no triangles: %w", kerr.ErrCorruptGeometry)
	}
	n := len(m.Positions)
	for i, p := range m.Positions {
		for c := 0; c < 3; c++ {
			if math.IsNaN(p[c]) || math.IsInf(p[c], 0) {
				return fmt.Errorf("vertex %d has non-finite coordinate: %w", i, kerr.ErrCorruptGeometry)
			}
		}
	}
	for i, t := range m.Triangles {
		for _, idx := range t {
			if idx < 0 || idx >= n {
				return fmt.Errorf("triangle %d references vertex %d of %d: %w", i, idx, n, kerr.ErrCorruptGeometry)
			}
		}
	}
	if len(m.Normals) != 0 && len(m.Normals) != n {
		return fmt.Errorf("normal count %d does not match vertex count %d: %w", len(m.Normals), n, kerr.ErrCorruptGeometry)
	}
	return nil
}

// Bounds returns the axis-aligned bounding box.
func (m *Mesh) Bounds() (min, max [3]float64) {
	if len(m.Positions) == 0 {
		return
	}
	min, max = m.Positions[0], m.Positions[0]
	for _, p := range m.Positions[1:] {
		for c := 0; c < 3; c++ {
			if p[c] < min[c] {
				min[c] = p[c]
			}
			if p[c] > max[c] {
				max[c] = p[c]
			}
		}
	}
	return
}

// BoundsDiagonal returns the length of the bounding box diagonal.
func (m *Mesh) BoundsDiagonal() float64 {
	min, max := m.Bounds()
	return Length(Sub(max, min))
}

// ComputeNormals fills per-vertex normals by area-weighted averaging of
// incident face normals. Downstream stages call this when the parser left
// normals empty.
func (m *Mesh) ComputeNormals() {
	normals := make([][3]float64, len(m.Positions))
	for _, t := range m.Triangles {
		p0, p1, p2 := m.Positions[t[0]], m.Positions[t[1]], m.Positions[t[2]]
		// Cross product length carries the area weighting.
		fn := Cross(Sub(p1, p0), Sub(p2, p0))
		for _, idx := range t {
			normals[idx] = Add(normals[idx], fn)
		}
	}
	for i := range normals {
		normals[i] = Normalize(normals[i])
	}
	m.Normals = normals
}

// TriangleArea returns the area of triangle i.
func (m *Mesh) TriangleArea(i int) float64 {
	t := m.Triangles[i]
	p0, p1, p2 := m.Positions[t[0]], m.Positions[t[1]], m.Positions[t[2]]
	return 0.5 * Length(Cross(Sub(p1, p0), Sub(p2, p0)))
}

func Add(a, b [3]float64) [3]float64 { return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func Sub(a, b [3]float64) [3]float64 { return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func Scale(a [3]float64, s float64) [3]float64 {
	return [3]float64{a[0] * s, a[1] * s, a[2] * s}
}
func Dot(a, b [3]float64) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func Cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
func Length(a [3]float64) float64 { return math.Sqrt(Dot(a, a)) }

func Normalize(a [3]float64) [3]float64 {
	l := Length(a)
	if l == 0 {
		return a
	}
	return Scale(a, 1/l)
}
