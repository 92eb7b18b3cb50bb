// Package repair fixes the defects that show up in real-world mesh files:
// near-duplicate vertices, zero-area faces and small boundary holes.
package repair

import (
	"fmt"
	"math"
	"sort"

	"github.com/harshaverse/karmic/internal/mesh"
	kerr "github.com/harshaverse/karmic/internal/pkg/errors"
)

// Repair welds vertices closer than epsilon, drops degenerate and duplicate
// faces, and closes boundary loops by ear clipping. It fails with
// ErrNonManifoldInput only when a hole cannot be closed without creating a
// non-manifold edge.
func Repair(m *mesh.Mesh, epsilon float64) (*mesh.Mesh, error) {
	out := weld(m, epsilon)
	dropDegenerate(out)
	compact(out)
	if len(out.Triangles) == 0 {
		return nil, fmt.Errorf("repair: no faces survived cleanup: %w", kerr.ErrCorruptGeometry)
	}
	if err := closeHoles(out); err != nil {
		return nil, err
	}
	return out, nil
}

// weld merges vertices within epsilon using a spatial hash over cells of
// epsilon size. The lowest-index member of a cluster survives, which keeps
// the result deterministic.
func weld(m *mesh.Mesh, epsilon float64) *mesh.Mesh {
	remap := make([]int, len(m.Positions))
	if epsilon <= 0 {
		for i := range remap {
			remap[i] = i
		}
	} else {
		cells := make(map[[3]int][]int)
		cellOf := func(p [3]float64) [3]int {
			return [3]int{
				int(math.Floor(p[0] / epsilon)),
				int(math.Floor(p[1] / epsilon)),
				int(math.Floor(p[2] / epsilon)),
			}
		}
		eps2 := epsilon * epsilon
		for i, p := range m.Positions {
			c := cellOf(p)
			found := -1
			for dx := -1; dx <= 1 && found < 0; dx++ {
				for dy := -1; dy <= 1 && found < 0; dy++ {
					for dz := -1; dz <= 1 && found < 0; dz++ {
						key := [3]int{c[0] + dx, c[1] + dy, c[2] + dz}
						for _, j := range cells[key] {
							d := mesh.Sub(p, m.Positions[j])
							if mesh.Dot(d, d) <= eps2 {
								found = j
								break
							}
						}
					}
				}
			}
			if found >= 0 {
				remap[i] = remap[found]
			} else {
				remap[i] = i
				cells[c] = append(cells[c], i)
			}
		}
	}
	out := &mesh.Mesh{Positions: append([][3]float64(nil), m.Positions...)}
	for _, t := range m.Triangles {
		out.Triangles = append(out.Triangles, [3]int{remap[t[0]], remap[t[1]], remap[t[2]]})
	}
	return out
}

// dropDegenerate removes faces with repeated indices, zero area, or the
// same vertex set as an earlier face.
func dropDegenerate(m *mesh.Mesh) {
	scale := m.BoundsDiagonal()
	minArea := 1e-12 * scale * scale
	seen := make(map[[3]int]bool, len(m.Triangles))
	kept := m.Triangles[:0]
	for _, t := range m.Triangles {
		if t[0] == t[1] || t[1] == t[2] || t[2] == t[0] {
			continue
		}
		key := [3]int{t[0], t[1], t[2]}
		sort.Ints(key[:])
		if seen[key] {
			continue
		}
		p0, p1, p2 := m.Positions[t[0]], m.Positions[t[1]], m.Positions[t[2]]
		if 0.5*mesh.Length(mesh.Cross(mesh.Sub(p1, p0), mesh.Sub(p2, p0))) <= minArea {
			continue
		}
		seen[key] = true
		kept = append(kept, t)
	}
	m.Triangles = kept
}

// compact drops unreferenced vertices and remaps indices.
func compact(m *mesh.Mesh) {
	remap := make([]int, len(m.Positions))
	for i := range remap {
		remap[i] = -1
	}
	var positions [][3]float64
	for ti, t := range m.Triangles {
		for i, v := range t {
			if remap[v] < 0 {
				remap[v] = len(positions)
				positions = append(positions, m.Positions[v])
			}
			m.Triangles[ti][i] = remap[v]
		}
	}
	m.Positions = positions
	m.Normals = nil
}

// closeHoles finds boundary loops and triangulates them by ear clipping.
func closeHoles(m *mesh.Mesh) error {
	uses := m.EdgeUses()
	for _, n := range uses {
		if n > 2 {
			return fmt.Errorf("repair: edge shared by %d faces: %w", n, kerr.ErrNonManifoldInput)
		}
	}
	// Directed boundary half-edges: face edges whose undirected twin count
	// is one. The hole winds opposite to them.
	next := make(map[int]int)
	for _, t := range m.Triangles {
		for _, he := range [3][2]int{{t[0], t[1]}, {t[1], t[2]}, {t[2], t[0]}} {
			if uses[mesh.MakeEdge(he[0], he[1])] != 1 {
				continue
			}
			// Reverse so the fill triangles oppose the existing winding.
			if _, dup := next[he[1]]; dup {
				return fmt.Errorf("repair: vertex %d on multiple boundary loops: %w", he[1], kerr.ErrNonManifoldInput)
			}
			next[he[1]] = he[0]
		}
	}
	if len(next) == 0 {
		return nil
	}

	starts := make([]int, 0, len(next))
	for v := range next {
		starts = append(starts, v)
	}
	sort.Ints(starts)
	visited := make(map[int]bool)
	for _, start := range starts {
		if visited[start] {
			continue
		}
		loop := []int{start}
		visited[start] = true
		for v := next[start]; v != start; v = next[v] {
			if visited[v] || len(loop) > len(next) {
				return fmt.Errorf("repair: boundary loop does not close: %w", kerr.ErrNonManifoldInput)
			}
			visited[v] = true
			loop = append(loop, v)
		}
		if err := fillLoop(m, loop, uses); err != nil {
			return err
		}
	}
	return nil
}

// fillLoop ear-clips one boundary loop. Every new edge is checked against
// the edge-use table so the fill never pushes an edge past two faces.
func fillLoop(m *mesh.Mesh, loop []int, uses map[mesh.Edge]int) error {
	if len(loop) < 3 {
		return fmt.Errorf("repair: boundary loop of %d vertices: %w", len(loop), kerr.ErrNonManifoldInput)
	}
	normal := loopNormal(m, loop)
	addTri := func(a, b, c int) error {
		for _, e := range [3]mesh.Edge{mesh.MakeEdge(a, b), mesh.MakeEdge(b, c), mesh.MakeEdge(c, a)} {
			if uses[e] >= 2 {
				return fmt.Errorf("repair: closing hole would overload edge (%d,%d): %w", e.V0, e.V1, kerr.ErrNonManifoldInput)
			}
		}
		for _, e := range [3]mesh.Edge{mesh.MakeEdge(a, b), mesh.MakeEdge(b, c), mesh.MakeEdge(c, a)} {
			uses[e]++
		}
		m.Triangles = append(m.Triangles, [3]int{a, b, c})
		return nil
	}

	work := append([]int(nil), loop...)
	for len(work) > 3 {
		clipped := false
		for i := 0; i < len(work); i++ {
			prev := work[(i+len(work)-1)%len(work)]
			cur := work[i]
			nxt := work[(i+1)%len(work)]
			if !isEar(m, work, prev, cur, nxt, normal) {
				continue
			}
			if err := addTri(prev, cur, nxt); err != nil {
				// Try another ear before giving up on the loop.
				continue
			}
			work = append(work[:i], work[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			return fmt.Errorf("repair: boundary loop cannot be ear-clipped: %w", kerr.ErrNonManifoldInput)
		}
	}
	return addTri(work[0], work[1], work[2])
}

// loopNormal computes the Newell normal of the loop polygon.
func loopNormal(m *mesh.Mesh, loop []int) [3]float64 {
	var n [3]float64
	for i, vi := range loop {
		p := m.Positions[vi]
		q := m.Positions[loop[(i+1)%len(loop)]]
		n[0] += (p[1] - q[1]) * (p[2] + q[2])
		n[1] += (p[2] - q[2]) * (p[0] + q[0])
		n[2] += (p[0] - q[0]) * (p[1] + q[1])
	}
	return mesh.Normalize(n)
}

// isEar checks convexity against the loop normal and that no other loop
// vertex falls inside the candidate triangle.
func isEar(m *mesh.Mesh, work []int, a, b, c int, normal [3]float64) bool {
	pa, pb, pc := m.Positions[a], m.Positions[b], m.Positions[c]
	cr := mesh.Cross(mesh.Sub(pb, pa), mesh.Sub(pc, pa))
	if mesh.Dot(cr, normal) <= 0 {
		return false
	}
	for _, v := range work {
		if v == a || v == b || v == c {
			continue
		}
		if pointInTriangle(m.Positions[v], pa, pb, pc, normal) {
			return false
		}
	}
	return true
}

func pointInTriangle(p, a, b, c, normal [3]float64) bool {
	inside := func(u, v [3]float64) bool {
		return mesh.Dot(mesh.Cross(mesh.Sub(v, u), mesh.Sub(p, u)), normal) >= 0
	}
	return inside(a, b) && inside(b, c) && inside(c, a)
}
