// Package simplify reduces triangle count by quadric-error edge collapse
// while preserving the closed 2-manifold invariant of the shell mesh.
package simplify

import (
	"container/heap"
	"sort"

	"github.com/harshaverse/karmic/internal/mesh"
)

// Simplify collapses edges in ascending error order until the mesh reaches
// targetTriangles or no collapse can be applied without breaking the
// 2-manifold invariant. Candidates that would create a non-manifold edge or
// a degenerate face are rejected and the next-cheapest is tried. The result
// is deterministic for identical input and target: ties order by vertex
// index pairs.
func Simplify(m *mesh.Mesh, targetTriangles int) *mesh.Mesh {
	if targetTriangles < 4 {
		targetTriangles = 4
	}
	if len(m.Triangles) <= targetTriangles {
		return cloneMesh(m)
	}

	s := newState(m)
	for s.aliveFaces > targetTriangles && s.queue.Len() > 0 {
		c := heap.Pop(&s.queue).(candidate)
		if !s.current(c) {
			continue
		}
		if !s.canCollapse(c.v0, c.v1, c.target) {
			// Rejected for topology or geometry; a later collapse nearby may
			// re-enable it, at which point the version bump re-queues the edge.
			continue
		}
		s.collapse(c)
	}
	return s.build()
}

type candidate struct {
	cost     float64
	v0, v1   int // v1 merges into v0; v0 < v1
	target   [3]float64
	ver0     int
	ver1     int
}

type candidateQueue []candidate

func (q candidateQueue) Len() int { return len(q) }
func (q candidateQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	if q[i].v0 != q[j].v0 {
		return q[i].v0 < q[j].v0
	}
	return q[i].v1 < q[j].v1
}
func (q candidateQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *candidateQueue) Push(x interface{}) { *q = append(*q, x.(candidate)) }
func (q *candidateQueue) Pop() interface{} {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}

type state struct {
	positions [][3]float64
	quadrics  []Quadric
	versions  []int
	alive     []bool // per vertex

	faces     [][3]int
	faceAlive []bool
	// vertex -> indices of incident faces
	incident [][]int

	aliveFaces int
	queue      candidateQueue
}

func newState(m *mesh.Mesh) *state {
	nv := len(m.Positions)
	s := &state{
		positions: append([][3]float64(nil), m.Positions...),
		quadrics:  make([]Quadric, nv),
		versions:  make([]int, nv),
		alive:     make([]bool, nv),
		faces:     append([][3]int(nil), m.Triangles...),
		faceAlive: make([]bool, len(m.Triangles)),
		incident:  make([][]int, nv),
	}
	for i := range s.alive {
		s.alive[i] = true
	}
	for fi, f := range s.faces {
		s.faceAlive[fi] = true
		s.aliveFaces++
		for _, v := range f {
			s.incident[v] = append(s.incident[v], fi)
		}
		if q, ok := faceQuadric(s.positions[f[0]], s.positions[f[1]], s.positions[f[2]]); ok {
			for _, v := range f {
				s.quadrics[v].Add(&q)
			}
		}
	}
	// Seed the queue with every unique edge, lowest index pairs first.
	seen := make(map[mesh.Edge]bool)
	var edges []mesh.Edge
	for _, f := range s.faces {
		for _, e := range [3]mesh.Edge{
			mesh.MakeEdge(f[0], f[1]),
			mesh.MakeEdge(f[1], f[2]),
			mesh.MakeEdge(f[2], f[0]),
		} {
			if !seen[e] {
				seen[e] = true
				edges = append(edges, e)
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].V0 != edges[j].V0 {
			return edges[i].V0 < edges[j].V0
		}
		return edges[i].V1 < edges[j].V1
	})
	for _, e := range edges {
		s.pushEdge(e.V0, e.V1)
	}
	heap.Init(&s.queue)
	return s
}

func (s *state) pushEdge(v0, v1 int) {
	if v0 > v1 {
		v0, v1 = v1, v0
	}
	q := s.quadrics[v0]
	q.Add(&s.quadrics[v1])
	target, ok := q.OptimalPosition()
	if !ok {
		target = s.bestFallback(&q, v0, v1)
	}
	heap.Push(&s.queue, candidate{
		cost:   q.Error(target),
		v0:     v0,
		v1:     v1,
		target: target,
		ver0:   s.versions[v0],
		ver1:   s.versions[v1],
	})
}

func (s *state) bestFallback(q *Quadric, v0, v1 int) [3]float64 {
	p0, p1 := s.positions[v0], s.positions[v1]
	mid := mesh.Scale(mesh.Add(p0, p1), 0.5)
	best, bestErr := p0, q.Error(p0)
	if e := q.Error(p1); e < bestErr {
		best, bestErr = p1, e
	}
	if e := q.Error(mid); e < bestErr {
		best = mid
	}
	return best
}

// current reports whether a popped candidate still describes a live edge
// with up-to-date endpoint versions.
func (s *state) current(c candidate) bool {
	if !s.alive[c.v0] || !s.alive[c.v1] {
		return false
	}
	if s.versions[c.v0] != c.ver0 || s.versions[c.v1] != c.ver1 {
		return false
	}
	return s.edgeFaceCount(c.v0, c.v1) > 0
}

func (s *state) edgeFaceCount(v0, v1 int) int {
	n := 0
	for _, fi := range s.incident[v0] {
		if !s.faceAlive[fi] {
			continue
		}
		if faceHas(s.faces[fi], v1) {
			n++
		}
	}
	return n
}

func faceHas(f [3]int, v int) bool { return f[0] == v || f[1] == v || f[2] == v }

// canCollapse enforces the manifold preconditions: the edge borders exactly
// two faces, the vertex rings intersect in exactly the two opposite
// vertices (link condition), the surviving neighborhood keeps at least
// a tetrahedron's worth of faces, and no surviving face around the merged
// vertex collapses to zero area at the target position.
func (s *state) canCollapse(v0, v1 int, target [3]float64) bool {
	if s.edgeFaceCount(v0, v1) != 2 {
		return false
	}
	ring0 := s.vertexRing(v0)
	ring1 := s.vertexRing(v1)
	shared := 0
	for v := range ring0 {
		if ring1[v] {
			shared++
		}
	}
	if shared != 2 {
		return false
	}
	// Collapsing an edge of a tetrahedron would fold it flat.
	if s.aliveFaces <= 4 {
		return false
	}
	if s.createsDegenerateFace(v0, v1, target) || s.createsDegenerateFace(v1, v0, target) {
		return false
	}
	return true
}

// createsDegenerateFace checks the faces incident to v that survive the
// collapse (those not touching the other endpoint) with v moved to target.
func (s *state) createsDegenerateFace(v, other int, target [3]float64) bool {
	for _, fi := range s.incident[v] {
		if !s.faceAlive[fi] {
			continue
		}
		f := s.faces[fi]
		if faceHas(f, other) {
			continue
		}
		var p [3][3]float64
		for i, vi := range f {
			if vi == v {
				p[i] = target
			} else {
				p[i] = s.positions[vi]
			}
		}
		n := mesh.Cross(mesh.Sub(p[1], p[0]), mesh.Sub(p[2], p[0]))
		if n[0]*n[0]+n[1]*n[1]+n[2]*n[2] < 1e-24 {
			return true
		}
	}
	return false
}

func (s *state) vertexRing(v int) map[int]bool {
	ring := make(map[int]bool)
	for _, fi := range s.incident[v] {
		if !s.faceAlive[fi] {
			continue
		}
		for _, o := range s.faces[fi] {
			if o != v {
				ring[o] = true
			}
		}
	}
	return ring
}

func (s *state) collapse(c candidate) {
	v0, v1 := c.v0, c.v1
	s.positions[v0] = c.target
	s.quadrics[v0].Add(&s.quadrics[v1])
	s.alive[v1] = false

	for _, fi := range s.incident[v1] {
		if !s.faceAlive[fi] {
			continue
		}
		f := &s.faces[fi]
		if faceHas(*f, v0) {
			// Face borders the collapsed edge; it degenerates and dies.
			s.faceAlive[fi] = false
			s.aliveFaces--
			continue
		}
		for i := range f {
			if f[i] == v1 {
				f[i] = v0
			}
		}
		s.incident[v0] = append(s.incident[v0], fi)
	}
	s.incident[v1] = nil

	// Only v0's quadric and position changed, so only its queued edges go
	// stale. Bump its version and requeue the surviving ring edges; entries
	// naming the dead v1 drop out on pop.
	s.versions[v0]++
	ring := s.vertexRing(v0)
	ringSorted := make([]int, 0, len(ring))
	for v := range ring {
		ringSorted = append(ringSorted, v)
	}
	sort.Ints(ringSorted)
	for _, v := range ringSorted {
		s.pushEdge(v0, v)
	}
}

// build compacts the surviving vertices and faces into a fresh mesh.
func (s *state) build() *mesh.Mesh {
	out := &mesh.Mesh{}
	remap := make([]int, len(s.positions))
	for i := range remap {
		remap[i] = -1
	}
	for fi, f := range s.faces {
		if !s.faceAlive[fi] {
			continue
		}
		var tri [3]int
		for i, v := range f {
			if remap[v] < 0 {
				remap[v] = len(out.Positions)
				out.Positions = append(out.Positions, s.positions[v])
			}
			tri[i] = remap[v]
		}
		out.Triangles = append(out.Triangles, tri)
	}
	return out
}

func cloneMesh(m *mesh.Mesh) *mesh.Mesh {
	return &mesh.Mesh{
		Positions: append([][3]float64(nil), m.Positions...),
		Triangles: append([][3]int(nil), m.Triangles...),
		Normals:   append([][3]float64(nil), m.Normals...),
	}
}
