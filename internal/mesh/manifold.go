package mesh

// Edge is an undirected edge key with v0 < v1.
type Edge struct {
	V0, V1 int
}

// MakeEdge orders the endpoints so an edge has one canonical key.
func MakeEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{V0: a, V1: b}
}

// EdgeUses counts how many triangles border each undirected edge.
func (m *Mesh) EdgeUses() map[Edge]int {
	uses := make(map[Edge]int, len(m.Triangles)*3/2)
	for _, t := range m.Triangles {
		uses[MakeEdge(t[0], t[1])]++
		uses[MakeEdge(t[1], t[2])]++
		uses[MakeEdge(t[2], t[0])]++
	}
	return uses
}

// IsClosedManifold reports whether every edge borders exactly two triangles.
func (m *Mesh) IsClosedManifold() bool {
	for _, n := range m.EdgeUses() {
		if n != 2 {
			return false
		}
	}
	return len(m.Triangles) > 0
}

// BoundaryEdges returns the edges bordered by exactly one triangle.
func (m *Mesh) BoundaryEdges() []Edge {
	var out []Edge
	for e, n := range m.EdgeUses() {
		if n == 1 {
			out = append(out, e)
		}
	}
	return out
}

// ShellCount returns the number of connected components over shared vertices.
// A clean outer-shell extraction yields exactly one.
func (m *Mesh) ShellCount() int {
	if len(m.Triangles) == 0 {
		return 0
	}
	parent := make([]int, len(m.Positions))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	used := make(map[int]bool, len(m.Positions))
	for _, t := range m.Triangles {
		union(t[0], t[1])
		union(t[1], t[2])
		used[t[0]] = true
		used[t[1]] = true
		used[t[2]] = true
	}
	roots := make(map[int]bool)
	for v := range used {
		roots[find(v)] = true
	}
	return len(roots)
}
