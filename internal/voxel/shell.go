package voxel

import (
	"fmt"

	"github.com/harshaverse/karmic/internal/mesh"
	kerr "github.com/harshaverse/karmic/internal/pkg/errors"
)

var faceDirs = [6]struct {
	dx, dy, dz int
	// Face corners as lattice offsets from the cell origin, wound
	// counter-clockwise seen from outside the cell.
	corners [4][3]int
}{
	{1, 0, 0, [4][3]int{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}},
	{-1, 0, 0, [4][3]int{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
	{0, 1, 0, [4][3]int{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}},
	{0, -1, 0, [4][3]int{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	{0, 0, 1, [4][3]int{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
	{0, 0, -1, [4][3]int{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}},
}

// ExtractShell reconstructs the outer boundary surface of the occupancy
// field. Enclosed cavities are filled (this is the stage that discards
// internal geometry), only the largest connected solid component is kept,
// and the grid is locally thickened wherever the boxel surface would pinch,
// so the emitted mesh is closed and 2-manifold by construction. Vertex
// positions are mapped back into world coordinates via the grid origin and
// cell size.
func ExtractShell(g *Grid) (*mesh.Mesh, error) {
	fillEnclosedCavities(g)
	if !keepLargestComponent(g) {
		return nil, fmt.Errorf("extract shell: no enclosed volume: %w", kerr.ErrCorruptGeometry)
	}
	resolvePinches(g)

	m := &mesh.Mesh{}
	cornerIdx := make(map[[3]int]int)
	corner := func(x, y, z int) int {
		key := [3]int{x, y, z}
		if idx, ok := cornerIdx[key]; ok {
			return idx
		}
		idx := len(m.Positions)
		cornerIdx[key] = idx
		m.Positions = append(m.Positions, g.CornerWorld(x, y, z))
		return idx
	}

	for z := 0; z < g.Nz; z++ {
		for y := 0; y < g.Ny; y++ {
			for x := 0; x < g.Nx; x++ {
				if !g.At(x, y, z) {
					continue
				}
				for _, d := range faceDirs {
					if g.At(x+d.dx, y+d.dy, z+d.dz) {
						continue
					}
					var q [4]int
					for i, c := range d.corners {
						q[i] = corner(x+c[0], y+c[1], z+c[2])
					}
					m.Triangles = append(m.Triangles,
						[3]int{q[0], q[1], q[2]},
						[3]int{q[0], q[2], q[3]},
					)
				}
			}
		}
	}
	if len(m.Triangles) == 0 {
		return nil, fmt.Errorf("extract shell: empty surface: %w", kerr.ErrCorruptGeometry)
	}
	return m, nil
}

// fillEnclosedCavities flood-fills the exterior from the (always empty)
// padding layer and marks everything unreachable as solid. Interior voids
// and nested geometry vanish here.
func fillEnclosedCavities(g *Grid) {
	exterior := make([]bool, g.Nx*g.Ny*g.Nz)
	stack := []int{g.Index(0, 0, 0)}
	exterior[stack[0]] = true
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x := idx % g.Nx
		y := (idx / g.Nx) % g.Ny
		z := idx / (g.Nx * g.Ny)
		for _, d := range faceDirs {
			nx, ny, nz := x+d.dx, y+d.dy, z+d.dz
			if !g.InBounds(nx, ny, nz) || g.At(nx, ny, nz) {
				continue
			}
			ni := g.Index(nx, ny, nz)
			if !exterior[ni] {
				exterior[ni] = true
				stack = append(stack, ni)
			}
		}
	}
	for i := range g.bits {
		g.bits[i] = !exterior[i]
	}
}

// keepLargestComponent labels 6-connected solid components and erases all
// but the most voxel-heavy one (first found wins ties, which is
// deterministic for a fixed scan order). Returns false when nothing is solid.
func keepLargestComponent(g *Grid) bool {
	labels := make([]int, len(g.bits))
	counts := []int{0} // label 0 is "unlabeled"
	for start, solid := range g.bits {
		if !solid || labels[start] != 0 {
			continue
		}
		label := len(counts)
		counts = append(counts, 0)
		stack := []int{start}
		labels[start] = label
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			counts[label]++
			x := idx % g.Nx
			y := (idx / g.Nx) % g.Ny
			z := idx / (g.Nx * g.Ny)
			for _, d := range faceDirs {
				nx, ny, nz := x+d.dx, y+d.dy, z+d.dz
				if !g.InBounds(nx, ny, nz) || !g.At(nx, ny, nz) {
					continue
				}
				ni := g.Index(nx, ny, nz)
				if labels[ni] == 0 {
					labels[ni] = label
					stack = append(stack, ni)
				}
			}
		}
	}
	best, bestCount := 0, 0
	for label := 1; label < len(counts); label++ {
		if counts[label] > bestCount {
			best, bestCount = label, counts[label]
		}
	}
	if best == 0 {
		return false
	}
	for i := range g.bits {
		g.bits[i] = labels[i] == best
	}
	return true
}

// resolvePinches thickens the grid wherever the boxel surface would touch
// itself along a bare edge or corner. Two solid cells that meet only
// diagonally around a lattice edge would share that edge between four
// boundary faces; two cells meeting only at a body diagonal would pinch at
// a vertex. Both are resolved by marking one of the empty cells solid,
// which only adds volume, so the loop terminates.
func resolvePinches(g *Grid) {
	for {
		changed := false
		if fixEdgePinches(g) {
			changed = true
		}
		if fixCornerPinches(g) {
			changed = true
		}
		if !changed {
			return
		}
	}
}

func fixEdgePinches(g *Grid) bool {
	changed := false
	// For each lattice edge, examine the four cells around it. The cell
	// quadruple is expressed by the two axes perpendicular to the edge.
	axes := [3][2][3]int{
		{{0, 1, 0}, {0, 0, 1}}, // edge along X
		{{1, 0, 0}, {0, 0, 1}}, // edge along Y
		{{1, 0, 0}, {0, 1, 0}}, // edge along Z
	}
	for _, ax := range axes {
		u, v := ax[0], ax[1]
		for z := 0; z < g.Nz-1; z++ {
			for y := 0; y < g.Ny-1; y++ {
				for x := 0; x < g.Nx-1; x++ {
					a := g.At(x, y, z)
					b := g.At(x+u[0], y+u[1], z+u[2])
					c := g.At(x+v[0], y+v[1], z+v[2])
					d := g.At(x+u[0]+v[0], y+u[1]+v[1], z+u[2]+v[2])
					if a && d && !b && !c {
						g.Set(x+u[0], y+u[1], z+u[2], true)
						changed = true
					} else if b && c && !a && !d {
						g.Set(x, y, z, true)
						changed = true
					}
				}
			}
		}
	}
	return changed
}

// bodyDiagonal reports the first cell of a body-diagonal pair whose two
// members both have the wanted occupancy.
func bodyDiagonal(solid [2][2][2]bool, want bool) (dx, dy, dz int, ok bool) {
	for dz = 0; dz < 2; dz++ {
		for dy = 0; dy < 2; dy++ {
			for dx = 0; dx < 2; dx++ {
				if solid[dx][dy][dz] == want && solid[1-dx][1-dy][1-dz] == want {
					return dx, dy, dz, true
				}
			}
		}
	}
	return 0, 0, 0, false
}

func fixCornerPinches(g *Grid) bool {
	changed := false
	for z := 0; z < g.Nz-1; z++ {
		for y := 0; y < g.Ny-1; y++ {
			for x := 0; x < g.Nx-1; x++ {
				var solid [2][2][2]bool
				count := 0
				for dz := 0; dz < 2; dz++ {
					for dy := 0; dy < 2; dy++ {
						for dx := 0; dx < 2; dx++ {
							if g.At(x+dx, y+dy, z+dz) {
								solid[dx][dy][dz] = true
								count++
							}
						}
					}
				}
				switch count {
				case 2:
					// Body-diagonal solid pair: bridge through one neighbor.
					if dx, dy, dz, ok := bodyDiagonal(solid, true); ok {
						g.Set(x+(1-dx), y+dy, z+dz, true)
						changed = true
					}
				case 6:
					// Body-diagonal empty pair inside solid: fill one end.
					if dx, dy, dz, ok := bodyDiagonal(solid, false); ok {
						g.Set(x+dx, y+dy, z+dz, true)
						changed = true
					}
				}
			}
		}
	}
	return changed
}
