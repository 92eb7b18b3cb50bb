// Package voxel rasterizes meshes into solid occupancy grids and
// reconstructs the outer shell surface from them.
package voxel

// Grid is a dense occupancy field over an axis-aligned bounding box.
// Origin is the world position of the (0,0,0) cell corner; CellSize is the
// edge length of a cubic cell. The grid always carries one empty padding
// layer on every side so the exterior is reachable from any boundary cell.
type Grid struct {
	Nx, Ny, Nz int
	Origin     [3]float64
	CellSize   float64

	bits []bool
}

func NewGrid(nx, ny, nz int, origin [3]float64, cell float64) *Grid {
	return &Grid{
		Nx: nx, Ny: ny, Nz: nz,
		Origin:   origin,
		CellSize: cell,
		bits:     make([]bool, nx*ny*nz),
	}
}

func (g *Grid) Index(x, y, z int) int { return (z*g.Ny+y)*g.Nx + x }

func (g *Grid) InBounds(x, y, z int) bool {
	return x >= 0 && x < g.Nx && y >= 0 && y < g.Ny && z >= 0 && z < g.Nz
}

func (g *Grid) At(x, y, z int) bool {
	if !g.InBounds(x, y, z) {
		return false
	}
	return g.bits[g.Index(x, y, z)]
}

func (g *Grid) Set(x, y, z int, v bool) {
	g.bits[g.Index(x, y, z)] = v
}

// OccupiedCount returns the number of solid cells.
func (g *Grid) OccupiedCount() int {
	n := 0
	for _, b := range g.bits {
		if b {
			n++
		}
	}
	return n
}

// CornerWorld maps a lattice corner (cell corner, not center) to world space.
func (g *Grid) CornerWorld(x, y, z int) [3]float64 {
	return [3]float64{
		g.Origin[0] + float64(x)*g.CellSize,
		g.Origin[1] + float64(y)*g.CellSize,
		g.Origin[2] + float64(z)*g.CellSize,
	}
}

// CenterWorld maps a cell center to world space.
func (g *Grid) CenterWorld(x, y, z int) [3]float64 {
	return [3]float64{
		g.Origin[0] + (float64(x)+0.5)*g.CellSize,
		g.Origin[1] + (float64(y)+0.5)*g.CellSize,
		g.Origin[2] + (float64(z)+0.5)*g.CellSize,
	}
}

// ResolutionPolicy decides how many cells the longest axis gets as a
// function of input complexity, plus the hard memory ceiling. Values come
// from configuration, not constants baked into the pipeline.
type ResolutionPolicy struct {
	BaseResolution    int   // cells along the longest axis for simple inputs
	MaxResolution     int   // upper clamp regardless of input size
	EscalateTriangles int   // triangle count at which resolution starts growing
	MaxVoxelCount     int64 // hard ceiling on Nx*Ny*Nz
}

// ResolutionFor picks the grid resolution for a mesh with the given triangle
// count. Denser inputs earn more cells, in steps, clamped to MaxResolution.
func (p ResolutionPolicy) ResolutionFor(triangleCount int) int {
	res := p.BaseResolution
	step := p.BaseResolution / 2
	if step < 1 {
		step = 1
	}
	esc := p.EscalateTriangles
	if esc <= 0 {
		esc = 20000
	}
	for t := triangleCount; t > esc && res < p.MaxResolution; t /= 4 {
		res += step
	}
	if res > p.MaxResolution {
		res = p.MaxResolution
	}
	if res < 4 {
		res = 4
	}
	return res
}
