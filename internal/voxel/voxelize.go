package voxel

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/harshaverse/karmic/internal/mesh"
	kerr "github.com/harshaverse/karmic/internal/pkg/errors"
)

// Voxelize rasterizes a mesh into a solid occupancy grid at the given
// resolution (cells along the longest bounding-box axis). Occupancy follows
// the enclosed-volume rule: a cell is solid when its center lies inside the
// mesh by parity of ray crossings along +Z, not merely when a triangle
// touches it. Fails with ErrResourceExceeded before allocating a grid that
// would blow past maxVoxels.
func Voxelize(ctx context.Context, m *mesh.Mesh, resolution int, maxVoxels int64) (*Grid, error) {
	if resolution < 2 {
		return nil, fmt.Errorf("voxelize: resolution %d too small: %w", resolution, kerr.ErrResourceExceeded)
	}
	min, max := m.Bounds()
	size := mesh.Sub(max, min)
	longest := math.Max(size[0], math.Max(size[1], size[2]))
	if longest <= 0 {
		return nil, fmt.Errorf("voxelize: mesh has zero extent: %w", kerr.ErrCorruptGeometry)
	}
	cell := longest / float64(resolution)

	nx := int(math.Ceil(size[0]/cell)) + 2
	ny := int(math.Ceil(size[1]/cell)) + 2
	nz := int(math.Ceil(size[2]/cell)) + 2
	if total := int64(nx) * int64(ny) * int64(nz); total > maxVoxels {
		return nil, fmt.Errorf("voxelize: %d voxels exceed ceiling %d: %w", total, maxVoxels, kerr.ErrResourceExceeded)
	}

	// One padding cell on each side keeps the boundary layer empty. The tiny
	// extra shift keeps axis-aligned geometry off exact column centers, so
	// rays do not graze triangle edges.
	origin := [3]float64{
		min[0] - cell*(1+1.0e-4),
		min[1] - cell*(1+2.3e-4),
		min[2] - cell*(1+3.1e-4),
	}
	g := NewGrid(nx, ny, nz, origin, cell)

	// Bin triangles by the x column range their projection covers.
	bins := make([][]int, nx)
	for ti, t := range m.Triangles {
		p0, p1, p2 := m.Positions[t[0]], m.Positions[t[1]], m.Positions[t[2]]
		xlo := math.Min(p0[0], math.Min(p1[0], p2[0]))
		xhi := math.Max(p0[0], math.Max(p1[0], p2[0]))
		lo := columnRange(xlo, origin[0], cell, nx, true)
		hi := columnRange(xhi, origin[0], cell, nx, false)
		for x := lo; x <= hi; x++ {
			bins[x] = append(bins[x], ti)
		}
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(runtime.GOMAXPROCS(0))
	for x := 0; x < nx; x++ {
		x := x
		if len(bins[x]) == 0 {
			continue
		}
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fillColumnSlab(g, m, bins[x], x)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, fmt.Errorf("voxelize: %w", err)
	}
	return g, nil
}

// fillColumnSlab computes ray crossings and parity-fills every (x, y) column
// of one x slab. Slabs never share cells, so no locking is needed.
func fillColumnSlab(g *Grid, m *mesh.Mesh, tris []int, x int) {
	cx := g.Origin[0] + (float64(x)+0.5)*g.CellSize
	crossings := make([]float64, 0, 8)
	for y := 0; y < g.Ny; y++ {
		cy := g.Origin[1] + (float64(y)+0.5)*g.CellSize
		crossings = crossings[:0]
		for _, ti := range tris {
			t := m.Triangles[ti]
			if z, ok := rayCrossingZ(m.Positions[t[0]], m.Positions[t[1]], m.Positions[t[2]], cx, cy); ok {
				crossings = append(crossings, z)
			}
		}
		if len(crossings) < 2 {
			continue
		}
		sort.Float64s(crossings)
		// An odd crossing count means the input is not watertight along this
		// column; the unpaired tail is dropped rather than guessed at.
		for k := 0; k+1 < len(crossings); k += 2 {
			fillColumnSpan(g, x, y, crossings[k], crossings[k+1])
		}
	}
}

// rayCrossingZ intersects the vertical ray through (cx, cy) with a triangle
// and returns the crossing height. Triangles parallel to the ray are skipped.
func rayCrossingZ(p0, p1, p2 [3]float64, cx, cy float64) (float64, bool) {
	d1x, d1y := p1[0]-p0[0], p1[1]-p0[1]
	d2x, d2y := p2[0]-p0[0], p2[1]-p0[1]
	denom := d1x*d2y - d1y*d2x
	if math.Abs(denom) < 1e-12 {
		return 0, false
	}
	qx, qy := cx-p0[0], cy-p0[1]
	u := (qx*d2y - qy*d2x) / denom
	v := (d1x*qy - d1y*qx) / denom
	if u < 0 || v < 0 || u+v > 1 {
		return 0, false
	}
	return p0[2] + u*(p1[2]-p0[2]) + v*(p2[2]-p0[2]), true
}

// fillColumnSpan marks the cells whose centers lie within (z0, z1).
func fillColumnSpan(g *Grid, x, y int, z0, z1 float64) {
	// Center of cell iz is Origin.z + (iz+0.5)*cell.
	lo := int(math.Ceil((z0-g.Origin[2])/g.CellSize - 0.5))
	hi := int(math.Floor((z1-g.Origin[2])/g.CellSize - 0.5))
	if lo < 0 {
		lo = 0
	}
	if hi >= g.Nz {
		hi = g.Nz - 1
	}
	for z := lo; z <= hi; z++ {
		g.Set(x, y, z, true)
	}
}

func columnRange(worldX, origin, cell float64, n int, low bool) int {
	i := int(math.Floor((worldX - origin) / cell))
	if low {
		i-- // conservative: projection may graze the neighboring column
	} else {
		i++
	}
	if i < 0 {
		i = 0
	}
	if i >= n {
		i = n - 1
	}
	return i
}
