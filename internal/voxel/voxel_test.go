package voxel

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/harshaverse/karmic/internal/mesh"
	kerr "github.com/harshaverse/karmic/internal/pkg/errors"
)

func box(min, max [3]float64, flip bool) *mesh.Mesh {
	x0, y0, z0 := min[0], min[1], min[2]
	x1, y1, z1 := max[0], max[1], max[2]
	m := &mesh.Mesh{
		Positions: [][3]float64{
			{x0, y0, z0}, {x1, y0, z0}, {x1, y1, z0}, {x0, y1, z0},
			{x0, y0, z1}, {x1, y0, z1}, {x1, y1, z1}, {x0, y1, z1},
		},
		Triangles: [][3]int{
			{0, 2, 1}, {0, 3, 2},
			{4, 5, 6}, {4, 6, 7},
			{0, 1, 5}, {0, 5, 4},
			{2, 3, 7}, {2, 7, 6},
			{0, 4, 7}, {0, 7, 3},
			{1, 2, 6}, {1, 6, 5},
		},
	}
	if flip {
		for i := range m.Triangles {
			m.Triangles[i][1], m.Triangles[i][2] = m.Triangles[i][2], m.Triangles[i][1]
		}
	}
	return m
}

func appendMesh(dst, src *mesh.Mesh) *mesh.Mesh {
	off := len(dst.Positions)
	dst.Positions = append(dst.Positions, src.Positions...)
	for _, t := range src.Triangles {
		dst.Triangles = append(dst.Triangles, [3]int{t[0] + off, t[1] + off, t[2] + off})
	}
	return dst
}

func cellOf(g *Grid, p [3]float64) (int, int, int) {
	return int(math.Floor((p[0] - g.Origin[0]) / g.CellSize)),
		int(math.Floor((p[1] - g.Origin[1]) / g.CellSize)),
		int(math.Floor((p[2] - g.Origin[2]) / g.CellSize))
}

func TestVoxelizeCube(t *testing.T) {
	m := box([3]float64{0, 0, 0}, [3]float64{1, 1, 1}, false)
	g, err := Voxelize(context.Background(), m, 16, 1<<20)
	if err != nil {
		t.Fatalf("voxelize: %v", err)
	}
	if g.OccupiedCount() == 0 {
		t.Fatalf("expected occupied cells")
	}
	x, y, z := cellOf(g, [3]float64{0.5, 0.5, 0.5})
	if !g.At(x, y, z) {
		t.Fatalf("expected cube center cell (%d,%d,%d) to be solid", x, y, z)
	}
	c := g.CenterWorld(x, y, z)
	for i := range c {
		if math.Abs(c[i]-0.5) > g.CellSize {
			t.Fatalf("cell center %v too far from query point 0.5", c)
		}
	}
	ox, oy, oz := cellOf(g, [3]float64{-0.5, 0.5, 0.5})
	if g.At(ox, oy, oz) {
		t.Fatalf("expected cell outside the cube to be empty")
	}
	// Roughly 16^3 interior cells, allowing for surface rounding.
	if got, want := g.OccupiedCount(), 16*16*16; got < want/2 || got > want*2 {
		t.Fatalf("occupied count %d implausible for a unit cube at 16", got)
	}
}

func TestVoxelizeEmptyPaddingLayer(t *testing.T) {
	m := box([3]float64{0, 0, 0}, [3]float64{1, 1, 1}, false)
	g, err := Voxelize(context.Background(), m, 8, 1<<20)
	if err != nil {
		t.Fatalf("voxelize: %v", err)
	}
	for x := 0; x < g.Nx; x++ {
		for y := 0; y < g.Ny; y++ {
			if g.At(x, y, 0) || g.At(x, y, g.Nz-1) {
				t.Fatalf("padding layer must stay empty")
			}
		}
	}
}

func TestVoxelizeResourceLimit(t *testing.T) {
	m := box([3]float64{0, 0, 0}, [3]float64{1, 1, 1}, false)
	_, err := Voxelize(context.Background(), m, 64, 100)
	if !errors.Is(err, kerr.ErrResourceExceeded) {
		t.Fatalf("expected ErrResourceExceeded, got %v", err)
	}
}

func TestVoxelizeZeroExtent(t *testing.T) {
	m := &mesh.Mesh{
		Positions: [][3]float64{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}},
		Triangles: [][3]int{{0, 1, 2}},
	}
	if _, err := Voxelize(context.Background(), m, 16, 1<<20); !errors.Is(err, kerr.ErrCorruptGeometry) {
		t.Fatalf("expected ErrCorruptGeometry, got %v", err)
	}
}

func TestResolutionPolicy(t *testing.T) {
	p := ResolutionPolicy{BaseResolution: 64, MaxResolution: 256, MaxVoxelCount: 1 << 30}
	if got := p.ResolutionFor(500); got != 64 {
		t.Fatalf("expected base resolution for small input, got %d", got)
	}
	if got := p.ResolutionFor(100000); got <= 64 {
		t.Fatalf("expected higher resolution for dense input, got %d", got)
	}
	if got := p.ResolutionFor(1 << 40); got != 256 {
		t.Fatalf("expected clamp at max resolution, got %d", got)
	}

	// The escalation threshold is part of the policy, not a baked-in constant.
	p.EscalateTriangles = 200
	if got := p.ResolutionFor(500); got <= 64 {
		t.Fatalf("expected lowered threshold to escalate, got %d", got)
	}
	p.EscalateTriangles = 1 << 30
	if got := p.ResolutionFor(100000); got != 64 {
		t.Fatalf("expected raised threshold to hold base resolution, got %d", got)
	}
}

func TestExtractShellManifold(t *testing.T) {
	m := box([3]float64{0, 0, 0}, [3]float64{1, 1, 1}, false)
	g, err := Voxelize(context.Background(), m, 12, 1<<20)
	if err != nil {
		t.Fatalf("voxelize: %v", err)
	}
	shell, err := ExtractShell(g)
	if err != nil {
		t.Fatalf("extract shell: %v", err)
	}
	if shell.TriangleCount() == 0 {
		t.Fatalf("expected shell triangles")
	}
	if !shell.IsClosedManifold() {
		t.Fatalf("shell must be a closed 2-manifold")
	}
	if n := shell.ShellCount(); n != 1 {
		t.Fatalf("expected a single shell, got %d", n)
	}
}

// A hollow cube (inner cavity fully enclosed) must reconstruct to the same
// outer surface as a solid cube: internal geometry is removed.
func TestExtractShellFillsCavity(t *testing.T) {
	solid := box([3]float64{0, 0, 0}, [3]float64{1, 1, 1}, false)
	hollow := box([3]float64{0, 0, 0}, [3]float64{1, 1, 1}, false)
	hollow = appendMesh(hollow, box([3]float64{0.25, 0.25, 0.25}, [3]float64{0.75, 0.75, 0.75}, true))

	gSolid, err := Voxelize(context.Background(), solid, 12, 1<<20)
	if err != nil {
		t.Fatalf("voxelize solid: %v", err)
	}
	gHollow, err := Voxelize(context.Background(), hollow, 12, 1<<20)
	if err != nil {
		t.Fatalf("voxelize hollow: %v", err)
	}
	sSolid, err := ExtractShell(gSolid)
	if err != nil {
		t.Fatalf("extract solid: %v", err)
	}
	sHollow, err := ExtractShell(gHollow)
	if err != nil {
		t.Fatalf("extract hollow: %v", err)
	}
	if sSolid.TriangleCount() != sHollow.TriangleCount() {
		t.Fatalf("cavity not filled: %d vs %d triangles", sHollow.TriangleCount(), sSolid.TriangleCount())
	}
	if !sHollow.IsClosedManifold() || sHollow.ShellCount() != 1 {
		t.Fatalf("hollow reconstruction must be one closed shell")
	}
}

// With two disjoint bodies only the larger one survives.
func TestExtractShellKeepsLargestComponent(t *testing.T) {
	m := box([3]float64{0, 0, 0}, [3]float64{1, 1, 1}, false)
	m = appendMesh(m, box([3]float64{2, 0, 0}, [3]float64{2.25, 0.25, 0.25}, false))
	g, err := Voxelize(context.Background(), m, 16, 1<<22)
	if err != nil {
		t.Fatalf("voxelize: %v", err)
	}
	shell, err := ExtractShell(g)
	if err != nil {
		t.Fatalf("extract shell: %v", err)
	}
	if n := shell.ShellCount(); n != 1 {
		t.Fatalf("expected only the largest component, got %d shells", n)
	}
	_, max := shell.Bounds()
	if max[0] > 1.5 {
		t.Fatalf("small component not dropped: max x %v", max[0])
	}
}

func TestExtractShellEmptyGrid(t *testing.T) {
	g := NewGrid(4, 4, 4, [3]float64{0, 0, 0}, 1)
	if _, err := ExtractShell(g); err == nil {
		t.Fatalf("expected error for empty grid")
	}
}
