package simplify

import (
	"math"
	"reflect"
	"testing"

	"github.com/harshaverse/karmic/internal/mesh"
)

func cube() *mesh.Mesh {
	return &mesh.Mesh{
		Positions: [][3]float64{
			{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
			{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
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
}

// sphere builds a closed unit UV sphere with 2*segs*(rings-1) triangles.
func sphere(rings, segs int) *mesh.Mesh {
	m := &mesh.Mesh{}
	m.Positions = append(m.Positions, [3]float64{0, 0, 1})
	for r := 1; r < rings; r++ {
		theta := math.Pi * float64(r) / float64(rings)
		for s := 0; s < segs; s++ {
			phi := 2 * math.Pi * float64(s) / float64(segs)
			m.Positions = append(m.Positions, [3]float64{
				math.Sin(theta) * math.Cos(phi),
				math.Sin(theta) * math.Sin(phi),
				math.Cos(theta),
			})
		}
	}
	south := len(m.Positions)
	m.Positions = append(m.Positions, [3]float64{0, 0, -1})
	at := func(r, s int) int { return 1 + (r-1)*segs + (s % segs) }
	for s := 0; s < segs; s++ {
		m.Triangles = append(m.Triangles, [3]int{0, at(1, s), at(1, s+1)})
	}
	for r := 1; r < rings-1; r++ {
		for s := 0; s < segs; s++ {
			a, b, c, d := at(r, s), at(r+1, s), at(r+1, s+1), at(r, s+1)
			m.Triangles = append(m.Triangles, [3]int{a, b, c}, [3]int{a, c, d})
		}
	}
	for s := 0; s < segs; s++ {
		m.Triangles = append(m.Triangles, [3]int{south, at(rings-1, s+1), at(rings-1, s)})
	}
	return m
}

func TestSphereFixtureIsClosed(t *testing.T) {
	m := sphere(10, 12)
	if err := m.Validate(); err != nil {
		t.Fatalf("fixture invalid: %v", err)
	}
	if !m.IsClosedManifold() {
		t.Fatalf("fixture must be a closed manifold")
	}
	if want := 2 * 12 * 9; m.TriangleCount() != want {
		t.Fatalf("expected %d triangles, got %d", want, m.TriangleCount())
	}
}

func TestSimplifyReachesTarget(t *testing.T) {
	m := sphere(26, 40)
	got := Simplify(m, 500)
	if got.TriangleCount() > 500 {
		t.Fatalf("expected at most 500 triangles, got %d", got.TriangleCount())
	}
	if got.TriangleCount() < 4 {
		t.Fatalf("implausibly small result: %d triangles", got.TriangleCount())
	}
	if !got.IsClosedManifold() {
		t.Fatalf("simplified mesh must stay a closed manifold")
	}
	if n := got.ShellCount(); n != 1 {
		t.Fatalf("expected one shell, got %d", n)
	}
}

func TestSimplifyStaysNearSurface(t *testing.T) {
	got := Simplify(sphere(26, 40), 800)
	for i, p := range got.Positions {
		if r := mesh.Length(p); r < 0.7 || r > 1.3 {
			t.Fatalf("vertex %d drifted to radius %v", i, r)
		}
	}
}

func TestSimplifyAlreadyUnderTarget(t *testing.T) {
	m := cube()
	got := Simplify(m, 100)
	if got.TriangleCount() != 12 {
		t.Fatalf("expected untouched cube, got %d triangles", got.TriangleCount())
	}
	// Result must be a copy, not an alias.
	got.Positions[0][0] = 42
	if m.Positions[0][0] == 42 {
		t.Fatalf("expected a defensive copy")
	}
}

func TestSimplifyKeepsManifoldUnderAggressiveTarget(t *testing.T) {
	got := Simplify(sphere(12, 16), 4)
	if !got.IsClosedManifold() {
		t.Fatalf("aggressive simplification must not break the manifold")
	}
	if got.TriangleCount() < 4 {
		t.Fatalf("cannot go below a tetrahedron, got %d", got.TriangleCount())
	}
}

func TestSimplifyDeterministic(t *testing.T) {
	a := Simplify(sphere(20, 30), 300)
	b := Simplify(sphere(20, 30), 300)
	if !reflect.DeepEqual(a.Triangles, b.Triangles) {
		t.Fatalf("triangle output differs between identical runs")
	}
	if !reflect.DeepEqual(a.Positions, b.Positions) {
		t.Fatalf("vertex output differs between identical runs")
	}
}

func TestCanCollapseRejectsDegenerateFace(t *testing.T) {
	s := newState(cube())
	if !s.canCollapse(0, 1, [3]float64{0.5, 0, 0}) {
		t.Fatalf("expected collapse with a midpoint target to be allowed")
	}
	// A target collinear with vertices 3 and 2 flattens the surviving face
	// {0,3,2} to zero area without violating any topological guard.
	if s.canCollapse(0, 1, [3]float64{2, 1, 0}) {
		t.Fatalf("expected zero-area surviving face to reject the collapse")
	}
}

func TestQuadricPlaneError(t *testing.T) {
	var q Quadric
	// Plane z = 0 with weight 1.
	q.AddPlane([3]float64{0, 0, 1}, 0, 1)
	if e := q.Error([3]float64{0.3, -0.2, 0}); math.Abs(e) > 1e-12 {
		t.Fatalf("on-plane error should be 0, got %v", e)
	}
	if e := q.Error([3]float64{0, 0, 2}); math.Abs(e-4) > 1e-9 {
		t.Fatalf("expected squared distance 4, got %v", e)
	}
}
