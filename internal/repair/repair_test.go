package repair

import (
	"errors"
	"testing"

	"github.com/harshaverse/karmic/internal/mesh"
	kerr "github.com/harshaverse/karmic/internal/pkg/errors"
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

func TestRepairPassThroughOnCleanMesh(t *testing.T) {
	got, err := Repair(cube(), 1e-6)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if got.VertexCount() != 8 || got.TriangleCount() != 12 {
		t.Fatalf("clean cube changed: %d vertices, %d triangles", got.VertexCount(), got.TriangleCount())
	}
	if !got.IsClosedManifold() {
		t.Fatalf("clean cube must stay a closed manifold")
	}
}

func TestRepairWeldsNearDuplicates(t *testing.T) {
	m := cube()
	// Split corner 6 into a near-coincident duplicate used by half its faces.
	dup := len(m.Positions)
	m.Positions = append(m.Positions, [3]float64{1, 1, 1 + 1e-7})
	replaced := false
	for i := range m.Triangles {
		for k := 0; k < 3 && !replaced; k++ {
			if m.Triangles[i][k] == 6 {
				m.Triangles[i][k] = dup
				replaced = true
			}
		}
	}

	got, err := Repair(m, 1e-3)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if got.VertexCount() != 8 {
		t.Fatalf("expected duplicate welded back to 8 vertices, got %d", got.VertexCount())
	}
	if !got.IsClosedManifold() {
		t.Fatalf("welded cube must be a closed manifold")
	}
}

func TestRepairClosesHole(t *testing.T) {
	m := cube()
	m.Triangles = m.Triangles[:len(m.Triangles)-1]

	got, err := Repair(m, 1e-9)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if n := len(got.BoundaryEdges()); n != 0 {
		t.Fatalf("expected hole closed, %d boundary edges remain", n)
	}
	if !got.IsClosedManifold() {
		t.Fatalf("repaired cube must be a closed manifold")
	}
	if got.TriangleCount() != 12 {
		t.Fatalf("expected 12 triangles after filling, got %d", got.TriangleCount())
	}
}

func TestRepairClosesLargerHole(t *testing.T) {
	m := cube()
	// Remove the whole top face (two triangles): a quad hole.
	m.Triangles = append(m.Triangles[:2], m.Triangles[4:]...)

	got, err := Repair(m, 1e-9)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if !got.IsClosedManifold() {
		t.Fatalf("repaired cube must be a closed manifold")
	}
}

func TestRepairDropsDegenerateFaces(t *testing.T) {
	m := cube()
	m.Triangles = append(m.Triangles, [3]int{0, 0, 1})       // repeated index
	m.Triangles = append(m.Triangles, [3]int{0, 2, 1})       // duplicate face
	got, err := Repair(m, 1e-9)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if got.TriangleCount() != 12 {
		t.Fatalf("expected degenerates dropped, got %d triangles", got.TriangleCount())
	}
	if !got.IsClosedManifold() {
		t.Fatalf("result must be a closed manifold")
	}
}

func TestRepairRejectsNonManifoldEdge(t *testing.T) {
	m := &mesh.Mesh{
		Positions: [][3]float64{
			{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, -1, 0.5}, {0.5, 0.5, 1},
		},
		Triangles: [][3]int{
			{0, 1, 2}, {0, 3, 1}, {0, 1, 4},
		},
	}
	_, err := Repair(m, 1e-9)
	if !errors.Is(err, kerr.ErrNonManifoldInput) {
		t.Fatalf("expected ErrNonManifoldInput, got %v", err)
	}
}

func TestRepairAllDegenerate(t *testing.T) {
	m := &mesh.Mesh{
		Positions: [][3]float64{{0, 0, 0}, {1, 0, 0}},
		Triangles: [][3]int{{0, 0, 1}},
	}
	if _, err := Repair(m, 1e-9); !errors.Is(err, kerr.ErrCorruptGeometry) {
		t.Fatalf("expected ErrCorruptGeometry, got %v", err)
	}
}
