package codec

import (
	"errors"
	"math"
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

func samePositions(t *testing.T, a, b *mesh.Mesh, tol float64) {
	t.Helper()
	if len(a.Positions) != len(b.Positions) {
		t.Fatalf("vertex count changed: %d vs %d", len(a.Positions), len(b.Positions))
	}
	for i := range a.Positions {
		for k := 0; k < 3; k++ {
			if math.Abs(a.Positions[i][k]-b.Positions[i][k]) > tol {
				t.Fatalf("vertex %d differs: %v vs %v", i, a.Positions[i], b.Positions[i])
			}
		}
	}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		data string
		want Format
	}{
		{"model.obj", "", FormatOBJ},
		{"model.STL", "", FormatSTL},
		{"model.ply", "", FormatPLY},
		{"model", "ply\nformat ascii 1.0\n", FormatPLY},
		{"model", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n", FormatOBJ},
		{"model.xyz", "", FormatUnknown},
	}
	for _, tc := range cases {
		if got := Detect(tc.name, []byte(tc.data)); got != tc.want {
			t.Fatalf("Detect(%q): expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestParseUnsupported(t *testing.T) {
	_, err := Parse([]byte("not a mesh at all"), "model.xyz")
	if !errors.Is(err, kerr.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestOBJRoundTrip(t *testing.T) {
	data, err := Serialize(cube(), FormatOBJ)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	m, err := Parse(data, "cube.obj")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.TriangleCount() != 12 {
		t.Fatalf("expected 12 triangles, got %d", m.TriangleCount())
	}
	samePositions(t, cube(), m, 1e-9)
	if !m.IsClosedManifold() {
		t.Fatalf("round-tripped cube must stay a closed manifold")
	}
}

func TestOBJQuadAndNegativeIndices(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf -4 -3 -2 -1\n"
	m, err := Parse([]byte(src), "quad.obj")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.TriangleCount() != 2 {
		t.Fatalf("expected quad to triangulate into 2, got %d", m.TriangleCount())
	}
	if m.VertexCount() != 4 {
		t.Fatalf("expected 4 vertices, got %d", m.VertexCount())
	}
}

func TestOBJCorrupt(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nf 1 2 9\n"
	if _, err := Parse([]byte(src), "bad.obj"); !errors.Is(err, kerr.ErrCorruptGeometry) {
		t.Fatalf("expected ErrCorruptGeometry, got %v", err)
	}
}

func TestSTLBinaryRoundTrip(t *testing.T) {
	data, err := Serialize(cube(), FormatSTL)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	m, err := Parse(data, "cube.stl")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.TriangleCount() != 12 {
		t.Fatalf("expected 12 triangles, got %d", m.TriangleCount())
	}
	// Exact float32 duplicates must weld back into the 8 cube corners.
	if m.VertexCount() != 8 {
		t.Fatalf("expected 8 deduplicated vertices, got %d", m.VertexCount())
	}
	if !m.IsClosedManifold() {
		t.Fatalf("round-tripped cube must stay a closed manifold")
	}
}

func TestSTLASCII(t *testing.T) {
	src := `solid tri
facet normal 0 0 1
  outer loop
    vertex 0 0 0
    vertex 1 0 0
    vertex 0 1 0
  endloop
endfacet
endsolid tri
`
	m, err := Parse([]byte(src), "tri.stl")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.TriangleCount() != 1 || m.VertexCount() != 3 {
		t.Fatalf("expected 1 triangle over 3 vertices, got %d/%d", m.TriangleCount(), m.VertexCount())
	}
}

func TestSTLTruncated(t *testing.T) {
	data, err := Serialize(cube(), FormatSTL)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if _, err := Parse(data[:len(data)-7], "cube.stl"); !errors.Is(err, kerr.ErrCorruptGeometry) {
		t.Fatalf("expected ErrCorruptGeometry, got %v", err)
	}
}

func TestPLYRoundTrip(t *testing.T) {
	data, err := Serialize(cube(), FormatPLY)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	m, err := Parse(data, "cube.ply")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.TriangleCount() != 12 || m.VertexCount() != 8 {
		t.Fatalf("expected 12 triangles over 8 vertices, got %d/%d", m.TriangleCount(), m.VertexCount())
	}
	samePositions(t, cube(), m, 1e-6)
}

func TestPLYBinaryLittleEndian(t *testing.T) {
	header := "ply\nformat binary_little_endian 1.0\nelement vertex 3\nproperty float x\nproperty float y\nproperty float z\nelement face 1\nproperty list uchar int vertex_indices\nend_header\n"
	body := make([]byte, 0, 3*12+1+12)
	appendF32 := func(b []byte, f float32) []byte {
		u := math.Float32bits(f)
		return append(b, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
	}
	for _, v := range [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}} {
		body = appendF32(body, v[0])
		body = appendF32(body, v[1])
		body = appendF32(body, v[2])
	}
	body = append(body, 3)
	for _, idx := range []int32{0, 1, 2} {
		u := uint32(idx)
		body = append(body, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
	}
	m, err := Parse(append([]byte(header), body...), "tri.ply")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.TriangleCount() != 1 || m.VertexCount() != 3 {
		t.Fatalf("expected 1 triangle over 3 vertices, got %d/%d", m.TriangleCount(), m.VertexCount())
	}
}

func TestPLYBinaryUnknownPropertyType(t *testing.T) {
	header := "ply\nformat binary_little_endian 1.0\nelement vertex 3\nproperty float x\nproperty float y\nproperty float z\nelement sensor 1\nproperty quad confidence\nelement face 1\nproperty list uchar int vertex_indices\nend_header\n"
	body := make([]byte, 0, 3*12)
	appendF32 := func(b []byte, f float32) []byte {
		u := math.Float32bits(f)
		return append(b, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
	}
	for _, v := range [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}} {
		body = appendF32(body, v[0])
		body = appendF32(body, v[1])
		body = appendF32(body, v[2])
	}
	// A record of unknown width cannot be skipped without losing the frame.
	if _, err := Parse(append([]byte(header), body...), "tri.ply"); !errors.Is(err, kerr.ErrCorruptGeometry) {
		t.Fatalf("expected ErrCorruptGeometry for unknown property type, got %v", err)
	}
}

func TestPLYCorruptHeader(t *testing.T) {
	src := "ply\nformat ascii 1.0\nelement vertex 2\nproperty float x\nend_header\n0\n"
	if _, err := Parse([]byte(src), "bad.ply"); err == nil {
		t.Fatalf("expected error for truncated vertex data")
	}
}
