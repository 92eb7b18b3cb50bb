package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/harshaverse/karmic/internal/mesh"
	kerr "github.com/harshaverse/karmic/internal/pkg/errors"
)

const (
	stlHeaderSize = 80
	stlTriSize    = 50 // normal + 3 vertices (12 floats) + attribute count
)

// looksLikeSTL accepts both variants: a binary file whose length matches the
// declared triangle count, or an ASCII file with the solid/facet keywords.
func looksLikeSTL(data []byte) bool {
	if isBinarySTL(data) {
		return true
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	s := string(head)
	return strings.HasPrefix(strings.TrimSpace(s), "solid") && strings.Contains(s, "facet")
}

// isBinarySTL checks the record framing: header + count + count*50 bytes.
// A binary file may legally start with "solid", so the length check decides.
func isBinarySTL(data []byte) bool {
	if len(data) < stlHeaderSize+4 {
		return false
	}
	n := binary.LittleEndian.Uint32(data[stlHeaderSize:])
	return len(data) == stlHeaderSize+4+int(n)*stlTriSize
}

func parseSTL(data []byte) (*mesh.Mesh, error) {
	if isBinarySTL(data) {
		return parseBinarySTL(data)
	}
	return parseASCIISTL(data)
}

// parseBinarySTL reads the triangle soup and welds exactly coincident
// vertices so downstream stages see indexed geometry.
func parseBinarySTL(data []byte) (*mesh.Mesh, error) {
	n := int(binary.LittleEndian.Uint32(data[stlHeaderSize:]))
	if n == 0 {
		return nil, fmt.Errorf("binary stl declares zero triangles: %w", kerr.ErrCorruptGeometry)
	}
	m := &mesh.Mesh{}
	vertMap := make(map[[3]float32]int, n)
	body := data[stlHeaderSize+4:]
	for i := 0; i < n; i++ {
		rec := body[i*stlTriSize:]
		var tri [3]int
		for v := 0; v < 3; v++ {
			const skipNormal = 12
			var p [3]float32
			for c := 0; c < 3; c++ {
				bits := binary.LittleEndian.Uint32(rec[skipNormal+12*v+4*c:])
				p[c] = math.Float32frombits(bits)
				if math.IsNaN(float64(p[c])) || math.IsInf(float64(p[c]), 0) {
					return nil, fmt.Errorf("binary stl triangle %d has non-finite coordinate: %w", i, kerr.ErrCorruptGeometry)
				}
			}
			idx, ok := vertMap[p]
			if !ok {
				idx = len(m.Positions)
				m.Positions = append(m.Positions, [3]float64{float64(p[0]), float64(p[1]), float64(p[2])})
				vertMap[p] = idx
			}
			tri[v] = idx
		}
		m.Triangles = append(m.Triangles, tri)
	}
	return m, nil
}

func parseASCIISTL(data []byte) (*mesh.Mesh, error) {
	m := &mesh.Mesh{}
	vertMap := make(map[[3]float64]int)
	var tri []int

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "vertex":
			if len(fields) != 4 {
				return nil, fmt.Errorf("ascii stl line %d: malformed vertex: %w", lineNum, kerr.ErrCorruptGeometry)
			}
			var p [3]float64
			for c := 0; c < 3; c++ {
				v, err := strconv.ParseFloat(fields[c+1], 64)
				if err != nil {
					return nil, fmt.Errorf("ascii stl line %d: %v: %w", lineNum, err, kerr.ErrCorruptGeometry)
				}
				p[c] = v
			}
			idx, ok := vertMap[p]
			if !ok {
				idx = len(m.Positions)
				m.Positions = append(m.Positions, p)
				vertMap[p] = idx
			}
			tri = append(tri, idx)
		case "endfacet":
			if len(tri) != 3 {
				return nil, fmt.Errorf("ascii stl line %d: facet has %d vertices: %w", lineNum, len(tri), kerr.ErrCorruptGeometry)
			}
			m.Triangles = append(m.Triangles, [3]int{tri[0], tri[1], tri[2]})
			tri = tri[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ascii stl scan: %v: %w", err, kerr.ErrCorruptGeometry)
	}
	if len(m.Triangles) == 0 {
		return nil, fmt.Errorf("ascii stl has no facets: %w", kerr.ErrCorruptGeometry)
	}
	return m, nil
}

// serializeSTL emits the binary variant.
func serializeSTL(m *mesh.Mesh) []byte {
	buf := &bytes.Buffer{}
	buf.Write(make([]byte, stlHeaderSize))
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(m.Triangles)))
	for _, t := range m.Triangles {
		p0, p1, p2 := m.Positions[t[0]], m.Positions[t[1]], m.Positions[t[2]]
		n := mesh.Normalize(mesh.Cross(mesh.Sub(p1, p0), mesh.Sub(p2, p0)))
		writeVec32(buf, n)
		writeVec32(buf, p0)
		writeVec32(buf, p1)
		writeVec32(buf, p2)
		_ = binary.Write(buf, binary.LittleEndian, uint16(0))
	}
	return buf.Bytes()
}

func writeVec32(buf *bytes.Buffer, v [3]float64) {
	for c := 0; c < 3; c++ {
		_ = binary.Write(buf, binary.LittleEndian, float32(v[c]))
	}
}
