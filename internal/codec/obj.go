package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/harshaverse/karmic/internal/mesh"
	kerr "github.com/harshaverse/karmic/internal/pkg/errors"
)

// parseOBJ reads the vertex/index-list format. Faces with more than three
// vertices are fan-triangulated. Texture and material statements are ignored;
// normals are kept only when one is present per vertex position.
func parseOBJ(data []byte) (*mesh.Mesh, error) {
	m := &mesh.Mesh{}
	var normals [][3]float64
	normalOf := make(map[int]int) // position index -> normal index

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: malformed vertex: %w", lineNum, kerr.ErrCorruptGeometry)
			}
			p, err := parseFloat3(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("obj line %d: %v: %w", lineNum, err, kerr.ErrCorruptGeometry)
			}
			m.Positions = append(m.Positions, p)
		case "vn":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: malformed normal: %w", lineNum, kerr.ErrCorruptGeometry)
			}
			n, err := parseFloat3(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("obj line %d: %v: %w", lineNum, err, kerr.ErrCorruptGeometry)
			}
			normals = append(normals, n)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: face needs at least 3 vertices: %w", lineNum, kerr.ErrCorruptGeometry)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				vi, ni, err := parseFaceRef(ref, len(m.Positions), len(normals))
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %v: %w", lineNum, err, kerr.ErrCorruptGeometry)
				}
				if ni >= 0 {
					normalOf[vi] = ni
				}
				idx = append(idx, vi)
			}
			for i := 1; i+1 < len(idx); i++ {
				m.Triangles = append(m.Triangles, [3]int{idx[0], idx[i], idx[i+1]})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("obj scan: %v: %w", err, kerr.ErrCorruptGeometry)
	}
	if len(m.Triangles) == 0 {
		return nil, fmt.Errorf("obj has no faces: %w", kerr.ErrCorruptGeometry)
	}
	// Only carry normals when every referenced position got one.
	if len(normals) > 0 && len(normalOf) == len(m.Positions) {
		m.Normals = make([][3]float64, len(m.Positions))
		for vi, ni := range normalOf {
			m.Normals[vi] = normals[ni]
		}
	}
	return m, nil
}

// parseFaceRef handles the v, v/vt, v//vn and v/vt/vn reference forms,
// including negative (relative) indices. Returns zero-based indices; the
// normal index is -1 when absent.
func parseFaceRef(ref string, numVerts, numNormals int) (vi, ni int, err error) {
	parts := strings.Split(ref, "/")
	vi, err = resolveIndex(parts[0], numVerts)
	if err != nil {
		return 0, 0, err
	}
	ni = -1
	if len(parts) == 3 && parts[2] != "" {
		ni, err = resolveIndex(parts[2], numNormals)
		if err != nil {
			return 0, 0, err
		}
	}
	return vi, ni, nil
}

func resolveIndex(s string, count int) (int, error) {
	raw, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", s)
	}
	var idx int
	if raw > 0 {
		idx = raw - 1
	} else if raw < 0 {
		idx = count + raw
	} else {
		return 0, fmt.Errorf("index 0 is not valid")
	}
	if idx < 0 || idx >= count {
		return 0, fmt.Errorf("index %d out of range (%d)", raw, count)
	}
	return idx, nil
}

func parseFloat3(fields []string) ([3]float64, error) {
	var out [3]float64
	for c := 0; c < 3; c++ {
		v, err := strconv.ParseFloat(fields[c], 64)
		if err != nil {
			return out, err
		}
		out[c] = v
	}
	return out, nil
}

func serializeOBJ(m *mesh.Mesh) []byte {
	buf := &bytes.Buffer{}
	for _, p := range m.Positions {
		fmt.Fprintf(buf, "v %g %g %g\n", p[0], p[1], p[2])
	}
	for _, n := range m.Normals {
		fmt.Fprintf(buf, "vn %g %g %g\n", n[0], n[1], n[2])
	}
	withNormals := len(m.Normals) == len(m.Positions) && len(m.Normals) > 0
	for _, t := range m.Triangles {
		if withNormals {
			fmt.Fprintf(buf, "f %d//%d %d//%d %d//%d\n", t[0]+1, t[0]+1, t[1]+1, t[1]+1, t[2]+1, t[2]+1)
		} else {
			fmt.Fprintf(buf, "f %d %d %d\n", t[0]+1, t[1]+1, t[2]+1)
		}
	}
	return buf.Bytes()
}
