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

type plyProperty struct {
	name     string
	typ      string // scalar type, or the value type for lists
	listLen  string // count type when this is a list property
	isList   bool
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

var plyTypeSize = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4,
	"float": 4, "float32": 4,
	"double": 8, "float64": 8,
}

// parsePLY handles the ascii and binary_little_endian variants. Only vertex
// x/y/z and the face index list are consumed; other properties are skipped
// by declared size so files with colors or confidence channels still load.
func parsePLY(data []byte) (*mesh.Mesh, error) {
	headerEnd := bytes.Index(data, []byte("end_header"))
	if headerEnd < 0 || !bytes.HasPrefix(data, []byte("ply")) {
		return nil, fmt.Errorf("ply header missing: %w", kerr.ErrCorruptGeometry)
	}
	// Body starts after the end_header line's newline.
	bodyStart := headerEnd + len("end_header")
	for bodyStart < len(data) && data[bodyStart] != '\n' {
		bodyStart++
	}
	bodyStart++

	var (
		format   string
		elements []plyElement
	)
	for _, line := range strings.Split(string(data[:headerEnd]), "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return nil, fmt.Errorf("ply format line malformed: %w", kerr.ErrCorruptGeometry)
			}
			format = fields[1]
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("ply element line malformed: %w", kerr.ErrCorruptGeometry)
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("ply element count %q: %w", fields[2], kerr.ErrCorruptGeometry)
			}
			elements = append(elements, plyElement{name: fields[1], count: n})
		case "property":
			if len(elements) == 0 {
				return nil, fmt.Errorf("ply property before element: %w", kerr.ErrCorruptGeometry)
			}
			el := &elements[len(elements)-1]
			if len(fields) >= 5 && fields[1] == "list" {
				el.props = append(el.props, plyProperty{
					name: fields[4], typ: fields[3], listLen: fields[2], isList: true,
				})
			} else if len(fields) >= 3 {
				el.props = append(el.props, plyProperty{name: fields[2], typ: fields[1]})
			} else {
				return nil, fmt.Errorf("ply property line malformed: %w", kerr.ErrCorruptGeometry)
			}
		}
	}

	switch format {
	case "ascii":
		return parsePLYASCII(data[bodyStart:], elements)
	case "binary_little_endian":
		return parsePLYBinary(data[bodyStart:], elements)
	case "binary_big_endian":
		return nil, fmt.Errorf("ply big endian: %w", kerr.ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("ply format %q: %w", format, kerr.ErrUnsupportedFormat)
	}
}

func parsePLYASCII(body []byte, elements []plyElement) (*mesh.Mesh, error) {
	m := &mesh.Mesh{}
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	next := func() ([]string, error) {
		for sc.Scan() {
			f := strings.Fields(sc.Text())
			if len(f) > 0 {
				return f, nil
			}
		}
		return nil, fmt.Errorf("ply body truncated: %w", kerr.ErrCorruptGeometry)
	}
	for _, el := range elements {
		for i := 0; i < el.count; i++ {
			fields, err := next()
			if err != nil {
				return nil, err
			}
			switch el.name {
			case "vertex":
				p, err := plyVertexASCII(fields, el.props)
				if err != nil {
					return nil, err
				}
				m.Positions = append(m.Positions, p)
			case "face":
				if err := plyFaceASCII(fields, m); err != nil {
					return nil, err
				}
			}
		}
	}
	return m, nil
}

func plyVertexASCII(fields []string, props []plyProperty) ([3]float64, error) {
	var p [3]float64
	seen := 0
	for i, prop := range props {
		if i >= len(fields) {
			return p, fmt.Errorf("ply vertex record truncated: %w", kerr.ErrCorruptGeometry)
		}
		c := -1
		switch prop.name {
		case "x":
			c = 0
		case "y":
			c = 1
		case "z":
			c = 2
		}
		if c < 0 {
			continue
		}
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return p, fmt.Errorf("ply vertex coord %q: %w", fields[i], kerr.ErrCorruptGeometry)
		}
		p[c] = v
		seen++
	}
	if seen != 3 {
		return p, fmt.Errorf("ply vertex missing x/y/z: %w", kerr.ErrCorruptGeometry)
	}
	return p, nil
}

func plyFaceASCII(fields []string, m *mesh.Mesh) error {
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 3 || len(fields) < 1+n {
		return fmt.Errorf("ply face record malformed: %w", kerr.ErrCorruptGeometry)
	}
	idx := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(fields[1+i])
		if err != nil {
			return fmt.Errorf("ply face index %q: %w", fields[1+i], kerr.ErrCorruptGeometry)
		}
		idx[i] = v
	}
	for i := 1; i+1 < len(idx); i++ {
		m.Triangles = append(m.Triangles, [3]int{idx[0], idx[i], idx[i+1]})
	}
	return nil
}

func parsePLYBinary(body []byte, elements []plyElement) (*mesh.Mesh, error) {
	m := &mesh.Mesh{}
	off := 0
	read := func(n int) ([]byte, error) {
		if off+n > len(body) {
			return nil, fmt.Errorf("ply binary body truncated: %w", kerr.ErrCorruptGeometry)
		}
		b := body[off : off+n]
		off += n
		return b, nil
	}
	for _, el := range elements {
		for i := 0; i < el.count; i++ {
			switch el.name {
			case "vertex":
				var p [3]float64
				seen := 0
				for _, prop := range el.props {
					size, ok := plyTypeSize[prop.typ]
					if !ok || prop.isList {
						return nil, fmt.Errorf("ply vertex property %q unsupported: %w", prop.name, kerr.ErrCorruptGeometry)
					}
					b, err := read(size)
					if err != nil {
						return nil, err
					}
					switch prop.name {
					case "x", "y", "z":
						v, err := plyFloat(b, prop.typ)
						if err != nil {
							return nil, err
						}
						switch prop.name {
						case "x":
							p[0] = v
						case "y":
							p[1] = v
						case "z":
							p[2] = v
						}
						seen++
					}
				}
				if seen != 3 {
					return nil, fmt.Errorf("ply vertex missing x/y/z: %w", kerr.ErrCorruptGeometry)
				}
				m.Positions = append(m.Positions, p)
			case "face":
				for _, prop := range el.props {
					if !prop.isList {
						size, ok := plyTypeSize[prop.typ]
						if !ok {
							return nil, fmt.Errorf("ply face property %q unsupported: %w", prop.name, kerr.ErrCorruptGeometry)
						}
						if _, err := read(size); err != nil {
							return nil, err
						}
						continue
					}
					cntSize, ok := plyTypeSize[prop.listLen]
					if !ok {
						return nil, fmt.Errorf("ply list count type %q: %w", prop.listLen, kerr.ErrCorruptGeometry)
					}
					b, err := read(cntSize)
					if err != nil {
						return nil, err
					}
					n := int(plyUint(b))
					if n < 3 {
						return nil, fmt.Errorf("ply face with %d vertices: %w", n, kerr.ErrCorruptGeometry)
					}
					valSize, ok := plyTypeSize[prop.typ]
					if !ok {
						return nil, fmt.Errorf("ply list value type %q: %w", prop.typ, kerr.ErrCorruptGeometry)
					}
					idx := make([]int, n)
					for k := 0; k < n; k++ {
						vb, err := read(valSize)
						if err != nil {
							return nil, err
						}
						idx[k] = int(plyUint(vb))
					}
					if prop.name == "vertex_indices" || prop.name == "vertex_index" {
						for k := 1; k+1 < len(idx); k++ {
							m.Triangles = append(m.Triangles, [3]int{idx[0], idx[k], idx[k+1]})
						}
					}
				}
			default:
				// Skip unknown elements record by record. An unrecognized
				// property type would desynchronize every following record,
				// so it is corruption, not something to skip over.
				for _, prop := range el.props {
					if prop.isList {
						cntSize, ok := plyTypeSize[prop.listLen]
						if !ok {
							return nil, fmt.Errorf("ply list count type %q: %w", prop.listLen, kerr.ErrCorruptGeometry)
						}
						valSize, ok := plyTypeSize[prop.typ]
						if !ok {
							return nil, fmt.Errorf("ply list value type %q: %w", prop.typ, kerr.ErrCorruptGeometry)
						}
						b, err := read(cntSize)
						if err != nil {
							return nil, err
						}
						if _, err := read(int(plyUint(b)) * valSize); err != nil {
							return nil, err
						}
					} else {
						size, ok := plyTypeSize[prop.typ]
						if !ok {
							return nil, fmt.Errorf("ply property type %q: %w", prop.typ, kerr.ErrCorruptGeometry)
						}
						if _, err := read(size); err != nil {
							return nil, err
						}
					}
				}
			}
		}
	}
	return m, nil
}

func plyFloat(b []byte, typ string) (float64, error) {
	switch typ {
	case "float", "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case "double", "float64":
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	default:
		return 0, fmt.Errorf("ply coordinate type %q: %w", typ, kerr.ErrCorruptGeometry)
	}
}

func plyUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func serializePLY(m *mesh.Mesh) []byte {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "ply\nformat ascii 1.0\nelement vertex %d\n", len(m.Positions))
	buf.WriteString("property float x\nproperty float y\nproperty float z\n")
	fmt.Fprintf(buf, "element face %d\n", len(m.Triangles))
	buf.WriteString("property list uchar int vertex_indices\nend_header\n")
	for _, p := range m.Positions {
		fmt.Fprintf(buf, "%g %g %g\n", p[0], p[1], p[2])
	}
	for _, t := range m.Triangles {
		fmt.Fprintf(buf, "3 %d %d %d\n", t[0], t[1], t[2])
	}
	return buf.Bytes()
}
