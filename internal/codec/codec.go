// Package codec parses and serializes the supported mesh interchange
// formats (OBJ, STL, PLY) into the unified mesh representation.
package codec

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/harshaverse/karmic/internal/mesh"
	kerr "github.com/harshaverse/karmic/internal/pkg/errors"
)

// Format is the closed set of supported input containers.
type Format int

const (
	FormatUnknown Format = iota
	FormatOBJ
	FormatSTL
	FormatPLY
)

func (f Format) String() string {
	switch f {
	case FormatOBJ:
		return "obj"
	case FormatSTL:
		return "stl"
	case FormatPLY:
		return "ply"
	default:
		return "unknown"
	}
}

// SupportedExtensions mirrors the upload allowlist.
var SupportedExtensions = []string{".obj", ".stl", ".ply"}

// Detect resolves the format from the file name extension, falling back to
// magic bytes when the extension is missing or unrecognized.
func Detect(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".obj":
		return FormatOBJ
	case ".stl":
		return FormatSTL
	case ".ply":
		return FormatPLY
	}
	if len(data) >= 4 && bytes.Equal(data[:3], []byte("ply")) {
		return FormatPLY
	}
	if looksLikeSTL(data) {
		return FormatSTL
	}
	if looksLikeOBJ(data) {
		return FormatOBJ
	}
	return FormatUnknown
}

// Parse decodes raw bytes into a mesh, dispatching on the detected format.
// No normals are fabricated here; absent normals stay absent.
func Parse(data []byte, nameHint string) (*mesh.Mesh, error) {
	f := Detect(nameHint, data)
	var (
		m   *mesh.Mesh
		err error
	)
	switch f {
	case FormatOBJ:
		m, err = parseOBJ(data)
	case FormatSTL:
		m, err = parseSTL(data)
	case FormatPLY:
		m, err = parsePLY(data)
	default:
		return nil, fmt.Errorf("file %q (supported: %s): %w",
			nameHint, strings.Join(SupportedExtensions, ", "), kerr.ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Serialize re-exports a mesh in the given format. Used for intermediate
// artifacts in the scratch area; GLB output has its own package.
func Serialize(m *mesh.Mesh, f Format) ([]byte, error) {
	switch f {
	case FormatOBJ:
		return serializeOBJ(m), nil
	case FormatSTL:
		return serializeSTL(m), nil
	case FormatPLY:
		return serializePLY(m), nil
	default:
		return nil, fmt.Errorf("serialize %v: %w", f, kerr.ErrUnsupportedFormat)
	}
}

func looksLikeOBJ(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	for _, line := range strings.Split(string(head), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "v ") || strings.HasPrefix(line, "f ") {
			return true
		}
	}
	return false
}
