// Package glb emits the final mesh as a self-contained binary glTF
// container and reads such containers back for round-trip verification.
package glb

import (
	"bytes"
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/harshaverse/karmic/internal/mesh"
	kerr "github.com/harshaverse/karmic/internal/pkg/errors"
)

// Artifact is the serialized container plus the metadata the session
// manager needs for quota accounting.
type Artifact struct {
	Bytes         []byte
	VertexCount   int
	TriangleCount int
}

func (a *Artifact) ByteLen() int64 { return int64(len(a.Bytes)) }

// Serialize encodes positions, normals and indices into a single GLB blob.
// Positions are float32; indices use the narrowest unsigned width that fits
// the vertex count.
func Serialize(m *mesh.Mesh) (*Artifact, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(m.Normals) != len(m.Positions) {
		m.ComputeNormals()
	}

	positions := make([][3]float32, len(m.Positions))
	for i, p := range m.Positions {
		positions[i] = [3]float32{float32(p[0]), float32(p[1]), float32(p[2])}
	}
	normals := make([][3]float32, len(m.Normals))
	for i, n := range m.Normals {
		normals[i] = [3]float32{float32(n[0]), float32(n[1]), float32(n[2])}
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "karmic mesh optimizer"

	posAccessor := modeler.WritePosition(doc, positions)
	normalAccessor := modeler.WriteNormal(doc, normals)
	indicesAccessor := modeler.WriteIndices(doc, packIndices(m))

	prim := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION: uint32(posAccessor),
			gltf.NORMAL:   uint32(normalAccessor),
		},
		Indices: gltf.Index(uint32(indicesAccessor)),
	}
	doc.Meshes = []*gltf.Mesh{{Name: "OuterShell", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(0))

	buf := &bytes.Buffer{}
	enc := gltf.NewEncoder(buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("glb encode: %v: %w", err, kerr.ErrSerializationFailure)
	}
	return &Artifact{
		Bytes:         buf.Bytes(),
		VertexCount:   len(m.Positions),
		TriangleCount: len(m.Triangles),
	}, nil
}

// packIndices picks uint16 or uint32 storage depending on vertex count.
func packIndices(m *mesh.Mesh) interface{} {
	if len(m.Positions) <= 0xFFFF {
		out := make([]uint16, 0, len(m.Triangles)*3)
		for _, t := range m.Triangles {
			out = append(out, uint16(t[0]), uint16(t[1]), uint16(t[2]))
		}
		return out
	}
	out := make([]uint32, 0, len(m.Triangles)*3)
	for _, t := range m.Triangles {
		out = append(out, uint32(t[0]), uint32(t[1]), uint32(t[2]))
	}
	return out
}

// Deserialize reads back a container this package produced. Vertex and
// triangle counts round-trip exactly; positions within float32 precision.
func Deserialize(data []byte) (*mesh.Mesh, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("glb decode: %v: %w", err, kerr.ErrSerializationFailure)
	}
	if len(doc.Meshes) == 0 || len(doc.Meshes[0].Primitives) == 0 {
		return nil, fmt.Errorf("glb has no mesh primitive: %w", kerr.ErrSerializationFailure)
	}
	prim := doc.Meshes[0].Primitives[0]
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok || prim.Indices == nil {
		return nil, fmt.Errorf("glb primitive missing position or indices: %w", kerr.ErrSerializationFailure)
	}

	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("glb read positions: %v: %w", err, kerr.ErrSerializationFailure)
	}
	indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
	if err != nil {
		return nil, fmt.Errorf("glb read indices: %v: %w", err, kerr.ErrSerializationFailure)
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("glb index count %d not a triangle list: %w", len(indices), kerr.ErrSerializationFailure)
	}

	m := &mesh.Mesh{Positions: make([][3]float64, len(positions))}
	for i, p := range positions {
		m.Positions[i] = [3]float64{float64(p[0]), float64(p[1]), float64(p[2])}
	}
	for i := 0; i+2 < len(indices); i += 3 {
		m.Triangles = append(m.Triangles, [3]int{int(indices[i]), int(indices[i+1]), int(indices[i+2])})
	}
	if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, err := modeler.ReadNormal(doc, doc.Accessors[normIdx], nil)
		if err == nil && len(normals) == len(positions) {
			m.Normals = make([][3]float64, len(normals))
			for i, n := range normals {
				m.Normals[i] = [3]float64{float64(n[0]), float64(n[1]), float64(n[2])}
			}
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
