// Package errors holds the sentinel errors shared across the mesh pipeline
// and the session manager. Callers wrap them with fmt.Errorf("...: %w", ...)
// and match with errors.Is at the API boundary.
package errors

import "errors"

var (
	// ErrUnsupportedFormat means the file extension/magic bytes match no parser.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrCorruptGeometry means index bounds, vertex counts or record framing are invalid.
	ErrCorruptGeometry = errors.New("corrupt geometry")
	// ErrNonManifoldInput means repair could not close a boundary loop without
	// introducing a non-manifold edge.
	ErrNonManifoldInput = errors.New("non-manifold input")
	// ErrResourceExceeded means voxelization would blow the memory ceiling.
	// Never retried internally; the caller picks a lower resolution.
	ErrResourceExceeded = errors.New("resource exceeded")
	// ErrQuotaExceeded means admitting the upload would overflow the storage budget.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrInvalidState means the session is not in a state that permits the operation.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotFound means no session exists for the asset id.
	ErrNotFound = errors.New("not found")
	// ErrSerializationFailure means the GLB container could not be produced.
	ErrSerializationFailure = errors.New("serialization failure")
)
