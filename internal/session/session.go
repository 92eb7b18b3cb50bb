// Package session owns per-asset lifecycle state: the session table, the
// storage quota, scratch artifacts and the state machine that serializes
// concurrent operations on one asset.
package session

import "time"

// State is the asset lifecycle state.
type State int

const (
	StateUploaded State = iota
	StateProcessing
	StateOptimized
	StateDownloaded
	StateFailed
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateUploaded:
		return "uploaded"
	case StateProcessing:
		return "processing"
	case StateOptimized:
		return "optimized"
	case StateDownloaded:
		return "downloaded"
	case StateFailed:
		return "failed"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Session is one tracked asset. Records live exclusively inside the
// Manager; callers only ever see Snapshot copies.
type Session struct {
	ID           string
	FileName     string
	State        State
	UploadBytes  int64
	ArtifactBytes int64
	CreatedAt    time.Time
	LastAccess   time.Time
	FailReason   string

	// Cleanup was requested while a pipeline run was in flight; the run
	// finishes and the session expires immediately after.
	expireOnDone bool
}

func (s *Session) totalBytes() int64 { return s.UploadBytes + s.ArtifactBytes }

// Snapshot is the copy handed out across the manager boundary.
type Snapshot struct {
	ID            string    `json:"asset_id"`
	FileName      string    `json:"file_name"`
	State         string    `json:"state"`
	UploadBytes   int64     `json:"upload_bytes"`
	ArtifactBytes int64     `json:"artifact_bytes"`
	CreatedAt     time.Time `json:"created_at"`
	LastAccess    time.Time `json:"last_access"`
	FailReason    string    `json:"fail_reason,omitempty"`
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:            s.ID,
		FileName:      s.FileName,
		State:         s.State.String(),
		UploadBytes:   s.UploadBytes,
		ArtifactBytes: s.ArtifactBytes,
		CreatedAt:     s.CreatedAt,
		LastAccess:    s.LastAccess,
		FailReason:    s.FailReason,
	}
}
