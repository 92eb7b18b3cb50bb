package session

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	kerr "github.com/harshaverse/karmic/internal/pkg/errors"
	"github.com/harshaverse/karmic/internal/platform/logger"
)

// Manager is the only component with externally visible state. It owns the
// session table, the storage budget and all scratch artifacts; every
// read-modify-write on the table happens inside one critical section.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	usage    int64

	quota   int64
	idleTTL time.Duration
	store   *Store
	log     *logger.Logger
	now     func() time.Time
}

func NewManager(store *Store, quota int64, idleTTL time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		quota:    quota,
		idleTTL:  idleTTL,
		store:    store,
		log:      log.With("component", "SessionManager"),
		now:      time.Now,
	}
}

// Admit reserves quota for a validated upload, persists it to scratch and
// creates the session. The quota check and the reservation are one atomic
// step; a rejected upload leaves no state behind.
func (m *Manager) Admit(fileName string, data []byte) (Snapshot, error) {
	size := int64(len(data))
	m.mu.Lock()
	if m.usage+size > m.quota {
		m.mu.Unlock()
		return Snapshot{}, fmt.Errorf("upload of %d bytes with %d/%d used: %w", size, m.usage, m.quota, kerr.ErrQuotaExceeded)
	}
	id := uuid.NewString()
	now := m.now()
	s := &Session{
		ID:          id,
		FileName:    fileName,
		State:       StateUploaded,
		UploadBytes: size,
		CreatedAt:   now,
		LastAccess:  now,
	}
	m.usage += size
	m.sessions[id] = s
	m.mu.Unlock()

	if err := m.store.SaveUpload(id, fileName, data); err != nil {
		m.mu.Lock()
		m.usage -= size
		delete(m.sessions, id)
		m.mu.Unlock()
		return Snapshot{}, err
	}
	m.log.Info("session admitted", "asset_id", id, "file_name", fileName, "bytes", size)
	return s.snapshot(), nil
}

// BeginProcessing transitions Uploaded→Processing. A second optimize for
// the same asset while one is in flight is rejected, not queued.
func (m *Manager) BeginProcessing(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("asset %s: %w", id, kerr.ErrNotFound)
	}
	if s.State != StateUploaded {
		return fmt.Errorf("asset %s is %s: %w", id, s.State, kerr.ErrInvalidState)
	}
	s.State = StateProcessing
	s.LastAccess = m.now()
	return nil
}

// ReadUpload hands the pipeline its input bytes.
func (m *Manager) ReadUpload(id string) ([]byte, string, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, "", fmt.Errorf("asset %s: %w", id, kerr.ErrNotFound)
	}
	fileName := s.FileName
	m.mu.Unlock()
	data, err := m.store.ReadUpload(id, fileName)
	return data, fileName, err
}

// Complete transitions Processing→Optimized and charges the artifact bytes
// against the quota. If cleanup was requested mid-run the session expires
// instead; if the artifact would overflow the quota the run fails.
func (m *Manager) Complete(id string, artifact []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("asset %s: %w", id, kerr.ErrNotFound)
	}
	if s.State != StateProcessing {
		return fmt.Errorf("asset %s is %s: %w", id, s.State, kerr.ErrInvalidState)
	}
	if s.expireOnDone {
		m.expireLocked(s)
		return nil
	}
	size := int64(len(artifact))
	if m.usage+size > m.quota {
		m.failLocked(s, kerr.ErrQuotaExceeded.Error())
		return fmt.Errorf("artifact of %d bytes with %d/%d used: %w", size, m.usage, m.quota, kerr.ErrQuotaExceeded)
	}
	if err := m.store.SaveArtifact(id, artifact); err != nil {
		m.failLocked(s, err.Error())
		return err
	}
	m.usage += size
	s.ArtifactBytes = size
	s.State = StateOptimized
	s.LastAccess = m.now()
	m.log.Info("session optimized", "asset_id", id, "artifact_bytes", size)
	return nil
}

// Fail transitions to the terminal Failed state and releases all artifacts
// and quota immediately. The record stays visible for status reporting
// until it expires.
func (m *Manager) Fail(id string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	if s.State != StateUploaded && s.State != StateProcessing {
		return
	}
	if s.expireOnDone {
		m.expireLocked(s)
		return
	}
	m.failLocked(s, cause.Error())
}

func (m *Manager) failLocked(s *Session, reason string) {
	m.usage -= s.totalBytes()
	s.UploadBytes = 0
	s.ArtifactBytes = 0
	s.State = StateFailed
	s.FailReason = reason
	s.LastAccess = m.now()
	m.store.Remove(s.ID, s.FileName)
	m.log.Warn("session failed", "asset_id", s.ID, "reason", reason)
}

// Download returns the artifact bytes for an Optimized (or already
// Downloaded) session. Re-download is not blocked.
func (m *Manager) Download(id string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || (s.State != StateOptimized && s.State != StateDownloaded) {
		return nil, "", fmt.Errorf("asset %s has no optimized artifact: %w", id, kerr.ErrNotFound)
	}
	data, err := m.store.ReadArtifact(id)
	if err != nil {
		return nil, "", err
	}
	s.State = StateDownloaded
	s.LastAccess = m.now()
	stem := strings.TrimSuffix(s.FileName, filepath.Ext(s.FileName))
	return data, stem + "_outer_shell.glb", nil
}

// Cleanup expires one session. A Processing session is only flagged: the
// in-flight run finishes (or fails) and then expires immediately.
func (m *Manager) Cleanup(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("asset %s: %w", id, kerr.ErrNotFound)
	}
	if s.State == StateProcessing {
		s.expireOnDone = true
		return nil
	}
	m.expireLocked(s)
	return nil
}

// CleanupAll expires every session, deferring the Processing ones.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.State == StateProcessing {
			s.expireOnDone = true
			continue
		}
		m.expireLocked(s)
	}
}

func (m *Manager) expireLocked(s *Session) {
	m.usage -= s.totalBytes()
	s.State = StateExpired
	m.store.Remove(s.ID, s.FileName)
	delete(m.sessions, s.ID)
	m.log.Info("session expired", "asset_id", s.ID)
}

// Sweep expires sessions idle beyond the TTL. Called by the janitor.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.idleTTL)
	n := 0
	for _, s := range m.sessions {
		if !s.LastAccess.Before(cutoff) {
			continue
		}
		if s.State == StateProcessing {
			s.expireOnDone = true
			continue
		}
		m.expireLocked(s)
		n++
	}
	return n
}

// Status is a point-in-time view of the session table.
func (m *Manager) Status() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Usage returns the bytes currently charged against the quota.
func (m *Manager) Usage() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

func (m *Manager) Quota() int64 { return m.quota }
