package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harshaverse/karmic/internal/platform/logger"
)

// Store is the transient scratch area. Uploads and processed artifacts are
// keyed by asset id; nothing survives session expiry.
type Store struct {
	root string
	log  *logger.Logger
}

func NewStore(root string, log *logger.Logger) (*Store, error) {
	s := &Store{root: root, log: log.With("component", "ScratchStore")}
	for _, dir := range []string{s.uploadDir(), s.processedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create scratch dir %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *Store) uploadDir() string    { return filepath.Join(s.root, "uploads") }
func (s *Store) processedDir() string { return filepath.Join(s.root, "processed") }

func (s *Store) uploadPath(id, ext string) string {
	return filepath.Join(s.uploadDir(), id+ext)
}

func (s *Store) artifactPath(id string) string {
	return filepath.Join(s.processedDir(), id+"_outer_shell.glb")
}

// SaveUpload writes the raw upload bytes under the asset id, keeping the
// original extension so the pipeline can re-detect the format.
func (s *Store) SaveUpload(id, fileName string, data []byte) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if err := os.WriteFile(s.uploadPath(id, ext), data, 0o644); err != nil {
		return fmt.Errorf("save upload %s: %w", id, err)
	}
	return nil
}

func (s *Store) ReadUpload(id, fileName string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	data, err := os.ReadFile(s.uploadPath(id, ext))
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", id, err)
	}
	return data, nil
}

func (s *Store) SaveArtifact(id string, data []byte) error {
	if err := os.WriteFile(s.artifactPath(id), data, 0o644); err != nil {
		return fmt.Errorf("save artifact %s: %w", id, err)
	}
	return nil
}

func (s *Store) ReadArtifact(id string) ([]byte, error) {
	data, err := os.ReadFile(s.artifactPath(id))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", id, err)
	}
	return data, nil
}

// Remove deletes everything stored for one asset id. Missing files are not
// an error: failed runs release partial artifacts before this runs.
func (s *Store) Remove(id, fileName string) {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, p := range []string{s.uploadPath(id, ext), s.artifactPath(id)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.log.Warn("scratch remove failed", "path", p, "error", err)
		}
	}
}
