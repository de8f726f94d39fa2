package playback

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store persists audio chunks between arrival and playback.
type Store interface {
	// Put writes one chunk and returns its handle.
	Put(pcm []byte) (path string, err error)

	// Delete removes a previously stored chunk. Deleting a handle
	// that is already gone is not an error.
	Delete(path string) error
}

// DiskStore keeps chunks as files in a scratch directory. Chunks are
// transient: every stored file is deleted once played, skipped, or
// flushed.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the scratch directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "live-playback")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("playback: create store dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the scratch directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) Put(pcm []byte) (string, error) {
	path := filepath.Join(s.dir, uuid.NewString()+".pcm")
	if err := os.WriteFile(path, pcm, 0o644); err != nil {
		return "", fmt.Errorf("playback: write chunk: %w", err)
	}
	return path, nil
}

func (s *DiskStore) Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("playback: delete chunk: %w", err)
	}
	return nil
}
