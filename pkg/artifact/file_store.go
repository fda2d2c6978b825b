package artifact

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a filesystem-backed Store. One file per identifier; writes
// go through a temp file and a rename so a concurrent reader of the final
// path never observes a partial document.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a store rooted at baseDir, creating it if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure artifact dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// path maps an identifier to its blob file. Identifiers are caller-chosen
// strings, so they are escaped rather than trusted as path components.
func (s *FileStore) path(identifier string) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("empty artifact identifier")
	}
	return filepath.Join(s.baseDir, url.PathEscape(identifier)+".blob"), nil
}

func (s *FileStore) Put(ctx context.Context, identifier string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.path(identifier)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit blob: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, identifier string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.path(identifier)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact not found: %s", identifier)
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *FileStore) Exists(ctx context.Context, identifier string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.path(identifier)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat blob: %w", err)
}

func (s *FileStore) Delete(ctx context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.path(identifier)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
