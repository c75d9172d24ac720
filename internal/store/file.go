package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrEmptyPath is returned when NewFileStore is called with an empty path.
var ErrEmptyPath = errors.New("vocabulary file path must not be empty")

// FileStore keeps the snapshot in a single file. Saves replace the file
// atomically through a temp file in the same directory.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	return &FileStore{path: path}, nil
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read vocabulary %s: %w", s.path, err)
	}

	return data, nil
}

func (s *FileStore) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create vocabulary dir: %w", err)
	}

	fh, err := os.CreateTemp(dir, ".vocab-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmp := fh.Name()

	if _, err := fh.Write(data); err != nil {
		_ = fh.Close()
		_ = os.Remove(tmp)

		return fmt.Errorf("write temp file: %w", err)
	}

	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move temp file into place: %w", err)
	}

	return nil
}

func (s *FileStore) Close() error { return nil }
