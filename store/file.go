package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"commitwatch/logger"
	"commitwatch/models"

	"go.uber.org/zap"
)

// FileStore keeps the cursor state in a single JSON file. Saves go through a
// temporary file plus rename so a crash never leaves a half-written state
// behind.
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the cursor state. A missing, unreadable or corrupt file yields
// an empty cursor so the watcher re-seeds instead of failing.
func (s *FileStore) Load(ctx context.Context) (models.Cursor, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Cursor state file unreadable, starting empty",
				zap.String("path", s.path),
				zap.Error(err))
		}
		return models.Cursor{}, nil
	}

	var cursor models.Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		logger.Warn("Cursor state file corrupt, starting empty",
			zap.String("path", s.path),
			zap.Error(err))
		return models.Cursor{}, nil
	}
	if cursor == nil {
		cursor = models.Cursor{}
	}
	return cursor, nil
}

// Save writes the full cursor state atomically.
func (s *FileStore) Save(ctx context.Context, cursor models.Cursor) error {
	data, err := json.MarshalIndent(cursor, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cursor state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}
