// internal/repository/file_repository.go
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"rn2903-service/internal/model"
)

// fileRepository keeps the snapshot document in a single JSON file
type fileRepository struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewFileRepository creates a snapshot repository backed by a JSON file at path
func NewFileRepository(path string, logger *zap.Logger) SnapshotRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fileRepository{
		path:   path,
		logger: logger.With(zap.String("component", "file_repository")),
	}
}

// Load reads the document. A missing file is not an error.
func (r *fileRepository) Load(ctx context.Context) (*model.PersistedConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var doc model.PersistedConfig
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot file %s: %w", r.path, err)
	}

	r.logger.Debug("Snapshot loaded", zap.String("path", r.path), zap.String("dev", doc.Dev))
	return &doc, nil
}

// Save writes the whole document, replacing the file atomically
func (r *fileRepository) Save(ctx context.Context, doc *model.PersistedConfig) error {
	if doc == nil {
		return errors.New("nil snapshot document")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}

	r.logger.Info("Snapshot saved", zap.String("path", r.path), zap.String("dev", doc.Dev))
	return nil
}
