// internal/repository/interfaces.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rn2903-service/internal/model"
)

// SnapshotRepository keeps the persisted radio configuration document
type SnapshotRepository interface {
	// Load returns the stored document, or nil without error when none exists
	Load(ctx context.Context) (*model.PersistedConfig, error)
	// Save replaces the stored document as a whole
	Save(ctx context.Context, doc *model.PersistedConfig) error
}

// SnapshotSource records why a snapshot was taken
type SnapshotSource string

const (
	SourcePull    SnapshotSource = "pull"
	SourcePush    SnapshotSource = "push"
	SourceDefault SnapshotSource = "default"
)

// Snapshot is one row of configuration history
type Snapshot struct {
	ID           uuid.UUID           `json:"id"`
	Dev          string              `json:"dev"`
	Firmware     string              `json:"firmware"`
	Source       SnapshotSource      `json:"source"`
	DeviceConfig *model.DeviceConfig `json:"device_config"`
	CreatedAt    time.Time           `json:"created_at"`
}

// SnapshotHistory is a SnapshotRepository that also keeps every snapshot
type SnapshotHistory interface {
	SnapshotRepository
	Record(ctx context.Context, snapshot *Snapshot) error
	List(ctx context.Context, dev string, limit int) ([]*Snapshot, error)
}
