// internal/repository/snapshot_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rn2903-service/internal/database"
	"rn2903-service/internal/model"
)

// snapshotRepository implements SnapshotHistory on Postgres
type snapshotRepository struct {
	db     *database.DB
	dev    string
	logger *zap.Logger
}

// NewSnapshotRepository creates a Postgres-backed snapshot history for the radio at dev
func NewSnapshotRepository(db *database.DB, dev string, logger *zap.Logger) SnapshotHistory {
	return &snapshotRepository{
		db:     db,
		dev:    dev,
		logger: logger.With(zap.String("component", "snapshot_repository")),
	}
}

// Load returns the newest pushed or default snapshot of this radio.
// Pull snapshots are history only.
func (r *snapshotRepository) Load(ctx context.Context) (*model.PersistedConfig, error) {
	query := `
		SELECT dev, device_config
		FROM config_snapshots
		WHERE dev = $1 AND source <> 'pull'
		ORDER BY created_at DESC
		LIMIT 1
	`

	doc := &model.PersistedConfig{DeviceConfig: model.NewDeviceConfig()}
	err := r.db.QueryRowContext(ctx, query, r.dev).Scan(&doc.Dev, doc.DeviceConfig)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to load snapshot", zap.Error(err), zap.String("dev", r.dev))
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	return doc, nil
}

// Save appends the document as the newest snapshot
func (r *snapshotRepository) Save(ctx context.Context, doc *model.PersistedConfig) error {
	if doc == nil || doc.DeviceConfig == nil {
		return errors.New("nil snapshot document")
	}
	dev := doc.Dev
	if dev == "" {
		dev = r.dev
	}
	return r.Record(ctx, &Snapshot{
		Dev:          dev,
		Source:       SourceDefault,
		DeviceConfig: doc.DeviceConfig,
	})
}

// Record inserts one history row
func (r *snapshotRepository) Record(ctx context.Context, snapshot *Snapshot) error {
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO config_snapshots (id, dev, firmware, source, device_config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		snapshot.ID, snapshot.Dev, snapshot.Firmware, snapshot.Source,
		snapshot.DeviceConfig, snapshot.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to record snapshot", zap.Error(err), zap.String("dev", snapshot.Dev))
		return fmt.Errorf("failed to record snapshot: %w", err)
	}

	r.logger.Info("Snapshot recorded",
		zap.String("id", snapshot.ID.String()),
		zap.String("dev", snapshot.Dev),
		zap.String("source", string(snapshot.Source)),
	)
	return nil
}

// List returns up to limit snapshots of dev, newest first
func (r *snapshotRepository) List(ctx context.Context, dev string, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, dev, firmware, source, device_config, created_at
		FROM config_snapshots
		WHERE dev = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, dev, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		s := &Snapshot{DeviceConfig: model.NewDeviceConfig()}
		if err := rows.Scan(&s.ID, &s.Dev, &s.Firmware, &s.Source, s.DeviceConfig, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	return snapshots, nil
}
