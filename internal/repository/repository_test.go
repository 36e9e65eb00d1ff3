package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rn2903-service/internal/config"
	"rn2903-service/internal/database"
	"rn2903-service/internal/model"
)

func TestFileRepositoryMissingFile(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "absent.json"), nil)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestFileRepositorySaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rn2903_config.json")
	repo := NewFileRepository(path, zap.NewNop())

	cfg := model.DefaultDeviceConfig()
	cfg.Radio["sf"] = "sf9"
	require.NoError(t, repo.Save(context.Background(), &model.PersistedConfig{
		Dev:          "/dev/ttyACM0",
		DeviceConfig: cfg,
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"dev": "/dev/ttyACM0"`)
	assert.Contains(t, string(raw), `"device_config"`)
	assert.Contains(t, string(raw), `"radio"`)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "/dev/ttyACM0", doc.Dev)
	assert.Equal(t, cfg, doc.DeviceConfig)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileRepositorySaveReplacesWholeDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	repo := NewFileRepository(path, nil)

	first := model.DefaultDeviceConfig()
	require.NoError(t, repo.Save(context.Background(), &model.PersistedConfig{Dev: "a", DeviceConfig: first}))

	second := model.NewDeviceConfig()
	second.Radio["pwr"] = "10"
	require.NoError(t, repo.Save(context.Background(), &model.PersistedConfig{Dev: "b", DeviceConfig: second}))

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", doc.Dev)
	assert.Equal(t, model.Settings{"pwr": "10"}, doc.DeviceConfig.Radio)
	assert.Empty(t, doc.DeviceConfig.Mac)
}

func TestFileRepositoryCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewFileRepository(path, nil).Load(context.Background())
	assert.Error(t, err)
}

func TestFileRepositoryRejectsNil(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "x.json"), nil)
	assert.Error(t, repo.Save(context.Background(), nil))
}

// TestSnapshotRepositoryPostgres needs a scratch database, e.g.
// RN2903_TEST_DATABASE_DSN="host=localhost user=postgres password=postgres dbname=rn2903_test sslmode=disable"
func TestSnapshotRepositoryPostgres(t *testing.T) {
	dsn := os.Getenv("RN2903_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("RN2903_TEST_DATABASE_DSN not set")
	}

	logger := zap.NewNop()
	dbCfg := &config.DatabaseConfig{
		MaxOpenConns:   2,
		MaxIdleConns:   1,
		MigrationsPath: filepath.Join("..", "..", "migrations"),
	}
	db, err := database.NewConnection(dbCfg, dsn, logger)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.NewMigrator(db, logger, dbCfg).Up())

	dev := "sim://" + t.Name()
	repo := NewSnapshotRepository(db, dev, logger)
	ctx := context.Background()

	cfg := model.DefaultDeviceConfig()
	require.NoError(t, repo.Record(ctx, &Snapshot{Dev: dev, Source: SourcePull, Firmware: "RN2903 1.0.5", DeviceConfig: cfg}))

	pushed := cfg.Clone()
	pushed.Radio["sf"] = "sf7"
	require.NoError(t, repo.Save(ctx, &model.PersistedConfig{Dev: dev, DeviceConfig: pushed}))

	doc, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "sf7", doc.DeviceConfig.Radio["sf"])

	history, err := repo.List(ctx, dev, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, SourceDefault, history[0].Source)
	assert.Equal(t, SourcePull, history[1].Source)
}
