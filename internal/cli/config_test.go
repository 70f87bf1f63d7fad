package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataplane.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, path, err := LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "3306", cfg.Database.Connection.Port)
	assert.Equal(t, 3, cfg.Executor.MaxRetries)
	assert.Equal(t, 90, cfg.RPC.BookingHorizonDays)
	assert.Equal(t, time.Hour, cfg.Maintenance.Interval)
	assert.True(t, cfg.Maintenance.Enabled)
	assert.False(t, cfg.Minio.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 24*time.Hour, cfg.Redis.ViewTTL)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  connection:
    host: db.internal
    port: "5432"
executor:
  initial_backoff: 250ms
maintenance:
  interval: 15m
kafka:
  brokers: ["k1:9092", "k2:9092"]
minio:
  connection:
    endpoint: minio:9000
    bucket_name: photos
`)
	t.Setenv("DATAPLANE_DATABASE_CONNECTION_HOST", "db.override")
	t.Setenv("DATAPLANE_RPC_MAX_BATCH_SIZE", "5")
	t.Setenv("DATAPLANE_REDIS_HOST", "cache.internal")

	cfg, used, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.override", cfg.Database.Connection.Host)
	assert.Equal(t, "5432", cfg.Database.Connection.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Executor.InitialBackoff)
	assert.Equal(t, 15*time.Minute, cfg.Maintenance.Interval)
	assert.Equal(t, 5, cfg.RPC.MaxBatchSize)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Minio.Enabled())
	assert.Equal(t, "photos", cfg.Minio.Connection.BucketName)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 6379, cfg.Redis.Port)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	_, _, err := LoadConfig(writeConfig(t, "database:\n  driver: oracle\n"))
	assert.ErrorContains(t, err, "database.driver")

	_, _, err = LoadConfig(writeConfig(t, "maintenance:\n  enabled: true\n  interval: 0s\n"))
	assert.ErrorContains(t, err, "maintenance.interval")

	_, _, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "config file not found")
}

func TestFindConfigFileWalksUp(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dataplane.yml"), []byte("{}"), 0o600))
	t.Chdir(nested)

	path, err := findConfigFile("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "dataplane.yml"), path)
}

func TestExitErrorUnwraps(t *testing.T) {
	cause := os.ErrNotExist
	err := ConfigError("loading configuration", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ExitConfig, err.Code)
	assert.Equal(t, "loading configuration: file does not exist", err.Error())
}
