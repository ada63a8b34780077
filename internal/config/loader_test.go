package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `database:
  host: db.internal
  port: 6543
  dbname: analytics
pipeline:
  song_data: /srv/songs
  duration_tolerance: 0.5
  timezone: America/New_York
logger:
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("SPARKIFY_DATABASE_PASSWORD", "s3cret")
	t.Setenv("SPARKIFY_PIPELINE_LOG_DATA", "/srv/logs")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "analytics", cfg.Database.DBName)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "student", cfg.Database.User)
	assert.Equal(t, "/srv/songs", cfg.Pipeline.SongData)
	assert.Equal(t, "/srv/logs", cfg.Pipeline.LogData)
	assert.Equal(t, 0.5, cfg.Pipeline.DurationTolerance)
	assert.Equal(t, "json", cfg.Logger.Format)

	loc, err := cfg.Pipeline.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("database: [unterminated"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Database.Port = 0
	cfg.Pipeline.DurationTolerance = -1
	cfg.Pipeline.Timezone = "Mars/Olympus"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.port")
	assert.Contains(t, err.Error(), "duration_tolerance")
	assert.Contains(t, err.Error(), "Mars/Olympus")
}

func TestLoadKeepsZeroDurationTolerance(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("pipeline:\n  duration_tolerance: 0\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Zero(t, cfg.Pipeline.DurationTolerance)
	assert.NoError(t, cfg.Validate())
}

func TestPipelineLocationDefaultsToUTC(t *testing.T) {
	loc, err := PipelineConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}
