package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Analysis.Mode)
	assert.Equal(t, "lexicon.entity-changes", cfg.Kafka.Topics.EntityChanges)
	assert.Equal(t, 4, cfg.Indexer.RebuildWorkers)
	assert.Equal(t, 10*time.Minute, cfg.Redis.CacheTTL)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "glossary.yaml")
	yaml := `
server:
  port: 9000
analysis:
  mode: remote
  url: http://analysis.local/analyze
  timeout: 2s
indexer:
  rebuildWorkers: 8
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("GL_POSTGRES_HOST", "db.internal")
	t.Setenv("GL_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("GL_SERVER_PORT", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "remote", cfg.Analysis.Mode)
	assert.Equal(t, 2*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, 8, cfg.Indexer.RebuildWorkers)
	assert.Equal(t, 500, cfg.Indexer.SeedPageSize)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadRejectsRemoteWithoutURL(t *testing.T) {
	t.Setenv("GL_ANALYSIS_MODE", "remote")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.url")
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("GL_ANALYSIS_MODE", "magic")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDSN(t *testing.T) {
	p := PostgresConfig{Host: "h", Port: 1, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", p.DSN())
}

func TestLoadDevelopmentConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
}
