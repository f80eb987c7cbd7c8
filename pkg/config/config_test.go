package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
database:
  type: sqlite
storage:
  type: local
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "./data", cfg.Engine.ArtifactDir)
	assert.False(t, cfg.Engine.EmitLengths)
	assert.Equal(t, "./njtree.db", cfg.Database.Database)
	assert.Equal(t, 10, cfg.Database.MaxConns)
}

func TestLoad_CustomValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
engine:
  processes: 4
  emit_lengths: true
  artifact_dir: "/tmp/data"
database:
  type: postgres
  host: db.example.com
  port: 5432
  database: njtree_runs
  user: admin
  password: secret
storage:
  type: local
  local_path: /tmp/storage
parallel:
  workers: 8
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Engine.Processes)
	assert.True(t, cfg.Engine.EmitLengths)
	assert.Equal(t, "/tmp/data", cfg.Engine.ArtifactDir)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "njtree_runs", cfg.Database.Database)
	assert.Equal(t, 8, cfg.Parallel.Workers)
}

func TestLoad_InvalidDatabaseType(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
database:
  type: oracle
storage:
  type: local
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	_, err = Load(configFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestLoad_COSWithCredentials(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
database:
  type: sqlite
storage:
  type: cos
  bucket: test-bucket
  region: ap-guangzhou
  secret_id: test-id
  secret_key: test-key
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, "cos", cfg.Storage.Type)
	assert.Equal(t, "test-bucket", cfg.Storage.Bucket)
}

func TestValidate_MissingHostForRemoteDB(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			Type: "postgres",
			Host: "",
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database host is required")
}

func TestValidate_NegativeProcesses(t *testing.T) {
	cfg := &Config{
		Engine: EngineConfig{
			Processes: -1,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "engine.processes")
}

func TestValidate_SqliteNeedsNoHost(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			Type: "sqlite",
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}

	assert.NoError(t, cfg.Validate())
}

func TestEnsureArtifactDir(t *testing.T) {
	dir := t.TempDir()
	artifactDir := filepath.Join(dir, "runs", "data")

	cfg := &Config{
		Engine: EngineConfig{
			ArtifactDir: artifactDir,
		},
	}

	err := cfg.EnsureArtifactDir()
	require.NoError(t, err)

	_, err = os.Stat(artifactDir)
	assert.NoError(t, err)
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	// Should not return error, use defaults
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoadFromReader(t *testing.T) {
	content := []byte(`
database:
  type: mysql
  host: mysql.local
storage:
  type: local
`)
	cfg, err := LoadFromReader("yaml", content)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, "mysql.local", cfg.Database.Host)
}
