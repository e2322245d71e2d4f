package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 50, cfg.Report.MaxColumnWidth)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\ndatabase:\n  driver: sqlite\n  name: test\n"), 0o600))
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Database.IsSQLite())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Contains(t, cfg.Database.DSN(), "test.db")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDSN_Postgres(t *testing.T) {
	d := DatabaseConfig{Driver: "postgres", User: "u", Password: "p", Host: "db", Port: 5432, Name: "catering"}
	assert.Equal(t, "postgres://u:p@db:5432/catering?sslmode=disable", d.DSN())
}
