package config

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
	path := filepath.Join(t.TempDir(), "lorelei.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Server.MaxUploadMB)
	assert.Equal(t, int64(50<<20), cfg.Server.MaxUploadBytes())
	assert.Equal(t, "lorelei.db", cfg.Database.DSN)
	assert.Equal(t, "local", cfg.Blob.Type)
	assert.Equal(t, ":8080", cfg.Player.Addr)
	assert.Equal(t, "http://localhost:5000", cfg.Player.CatalogURL)
	assert.Equal(t, 3*time.Second, cfg.Player.RestartThreshold())
	assert.Equal(t, 10*time.Second, cfg.Player.RequestTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.Player.SendTimeout())
	assert.Equal(t, 64, cfg.Player.EventBuffer)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  allowed_origins: ["http://localhost:3000"]
  max_upload_mb: 10
database:
  dsn: "/var/lib/lorelei/songs.db"
blob:
  type: local
  settings:
    dir: /srv/uploads
player:
  catalog_url: "http://catalog.internal:5000"
  restart_threshold_ms: 5000
hooks:
  on_started: ["echo started"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10, cfg.Server.MaxUploadMB)
	assert.Equal(t, "/var/lib/lorelei/songs.db", cfg.Database.DSN)
	assert.Equal(t, "/srv/uploads", cfg.Blob.Settings["dir"])
	assert.Equal(t, "http://catalog.internal:5000", cfg.Player.CatalogURL)
	assert.Equal(t, 5*time.Second, cfg.Player.RestartThreshold())
	assert.Equal(t, ":8080", cfg.Player.Addr)
	assert.Equal(t, []string{"echo started"}, cfg.Hooks.OnStarted)
	assert.Empty(t, cfg.Hooks.OnStopped)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LORELEI_SERVER_ADDR", ":7000")
	t.Setenv("LORELEI_DATABASE_DSN", "env.db")
	t.Setenv("LORELEI_UPLOAD_DIR", "/tmp/env-uploads")
	t.Setenv("LORELEI_PLAYER_ADDR", ":7001")
	t.Setenv("LORELEI_CATALOG_URL", "http://env:5000")
	t.Setenv("LORELEI_RESTART_THRESHOLD_MS", "1500")

	path := writeConfig(t, `
server:
  addr: ":9000"
database:
  dsn: "file.db"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "env.db", cfg.Database.DSN)
	assert.Equal(t, "/tmp/env-uploads", cfg.Blob.Settings["dir"])
	assert.Equal(t, ":7001", cfg.Player.Addr)
	assert.Equal(t, "http://env:5000", cfg.Player.CatalogURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Player.RestartThreshold())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "malformed yaml",
			body:   "server: [",
			errMsg: "failed to parse config file",
		},
		{
			name:   "unknown blob type",
			body:   "blob:\n  type: s3\n",
			errMsg: "Type",
		},
		{
			name:   "upload limit too large",
			body:   "server:\n  max_upload_mb: 4096\n",
			errMsg: "MaxUploadMB",
		},
		{
			name:   "catalog url not a url",
			body:   "player:\n  catalog_url: not a url\n",
			errMsg: "CatalogURL",
		},
		{
			name:   "event buffer too large",
			body:   "player:\n  event_buffer: 100000\n",
			errMsg: "EventBuffer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidEnvThreshold(t *testing.T) {
	t.Setenv("LORELEI_RESTART_THRESHOLD_MS", "soon")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LORELEI_RESTART_THRESHOLD_MS")
}
