package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSessionKey = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "session_key: "+testSessionKey+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Listen)
	assert.Equal(t, 604800, cfg.SessionMaxAge)
	assert.Equal(t, CacheTypeMemory, cfg.Cache.Type)
	assert.Equal(t, 5*time.Minute, cfg.Cache.StatsTTL)
	assert.Equal(t, time.Minute, cfg.Cache.BankCardsTTL)
	assert.Equal(t, 5, cfg.Viewer.DefaultPreviewPages)
	assert.True(t, cfg.Viewer.Watermark.Enabled)
	assert.Equal(t, 5, cfg.Security.MaxFailedLogins)
	assert.Equal(t, 15*time.Minute, cfg.Security.LockoutWindow)
	assert.Equal(t, 72*time.Hour, cfg.Purchases.GetPendingExpiry())
	assert.Equal(t, "./data/nashr.db", cfg.Database.Path)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
listen: "127.0.0.1:9000"
server_url: "https://nashr.example/ "
session_key: "`+testSessionKey+`"
allowed_origins:
  - "https://nashr.example/"
admin_emails:
  - " Admin@Nashr.Example "
viewer:
  default_preview_pages: 3
security:
  max_failed_logins: 3
  lockout_window: 10m
cache:
  type: redis
  redis_url: localhost:6379
  stats_ttl: 1m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, "https://nashr.example", cfg.ServerURL)
	assert.Equal(t, []string{"https://nashr.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.IsAdminEmail("admin@nashr.example"))
	assert.True(t, cfg.IsAdminEmail("ADMIN@nashr.example"))
	assert.False(t, cfg.IsAdminEmail("user@nashr.example"))
	assert.True(t, cfg.IsAllowedOrigin("https://nashr.example/"))
	assert.False(t, cfg.IsAllowedOrigin("https://evil.example"))
	assert.Equal(t, 3, cfg.Viewer.DefaultPreviewPages)
	assert.Equal(t, 3, cfg.Security.MaxFailedLogins)
	assert.Equal(t, 10*time.Minute, cfg.Security.LockoutWindow)
	assert.Equal(t, CacheTypeRedis, cfg.Cache.Type)
	assert.Equal(t, time.Minute, cfg.Cache.StatsTTL)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "listen: \"127.0.0.1:9000\"\n")
	t.Setenv("NASHR_SESSION_KEY", testSessionKey)
	t.Setenv("NASHR_LISTEN", "127.0.0.1:9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, testSessionKey, cfg.SessionKey)
	assert.Equal(t, "127.0.0.1:9100", cfg.Listen)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing session key",
			content: "listen: \":8080\"\n",
			wantErr: "session key is required",
		},
		{
			name:    "short session key",
			content: "session_key: short\n",
			wantErr: "session key must be at least",
		},
		{
			name:    "redis without url",
			content: "session_key: " + testSessionKey + "\ncache:\n  type: redis\n",
			wantErr: "Redis URL is required",
		},
		{
			name:    "unknown cache type",
			content: "session_key: " + testSessionKey + "\ncache:\n  type: memcached\n",
			wantErr: "unknown cache type",
		},
		{
			name:    "zero preview pages",
			content: "session_key: " + testSessionKey + "\nviewer:\n  default_preview_pages: 0\n",
			wantErr: "default preview pages",
		},
		{
			name:    "bad cron",
			content: "session_key: " + testSessionKey + "\njobs:\n  prune_schedule: \"@daily\"\n",
			wantErr: "prune schedule",
		},
		{
			name:    "email without host",
			content: "session_key: " + testSessionKey + "\nemail:\n  enabled: true\n  from_email: a@b.c\n",
			wantErr: "SMTP host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestViewerConfig_PreviewPages(t *testing.T) {
	v := &ViewerConfig{DefaultPreviewPages: 4}
	assert.Equal(t, 4, v.PreviewPages(0))
	assert.Equal(t, 10, v.PreviewPages(10))

	var nilViewer *ViewerConfig
	assert.Equal(t, 1, nilViewer.PreviewPages(0))
}

func TestSecurityConfig_GetLogRetention(t *testing.T) {
	assert.Equal(t, 90*24*time.Hour, (&SecurityConfig{}).GetLogRetention())
	assert.Equal(t, 24*time.Hour, (&SecurityConfig{LogRetentionDays: 1}).GetLogRetention())
}
