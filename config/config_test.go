package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

const minimalConfig = `database:
  host: "127.0.0.1"
  database: "wx_mp_rss"
file:
  storage_path: "data/files"
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.App.Host)
	assert.Equal(t, DefaultPort, cfg.App.Port)
	assert.Equal(t, DefaultRecentDays, cfg.Data.RecentDays)
	assert.Equal(t, DefaultMaxFiles, cfg.File.MaxFiles)
	assert.Equal(t, DefaultRateWindow, cfg.Security.RateLimitWindow)
	assert.Equal(t, DefaultRateRequests, cfg.Security.RateLimitRequests)
	assert.Equal(t, DefaultBranch, cfg.GitHub.Branch)
	assert.Equal(t, DefaultCharset, cfg.Database.Charset)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFull(t *testing.T) {
	cfg, err := Load(writeConfig(t, `app:
  host: "127.0.0.1"
  port: 9000
  debug: true
database:
  host: "db.internal"
  port: 3307
  user: "svc"
  password: "pw"
  database: "rss"
data:
  recent_days: 0
file:
  storage_path: "/var/lib/rssmerge"
  url_prefix_dev: "http://localhost:9000/files"
  max_files: 5
security:
  api_key_required: true
  api_key: "k"
  rate_limit_enabled: true
  rate_limit_window: 30
  rate_limit_requests: 3
github:
  enabled: true
  repo: "owner/mirror"
  branch: "snapshots"
  upload_path: "out"
`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.App.Addr())
	assert.Equal(t, 0, cfg.Data.RecentDays)
	assert.Equal(t, 5, cfg.File.MaxFiles)
	assert.Equal(t, "svc:pw@tcp(db.internal:3307)/rss?charset=utf8mb4&parseTime=false", cfg.Database.DSN())
	assert.Equal(t, 30, cfg.Security.RateLimitWindow)
	assert.Equal(t, "snapshots", cfg.GitHub.Branch)
}

func TestEnvInterpolation(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	cfg, err := Load(writeConfig(t, `database:
  host: "127.0.0.1"
  password: "${TEST_DB_PASSWORD}"
  database: "rss"
file:
  storage_path: "data"
`))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
}

func TestEnvInterpolationMissingVarIsEmptyNotFatal(t *testing.T) {
	os.Unsetenv("DEFINITELY_NOT_SET_VAR")

	cfg, err := Load(writeConfig(t, `database:
  host: "127.0.0.1"
  password: "${DEFINITELY_NOT_SET_VAR}"
  database: "rss"
file:
  storage_path: "data"
github:
  token: ${DEFINITELY_NOT_SET_VAR}
`))
	require.NoError(t, err)
	assert.Empty(t, cfg.Database.Password)
	assert.Empty(t, cfg.GitHub.Token)
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			"missing database host",
			`database:
  database: "rss"
file:
  storage_path: "data"
`,
			ErrMissingDatabaseHost,
		},
		{
			"missing storage path",
			`database:
  host: "h"
  database: "rss"
`,
			ErrMissingStoragePath,
		},
		{
			"negative recent days",
			`database:
  host: "h"
  database: "rss"
data:
  recent_days: -1
file:
  storage_path: "data"
`,
			ErrNegativeRecentDays,
		},
		{
			"api key required without key",
			`database:
  host: "h"
  database: "rss"
file:
  storage_path: "data"
security:
  api_key_required: true
`,
			ErrMissingAPIKey,
		},
		{
			"github enabled without repo",
			`database:
  host: "h"
  database: "rss"
file:
  storage_path: "data"
github:
  enabled: true
`,
			ErrMissingGitHubRepo,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, c.yaml))
			assert.ErrorIs(t, err, c.wantErr)
		})
	}
}

func TestURLPrefixByEnvironment(t *testing.T) {
	f := FileConfig{
		URLPrefixDev:  "http://localhost:8002/files",
		URLPrefixProd: "http://203.0.113.1:8002/files",
	}

	t.Setenv("ENVIRONMENT", "development")
	assert.Equal(t, f.URLPrefixDev, f.URLPrefix())

	t.Setenv("ENVIRONMENT", "production")
	assert.Equal(t, f.URLPrefixProd, f.URLPrefix())
}
