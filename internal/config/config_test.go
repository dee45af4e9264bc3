package config

import (
	"os"
	"path/filepath"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
listen: ":9090"
base_url: "https://bib.example.dk/"
log_level: LOUD
cache_ttl_seconds: -5
rate_limit_per_minute: -1
basic_auth:
  username: feed
  password: secret
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "https://bib.example.dk", cfg.BaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, defaultCacheTTL, cfg.CacheTTLSeconds)
	assert.Equal(t, "Europe/Copenhagen", cfg.Timezone)
	assert.Equal(t, "DKK", cfg.PriceCurrency)
	assert.Zero(t, cfg.RateLimitPerMinute)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "feed", cfg.BasicAuth.Username)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Copenhagen", loc.String())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRequiresPathAndConfig(t *testing.T) {
	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}
