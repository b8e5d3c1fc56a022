package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaults loads a complete config with no file and no environment
func TestDefaults(t *testing.T) {
	cfg, err := LoadConfig("SANDSTONE_TEST_DEFAULTS", "")
	require.NoError(t, err)

	assert.Equal(t, "sandstone", cfg.Service.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "2M", cfg.Server.BodyLimit)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "", cfg.Database.URL)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 64, cfg.Realtime.SendBuffer)
	assert.Equal(t, "sandstone.documents", cfg.Events.Channel)
	assert.False(t, cfg.Security.AllowTokenMint)
}

// TestConfigFile overrides defaults from a yaml file
func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  rate_limit: 50
logging:
  level: debug
  format: json
realtime:
  send_buffer: 128
`), 0o644))

	cfg, err := LoadConfig("SANDSTONE_TEST_FILE", path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, float64(50), cfg.Server.RateLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 128, cfg.Realtime.SendBuffer)

	// untouched keys keep their defaults
	assert.Equal(t, "2M", cfg.Server.BodyLimit)
}

// TestEnvironmentOverride wins over defaults with the prefixed variable
func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("SANDSTONE_SERVER_PORT", "7070")
	t.Setenv("SANDSTONE_DATABASE_URL", "postgres://localhost/sandstone")
	t.Setenv("SANDSTONE_SECURITY_JWT_SECRET", "sekrit")

	cfg, err := LoadConfig("SANDSTONE", "")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/sandstone", cfg.Database.URL)
	assert.Equal(t, "sekrit", cfg.Security.JWTSecret)
}

// TestValidateConfig rejects bad ports, missing production secrets, and
// broken realtime tuning
func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig("SANDSTONE_TEST_VALIDATE", "")
		require.NoError(t, err)
		return cfg
	}

	cfg := valid()
	cfg.Server.Port = 0
	assert.Error(t, ValidateConfig(cfg))

	cfg = valid()
	cfg.Server.Port = 70000
	assert.Error(t, ValidateConfig(cfg))

	cfg = valid()
	cfg.Service.Environment = "production"
	cfg.Security.JWTSecret = ""
	assert.Error(t, ValidateConfig(cfg))
	cfg.Security.JWTSecret = "something"
	assert.NoError(t, ValidateConfig(cfg))

	cfg = valid()
	cfg.Realtime.SendBuffer = 0
	assert.Error(t, ValidateConfig(cfg))
}
