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
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "9090"
database:
  driver: mysql
  host: localhost
jwt:
  secret: dev-secret
storage:
  local_path: `+filepath.Join(t.TempDir(), "uploads")+`
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.Equal(t, 72*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, 2, cfg.Activity.DefaultMaxRetries)
	assert.Equal(t, "static", cfg.Activity.Generator)
	assert.Equal(t, "exact", cfg.Activity.Grader)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := writeConfig(t, `
database:
  driver: postgres
storage:
  local_path: `+filepath.Join(t.TempDir(), "uploads")+`
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("DATABASE_HOST", "db.internal")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Mode: "debug"},
			Database: DatabaseConfig{Driver: "postgres"},
			Activity: ActivityConfig{DefaultMaxRetries: 2, Generator: "static", Grader: "exact"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"short secret in release", func(c *Config) { c.Server.Mode = "release"; c.JWT.Secret = "short" }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, true},
		{"negative retries", func(c *Config) { c.Activity.DefaultMaxRetries = -1 }, true},
		{"unknown generator", func(c *Config) { c.Activity.Generator = "magic" }, true},
		{"unknown grader", func(c *Config) { c.Activity.Grader = "human" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
