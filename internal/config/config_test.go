package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PERMALINK_SALT", "test-salt")

	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, "8787", cfg.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.DedupWindow)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.True(t, cfg.TrustForwardedFor)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PERMALINK_SALT", "test-salt")
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("VIEW_DEDUP_WINDOW", "90m")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.Database.DSN())
	assert.Equal(t, 90*time.Minute, cfg.DedupWindow)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestValidate(t *testing.T) {
	base := Config{
		PermalinkSalt: "salt",
		Database:      DatabaseConfig{Driver: "postgres"},
		DedupWindow:   time.Hour,
	}
	require.NoError(t, base.Validate())

	noSalt := base
	noSalt.PermalinkSalt = ""
	assert.Error(t, noSalt.Validate())

	badDriver := base
	badDriver.Database.Driver = "mysql"
	assert.Error(t, badDriver.Validate())

	badWindow := base
	badWindow.DedupWindow = 0
	assert.Error(t, badWindow.Validate())

	prodNoSecret := base
	prodNoSecret.Environment = "production"
	assert.Error(t, prodNoSecret.Validate())
}

func TestPostgresDSN(t *testing.T) {
	d := DatabaseConfig{Driver: "postgres", Host: "db", Port: "5432", User: "u", Name: "trail", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u dbname=trail sslmode=disable", d.DSN())

	d.Password = "pw"
	assert.Contains(t, d.DSN(), "password=pw")

	d.URL = "postgres://u:pw@db/trail"
	assert.Equal(t, "postgres://u:pw@db/trail", d.DSN())
}
