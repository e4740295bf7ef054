package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil), Default())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, Rate{Events: 5, Window: 15 * time.Minute}, cfg.LoginRate)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"ECOCONNECT_DB":           "/var/lib/eco.db",
		"ECOCONNECT_ADDR":         "127.0.0.1:9000",
		"ECOCONNECT_LOG_LEVEL":    "debug",
		"ECOCONNECT_JWT_SECRET":   "s3cret",
		"ECOCONNECT_TOKEN_TTL":    "12h",
		"ECOCONNECT_CORS_ORIGINS": "https://eco.example, https://admin.eco.example ,",
		"ECOCONNECT_TRUST_PROXY":  "true",
		"ECOCONNECT_LOGIN_RATE":   "10/1m",
		"ECOCONNECT_UPLOAD_RATE":  "  ",
	}), Default())
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/eco.db", cfg.DBPath)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 12*time.Hour, cfg.TokenExpiry)
	assert.Equal(t, []string{"https://eco.example", "https://admin.eco.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.TrustProxy)
	assert.Equal(t, Rate{Events: 10, Window: time.Minute}, cfg.LoginRate)
	assert.Equal(t, Default().UploadRate, cfg.UploadRate, "blank values keep the default")
}

func TestFromEnvErrors(t *testing.T) {
	for name, vars := range map[string]map[string]string{
		"level": {"ECOCONNECT_LOG_LEVEL": "loud"},
		"ttl":   {"ECOCONNECT_TOKEN_TTL": "forever"},
		"proxy": {"ECOCONNECT_TRUST_PROXY": "maybe"},
		"rate":  {"ECOCONNECT_MESSAGE_RATE": "30 per minute"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(env(vars), Default())
			assert.Error(t, err)
		})
	}
}

func TestParseRate(t *testing.T) {
	r, err := ParseRate("100/15m")
	require.NoError(t, err)
	assert.Equal(t, Rate{Events: 100, Window: 15 * time.Minute}, r)
	assert.Equal(t, "100/15m0s", r.String())

	for _, bad := range []string{"", "5", "0/1m", "-1/1m", "5/0s", "x/1m"} {
		_, err := ParseRate(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ECOCONNECT_ADDR=:7070\nECOCONNECT_DB=from-file.db\n"), 0o600))

	// Unset first so godotenv's no-override rule does not keep a stale value.
	t.Setenv("ECOCONNECT_ADDR", "")
	os.Unsetenv("ECOCONNECT_ADDR")
	t.Setenv("ECOCONNECT_DB", "from-env.db")

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "from-env.db", cfg.DBPath, "process environment wins over .env")
}
