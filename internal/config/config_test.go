package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("JWT_SECRET", DevJWTSecret)
	t.Setenv("STORAGE_BACKEND", "local")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("MAX_BODY_BYTES", "1024")
	t.Setenv("PUBLIC_BASE_URL", "https://forum.example/")
	t.Setenv("STORAGE_BACKEND", "LOCAL")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
	assert.Equal(t, int64(1024), cfg.MaxBodyBytes)
	assert.Equal(t, "https://forum.example", cfg.PublicBaseURL)
	assert.Equal(t, "local", cfg.StorageBackend)
}

func TestLoadConfig_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", DevJWTSecret)

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadConfig_UnknownStorageBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORAGE_BACKEND", "ftp")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_PoolBounds(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_MAX_CONNS", "8")
	t.Setenv("DB_MIN_CONNS", "2")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.DBMaxConns)
	assert.Equal(t, 2, cfg.DBMinConns)
	assert.Equal(t, time.Hour, cfg.DBMaxConnLifetime)

	t.Setenv("DB_MIN_CONNS", "9")
	_, err = LoadConfig()
	assert.Error(t, err)

	t.Setenv("DB_MIN_CONNS", "0")
	t.Setenv("DB_MAX_CONNS", "0")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_MinioNeedsCredentials(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("MINIO_ACCESS_KEY", "")
	t.Setenv("MINIO_SECRET_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestGetEnvHelpers_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")

	assert.Equal(t, 5, GetEnvInt("X_INT", 5))
	assert.True(t, GetEnvBool("X_BOOL", true))
	assert.Equal(t, time.Minute, GetEnvDuration("X_DUR", time.Minute))
	assert.Equal(t, []string{"d"}, GetEnvList("X_MISSING", []string{"d"}))
}
