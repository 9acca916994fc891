package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnv(t *testing.T) {
	t.Setenv("X_A", "va")
	in := []byte("a: ${X_A:da}\nb: ${X_B:db}")
	out := resolveEnv(in)
	assert.Contains(t, string(out), "a: va")
	assert.Contains(t, string(out), "b: db")
}

func TestLoadConfig(t *testing.T) {
	tmp := t.TempDir()
	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })
	_ = os.Chdir(tmp)

	t.Setenv("BLOOP_JWT_SECRET", "from-env-0123456789-0123456789-xx")
	yaml := `
server:
  port: 9090
  allowed_origins: ["https://bloop.cool"]
jwt:
  secret_key: ${BLOOP_JWT_SECRET}
realtime:
  allow_anonymous: false
  verify_timeout: 2s
  ping_period: 90s
  pong_wait: 30s
cache:
  type: redis
  redis:
    addr: ${REDIS_ADDR:localhost:6379}
`
	require.NoError(t, os.WriteFile(filepath.Join(tmp, DefaultFile), []byte(yaml), 0o644))

	cfg, path, err := LoadConfig("")
	require.NoError(t, err)
	realFile, _ := filepath.EvalSymlinks(filepath.Join(tmp, DefaultFile))
	realPath, _ := filepath.EvalSymlinks(path)
	assert.Equal(t, realFile, realPath)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://bloop.cool"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "from-env-0123456789-0123456789-xx", cfg.JWT.SecretKey)
	assert.False(t, cfg.Realtime.AnonymousAllowed())
	assert.Equal(t, 2*time.Second, cfg.Realtime.VerifyTimeout)
	// ping period must stay below pong wait
	assert.Equal(t, 27*time.Second, cfg.Realtime.PingPeriod)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Type)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Realtime.AnonymousAllowed())
	assert.Equal(t, 5*time.Second, cfg.Realtime.VerifyTimeout)
	assert.Equal(t, 54*time.Second, cfg.Realtime.PingPeriod)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, "data/bloop.db", cfg.Database.DBName)
	assert.Equal(t, "es", cfg.I18n.DefaultLanguage)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	pg := DatabaseConfig{Type: "postgres", User: "u", Password: "p", Host: "h", Port: 5432, DBName: "d"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", pg.GetDSN())

	my := DatabaseConfig{Type: "mysql", User: "u", Password: "p", Host: "h", Port: 3306, DBName: "d"}
	assert.Equal(t, "u:p@tcp(h:3306)/d?charset=utf8mb4&parseTime=True&loc=Local", my.GetDSN())

	lite := DatabaseConfig{Type: "sqlite", DBName: filepath.Join(t.TempDir(), "sub", "x.db")}
	assert.Equal(t, lite.DBName, lite.GetDSN())
	assert.NoError(t, lite.EnsureSQLiteDir())
	_, err := os.Stat(filepath.Dir(lite.DBName))
	assert.NoError(t, err)

	assert.Equal(t, "", (&DatabaseConfig{Type: "oracle"}).GetDSN())
}
