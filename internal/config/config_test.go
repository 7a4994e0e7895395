package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "flowtree.db", cfg.Database)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr())
	assert.Equal(t, LockLocal, cfg.Lock.Mode)
	assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "flowtree.yaml", `
backend: pebble
database: /var/lib/flowtree
http:
  port: 9000
lock:
  ttl: 5s
log:
  format: JSON
`)
	t.Setenv("FLOWTREE_HTTP_PORT", "9100")
	t.Setenv("FLOWTREE_LOG_LEVEL", "debug")

	cfg, err := Load(path, Options{SkipEnvFile: true})
	require.NoError(t, err)

	assert.Equal(t, BackendPebble, cfg.Backend)
	assert.Equal(t, "/var/lib/flowtree", cfg.Database)
	assert.Equal(t, 9100, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 5*time.Second, cfg.Lock.TTL)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, "test.env", "FLOWTREE_BACKEND=memory\nFLOWTREE_ARCHIVE_BUCKET=mem://\n")
	t.Setenv("FLOWTREE_BACKEND", "")
	os.Unsetenv("FLOWTREE_BACKEND")
	t.Setenv("FLOWTREE_ARCHIVE_BUCKET", "file:///already/set")

	cfg, err := Load("", Options{EnvFile: envFile})
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Backend)
	// Real environment wins over the dotenv file.
	assert.Equal(t, "file:///already/set", cfg.Archive.Bucket)
}

func TestLoad_MissingEnvFileIsFine(t *testing.T) {
	_, err := Load("", Options{EnvFile: filepath.Join(t.TempDir(), "absent.env")})
	require.NoError(t, err)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), Options{SkipEnvFile: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Backend = "mongo" }, "backend"},
		{"empty database", func(c *Config) { c.Database = "" }, "database"},
		{"bolt without database", func(c *Config) { c.Backend = BackendBolt; c.Database = "" }, "database"},
		{"port range", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"redis without addr", func(c *Config) { c.Lock.Mode = LockRedis }, "lock.redis_addr"},
		{"zero ttl", func(c *Config) { c.Lock.TTL = 0 }, "lock.ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Error(), tt.want)
		})
	}
}

func TestValidate_MemoryNeedsNoDatabase(t *testing.T) {
	cfg := Default()
	cfg.Backend = BackendMemory
	cfg.Database = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RedisWithAddr(t *testing.T) {
	cfg := Default()
	cfg.Lock.Mode = LockRedis
	cfg.Lock.RedisAddr = "localhost:6379"
	assert.NoError(t, cfg.Validate())
}
