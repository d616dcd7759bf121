package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lox/triadsync/internal/auth"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "triad.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost:8080", cfg.Address())
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, match.DefaultTimings(), cfg.MatchTimings())
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server {
  address   = "0.0.0.0"
  port      = 9000
  log_level = "debug"
}

store {
  backend   = "redis"
  redis_url = "redis://localhost:6379/0"
}

timings {
  countdown_ms = 1500
}
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:9000", cfg.Address())
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "triad", cfg.Store.Namespace)

	timings := cfg.MatchTimings()
	assert.Equal(t, 1500*time.Millisecond, timings.Countdown)
	assert.Equal(t, 2*time.Second, timings.RoundEnd)
	assert.Equal(t, 2*time.Minute, timings.EmptyGrace)
}

func TestLoadConfigWithoutBlocks(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigParseError(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "server {"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }},
		{"redis without url", func(c *Config) { c.Store.Backend = BackendRedis }},
		{"negative timing", func(c *Config) { c.Timings.RoundEndMs = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOpenMemoryBackend(t *testing.T) {
	b, closeFn, err := DefaultConfig().OpenBackend(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryBackend{}, b)
	assert.NoError(t, closeFn())
}

func TestMemoryBackendSnapshotFile(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Store.SnapshotFile = filepath.Join(t.TempDir(), "store.json")

	b, closeFn, err := cfg.OpenBackend(ctx)
	require.NoError(t, err)
	_, err = b.Update(ctx, "triad_rooms/r1", func(store.Snapshot) ([]byte, error) {
		return []byte(`{"name":"Friday"}`), nil
	})
	require.NoError(t, err)
	require.NoError(t, closeFn())

	reopened, closeFn, err := cfg.OpenBackend(ctx)
	require.NoError(t, err)
	defer closeFn()

	snap, err := reopened.Get(ctx, "triad_rooms/r1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Friday"}`, string(snap.Value))
}

func TestAuthBlock(t *testing.T) {
	cfg := DefaultConfig()
	assert.Nil(t, cfg.Validator())

	cfg, err := LoadConfig(writeConfig(t, `
auth {
  url       = "http://auth.internal/validate"
  fail_open = true
}
`))
	require.NoError(t, err)
	require.NotNil(t, cfg.Auth)
	assert.True(t, cfg.Auth.FailOpen)
	assert.IsType(t, &auth.HTTPValidator{}, cfg.Validator())
	assert.Empty(t, cfg.AdminSecret())

	cfg, err = LoadConfig(writeConfig(t, `
auth {
  jwt_secret   = "s3cret"
  admin_secret = "ops"
}
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.IsType(t, &auth.JWTValidator{}, cfg.Validator())
	assert.Equal(t, "ops", cfg.AdminSecret())

	cfg, err = LoadConfig(writeConfig(t, `
auth {
  fail_open = true
}
`))
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}
