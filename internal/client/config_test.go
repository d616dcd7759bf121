package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv(EnvServer, "")
	t.Setenv(EnvName, "")
	t.Setenv(EnvSeed, "")
	t.Setenv(EnvParticipantID, "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultServer, cfg.ServerURL)
	assert.Len(t, cfg.ParticipantID, 36)
	assert.Equal(t, "player-"+cfg.ParticipantID[:8], cfg.Name)
	assert.Nil(t, cfg.Seed)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvServer, "ws://example:9000/ws")
	t.Setenv(EnvName, "Alice")
	t.Setenv(EnvSeed, "12345")
	t.Setenv(EnvParticipantID, "p-1")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "ws://example:9000/ws", cfg.ServerURL)
	assert.Equal(t, "Alice", cfg.Name)
	assert.Equal(t, "p-1", cfg.ParticipantID)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, int64(12345), *cfg.Seed)
}

func TestFromEnvBadSeed(t *testing.T) {
	t.Setenv(EnvSeed, "twelve")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv(EnvName, "")
	require.NoError(t, os.Unsetenv(EnvName))

	path := filepath.Join(t.TempDir(), "triad.env")
	require.NoError(t, os.WriteFile(path, []byte("TRIAD_NAME=FromFile\n"), 0o600))

	require.NoError(t, LoadEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "FromFile", os.Getenv(EnvName))
}
