package shared

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLevel(t *testing.T) {
	base := zerolog.New(&bytes.Buffer{}).Level(zerolog.InfoLevel)

	same, err := WithLevel(base, "")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, same.GetLevel())

	warn, err := WithLevel(base, "warn")
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, warn.GetLevel())

	_, err = WithLevel(base, "loud")
	assert.Error(t, err)
}

func TestSetupClientLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupClientLogger(&buf, false)
	logger.Debug("hidden")
	logger.Info("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "key=value")
}
