package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewDefaultsToInfo(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNewDevelopmentDebug(t *testing.T) {
	l, err := New(Config{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid level")
}

func TestEncoderKeys(t *testing.T) {
	for _, dev := range []bool{false, true} {
		zc := buildZapConfig(dev)
		assert.Equal(t, "ts", zc.EncoderConfig.TimeKey)
		assert.Equal(t, "caller", zc.EncoderConfig.CallerKey)
	}
	assert.Equal(t, "json", buildZapConfig(false).Encoding)
	assert.Equal(t, "console", buildZapConfig(true).Encoding)
}
