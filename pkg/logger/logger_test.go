package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	l := NewLogger()
	require.NotNil(t, l)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.FatalLevel, ParseLevel("fatal"))

	// Case and whitespace are tolerated
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))

	// Unknown levels fall back to info
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
}

func TestWithField_ReturnsNewLogger(t *testing.T) {
	l := NewLoggerWithLevel("debug")
	child := l.WithField("campaign_id", "c-1")
	require.NotNil(t, child)
	assert.NotSame(t, l, child)
}

func TestWithFields_ReturnsNewLogger(t *testing.T) {
	l := NewLoggerWithLevel("debug")
	child := l.WithFields(map[string]interface{}{
		"campaign_id": "c-1",
		"email":       "a@x.io",
	})
	require.NotNil(t, child)
	assert.NotSame(t, l, child)
}

func TestTestLogger_DoesNotPanic(t *testing.T) {
	l := NewTestLogger(t)
	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")
	l.WithField("k", "v").Info("with field")
	l.WithFields(map[string]interface{}{"k": "v"}).Info("with fields")
}
