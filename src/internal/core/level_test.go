package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"trace":   LevelTrace,
		"Debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"warn":    LevelWarn,
		"error":   LevelError,
		"Fatal":   LevelFatal,
		"off":     LevelOff,
		" info ":  LevelInfo,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLevel_Padded(t *testing.T) {
	assert.Equal(t, "INFO ", LevelInfo.Padded())
	assert.Equal(t, "ERROR", LevelError.Padded())
	assert.Equal(t, "WARN ", LevelWarn.Padded())
	assert.Len(t, LevelTrace.Padded(), 5)
}

func TestEnabled(t *testing.T) {
	levels := []Level{LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal}

	t.Run("TotalOrder", func(t *testing.T) {
		for _, threshold := range levels {
			for _, level := range levels {
				assert.Equal(t, level >= threshold, Enabled(threshold, level),
					"threshold=%s level=%s", threshold, level)
			}
		}
	})

	t.Run("OffNeverPasses", func(t *testing.T) {
		for _, level := range levels {
			assert.False(t, Enabled(LevelOff, level))
			assert.False(t, Enabled(level, LevelOff))
		}
	})

	t.Run("UnknownLevel", func(t *testing.T) {
		assert.False(t, Enabled(LevelInfo, Level(42)))
	})
}

func TestLevel_TextRoundTrip(t *testing.T) {
	var l Level
	require.NoError(t, l.UnmarshalText([]byte("warn")))
	assert.Equal(t, LevelWarn, l)

	out, err := l.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "WARN", string(out))
}
