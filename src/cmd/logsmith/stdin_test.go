package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"
	"logsmith/src/internal/diag"
	"logsmith/src/internal/facility"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	testCases := []struct {
		line    string
		level   core.Level
		message string
		ok      bool
	}{
		{"ERROR: disk full", core.LevelError, "disk full", true},
		{"warning:slow query", core.LevelWarn, "slow query", true},
		{"debug: cache miss\r", core.LevelDebug, "cache miss", true},
		{"plain line", core.LevelInfo, "plain line", true},
		{"http://example.com: moved", core.LevelInfo, "http://example.com: moved", true},
		{"note: not a level", core.LevelInfo, "note: not a level", true},
		{"off: hidden", core.LevelInfo, "off: hidden", true},
		{"   ", core.LevelOff, "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			level, message, ok := parseLine(tc.line)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.level, level)
				assert.Equal(t, tc.message, message)
			}
		})
	}
}

func testFacility(t *testing.T, dir string) *facility.Facility {
	t.Helper()
	cfg := config.Defaults()
	cfg.Logging.Level = "info"
	cfg.Logging.LogToConsole = false
	cfg.Logging.LogToFile = true
	cfg.Logging.FileName = "stdin"
	cfg.Logging.LogPath = dir
	cfg.Logging.FlushIntervalMS = 0

	f, err := facility.Init(context.Background(), cfg, facility.WithDiagnostics(diag.Wrap(log.NewLogger(), 10, 10)))
	require.NoError(t, err)
	t.Cleanup(func() { f.Shutdown(time.Second) })
	return f
}

func TestPumpLines(t *testing.T) {
	dir := t.TempDir()
	f := testFacility(t, dir)

	input := "ERROR: disk full\n\nDEBUG: below threshold\nstarted\n"
	require.NoError(t, pumpLines(context.Background(), strings.NewReader(input), f))
	require.NoError(t, f.Flush())

	data, err := os.ReadFile(filepath.Join(dir, "stdin.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "| ERROR | disk full | stdin |")
	assert.Contains(t, lines[1], "| INFO  | started | stdin |")
}

func TestReloadManager(t *testing.T) {
	dir := t.TempDir()
	f := testFacility(t, dir)
	rm := NewReloadManager(f, nil)

	t.Run("AppliesNewConfig", func(t *testing.T) {
		rm.load = func([]string) (*config.Config, error) {
			next := *f.Config()
			next.Logging.Level = "error"
			return &next, nil
		}
		require.NoError(t, rm.Reload())
		assert.Equal(t, core.LevelError, f.Threshold())
	})

	t.Run("LoadFailureKeepsConfig", func(t *testing.T) {
		rm.load = func([]string) (*config.Config, error) {
			return nil, errors.New("bad toml")
		}
		assert.Error(t, rm.Reload())
		assert.Equal(t, core.LevelError, f.Threshold())
	})
}

func TestWatchProblem(t *testing.T) {
	assert.Empty(t, watchProblem("logging.level"))
	assert.Equal(t, "configuration file deleted", watchProblem("file_deleted"))
	assert.Contains(t, watchProblem("permissions_changed"), "blocked")
	assert.Equal(t, "configuration reload error: bad toml", watchProblem("reload_error:bad toml"))
}

func TestConfigFlag(t *testing.T) {
	assert.Equal(t, "a.toml", configFlag([]string{"-c", "a.toml"}))
	assert.Equal(t, "b.toml", configFlag([]string{"--logging.level=info", "--config", "b.toml"}))
	assert.Equal(t, "c.toml", configFlag([]string{"--config=c.toml"}))
	assert.Empty(t, configFlag([]string{"-c"}))
	assert.Empty(t, configFlag(nil))
}
