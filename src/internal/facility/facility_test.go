package facility

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"
	"logsmith/src/internal/diag"
	"logsmith/src/internal/metrics"
	"logsmith/src/internal/router"

	"github.com/google/uuid"
	"github.com/lixenwraith/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.ApplicationName = "billing"
	cfg.Logging.Level = "info"
	cfg.Logging.LogToConsole = false
	cfg.Logging.LogToFile = true
	cfg.Logging.ArchiveMonthly = false
	cfg.Logging.LogPath = t.TempDir()
	cfg.Logging.FlushIntervalMS = 0
	return cfg
}

func initFacility(t *testing.T, cfg *config.Config, opts ...Option) *Facility {
	t.Helper()
	opts = append([]Option{WithDiagnostics(diag.Wrap(log.NewLogger(), 100, 100))}, opts...)
	f, err := Init(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { f.Shutdown(2 * time.Second) })
	return f
}

func logLines(t *testing.T, f *Facility, path string) []string {
	t.Helper()
	require.NoError(t, f.Flush())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func loadLedger() error {
	return errors.New("ledger file truncated")
}

func TestInit(t *testing.T) {
	t.Run("InvalidConfig", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Logging.Level = "loud"
		_, err := Init(context.Background(), cfg, WithDiagnostics(diag.Wrap(log.NewLogger(), 1, 1)))

		var cfgErr *config.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "logging.level", cfgErr.Key)
	})

	t.Run("NilConfig", func(t *testing.T) {
		_, err := Init(context.Background(), nil)
		var cfgErr *config.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("SinkStartFailure", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Logging.LogToDatabase = true
		cfg.Logging.Database.Driver = "nosuchdriver"
		cfg.Logging.ConnectionString = "whatever"
		_, err := Init(context.Background(), cfg, WithDiagnostics(diag.Wrap(log.NewLogger(), 1, 1)))

		var rerr *router.ReconfigureError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "database", rerr.Failures[0].Sink)
	})

	t.Run("SinkFilters", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Logging.File.Filters = []config.FilterOptions{
			{Type: config.FilterTypeExclude, Patterns: []string{"^heartbeat"}},
		}
		f := initFacility(t, cfg)
		f.WriteEntry("heartbeat", core.WithLevel(core.LevelInfo), core.WithSource("heartbeat"))
		f.WriteEntry("invoice sent", core.WithLevel(core.LevelInfo), core.WithSource("mailer"))

		lines := logLines(t, f, filepath.Join(cfg.Logging.LogPath, "billing.log"))
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], "invoice sent")
		assert.EqualValues(t, 1, f.router.Stats().Filtered)
	})

	t.Run("NameAndPathOverrides", func(t *testing.T) {
		dir := t.TempDir()
		f := initFacility(t, testConfig(t), WithLogName("orders.txt"), WithLogPath(dir))
		f.WriteInfo("placed")

		lines := logLines(t, f, filepath.Join(dir, "orders.txt"))
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], "| INFO  | placed |")
	})
}

// The console and the file get the same entry, correlation id included
func TestWriteEntry_ConsoleAndFileAgree(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	cfg := testConfig(t)
	cfg.Logging.LogToConsole = true
	cfg.Logging.Console.Target = "stdout"
	cfg.Logging.Console.Color = false

	f, err := Init(context.Background(), cfg, WithDiagnostics(diag.Wrap(log.NewLogger(), 100, 100)))
	require.NoError(t, err)
	f.WriteEntry("disk full", core.WithLevel(core.LevelError), core.WithSource("Writer.flush"))
	require.NoError(t, f.Shutdown(2*time.Second))

	os.Stdout = stdout
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(cfg.Logging.LogPath, "billing.log"))
	require.NoError(t, err)

	lineWith := func(text, msg string) string {
		for _, line := range strings.Split(text, "\n") {
			if strings.Contains(line, msg) {
				return strings.TrimSpace(line)
			}
		}
		return ""
	}
	consoleLine := lineWith(string(out), "disk full")
	fileLine := lineWith(string(data), "disk full")
	require.NotEmpty(t, consoleLine)
	require.NotEmpty(t, fileLine)

	lastField := func(line string) string {
		fields := strings.Split(line, "|")
		return strings.TrimSpace(fields[len(fields)-1])
	}
	for _, line := range []string{consoleLine, fileLine} {
		assert.Contains(t, line, "ERROR")
		assert.Contains(t, line, "disk full")
		assert.Contains(t, line, "Writer.flush")
	}

	id := lastField(fileLine)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "correlation id %q", id)
	assert.Equal(t, id, lastField(consoleLine))
}

func TestWriteEntry(t *testing.T) {
	t.Run("EmptyMessageIgnored", func(t *testing.T) {
		cfg := testConfig(t)
		f := initFacility(t, cfg)

		f.WriteEntry("", core.WithLevel(core.LevelFatal))
		f.WriteError("")

		assert.Empty(t, logLines(t, f, filepath.Join(cfg.Logging.LogPath, "billing.log")))
		assert.Equal(t, 2.0, testutil.ToFloat64(f.Metrics().SuppressedTotal.WithLabelValues(metrics.ReasonEmpty)))
		assert.Zero(t, testutil.CollectAndCount(f.Metrics().EntriesTotal))
		assert.EqualValues(t, 0, f.router.Stats().Dispatched)
	})

	t.Run("BelowThreshold", func(t *testing.T) {
		cfg := testConfig(t)
		f := initFacility(t, cfg)

		f.WriteEntry("probe")
		assert.Empty(t, logLines(t, f, filepath.Join(cfg.Logging.LogPath, "billing.log")))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.Metrics().SuppressedTotal.WithLabelValues(metrics.ReasonThreshold)))

		f.WriteInfo("hello")
		f.WriteError("disk full")
		lines := logLines(t, f, filepath.Join(cfg.Logging.LogPath, "billing.log"))
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "| INFO  | hello |")
		assert.Contains(t, lines[1], "| ERROR | disk full |")
	})

	t.Run("OptionsCarried", func(t *testing.T) {
		cfg := testConfig(t)
		f := initFacility(t, cfg)

		f.WriteEntry("disk full",
			core.WithLevel(core.LevelError),
			core.WithSource("Writer.flush"),
			core.WithTags(map[string]string{"disk": "sda1"}))

		lines := logLines(t, f, filepath.Join(cfg.Logging.LogPath, "billing.log"))
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], "| ERROR | disk full | Writer.flush | disk=sda1 | ")
	})

	t.Run("RequestFromContext", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Logging.File.Format.Type = "json"
		f := initFacility(t, cfg)

		ctx := core.ContextWithRequest(context.Background(), core.RequestInfo{URL: "/upload", ServerName: "api-1"})
		f.WriteEntryContext(ctx, "upload rejected", core.WithLevel(core.LevelWarn))

		lines := logLines(t, f, filepath.Join(cfg.Logging.LogPath, "billing.log"))
		require.Len(t, lines, 1)
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &doc))
		assert.Equal(t, "/upload", doc["url"])
		assert.Equal(t, "api-1", doc["server_name"])
	})

	t.Run("NilFacility", func(t *testing.T) {
		var f *Facility
		assert.NotPanics(t, func() {
			f.WriteInfo("nobody listens")
			f.WriteException(stderrors.New("nobody listens"))
			assert.NoError(t, f.Flush())
			assert.NoError(t, f.Shutdown(time.Second))
		})
	})
}

func TestWriteException(t *testing.T) {
	t.Run("OriginOfInnermostCause", func(t *testing.T) {
		cfg := testConfig(t)
		f := initFacility(t, cfg)

		err := fmt.Errorf("close period: %w", loadLedger())
		f.WriteException(err)

		data := strings.Join(logLines(t, f, filepath.Join(cfg.Logging.LogPath, "billing.log")), "\n")
		assert.Contains(t, data, "| ERROR | close period: ledger file truncated | facility.loadLedger |")
		assert.Contains(t, data, "---> caused by: ledger file truncated")
	})

	t.Run("CallerWhenNoStack", func(t *testing.T) {
		cfg := testConfig(t)
		f := initFacility(t, cfg)

		f.WriteException(stderrors.New("plain failure"))

		lines := logLines(t, f, filepath.Join(cfg.Logging.LogPath, "billing.log"))
		require.NotEmpty(t, lines)
		assert.Contains(t, lines[0], "| plain failure | facility.TestWriteException.func2 |")
	})

	t.Run("NilError", func(t *testing.T) {
		cfg := testConfig(t)
		f := initFacility(t, cfg)
		f.WriteException(nil)
		assert.Empty(t, logLines(t, f, filepath.Join(cfg.Logging.LogPath, "billing.log")))
	})
}

func TestReconfigure(t *testing.T) {
	t.Run("SwapsSinks", func(t *testing.T) {
		cfg := testConfig(t)
		f := initFacility(t, cfg)
		f.WriteInfo("before")

		next := *cfg
		next.Logging.Level = "error"
		next.Logging.FileName = "billing-v2"
		require.NoError(t, f.Reconfigure(&next))

		f.WriteInfo("suppressed now")
		f.WriteError("after")

		oldLines := logLines(t, f, filepath.Join(cfg.Logging.LogPath, "billing.log"))
		require.Len(t, oldLines, 1)
		assert.Contains(t, oldLines[0], "before")

		newLines := logLines(t, f, filepath.Join(cfg.Logging.LogPath, "billing-v2.log"))
		require.Len(t, newLines, 1)
		assert.Contains(t, newLines[0], "after")

		assert.Equal(t, core.LevelError, f.Threshold())
		assert.Equal(t, "error", f.Config().Logging.Level)
	})

	t.Run("FailureRetainsPrevious", func(t *testing.T) {
		cfg := testConfig(t)
		f := initFacility(t, cfg)

		next := *cfg
		next.Logging.Level = "debug"
		next.Logging.LogToDatabase = true
		next.Logging.Database.Driver = "nosuchdriver"
		next.Logging.ConnectionString = "whatever"

		err := f.Reconfigure(&next)
		var rerr *router.ReconfigureError
		require.ErrorAs(t, err, &rerr)

		assert.Equal(t, core.LevelInfo, f.Threshold())
		assert.Equal(t, "info", f.Config().Logging.Level)

		f.WriteInfo("still logging")
		lines := logLines(t, f, filepath.Join(cfg.Logging.LogPath, "billing.log"))
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], "still logging")
		assert.Equal(t, 1.0, testutil.ToFloat64(f.Metrics().ReconfigureTotal.WithLabelValues("failure")))
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		f := initFacility(t, testConfig(t))
		next := *f.Config()
		next.Logging.Console.Target = "printer"
		next.Logging.LogToConsole = true

		var cfgErr *config.ConfigError
		assert.ErrorAs(t, f.Reconfigure(&next), &cfgErr)
	})
}

func TestScheduledFlush(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.FlushIntervalMS = 50
	f := initFacility(t, cfg)

	f.WriteInfo("flushed by schedule")
	path := filepath.Join(cfg.Logging.LogPath, "billing.log")
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && strings.Contains(string(data), "flushed by schedule")
	}, 2*time.Second, 20*time.Millisecond)
}

func freePort(t *testing.T) int64 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return int64(ln.Addr().(*net.TCPAddr).Port)
}

func TestTraceStatus(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.LogToTrace = true
	cfg.Logging.Trace.HTTP.Enabled = true
	cfg.Logging.Trace.HTTP.Port = freePort(t)
	f := initFacility(t, cfg)

	f.WriteError("disk full")
	require.NoError(t, f.Flush())

	resp, err := http.Get("http://" + f.HTTPAddr() + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"threshold":"INFO"`)
	assert.Contains(t, string(body), `"sinks"`)

	backlog := f.Hub().Backlog()
	require.Len(t, backlog, 1)
	assert.Contains(t, string(backlog[0].Data), "| ERROR | disk full |")
}

func TestShutdown(t *testing.T) {
	cfg := testConfig(t)
	f, err := Init(context.Background(), cfg, WithDiagnostics(diag.Wrap(log.NewLogger(), 1, 1)))
	require.NoError(t, err)

	f.WriteInfo("last words")
	require.NoError(t, f.Shutdown(2*time.Second))

	data, err := os.ReadFile(filepath.Join(cfg.Logging.LogPath, "billing.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "last words")

	assert.NotPanics(t, func() { f.WriteInfo("too late") })
	assert.NoError(t, f.Shutdown(time.Second))
	assert.Error(t, f.Reconfigure(cfg))
}
