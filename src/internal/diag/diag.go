// Package diag is the last-resort channel for failures inside the facility
// itself: sink write errors, recovered panics, reload problems. It never
// feeds back into the facility's own sinks.
package diag

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// Quiet level understood by lixenwraith/log, above every real level
const levelQuiet = 255

// Channel reports failures to an internal lixenwraith/log logger, rate
// limited so a broken sink cannot flood it
type Channel struct {
	logger  *log.Logger
	limiter *rate.Limiter
	owned   bool

	mu         sync.Mutex
	suppressed int64

	reported atomic.Uint64
	dropped  atomic.Uint64
}

// New builds a channel with its own logger from the diagnostics config.
// logPath and logName supply the file location when none is configured.
func New(cfg config.DiagnosticsConfig, logPath, logName string) (*Channel, error) {
	logger := log.NewLogger()
	if err := logger.InitWithDefaults(loggerArgs(cfg, logPath, logName)...); err != nil {
		return nil, fmt.Errorf("failed to initialize diagnostics logger: %w", err)
	}

	c := Wrap(logger, cfg.ReportsPerSecond, int(cfg.Burst))
	c.owned = true
	return c, nil
}

// Wrap builds a channel around an existing logger. A non-positive rate
// allows only the burst, then suppresses everything.
func Wrap(logger *log.Logger, perSecond float64, burst int) *Channel {
	if logger == nil {
		logger = log.NewLogger()
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = 0
	}
	if burst <= 0 {
		burst = 1
	}
	return &Channel{
		logger:  logger,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func loggerArgs(cfg config.DiagnosticsConfig, logPath, logName string) []string {
	threshold := core.LevelWarn
	if cfg.Level != "" {
		if parsed, err := core.ParseLevel(cfg.Level); err == nil {
			threshold = parsed
		}
	}
	args := []string{fmt.Sprintf("level=%d", LoggerLevel(threshold))}

	switch cfg.Output {
	case "none":
		args = append(args, "disable_file=true", "enable_stdout=false")
	case "file":
		dir := cfg.Directory
		if dir == "" {
			dir = logPath
		}
		name := cfg.Name
		if name == "" {
			name = logName + ".diag"
		}
		args = append(args,
			"enable_stdout=false",
			fmt.Sprintf("directory=%s", filepath.Clean(dir)),
			fmt.Sprintf("name=%s", name))
	default:
		args = append(args,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stderr")
	}
	return args
}

// LoggerLevel translates a facility level to the lixenwraith/log level
func LoggerLevel(l core.Level) int64 {
	switch l {
	case core.LevelTrace, core.LevelDebug:
		return int64(log.LevelDebug)
	case core.LevelInfo:
		return int64(log.LevelInfo)
	case core.LevelWarn:
		return int64(log.LevelWarn)
	case core.LevelError, core.LevelFatal:
		return int64(log.LevelError)
	default:
		return levelQuiet
	}
}

// Logger exposes the underlying logger for operational messages
func (c *Channel) Logger() *log.Logger {
	if c == nil {
		return nil
	}
	return c.logger
}

// Report logs a failure in component. Reports over the rate limit are
// counted and the count is attached to the next report that gets through.
func (c *Channel) Report(component string, err error, kv ...any) {
	if c == nil || err == nil {
		return
	}

	c.mu.Lock()
	if !c.limiter.Allow() {
		c.suppressed++
		c.mu.Unlock()
		c.dropped.Add(1)
		return
	}
	suppressed := c.suppressed
	c.suppressed = 0
	c.mu.Unlock()

	c.reported.Add(1)
	args := make([]any, 0, 6+len(kv))
	args = append(args, "msg", "Facility failure", "component", component, "error", err)
	if suppressed > 0 {
		args = append(args, "suppressed", suppressed)
	}
	args = append(args, kv...)
	c.logger.Error(args...)
}

// Reported is the number of reports written to the logger
func (c *Channel) Reported() uint64 {
	return c.reported.Load()
}

// Suppressed is the number of reports dropped by the rate limit
func (c *Channel) Suppressed() uint64 {
	return c.dropped.Load()
}

// Shutdown flushes and stops the logger if the channel created it
func (c *Channel) Shutdown(timeout time.Duration) error {
	if c == nil || !c.owned {
		return nil
	}
	return c.logger.Shutdown(timeout)
}
