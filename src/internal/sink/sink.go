package sink

import (
	"context"
	"time"

	"logsmith/src/internal/core"
	"logsmith/src/internal/diag"
	"logsmith/src/internal/metrics"

	"github.com/lixenwraith/log"
)

// Sink is an output destination for log entries
type Sink interface {
	// Name identifies the sink in stats and diagnostics
	Name() string

	// Start opens the destination and begins background processing
	Start(ctx context.Context) error

	// Accept queues an entry. It never blocks on I/O and never panics.
	Accept(entry core.Entry)

	// Flush writes queued entries and syncs the destination
	Flush() error

	// Close drains queued entries, flushes and releases resources
	Close() error

	GetStats() SinkStats
}

// SinkStats contains statistics about a sink
type SinkStats struct {
	Type           string         `json:"type"`
	Name           string         `json:"name"`
	TotalProcessed uint64         `json:"total_processed"`
	TotalFailed    uint64         `json:"total_failed"`
	TotalDropped   uint64         `json:"total_dropped"`
	QueueDepth     int            `json:"queue_depth"`
	StartTime      time.Time      `json:"start_time"`
	LastProcessed  time.Time      `json:"last_processed"`
	Details        map[string]any `json:"details,omitempty"`
}

// Deps are the facility services every sink reports to
type Deps struct {
	Diag    *diag.Channel
	Metrics *metrics.Metrics
}

func (d Deps) logger() *log.Logger {
	if l := d.Diag.Logger(); l != nil {
		return l
	}
	return log.NewLogger()
}
