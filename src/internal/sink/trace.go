package sink

import (
	"io"
	"os"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"
	"logsmith/src/internal/format"
	"logsmith/src/internal/trace"
)

// TraceSink publishes terse lines to the trace hub for live subscribers
type TraceSink struct {
	*worker
	trace *traceDestination
}

type traceDestination struct {
	hub       *trace.Hub
	formatter format.Formatter
	mirror    io.Writer
}

func NewTraceSink(opts *config.TraceSinkOptions, formatter format.Formatter, hub *trace.Hub, deps Deps) (*TraceSink, error) {
	if opts == nil {
		opts = &config.TraceSinkOptions{}
	}
	if hub == nil {
		hub = trace.NewHub(int(opts.Backlog), deps.Metrics)
	}
	dst := &traceDestination{
		hub:       hub,
		formatter: formatter,
	}
	if opts.Stderr {
		dst.mirror = os.Stderr
	}
	return &TraceSink{
		worker: newWorker(string(config.SinkTrace), dst, opts.BufferSize, deps),
		trace:  dst,
	}, nil
}

// Hub is the hub the sink publishes to
func (s *TraceSink) Hub() *trace.Hub {
	return s.trace.hub
}

func (d *traceDestination) open() error {
	return nil
}

func (d *traceDestination) write(entry core.Entry) error {
	formatted, err := d.formatter.Format(entry)
	if err != nil {
		return err
	}

	d.hub.Publish(trace.Line{
		Time:          entry.Time,
		Level:         entry.Level,
		Source:        entry.Source,
		CorrelationID: entry.CorrelationID,
		Data:          formatted,
	})

	if d.mirror != nil {
		if _, err := d.mirror.Write(formatted); err != nil {
			return err
		}
	}
	return nil
}

func (d *traceDestination) sync() error {
	return nil
}

// The hub belongs to the facility and outlives the sink
func (d *traceDestination) close() error {
	return nil
}

func (d *traceDestination) details() map[string]any {
	stats := d.hub.Stats()
	return map[string]any{
		"subscribers": stats.Subscribers,
		"published":   stats.Published,
		"mirror":      d.mirror != nil,
	}
}
