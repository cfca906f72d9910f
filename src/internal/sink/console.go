package sink

import (
	"io"
	"os"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"
	"logsmith/src/internal/format"
)

// ConsoleSink writes formatted lines to stdout, stderr, or both split by level
type ConsoleSink struct {
	*worker
	console *consoleDestination
}

type consoleDestination struct {
	target    string
	stdout    io.Writer
	stderr    io.Writer
	formatter format.Formatter
}

// NewConsoleSink creates a console sink on the process standard streams
func NewConsoleSink(opts *config.ConsoleSinkOptions, formatter format.Formatter, deps Deps) (*ConsoleSink, error) {
	return newConsoleSink(opts, formatter, deps, os.Stdout, os.Stderr)
}

func newConsoleSink(opts *config.ConsoleSinkOptions, formatter format.Formatter, deps Deps, stdout, stderr io.Writer) (*ConsoleSink, error) {
	if opts == nil {
		opts = &config.ConsoleSinkOptions{}
	}
	target := opts.Target
	if target == "" {
		target = "stdout"
	}

	dst := &consoleDestination{
		target:    target,
		stdout:    stdout,
		stderr:    stderr,
		formatter: formatter,
	}
	return &ConsoleSink{
		worker:  newWorker(string(config.SinkConsole), dst, opts.BufferSize, deps),
		console: dst,
	}, nil
}

func (d *consoleDestination) open() error {
	return nil
}

func (d *consoleDestination) write(entry core.Entry) error {
	formatted, err := d.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = d.writerFor(entry.Level).Write(formatted)
	return err
}

// writerFor routes Warn and above to stderr in split mode
func (d *consoleDestination) writerFor(level core.Level) io.Writer {
	switch d.target {
	case "stderr":
		return d.stderr
	case "split":
		if level >= core.LevelWarn {
			return d.stderr
		}
		return d.stdout
	default:
		return d.stdout
	}
}

func (d *consoleDestination) sync() error {
	return nil
}

func (d *consoleDestination) close() error {
	return nil
}

func (d *consoleDestination) details() map[string]any {
	return map[string]any{
		"target": d.target,
		"format": d.formatter.Name(),
	}
}
