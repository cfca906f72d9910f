package sink

import (
	"fmt"
	"os"

	"logsmith/src/internal/config"
	"logsmith/src/internal/format"
	"logsmith/src/internal/trace"

	"golang.org/x/term"
)

// New builds an unstarted sink from a resolved spec. hub is used by the
// trace sink and may be nil otherwise.
func New(spec config.SinkSpec, hub *trace.Hub, deps Deps) (Sink, error) {
	switch spec.Kind {
	case config.SinkConsole:
		if spec.Console == nil {
			return nil, fmt.Errorf("console sink spec has no options")
		}
		opts := *spec.Console
		opts.Format.Color = opts.Color && consoleIsTerminal(opts.Target)
		formatter, err := format.NewFormatter(&opts.Format, deps.logger())
		if err != nil {
			return nil, err
		}
		return NewConsoleSink(&opts, formatter, deps)

	case config.SinkFile:
		if spec.File == nil {
			return nil, fmt.Errorf("file sink spec has no options")
		}
		formatter, err := format.NewFormatter(&spec.File.Format, deps.logger())
		if err != nil {
			return nil, err
		}
		return NewFileSink(spec.File, formatter, deps)

	case config.SinkDatabase:
		if spec.Database == nil {
			return nil, fmt.Errorf("database sink spec has no options")
		}
		return NewDatabaseSink(spec.Database, deps)

	case config.SinkTrace:
		if spec.Trace == nil {
			return nil, fmt.Errorf("trace sink spec has no options")
		}
		formatter, err := format.NewFormatter(&spec.Trace.Format, deps.logger())
		if err != nil {
			return nil, err
		}
		return NewTraceSink(spec.Trace, formatter, hub, deps)

	default:
		return nil, fmt.Errorf("unknown sink type: %s", spec.Kind)
	}
}

func consoleIsTerminal(target string) bool {
	fd := os.Stdout.Fd()
	if target == "stderr" {
		fd = os.Stderr.Fd()
	}
	return term.IsTerminal(int(fd))
}
