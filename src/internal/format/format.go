package format

import (
	"fmt"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"

	"github.com/lixenwraith/log"
)

// Formatter defines the interface for rendering an Entry into a byte slice.
type Formatter interface {
	// Format renders one entry, newline terminated
	Format(entry core.Entry) ([]byte, error)

	// Name returns the formatter type name
	Name() string
}

// NewFormatter creates a Formatter from sink format options. Nil options or an
// empty type select the text formatter with the console layout.
func NewFormatter(opts *config.FormatOptions, logger *log.Logger) (Formatter, error) {
	if opts == nil {
		opts = &config.FormatOptions{}
	}

	switch opts.Type {
	case "", "text":
		return NewTextFormatter(opts, logger)
	case "json":
		return NewJSONFormatter(opts, logger)
	case "raw":
		return NewRawFormatter(opts, logger)
	default:
		return nil, fmt.Errorf("unknown formatter type: %s", opts.Type)
	}
}

func timestampFormat(opts *config.FormatOptions) string {
	if opts.TimestampFormat != "" {
		return opts.TimestampFormat
	}
	return core.TimestampFormat
}
