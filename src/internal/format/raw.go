package format

import (
	"logsmith/src/internal/config"
	"logsmith/src/internal/core"

	"github.com/lixenwraith/log"
)

// RawFormatter outputs the message as-is with a newline
type RawFormatter struct {
	logger *log.Logger
}

func NewRawFormatter(_ *config.FormatOptions, logger *log.Logger) (*RawFormatter, error) {
	return &RawFormatter{
		logger: logger,
	}, nil
}

// Format returns the message with a newline appended
func (f *RawFormatter) Format(entry core.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

func (f *RawFormatter) Name() string {
	return "raw"
}
