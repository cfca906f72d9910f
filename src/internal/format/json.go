package format

import (
	"encoding/json"
	"fmt"
	"time"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"

	"github.com/lixenwraith/log"
)

// Fields owned by the formatter; a JSON message never overrides them
var reservedFields = map[string]struct{}{
	"time": {}, "level": {}, "source": {}, "correlation_id": {},
}

// JSONFormatter produces one JSON object per entry
type JSONFormatter struct {
	config *config.FormatOptions
	logger *log.Logger
}

// NewJSONFormatter creates a new JSON formatter from format options
func NewJSONFormatter(opts *config.FormatOptions, logger *log.Logger) (*JSONFormatter, error) {
	if opts == nil {
		opts = &config.FormatOptions{}
	}
	return &JSONFormatter{
		config: opts,
		logger: logger,
	}, nil
}

// Format transforms a single Entry into a JSON line. A message that is itself
// a JSON object is merged into the output instead of quoted.
func (f *JSONFormatter) Format(entry core.Entry) ([]byte, error) {
	output := make(map[string]any)

	output["time"] = entry.Time.Format(time.RFC3339Nano)
	output["level"] = entry.Level.String()
	output["correlation_id"] = entry.CorrelationID
	if entry.Source != "" {
		output["source"] = entry.Source
	}

	var msgData map[string]any
	if err := json.Unmarshal([]byte(entry.Message), &msgData); err == nil && len(msgData) > 0 {
		for k, v := range msgData {
			if _, reserved := reservedFields[k]; !reserved {
				output[k] = v
			}
		}
		if _, hasLevel := msgData["level"]; hasLevel {
			f.logger.Debug("msg", "Overriding level from JSON message",
				"component", "json_formatter",
				"original", msgData["level"],
				"logsmith", output["level"])
		}
	} else {
		output["message"] = entry.Message
	}

	if len(entry.Tags) > 0 {
		output["tags"] = entry.Tags
	}
	if entry.Err != nil {
		output["error"] = entry.Err
	}
	if entry.Request.URL != "" {
		output["url"] = entry.Request.URL
	}
	if entry.Request.ServerName != "" {
		output["server_name"] = entry.Request.ServerName
	}
	if f.config.IncludeHost {
		output["machine_name"] = core.MachineName()
		output["identity"] = core.Identity()
	}

	var result []byte
	var err error
	if f.config.Pretty {
		result, err = json.MarshalIndent(output, "", "  ")
	} else {
		result, err = json.Marshal(output)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return append(result, '\n'), nil
}

// Name returns the formatter's type name
func (f *JSONFormatter) Name() string {
	return "json"
}
