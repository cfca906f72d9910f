package format

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"

	"github.com/lixenwraith/log"
)

const (
	consoleTemplate = `{{FmtTime .Time}} | {{Lvl .Level}} | {{.Message}} | {{.Source}} | {{Tags .Tags}} | {{.CorrelationID}}`
	hostTemplate    = `{{FmtTime .Time}} | {{Lvl .Level}} | {{.Message}} | {{.Source}} | {{.Host}} | {{.Identity}} | {{Tags .Tags}} | {{.CorrelationID}}`
	traceTemplate   = `{{FmtTime .Time}} | {{Lvl .Level}} | {{.Message}} | {{.Source}} | {{.CorrelationID}}`
)

// ANSI colours per level, console only
var levelColors = map[core.Level]string{
	core.LevelTrace: "\x1b[90m",
	core.LevelDebug: "\x1b[36m",
	core.LevelInfo:  "\x1b[32m",
	core.LevelWarn:  "\x1b[33m",
	core.LevelError: "\x1b[31m",
	core.LevelFatal: "\x1b[1;31m",
}

const colorReset = "\x1b[0m"

// TextFormatter produces pipe-delimited lines using templates
type TextFormatter struct {
	config     *config.FormatOptions
	template   *template.Template
	timeFormat string
	// Console and file layouts append the full error detail, trace does not
	withDetail bool
	logger     *log.Logger
}

// lineData is what templates see: the entry plus process identity
type lineData struct {
	core.Entry
	Host     string
	Identity string
}

// NewTextFormatter creates a text formatter for the configured layout or
// custom template
func NewTextFormatter(opts *config.FormatOptions, logger *log.Logger) (*TextFormatter, error) {
	if opts == nil {
		opts = &config.FormatOptions{}
	}
	f := &TextFormatter{
		config:     opts,
		timeFormat: timestampFormat(opts),
		withDetail: opts.Layout != "trace",
		logger:     logger,
	}

	funcMap := template.FuncMap{
		"FmtTime": func(t time.Time) string {
			return t.Format(f.timeFormat)
		},
		"Lvl":       f.level,
		"Tags":      FormatTags,
		"ToUpper":   strings.ToUpper,
		"ToLower":   strings.ToLower,
		"TrimSpace": strings.TrimSpace,
	}

	text := opts.Template
	if text == "" {
		text = layoutTemplate(opts)
	}

	tmpl, err := template.New("line").Funcs(funcMap).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	f.template = tmpl
	return f, nil
}

func layoutTemplate(opts *config.FormatOptions) string {
	switch {
	case opts.Layout == "trace":
		return traceTemplate
	case opts.IncludeHost:
		return hostTemplate
	default:
		return consoleTemplate
	}
}

func (f *TextFormatter) level(l core.Level) string {
	padded := l.Padded()
	if !f.config.Color {
		return padded
	}
	if c, ok := levelColors[l]; ok {
		return c + padded + colorReset
	}
	return padded
}

// Format renders the entry as one line, followed by the error detail when
// the layout carries it
func (f *TextFormatter) Format(entry core.Entry) ([]byte, error) {
	data := lineData{Entry: entry}
	if f.config.IncludeHost {
		data.Host = core.MachineName()
		data.Identity = core.Identity()
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		f.logger.Debug("msg", "Template execution failed, using fallback",
			"component", "text_formatter",
			"error", err)

		buf.Reset()
		fmt.Fprintf(&buf, "%s | %s | %s | %s | %s",
			entry.Time.Format(f.timeFormat),
			entry.Level.Padded(),
			entry.Message,
			entry.Source,
			entry.CorrelationID)
	}

	if buf.Len() == 0 || buf.Bytes()[buf.Len()-1] != '\n' {
		buf.WriteByte('\n')
	}

	if f.withDetail && entry.Err != nil {
		buf.WriteByte('\n')
		buf.WriteString(entry.Err.Full())
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}

// Name returns the formatter name
func (f *TextFormatter) Name() string {
	return "text"
}

// FormatTags renders tags as k=v pairs sorted by key
func FormatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	return b.String()
}
