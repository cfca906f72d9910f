package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is a single log event. Entries are values; options copy what they
// are given so a constructed entry never changes underneath a sink.
type Entry struct {
	Time          time.Time         `json:"time"`
	Level         Level             `json:"level"`
	Message       string            `json:"message"`
	Source        string            `json:"source,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
	Err           *ErrorDetail      `json:"error,omitempty"`
	Request       RequestInfo       `json:"request,omitempty"`
	CorrelationID string            `json:"correlation_id"`
}

// RequestInfo carries the request context of the caller, when there is one
type RequestInfo struct {
	URL        string `json:"url,omitempty"`
	ServerName string `json:"server_name,omitempty"`
}

// IsZero reports whether no request context was supplied
func (r RequestInfo) IsZero() bool {
	return r.URL == "" && r.ServerName == ""
}

// EntryOption customizes an entry at construction
type EntryOption func(*Entry)

// NewEntry builds an entry at DefaultLevel with a fresh correlation id
func NewEntry(message string, opts ...EntryOption) Entry {
	e := Entry{
		Time:          time.Now(),
		Level:         DefaultLevel,
		Message:       message,
		CorrelationID: uuid.NewString(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&e)
		}
	}
	return e
}

func WithLevel(level Level) EntryOption {
	return func(e *Entry) { e.Level = level }
}

func WithSource(source string) EntryOption {
	return func(e *Entry) { e.Source = source }
}

// WithTags merges tags into the entry. The map is copied.
func WithTags(tags map[string]string) EntryOption {
	return func(e *Entry) {
		if len(tags) == 0 {
			return
		}
		if e.Tags == nil {
			e.Tags = make(map[string]string, len(tags))
		}
		for k, v := range tags {
			e.Tags[k] = v
		}
	}
}

// WithTag adds a single tag
func WithTag(key, value string) EntryOption {
	return WithTags(map[string]string{key: value})
}

// WithError attaches a captured copy of err. A nil error is ignored.
func WithError(err error) EntryOption {
	return func(e *Entry) {
		if err != nil {
			e.Err = CaptureError(err)
		}
	}
}

func WithRequest(info RequestInfo) EntryOption {
	return func(e *Entry) { e.Request = info }
}

// WithTime overrides the entry timestamp
func WithTime(t time.Time) EntryOption {
	return func(e *Entry) { e.Time = t }
}

type requestKey struct{}

// ContextWithRequest stores request info for WriteEntryContext style callers
func ContextWithRequest(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestKey{}, info)
}

// RequestFromContext returns the request info stored in ctx, if any
func RequestFromContext(ctx context.Context) (RequestInfo, bool) {
	if ctx == nil {
		return RequestInfo{}, false
	}
	info, ok := ctx.Value(requestKey{}).(RequestInfo)
	return info, ok
}
