package facility

import (
	"context"
	"fmt"

	"logsmith/src/internal/core"
	"logsmith/src/internal/metrics"
)

// WriteEntry logs message at Debug unless an option sets the level. An empty
// message is ignored. It never blocks on sink I/O, panics or fails.
func (f *Facility) WriteEntry(message string, opts ...core.EntryOption) {
	if f == nil {
		return
	}
	if message == "" {
		f.metrics.Suppressed(metrics.ReasonEmpty)
		return
	}
	f.dispatch(core.NewEntry(message, opts...))
}

// WriteEntryContext is WriteEntry with the request info carried by ctx
func (f *Facility) WriteEntryContext(ctx context.Context, message string, opts ...core.EntryOption) {
	if info, ok := core.RequestFromContext(ctx); ok {
		opts = append([]core.EntryOption{core.WithRequest(info)}, opts...)
	}
	f.WriteEntry(message, opts...)
}

func (f *Facility) WriteError(message string) {
	f.WriteEntry(message, core.WithLevel(core.LevelError))
}

func (f *Facility) WriteInfo(message string) {
	f.WriteEntry(message, core.WithLevel(core.LevelInfo))
}

// WriteException logs err at Error with its full detail. The source is the
// function that created the innermost cause when known, else the caller.
func (f *Facility) WriteException(err error, opts ...core.EntryOption) {
	if f == nil || err == nil {
		return
	}
	detail := core.CaptureError(err)
	source := detail.RootOrigin()
	if source == "" {
		source = core.CallerName(1)
	}

	base := []core.EntryOption{
		core.WithLevel(core.LevelError),
		core.WithSource(source),
		func(e *core.Entry) { e.Err = detail },
	}
	f.WriteEntry(err.Error(), append(base, opts...)...)
}

func (f *Facility) dispatch(entry core.Entry) {
	defer func() {
		if r := recover(); r != nil {
			f.diag.Report("facility", fmt.Errorf("dispatch panicked: %v", r),
				"correlation_id", entry.CorrelationID)
		}
	}()

	if f.closed.Load() {
		return
	}
	f.metrics.Entry(entry.Level.String())
	if f.router.Dispatch(entry) == 0 {
		f.metrics.Suppressed(metrics.ReasonThreshold)
	}
}
