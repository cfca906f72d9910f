package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"logsmith/src/internal/core"
	"logsmith/src/internal/filter"
	"logsmith/src/internal/sink"

	"github.com/lixenwraith/log"
)

// Binding attaches a sink to the router with its own threshold and an
// optional filter chain
type Binding struct {
	Sink     sink.Sink
	Enabled  bool
	MinLevel core.Level
	Filter   *filter.Chain
}

// Router fans entries out to the installed sinks. The sink set and the
// global threshold are replaced together; a dispatch sees either the old
// set or the new one, never a mix.
type Router struct {
	mu        sync.RWMutex
	threshold core.Level
	bindings  []Binding
	closed    bool

	deps   sink.Deps
	logger *log.Logger

	dispatched atomic.Uint64
	delivered  atomic.Uint64
	filtered   atomic.Uint64
}

// Stats is a point-in-time view of the router and its sinks
type Stats struct {
	Threshold  string           `json:"threshold"`
	Dispatched uint64           `json:"dispatched"`
	Delivered  uint64           `json:"delivered"`
	Filtered   uint64           `json:"filtered"`
	Sinks      []sink.SinkStats `json:"sinks"`
}

// New creates a router with no sinks. Until the first Reconfigure every
// entry is discarded.
func New(threshold core.Level, deps sink.Deps) *Router {
	logger := deps.Diag.Logger()
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Router{
		threshold: threshold,
		deps:      deps,
		logger:    logger,
	}
}

// Threshold returns the global level currently in force
func (r *Router) Threshold() core.Level {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.threshold
}

// Dispatch hands the entry to every enabled sink whose level admits it and
// returns how many accepted it. A global threshold of Off delivers nothing.
func (r *Router) Dispatch(entry core.Entry) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.dispatched.Add(1)
	if r.closed || r.threshold == core.LevelOff {
		return 0
	}

	delivered := 0
	for i := range r.bindings {
		b := &r.bindings[i]
		if !b.Enabled || !core.Enabled(b.MinLevel, entry.Level) {
			continue
		}
		if !b.Filter.Apply(entry) {
			r.filtered.Add(1)
			continue
		}
		if r.deliver(b.Sink, entry) {
			delivered++
		}
	}
	r.delivered.Add(uint64(delivered))
	return delivered
}

// deliver isolates the router from a misbehaving sink
func (r *Router) deliver(s sink.Sink, entry core.Entry) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
			r.deps.Diag.Report("router", fmt.Errorf("sink %s panicked: %v", s.Name(), p),
				"sink", s.Name(),
				"correlation_id", entry.CorrelationID)
		}
	}()
	s.Accept(entry)
	return true
}

// Reconfigure starts every sink in bindings and, only if all of them start,
// installs them with threshold in place of the current set. The replaced
// sinks are flushed and closed after the swap. On failure the started new
// sinks are closed and a *ReconfigureError is returned.
func (r *Router) Reconfigure(ctx context.Context, threshold core.Level, bindings []Binding) error {
	var failures []SinkFailure
	started := make([]sink.Sink, 0, len(bindings))

	for _, b := range bindings {
		if b.Sink == nil {
			failures = append(failures, SinkFailure{Sink: "unknown", Err: errors.New("nil sink")})
			continue
		}
		if err := b.Sink.Start(ctx); err != nil {
			failures = append(failures, SinkFailure{Sink: b.Sink.Name(), Err: err})
			continue
		}
		started = append(started, b.Sink)
	}

	if len(failures) > 0 {
		for _, s := range started {
			if err := s.Close(); err != nil {
				r.deps.Diag.Report("router", err, "sink", s.Name())
			}
		}
		r.deps.Metrics.Reconfigured(false)
		rerr := &ReconfigureError{Failures: failures}
		r.logger.Error("msg", "Reconfiguration rejected",
			"component", "router",
			"error", rerr)
		return rerr
	}

	installed := make([]Binding, len(bindings))
	copy(installed, bindings)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		for _, s := range started {
			s.Close()
		}
		return errors.New("router is shut down")
	}
	old := r.bindings
	r.bindings = installed
	r.threshold = threshold
	r.mu.Unlock()

	r.retire(old)
	r.deps.Metrics.Reconfigured(true)
	r.logger.Info("msg", "Sinks installed",
		"component", "router",
		"threshold", threshold.String(),
		"sinks", len(installed))
	return nil
}

// retire flushes and closes sinks that are no longer reachable from Dispatch
func (r *Router) retire(bindings []Binding) {
	for _, b := range bindings {
		if err := b.Sink.Flush(); err != nil {
			r.deps.Diag.Report("router", err, "sink", b.Sink.Name(), "op", "flush")
		}
		if err := b.Sink.Close(); err != nil {
			r.deps.Diag.Report("router", err, "sink", b.Sink.Name(), "op", "close")
		}
	}
}

// Flush flushes every installed sink and returns the failures joined. A sink
// retired by a concurrent Reconfigure was already flushed on its way out.
func (r *Router) Flush() error {
	r.mu.RLock()
	bindings := r.bindings
	r.mu.RUnlock()

	var errs []error
	for _, b := range bindings {
		if err := b.Sink.Flush(); err != nil {
			if errors.Is(err, sink.ErrClosed) && !r.installed(b.Sink) {
				continue
			}
			errs = append(errs, fmt.Errorf("%s: %w", b.Sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (r *Router) installed(s sink.Sink) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	for _, b := range r.bindings {
		if b.Sink == s {
			return true
		}
	}
	return false
}

// Shutdown closes every sink; later dispatches are discarded
func (r *Router) Shutdown() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	bindings := r.bindings
	r.bindings = nil
	r.mu.Unlock()

	var errs []error
	for _, b := range bindings {
		if err := b.Sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Sink.Name(), err))
		}
	}

	r.logger.Info("msg", "Router shut down",
		"component", "router",
		"dispatched", r.dispatched.Load(),
		"delivered", r.delivered.Load())
	return errors.Join(errs...)
}

func (r *Router) Stats() Stats {
	r.mu.RLock()
	threshold := r.threshold
	bindings := r.bindings
	r.mu.RUnlock()

	stats := Stats{
		Threshold:  threshold.String(),
		Dispatched: r.dispatched.Load(),
		Delivered:  r.delivered.Load(),
		Filtered:   r.filtered.Load(),
		Sinks:      make([]sink.SinkStats, 0, len(bindings)),
	}
	for _, b := range bindings {
		ss := b.Sink.GetStats()
		if fs := b.Filter.Stats(); fs != nil {
			if ss.Details == nil {
				ss.Details = make(map[string]any)
			}
			ss.Details["filter"] = fs
		}
		stats.Sinks = append(stats.Sinks, ss)
	}
	return stats
}
