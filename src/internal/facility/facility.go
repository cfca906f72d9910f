package facility

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"
	"logsmith/src/internal/diag"
	"logsmith/src/internal/filter"
	"logsmith/src/internal/metrics"
	"logsmith/src/internal/router"
	"logsmith/src/internal/sink"
	"logsmith/src/internal/trace"

	"github.com/go-co-op/gocron/v2"
	"github.com/lixenwraith/log"
)

// Facility is the logging handle applications write through. It owns the
// router and its sinks, the trace hub and servers, and the flush schedule.
type Facility struct {
	// Serializes Reconfigure and Shutdown
	mu  sync.Mutex
	cfg *config.Config

	opts    options
	router  *router.Router
	hub     *trace.Hub
	diag    *diag.Channel
	metrics *metrics.Metrics
	logger  *log.Logger

	servers   traceServers
	scheduler gocron.Scheduler
	flushJob  gocron.Job

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

type options struct {
	logName string
	logPath string
	diag    *diag.Channel
	metrics *metrics.Metrics
}

// Option adjusts facility construction
type Option func(*options)

// WithLogName overrides the configured log name for file and database sinks
func WithLogName(name string) Option {
	return func(o *options) { o.logName = name }
}

// WithLogPath overrides the configured log directory
func WithLogPath(path string) Option {
	return func(o *options) { o.logPath = path }
}

// WithDiagnostics supplies the diagnostic channel instead of building one
// from the diagnostics config. The caller keeps ownership.
func WithDiagnostics(c *diag.Channel) Option {
	return func(o *options) { o.diag = c }
}

// WithMetrics supplies the metrics set, e.g. to share a registry
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Init validates cfg, builds the enabled sinks and installs them. A
// *config.ConfigError or *router.ReconfigureError aborts initialization.
func Init(ctx context.Context, cfg *config.Config, opts ...Option) (*Facility, error) {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	resolved, err := resolve(cfg, o)
	if err != nil {
		return nil, err
	}

	f := &Facility{
		opts:    o,
		diag:    o.diag,
		metrics: o.metrics,
	}
	if f.diag == nil {
		f.diag, err = diag.New(resolved.Diagnostics, resolved.Logging.LogPath, resolved.LogName())
		if err != nil {
			return nil, err
		}
	}
	if f.metrics == nil {
		f.metrics = metrics.New()
	}
	f.logger = f.diag.Logger()
	if f.logger == nil {
		f.logger = log.NewLogger()
	}

	f.ctx, f.cancel = context.WithCancel(ctx)
	f.hub = trace.NewHub(int(resolved.Logging.Trace.Backlog), f.metrics)
	f.router = router.New(resolved.Threshold(), f.deps())

	if err := f.install(resolved); err != nil {
		f.abort()
		return nil, err
	}
	f.cfg = resolved

	if err := f.servers.apply(resolved, f); err != nil {
		f.router.Shutdown()
		f.abort()
		return nil, err
	}

	if err := f.startScheduler(resolved); err != nil {
		f.servers.stop()
		f.router.Shutdown()
		f.abort()
		return nil, err
	}

	f.logger.Info("msg", "Logging facility initialized",
		"component", "facility",
		"level", resolved.Threshold().String(),
		"log_name", resolved.LogName(),
		"sinks", len(f.router.Stats().Sinks))
	return f, nil
}

// resolve applies constructor overrides to a copy of cfg and validates it
func resolve(cfg *config.Config, o options) (*config.Config, error) {
	if cfg == nil {
		return nil, &config.ConfigError{Key: "config", Reason: "config is nil"}
	}
	resolved := *cfg
	if o.logName != "" {
		resolved.Logging.FileName = o.logName
	}
	if o.logPath != "" {
		resolved.Logging.LogPath = o.logPath
	}
	if err := resolved.Validate(); err != nil {
		return nil, err
	}
	return &resolved, nil
}

func (f *Facility) deps() sink.Deps {
	return sink.Deps{Diag: f.diag, Metrics: f.metrics}
}

// install builds a sink per enabled spec and swaps them into the router
func (f *Facility) install(cfg *config.Config) error {
	specs, err := cfg.SinkSpecs()
	if err != nil {
		return err
	}

	bindings := make([]router.Binding, 0, len(specs))
	var failures []router.SinkFailure
	for _, spec := range specs {
		s, err := sink.New(spec, f.hub, f.deps())
		if err != nil {
			var cfgErr *config.ConfigError
			if errors.As(err, &cfgErr) {
				return err
			}
			failures = append(failures, router.SinkFailure{Sink: string(spec.Kind), Err: err})
			continue
		}
		chain, err := filter.NewChain(spec.Filters(), f.logger)
		if err != nil {
			failures = append(failures, router.SinkFailure{Sink: string(spec.Kind), Err: err})
			continue
		}
		bindings = append(bindings, router.Binding{Sink: s, Enabled: spec.Enabled, MinLevel: spec.MinLevel, Filter: chain})
	}
	if len(failures) > 0 {
		f.metrics.Reconfigured(false)
		return &router.ReconfigureError{Failures: failures}
	}

	return f.router.Reconfigure(f.ctx, cfg.Threshold(), bindings)
}

// abort releases what Init acquired before failing
func (f *Facility) abort() {
	f.cancel()
	f.hub.Close()
	if f.opts.diag == nil {
		f.diag.Shutdown(time.Second)
	}
}

// Reconfigure rebuilds every sink from cfg and swaps the set in atomically.
// On failure the previous configuration stays in force.
func (f *Facility) Reconfigure(cfg *config.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed.Load() {
		return errors.New("facility is shut down")
	}

	resolved, err := resolve(cfg, f.opts)
	if err != nil {
		f.metrics.Reconfigured(false)
		return err
	}
	if err := f.install(resolved); err != nil {
		return err
	}
	prev := f.cfg
	f.cfg = resolved

	var errs []error
	if err := f.servers.apply(resolved, f); err != nil {
		f.diag.Report("facility", err)
		errs = append(errs, err)
	}
	if err := f.reschedule(prev, resolved); err != nil {
		f.diag.Report("facility", err)
		errs = append(errs, err)
	}

	f.logger.Info("msg", "Logging facility reconfigured",
		"component", "facility",
		"level", resolved.Threshold().String())
	return errors.Join(errs...)
}

// Flush writes everything queued so far to every sink
func (f *Facility) Flush() error {
	if f == nil || f.closed.Load() {
		return nil
	}
	return f.router.Flush()
}

// Shutdown stops the flush schedule and trace servers, then drains and
// closes every sink. It gives up waiting after timeout.
func (f *Facility) Shutdown(timeout time.Duration) error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}

	f.logger.Info("msg", "Logging facility shutting down", "component", "facility")

	var errs []error
	if f.scheduler != nil {
		if err := f.scheduler.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %w", err))
		}
	}
	f.servers.stop()

	done := make(chan error, 1)
	go func() {
		flushErr := f.router.Flush()
		done <- errors.Join(flushErr, f.router.Shutdown())
	}()

	select {
	case err := <-done:
		if err != nil {
			errs = append(errs, err)
		}
	case <-time.After(timeout):
		errs = append(errs, fmt.Errorf("shutdown timed out after %v", timeout))
	}

	f.hub.Close()
	f.cancel()

	if f.opts.diag == nil {
		if err := f.diag.Shutdown(timeout); err != nil {
			errs = append(errs, fmt.Errorf("diagnostics: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Config returns the configuration currently in force
func (f *Facility) Config() *config.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *Facility) Threshold() core.Level {
	return f.router.Threshold()
}

func (f *Facility) Metrics() *metrics.Metrics {
	return f.metrics
}

// Hub is the trace hub; it exists even when the trace sink is disabled
func (f *Facility) Hub() *trace.Hub {
	return f.hub
}

// Status reports router, sink, trace and diagnostics statistics
func (f *Facility) Status() map[string]any {
	stats := f.router.Stats()
	return map[string]any{
		"threshold":  stats.Threshold,
		"dispatched": stats.Dispatched,
		"delivered":  stats.Delivered,
		"sinks":      stats.Sinks,
		"trace":      f.hub.Stats(),
		"diagnostics": map[string]any{
			"reported":   f.diag.Reported(),
			"suppressed": f.diag.Suppressed(),
		},
	}
}
