package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"logsmith/src/internal/core"
	"logsmith/src/internal/metrics"
)

// ErrClosed is returned by a sink after Close
var ErrClosed = errors.New("sink closed")

// destination is the synchronous part of a sink, driven by one worker
// goroutine
type destination interface {
	open() error
	write(entry core.Entry) error
	sync() error
	close() error
	details() map[string]any
}

// worker gives a destination a bounded queue and a single processing
// goroutine; it implements Sink
type worker struct {
	name string
	kind string
	dst  destination
	deps Deps

	input    chan core.Entry
	flushReq chan chan error
	done     chan struct{}
	stopped  chan struct{}

	mu      sync.RWMutex
	started bool
	closed  bool

	closeOnce sync.Once
	closeErr  error

	startTime      time.Time
	totalProcessed atomic.Uint64
	totalFailed    atomic.Uint64
	totalDropped   atomic.Uint64
	lastProcessed  atomic.Value // time.Time
}

func newWorker(kind string, dst destination, bufferSize int64, deps Deps) *worker {
	if bufferSize <= 0 {
		bufferSize = core.DefaultBufferSize
	}
	w := &worker{
		name:     kind,
		kind:     kind,
		dst:      dst,
		deps:     deps,
		input:    make(chan core.Entry, bufferSize),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	w.lastProcessed.Store(time.Time{})
	return w
}

func (w *worker) Name() string {
	return w.name
}

// Start opens the destination; a failure leaves the sink unstarted
func (w *worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.started {
		return nil
	}

	if err := w.dst.open(); err != nil {
		return fmt.Errorf("failed to open %s sink: %w", w.kind, err)
	}

	w.started = true
	w.startTime = time.Now()
	go w.processLoop(ctx)

	w.deps.logger().Info("msg", "Sink started",
		"component", w.kind+"_sink",
		"buffer_size", cap(w.input))
	return nil
}

func (w *worker) Accept(entry core.Entry) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.drop()
		return
	}

	select {
	case w.input <- entry:
	default:
		w.drop()
	}
}

func (w *worker) drop() {
	n := w.totalDropped.Add(1)
	w.deps.Metrics.SinkResult(w.kind, metrics.ResultDropped)
	w.deps.Diag.Report(w.kind+"_sink", fmt.Errorf("queue full, entry dropped"),
		"sink", w.name,
		"total_dropped", n)
}

// Flush blocks until every entry queued before the call has been written
// and the destination synced
func (w *worker) Flush() error {
	w.mu.RLock()
	started, closed := w.started, w.closed
	w.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if !started {
		return nil
	}

	reply := make(chan error, 1)
	select {
	case w.flushReq <- reply:
	case <-w.stopped:
		return ErrClosed
	}

	select {
	case err := <-reply:
		return err
	case <-w.stopped:
		return ErrClosed
	}
}

// Close stops intake, drains the queue, syncs and releases the destination.
// Calling it again returns the first result.
func (w *worker) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		started := w.started
		w.mu.Unlock()

		if !started {
			return
		}

		close(w.done)
		<-w.stopped

		// Entries left behind if the loop exited on context cancellation
		w.drain()
		if err := w.dst.sync(); err != nil {
			w.report(ioError(w.kind, "sync", err))
		}

		if err := w.dst.close(); err != nil {
			w.closeErr = ioError(w.kind, "close", err)
		}

		w.deps.logger().Info("msg", "Sink stopped",
			"component", w.kind+"_sink",
			"processed", w.totalProcessed.Load(),
			"failed", w.totalFailed.Load(),
			"dropped", w.totalDropped.Load())
	})
	return w.closeErr
}

func (w *worker) GetStats() SinkStats {
	lastProc, _ := w.lastProcessed.Load().(time.Time)
	return SinkStats{
		Type:           w.kind,
		Name:           w.name,
		TotalProcessed: w.totalProcessed.Load(),
		TotalFailed:    w.totalFailed.Load(),
		TotalDropped:   w.totalDropped.Load(),
		QueueDepth:     len(w.input),
		StartTime:      w.startTime,
		LastProcessed:  lastProc,
		Details:        w.dst.details(),
	}
}

func (w *worker) processLoop(ctx context.Context) {
	defer close(w.stopped)

	for {
		select {
		case entry := <-w.input:
			w.handle(entry)

		case reply := <-w.flushReq:
			w.drain()
			reply <- w.safeSync()

		case <-w.done:
			w.drain()
			return

		case <-ctx.Done():
			w.drain()
			return
		}
	}
}

// drain writes whatever is queued without waiting for more
func (w *worker) drain() {
	for {
		select {
		case entry := <-w.input:
			w.handle(entry)
		default:
			return
		}
	}
}

// handle writes one entry; failures and panics stop here
func (w *worker) handle(entry core.Entry) {
	defer func() {
		if r := recover(); r != nil {
			w.totalFailed.Add(1)
			w.deps.Metrics.SinkResult(w.kind, metrics.ResultFailed)
			w.report(ioError(w.kind, "write", fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := w.dst.write(entry); err != nil {
		w.totalFailed.Add(1)
		w.deps.Metrics.SinkResult(w.kind, metrics.ResultFailed)
		w.report(ioError(w.kind, "write", err), "correlation_id", entry.CorrelationID)
		return
	}

	w.totalProcessed.Add(1)
	w.lastProcessed.Store(time.Now())
	w.deps.Metrics.SinkResult(w.kind, metrics.ResultWritten)
}

func (w *worker) safeSync() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ioError(w.kind, "sync", fmt.Errorf("panic: %v", r))
		}
	}()
	if err := w.dst.sync(); err != nil {
		wrapped := ioError(w.kind, "sync", err)
		w.report(wrapped)
		return wrapped
	}
	return nil
}

func (w *worker) report(err error, kv ...any) {
	w.deps.Diag.Report(w.kind+"_sink", err, append([]any{"sink", w.name}, kv...)...)
}
