package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"logsmith/src/internal/core"
	"logsmith/src/internal/diag"
	"logsmith/src/internal/metrics"

	"github.com/lixenwraith/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeps() Deps {
	return Deps{
		Diag:    diag.Wrap(log.NewLogger(), 1000, 1000),
		Metrics: metrics.New(),
	}
}

func testEntry(level core.Level, msg string) core.Entry {
	return core.NewEntry(msg,
		core.WithLevel(level),
		core.WithSource("Writer.flush"),
		core.WithTime(time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC)))
}

// memDestination records writes; failWrites and block control failure modes
type memDestination struct {
	mu         sync.Mutex
	entries    []core.Entry
	syncs      int
	closed     bool
	failOpen   error
	failWrites error
	panicWrite bool
	block      chan struct{}
}

func (d *memDestination) open() error { return d.failOpen }

func (d *memDestination) write(entry core.Entry) error {
	if d.block != nil {
		<-d.block
	}
	if d.panicWrite {
		panic("destination exploded")
	}
	if d.failWrites != nil {
		return d.failWrites
	}
	d.mu.Lock()
	d.entries = append(d.entries, entry)
	d.mu.Unlock()
	return nil
}

func (d *memDestination) sync() error {
	d.mu.Lock()
	d.syncs++
	d.mu.Unlock()
	return nil
}

func (d *memDestination) close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *memDestination) details() map[string]any { return map[string]any{} }

func (d *memDestination) messages() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.Message
	}
	return out
}

func TestWorker_Lifecycle(t *testing.T) {
	t.Run("FlushWritesInOrder", func(t *testing.T) {
		dst := &memDestination{}
		w := newWorker("mem", dst, 10, newTestDeps())
		require.NoError(t, w.Start(context.Background()))
		defer w.Close()

		for _, msg := range []string{"a", "b", "c"} {
			w.Accept(testEntry(core.LevelInfo, msg))
		}
		require.NoError(t, w.Flush())

		assert.Equal(t, []string{"a", "b", "c"}, dst.messages())
		stats := w.GetStats()
		assert.EqualValues(t, 3, stats.TotalProcessed)
		assert.Equal(t, "mem", stats.Type)
		assert.False(t, stats.LastProcessed.IsZero())
	})

	t.Run("CloseDrainsQueue", func(t *testing.T) {
		dst := &memDestination{}
		w := newWorker("mem", dst, 100, newTestDeps())
		require.NoError(t, w.Start(context.Background()))

		for i := 0; i < 50; i++ {
			w.Accept(testEntry(core.LevelInfo, "queued"))
		}
		require.NoError(t, w.Close())

		assert.Len(t, dst.messages(), 50)
		assert.True(t, dst.closed)
		assert.ErrorIs(t, w.Flush(), ErrClosed)
		assert.NoError(t, w.Close(), "second close returns the first result")
	})

	t.Run("OpenFailureLeavesUnstarted", func(t *testing.T) {
		dst := &memDestination{failOpen: errors.New("permission denied")}
		w := newWorker("mem", dst, 10, newTestDeps())
		err := w.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
		assert.NoError(t, w.Close())
		assert.False(t, dst.closed)
	})

	t.Run("FlushBeforeStart", func(t *testing.T) {
		w := newWorker("mem", &memDestination{}, 10, newTestDeps())
		assert.NoError(t, w.Flush())
	})
}

func TestWorker_DropOnFull(t *testing.T) {
	deps := newTestDeps()
	dst := &memDestination{block: make(chan struct{})}
	w := newWorker("mem", dst, 2, deps)
	require.NoError(t, w.Start(context.Background()))

	// One entry is held by the blocked write, two fill the queue
	w.Accept(testEntry(core.LevelInfo, "held"))
	require.Eventually(t, func() bool { return len(w.input) == 0 }, time.Second, 5*time.Millisecond)
	w.Accept(testEntry(core.LevelInfo, "q1"))
	w.Accept(testEntry(core.LevelInfo, "q2"))
	w.Accept(testEntry(core.LevelInfo, "dropped"))

	assert.EqualValues(t, 1, w.GetStats().TotalDropped)
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.Metrics.SinkEntriesTotal.WithLabelValues("mem", metrics.ResultDropped)))

	close(dst.block)
	require.NoError(t, w.Close())
	assert.Equal(t, []string{"held", "q1", "q2"}, dst.messages())
}

func TestWorker_FailuresStayInside(t *testing.T) {
	t.Run("WriteError", func(t *testing.T) {
		deps := newTestDeps()
		dst := &memDestination{failWrites: errors.New("disk full")}
		w := newWorker("mem", dst, 10, deps)
		require.NoError(t, w.Start(context.Background()))
		defer w.Close()

		assert.NotPanics(t, func() {
			w.Accept(testEntry(core.LevelError, "disk full"))
		})
		require.NoError(t, w.Flush())

		stats := w.GetStats()
		assert.EqualValues(t, 1, stats.TotalFailed)
		assert.Zero(t, stats.TotalProcessed)
		assert.EqualValues(t, 1, deps.Diag.Reported())
	})

	t.Run("WritePanic", func(t *testing.T) {
		deps := newTestDeps()
		dst := &memDestination{panicWrite: true}
		w := newWorker("mem", dst, 10, deps)
		require.NoError(t, w.Start(context.Background()))
		defer w.Close()

		w.Accept(testEntry(core.LevelInfo, "boom"))
		w.Accept(testEntry(core.LevelInfo, "boom again"))
		require.NoError(t, w.Flush())

		assert.EqualValues(t, 2, w.GetStats().TotalFailed)
		assert.EqualValues(t, 2, deps.Diag.Reported())
	})
}

func TestSinkIOError(t *testing.T) {
	err := ioError("file", "write", errors.New("disk full"))

	var sinkErr *SinkIOError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, "file", sinkErr.Sink)
	assert.Equal(t, "write", sinkErr.Op)
	assert.Contains(t, err.Error(), "disk full")
}
