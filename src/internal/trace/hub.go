// Package trace fans formatted trace lines out to live subscribers over
// HTTP server-sent events and raw TCP.
package trace

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"logsmith/src/internal/core"
	"logsmith/src/internal/metrics"
)

// Line is one formatted trace line with the fields subscribers filter on
type Line struct {
	Time          time.Time
	Level         core.Level
	Source        string
	CorrelationID string
	Data          []byte
}

// Filter selects the lines a subscriber receives. The zero value matches
// everything.
type Filter struct {
	MinLevel core.Level
	// Case-insensitive substring of the entry source
	Source string
}

func (f Filter) Match(l Line) bool {
	if f.MinLevel > core.LevelTrace && l.Level < f.MinLevel {
		return false
	}
	if f.Source != "" && !strings.Contains(strings.ToLower(l.Source), strings.ToLower(f.Source)) {
		return false
	}
	return true
}

// Subscriber receives lines on C until it is unsubscribed or the hub closes
type Subscriber struct {
	id      uint64
	ch      chan Line
	filter  Filter
	dropped atomic.Uint64
}

func (s *Subscriber) C() <-chan Line {
	return s.ch
}

func (s *Subscriber) ID() uint64 {
	return s.id
}

// Dropped counts lines skipped because the subscriber was too slow
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// Hub broadcasts lines and keeps the most recent ones for late subscribers.
// A hub outlives reconfiguration of the trace sink.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscriber
	nextID  uint64
	closed  bool
	backlog []Line
	head    int
	count   int

	published atomic.Uint64
	dropped   atomic.Uint64
	metrics   *metrics.Metrics
}

type HubStats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
	Backlog     int    `json:"backlog"`
}

// NewHub creates a hub retaining up to backlog lines
func NewHub(backlog int, m *metrics.Metrics) *Hub {
	if backlog < 0 {
		backlog = 0
	}
	return &Hub{
		subs:    make(map[uint64]*Subscriber),
		backlog: make([]Line, backlog),
		metrics: m,
	}
}

// Publish delivers a line to every matching subscriber without blocking
func (h *Hub) Publish(line Line) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	h.published.Add(1)
	if n := len(h.backlog); n > 0 {
		h.backlog[h.head] = line
		h.head = (h.head + 1) % n
		if h.count < n {
			h.count++
		}
	}

	for _, sub := range h.subs {
		if !sub.filter.Match(line) {
			continue
		}
		select {
		case sub.ch <- line:
		default:
			sub.dropped.Add(1)
			h.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber with the given buffer and replays the
// backlog lines that match its filter
func (h *Hub) Subscribe(buffer int, filter Filter) *Subscriber {
	if buffer <= 0 {
		buffer = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscriber{
		id:     h.nextID,
		ch:     make(chan Line, buffer),
		filter: filter,
	}
	if h.closed {
		close(sub.ch)
		return sub
	}

	for _, line := range h.snapshotLocked() {
		if !filter.Match(line) {
			continue
		}
		select {
		case sub.ch <- line:
		default:
			sub.dropped.Add(1)
		}
	}

	h.subs[sub.id] = sub
	h.metrics.SubscriberDelta(1)
	return sub
}

// Unsubscribe removes sub and closes its channel
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.id]; ok {
		delete(h.subs, sub.id)
		close(sub.ch)
		h.metrics.SubscriberDelta(-1)
	}
}

// Backlog returns the retained lines, oldest first
func (h *Hub) Backlog() []Line {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshotLocked()
}

func (h *Hub) snapshotLocked() []Line {
	n := len(h.backlog)
	out := make([]Line, 0, h.count)
	start := (h.head - h.count + n) % max(n, 1)
	for i := 0; i < h.count; i++ {
		out = append(out, h.backlog[(start+i)%n])
	}
	return out
}

// Close disconnects every subscriber; later publishes are ignored
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
		h.metrics.SubscriberDelta(-1)
	}
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		Subscribers: len(h.subs),
		Published:   h.published.Load(),
		Dropped:     h.dropped.Load(),
		Backlog:     h.count,
	}
}
