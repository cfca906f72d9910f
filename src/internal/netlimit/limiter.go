// Package netlimit caps connections and request rates of the trace servers
package netlimit

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"logsmith/src/internal/config"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

var (
	ErrTooManyConnections = errors.New("connection limit exceeded")
	ErrRateLimited        = errors.New("rate limit exceeded")
)

// Idle client state older than this is dropped
const idleExpiry = time.Minute

// Limiter tracks connections and request rates per client IP. A nil
// *Limiter admits everything.
type Limiter struct {
	opts   config.NetLimitOptions
	logger *log.Logger

	mu          sync.Mutex
	clients     map[string]*clientState
	active      int64
	lastCleanup time.Time

	accepted atomic.Uint64
	rejected atomic.Uint64
}

type clientState struct {
	conns    int64
	bucket   *rate.Limiter
	lastSeen time.Time
}

type Stats struct {
	Enabled           bool   `json:"enabled"`
	ActiveConnections int64  `json:"active_connections"`
	TrackedClients    int    `json:"tracked_clients"`
	Accepted          uint64 `json:"accepted"`
	Rejected          uint64 `json:"rejected"`
}

// New returns nil when opts sets no limit
func New(opts config.NetLimitOptions, logger *log.Logger) *Limiter {
	if opts.MaxConnections <= 0 && opts.MaxConnectionsPerIP <= 0 && opts.RequestsPerSecond <= 0 {
		return nil
	}
	if logger == nil {
		logger = log.NewLogger()
	}

	logger.Info("msg", "Net limiter initialized",
		"component", "netlimit",
		"max_connections", opts.MaxConnections,
		"max_connections_per_ip", opts.MaxConnectionsPerIP,
		"requests_per_second", opts.RequestsPerSecond,
		"burst_size", opts.BurstSize)

	return &Limiter{
		opts:        opts,
		logger:      logger,
		clients:     make(map[string]*clientState),
		lastCleanup: time.Now(),
	}
}

// Allow charges one request to the client's rate bucket
func (l *Limiter) Allow(remoteAddr string) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.client(clientIP(remoteAddr))
	if c.bucket != nil && !c.bucket.Allow() {
		l.reject(remoteAddr, ErrRateLimited)
		return ErrRateLimited
	}
	l.accepted.Add(1)
	return nil
}

// Acquire admits a long-lived connection. The returned release must be
// called exactly once when the connection ends.
func (l *Limiter) Acquire(remoteAddr string) (release func(), err error) {
	if l == nil {
		return func() {}, nil
	}

	ip := clientIP(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.client(ip)
	switch {
	case l.opts.MaxConnections > 0 && l.active >= l.opts.MaxConnections,
		l.opts.MaxConnectionsPerIP > 0 && c.conns >= l.opts.MaxConnectionsPerIP:
		l.reject(remoteAddr, ErrTooManyConnections)
		return nil, ErrTooManyConnections
	case c.bucket != nil && !c.bucket.Allow():
		l.reject(remoteAddr, ErrRateLimited)
		return nil, ErrRateLimited
	}

	c.conns++
	l.active++
	l.accepted.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			c.conns--
			c.lastSeen = time.Now()
			l.active--
		})
	}, nil
}

func (l *Limiter) Stats() Stats {
	if l == nil {
		return Stats{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Enabled:           true,
		ActiveConnections: l.active,
		TrackedClients:    len(l.clients),
		Accepted:          l.accepted.Load(),
		Rejected:          l.rejected.Load(),
	}
}

// client returns the state for ip, creating it. Caller holds mu.
func (l *Limiter) client(ip string) *clientState {
	now := time.Now()
	if now.Sub(l.lastCleanup) > idleExpiry/2 {
		l.cleanup(now)
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &clientState{}
		if l.opts.RequestsPerSecond > 0 {
			burst := int(l.opts.BurstSize)
			if burst <= 0 {
				burst = max(1, int(l.opts.RequestsPerSecond))
			}
			c.bucket = rate.NewLimiter(rate.Limit(l.opts.RequestsPerSecond), burst)
		}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c
}

func (l *Limiter) cleanup(now time.Time) {
	for ip, c := range l.clients {
		if c.conns == 0 && now.Sub(c.lastSeen) > idleExpiry {
			delete(l.clients, ip)
		}
	}
	l.lastCleanup = now
}

func (l *Limiter) reject(remoteAddr string, reason error) {
	l.rejected.Add(1)
	l.logger.Debug("msg", "Trace client rejected",
		"component", "netlimit",
		"remote_addr", remoteAddr,
		"reason", reason.Error())
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
