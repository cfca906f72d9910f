package trace

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"logsmith/src/internal/config"
	"logsmith/src/internal/netlimit"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/panjf2000/gnet/v2"
)

// TCPServer streams raw trace lines to every connected client
type TCPServer struct {
	gnet.BuiltinEventEngine

	config config.TraceTCPOptions
	hub    *Hub
	limit  *netlimit.Limiter
	logger *log.Logger

	engine   *gnet.Engine
	engineMu sync.Mutex

	clients map[gnet.Conn]*tcpClient
	mu      sync.Mutex
	wg      sync.WaitGroup

	activeConns atomic.Int64
	writeErrors atomic.Uint64
}

type tcpClient struct {
	conn    gnet.Conn
	sub     *Subscriber
	release func()
}

func NewTCPServer(opts *config.TraceTCPOptions, hub *Hub, logger *log.Logger) (*TCPServer, error) {
	if opts == nil {
		return nil, fmt.Errorf("trace TCP options cannot be nil")
	}
	return &TCPServer{
		config:  *opts,
		hub:     hub,
		limit:   netlimit.New(opts.Limit, logger),
		logger:  logger,
		clients: make(map[gnet.Conn]*tcpClient),
	}, nil
}

// Start runs the gnet engine in the background. Bind failures surface here.
func (s *TCPServer) Start() error {
	addr := fmt.Sprintf("tcp://%s:%d", s.config.Host, s.config.Port)

	errChan := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := gnet.Run(s, addr,
			gnet.WithLogger(compat.NewGnetAdapter(s.logger)),
			gnet.WithMulticore(true),
			gnet.WithReusePort(true),
		)
		if err != nil {
			s.logger.Error("msg", "Trace TCP server failed",
				"component", "trace_tcp",
				"port", s.config.Port,
				"error", err)
		}
		errChan <- err
	}()

	select {
	case err := <-errChan:
		if err == nil {
			err = fmt.Errorf("trace TCP server exited during startup")
		}
		return err
	case <-time.After(100 * time.Millisecond):
		s.logger.Info("msg", "Trace TCP server started",
			"component", "trace_tcp",
			"port", s.config.Port)
		return nil
	}
}

func (s *TCPServer) Stop() {
	s.engineMu.Lock()
	engine := s.engine
	s.engineMu.Unlock()

	if engine != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := engine.Stop(ctx); err != nil {
			s.logger.Warn("msg", "Trace TCP shutdown incomplete",
				"component", "trace_tcp",
				"error", err)
		}
	}
	s.wg.Wait()
	s.logger.Info("msg", "Trace TCP server stopped", "component", "trace_tcp")
}

func (s *TCPServer) ActiveConnections() int64 {
	return s.activeConns.Load()
}

func (s *TCPServer) LimitStats() netlimit.Stats {
	return s.limit.Stats()
}

func (s *TCPServer) OnBoot(eng gnet.Engine) gnet.Action {
	s.engineMu.Lock()
	s.engine = &eng
	s.engineMu.Unlock()
	return gnet.None
}

func (s *TCPServer) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	release, err := s.limit.Acquire(c.RemoteAddr().String())
	if err != nil {
		return []byte(err.Error() + "\n"), gnet.Close
	}

	client := &tcpClient{
		conn:    c,
		sub:     s.hub.Subscribe(clientBuffer, Filter{}),
		release: release,
	}

	s.mu.Lock()
	s.clients[c] = client
	s.mu.Unlock()

	active := s.activeConns.Add(1)
	s.logger.Debug("msg", "Trace TCP client connected",
		"component", "trace_tcp",
		"remote_addr", c.RemoteAddr().String(),
		"active_connections", active)

	go s.forward(client)
	return nil, gnet.None
}

// forward copies subscriber lines to the connection until either side ends
func (s *TCPServer) forward(client *tcpClient) {
	for line := range client.sub.C() {
		err := client.conn.AsyncWrite(line.Data, func(c gnet.Conn, err error) error {
			if err != nil {
				s.writeErrors.Add(1)
			}
			return nil
		})
		if err != nil {
			s.writeErrors.Add(1)
			return
		}
	}
}

func (s *TCPServer) OnClose(c gnet.Conn, err error) gnet.Action {
	s.mu.Lock()
	client, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()

	if ok {
		client.release()
		s.hub.Unsubscribe(client.sub)
		active := s.activeConns.Add(-1)
		s.logger.Debug("msg", "Trace TCP client disconnected",
			"component", "trace_tcp",
			"active_connections", active,
			"error", err)
	}
	return gnet.None
}

// OnTraffic discards client input; the stream is one-way
func (s *TCPServer) OnTraffic(c gnet.Conn) gnet.Action {
	c.Discard(-1)
	return gnet.None
}
