package trace

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"
	"logsmith/src/internal/metrics"
	"logsmith/src/internal/netlimit"
	"logsmith/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	clientBuffer      = 256
	keepaliveInterval = 15 * time.Second
)

// StatusFunc supplies the facility section of the status document
type StatusFunc func() map[string]any

// HTTPServer serves the trace stream as server-sent events, plus status and
// metrics endpoints
type HTTPServer struct {
	config  config.TraceHTTPOptions
	hub     *Hub
	auth    *Authenticator
	limit   *netlimit.Limiter
	status  StatusFunc
	metrics fasthttp.RequestHandler
	logger  *log.Logger

	server        *fasthttp.Server
	listener      net.Listener
	done          chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	startTime     time.Time
	activeClients atomic.Int64
	authFailures  atomic.Uint64
}

func NewHTTPServer(opts *config.TraceHTTPOptions, hub *Hub, m *metrics.Metrics, status StatusFunc, logger *log.Logger) (*HTTPServer, error) {
	if opts == nil {
		return nil, fmt.Errorf("trace HTTP options cannot be nil")
	}

	authenticator, err := NewAuthenticator(&opts.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	s := &HTTPServer{
		config:    *opts,
		hub:       hub,
		auth:      authenticator,
		limit:     netlimit.New(opts.Limit, logger),
		status:    status,
		logger:    logger,
		done:      make(chan struct{}),
		startTime: time.Now(),
	}
	if m != nil {
		s.metrics = fasthttpadaptor.NewFastHTTPHandler(m.Handler())
	}

	s.server = &fasthttp.Server{
		Name:              fmt.Sprintf("logsmith/%s", version.Short()),
		Handler:           s.requestHandler,
		StreamRequestBody: true,
		Logger:            compat.NewFastHTTPAdapter(logger),
		WriteTimeout:      time.Duration(opts.WriteTimeout) * time.Millisecond,
	}
	return s, nil
}

// Start binds the configured address and serves in the background
func (s *HTTPServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.Serve(ln)
	return nil
}

// Serve serves on an existing listener in the background
func (s *HTTPServer) Serve(ln net.Listener) {
	s.listener = ln
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("msg", "Trace HTTP server started",
			"component", "trace_http",
			"addr", ln.Addr().String(),
			"stream_path", s.config.StreamPath,
			"status_path", s.config.StatusPath,
			"auth", s.config.Auth.Type)
		if err := s.server.Serve(ln); err != nil {
			s.logger.Error("msg", "Trace HTTP server failed",
				"component", "trace_http",
				"error", err)
		}
	}()
}

// Addr is the bound address, empty before Start
func (s *HTTPServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop disconnects stream clients and shuts the server down
func (s *HTTPServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.server.ShutdownWithContext(ctx); err != nil {
			s.logger.Warn("msg", "Trace HTTP shutdown incomplete",
				"component", "trace_http",
				"error", err)
		}
		s.wg.Wait()
		s.logger.Info("msg", "Trace HTTP server stopped", "component", "trace_http")
	})
}

func (s *HTTPServer) ActiveClients() int64 {
	return s.activeClients.Load()
}

func (s *HTTPServer) requestHandler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	remoteAddr := ctx.RemoteAddr().String()

	// Stream connections are charged in handleStream
	if path != s.config.StreamPath {
		if err := s.limit.Allow(remoteAddr); err != nil {
			ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
			writeJSON(ctx, map[string]string{"error": err.Error()})
			return
		}
	}

	// Status is open so health checks need no credentials
	if path == s.config.StatusPath {
		s.handleStatus(ctx)
		return
	}

	identity, err := s.auth.AuthenticateHTTP(string(ctx.Request.Header.Peek("Authorization")), remoteAddr)
	if err != nil {
		s.authFailures.Add(1)
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.Response.Header.Set("WWW-Authenticate", s.auth.Challenge())
		writeJSON(ctx, map[string]string{"error": "Unauthorized"})
		return
	}

	switch {
	case path == s.config.StreamPath:
		s.handleStream(ctx, identity)
	case path == s.config.MetricsPath && s.metrics != nil:
		s.metrics(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		writeJSON(ctx, map[string]string{"error": "Not Found"})
	}
}

func (s *HTTPServer) handleStream(ctx *fasthttp.RequestCtx, identity *Identity) {
	filter := Filter{Source: string(ctx.QueryArgs().Peek("source"))}
	if raw := ctx.QueryArgs().Peek("min_level"); len(raw) > 0 {
		level, err := core.ParseLevel(string(raw))
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			writeJSON(ctx, map[string]string{"error": err.Error()})
			return
		}
		filter.MinLevel = level
	}

	release, err := s.limit.Acquire(identity.RemoteAddr)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
		writeJSON(ctx, map[string]string{"error": err.Error()})
		return
	}

	ctx.Response.Header.Set("Content-Type", "text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		sub := s.hub.Subscribe(clientBuffer, filter)
		active := s.activeClients.Add(1)
		s.logger.Debug("msg", "Trace client connected",
			"component", "trace_http",
			"remote_addr", identity.RemoteAddr,
			"username", identity.Username,
			"auth_method", identity.Method,
			"client_id", sub.ID(),
			"active_clients", active)

		defer func() {
			release()
			s.hub.Unsubscribe(sub)
			active := s.activeClients.Add(-1)
			s.logger.Debug("msg", "Trace client disconnected",
				"component", "trace_http",
				"client_id", sub.ID(),
				"dropped", sub.Dropped(),
				"active_clients", active)
		}()

		info, _ := json.Marshal(map[string]any{
			"client_id": sub.ID(),
			"min_level": filter.MinLevel.String(),
			"source":    filter.Source,
		})
		fmt.Fprintf(w, "event: connected\ndata: %s\n\n", info)
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(keepaliveInterval)
		defer ticker.Stop()

		for {
			select {
			case line, ok := <-sub.C():
				if !ok {
					fmt.Fprintf(w, "event: disconnect\ndata: {\"reason\":\"hub_closed\"}\n\n")
					w.Flush()
					return
				}
				writeEvent(w, line)
				if err := w.Flush(); err != nil {
					return
				}

			case <-ticker.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-s.done:
				fmt.Fprintf(w, "event: disconnect\ndata: {\"reason\":\"server_shutdown\"}\n\n")
				w.Flush()
				return
			}
		}
	})
}

// writeEvent emits one SSE event, one data field per line of the payload
func writeEvent(w *bufio.Writer, line Line) {
	fmt.Fprintf(w, "id: %s\n", line.CorrelationID)
	for _, l := range bytes.Split(bytes.TrimSuffix(line.Data, []byte{'\n'}), []byte{'\n'}) {
		fmt.Fprintf(w, "data: %s\n", l)
	}
	fmt.Fprintf(w, "\n")
}

func (s *HTTPServer) handleStatus(ctx *fasthttp.RequestCtx) {
	status := map[string]any{
		"service": "logsmith",
		"version": version.Short(),
		"server": map[string]any{
			"active_clients": s.activeClients.Load(),
			"uptime_seconds": int(time.Since(s.startTime).Seconds()),
			"auth":           s.config.Auth.Type,
			"auth_failures":  s.authFailures.Load(),
			"limit":          s.limit.Stats(),
		},
		"endpoints": map[string]string{
			"stream":  s.config.StreamPath,
			"status":  s.config.StatusPath,
			"metrics": s.config.MetricsPath,
		},
		"trace": s.hub.Stats(),
	}
	if s.status != nil {
		status["facility"] = s.status()
	}
	writeJSON(ctx, status)
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	ctx.SetContentType("application/json")
	data, _ := json.Marshal(v)
	ctx.SetBody(data)
}
