package facility

import (
	"errors"
	"fmt"
	"reflect"

	"logsmith/src/internal/config"
	"logsmith/src/internal/trace"
)

// traceServers tracks the running trace endpoints and the options they were
// started with, so a reconfigure only restarts what changed
type traceServers struct {
	http     *trace.HTTPServer
	httpOpts *config.TraceHTTPOptions
	tcp      *trace.TCPServer
	tcpOpts  *config.TraceTCPOptions
}

// apply starts, stops or restarts the trace servers to match cfg. Servers
// only run while the trace sink is enabled.
func (t *traceServers) apply(cfg *config.Config, f *Facility) error {
	var want *config.TraceSinkOptions
	if cfg.Logging.LogToTrace {
		want = &cfg.Logging.Trace
	}

	var errs []error

	var httpOpts *config.TraceHTTPOptions
	if want != nil && want.HTTP.Enabled {
		opts := want.HTTP
		httpOpts = &opts
	}
	if !reflect.DeepEqual(httpOpts, t.httpOpts) {
		if t.http != nil {
			t.http.Stop()
			t.http, t.httpOpts = nil, nil
		}
		if httpOpts != nil {
			srv, err := trace.NewHTTPServer(httpOpts, f.hub, f.metrics, f.Status, f.logger)
			if err == nil {
				err = srv.Start()
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("trace http: %w", err))
			} else {
				t.http, t.httpOpts = srv, httpOpts
			}
		}
	}

	var tcpOpts *config.TraceTCPOptions
	if want != nil && want.TCP.Enabled {
		opts := want.TCP
		tcpOpts = &opts
	}
	if !reflect.DeepEqual(tcpOpts, t.tcpOpts) {
		if t.tcp != nil {
			t.tcp.Stop()
			t.tcp, t.tcpOpts = nil, nil
		}
		if tcpOpts != nil {
			srv, err := trace.NewTCPServer(tcpOpts, f.hub, f.logger)
			if err == nil {
				err = srv.Start()
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("trace tcp: %w", err))
			} else {
				t.tcp, t.tcpOpts = srv, tcpOpts
			}
		}
	}

	return errors.Join(errs...)
}

func (t *traceServers) stop() {
	if t.http != nil {
		t.http.Stop()
		t.http, t.httpOpts = nil, nil
	}
	if t.tcp != nil {
		t.tcp.Stop()
		t.tcp, t.tcpOpts = nil, nil
	}
}

// HTTPAddr is the bound trace HTTP address, empty when not serving
func (f *Facility) HTTPAddr() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.servers.http == nil {
		return ""
	}
	return f.servers.http.Addr()
}
