package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	metricsEndpoint  = "/metrics"
	profilerEndpoint = "/debug/pprof/"
	shutdownTimeout  = 5 * time.Second
)

// Handler serves the metrics of gatherer in the prometheus text format. A
// collector failing to gather is logged and the remaining metrics are still
// served.
func Handler(log zerolog.Logger, gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:      &gatherLogger{log: log.With().Str("component", "metrics").Logger()},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// gatherLogger reports gathering errors of promhttp through zerolog.
type gatherLogger struct {
	log zerolog.Logger
}

func (l *gatherLogger) Println(v ...interface{}) {
	l.log.Warn().Msg(fmt.Sprint(v...))
}

// Server is a standalone http server for the `/metrics` endpoint, for
// deployments that scrape metrics on a separate address than the wallet API.
type Server struct {
	server   *http.Server
	log      zerolog.Logger
	address  string
	listener net.Listener
}

// NewServer creates a server that will listen on address and serve the
// metrics of gatherer. With enableProfiler set it also serves the pprof
// endpoints.
func NewServer(log zerolog.Logger, address string, gatherer prometheus.Gatherer, enableProfiler bool) *Server {
	mux := http.NewServeMux()
	mux.Handle(metricsEndpoint, Handler(log, gatherer))
	if enableProfiler {
		mux.Handle(profilerEndpoint, http.DefaultServeMux)
	}

	return &Server{
		server:  &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		log:     log.With().Str("component", "metrics_server").Logger(),
		address: address,
	}
}

// Start binds the listen address and serves requests in the background.
func (m *Server) Start() error {
	listener, err := net.Listen("tcp", m.address)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", m.address, err)
	}
	m.listener = listener
	m.log.Info().Str("address", listener.Addr().String()).Str("endpoint", metricsEndpoint).Msg("metrics server started")

	go func() {
		err := m.server.Serve(listener)
		// http.ErrServerClosed is returned when Close or Shutdown is called
		// we don't consider this an error, so print this with debug level instead
		if errors.Is(err, http.ErrServerClosed) {
			m.log.Debug().Err(err).Msg("metrics server shutdown")
		} else if err != nil {
			m.log.Err(err).Msg("error shutting down metrics server")
		}
	}()
	return nil
}

// Addr returns the address the server listens on, or nil before Start.
func (m *Server) Addr() net.Addr {
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}

// Done returns a channel that will close when shutdown is complete.
func (m *Server) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = m.server.Shutdown(ctx)
		cancel()
		close(done)
	}()
	return done
}
