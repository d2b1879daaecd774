package rest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/tsswallet/tss-wallet/module"
	"github.com/tsswallet/tss-wallet/module/metrics"
)

// Config defines the configurable options for the wallet http server.
type Config struct {
	ListenAddress      string
	WriteTimeout       time.Duration
	ReadTimeout        time.Duration
	IdleTimeout        time.Duration
	MaxRequestSize     int64
	SignatureCacheSize int
}

func DefaultConfig() Config {
	return Config{
		ListenAddress:      "localhost:8080",
		WriteTimeout:       time.Second * 15,
		ReadTimeout:        time.Second * 15,
		IdleTimeout:        time.Second * 60,
		MaxRequestSize:     DefaultMaxRequestSize,
		SignatureCacheSize: DefaultSignatureCacheSize,
	}
}

// NewRouter returns the router serving the wallet API, and the prometheus
// metrics gathered by gatherer on /metrics.
func NewRouter(api API, logger zerolog.Logger, config Config, restCollector module.RestMetrics, gatherer prometheus.Gatherer) (*mux.Router, error) {
	signatures, err := newSignatureCache(config.SignatureCacheSize)
	if err != nil {
		return nil, err
	}
	rt := &routes{
		api:        api,
		signatures: signatures,
	}

	router := mux.NewRouter().StrictSlash(true)
	router.Use(LoggingMiddleware(logger))
	router.Use(MetricsMiddleware(restCollector))

	for _, r := range walletRoutes {
		status := r.status
		if status == 0 {
			status = http.StatusOK
		}
		handle := r.handler
		h := NewHandler(logger, config.MaxRequestSize, status, func(req *Request) (interface{}, error) {
			return handle(rt, req)
		})
		router.
			Methods(r.method).
			Path(r.pattern).
			Name(r.name).
			Handler(h)
	}

	router.
		Methods(http.MethodGet).
		Path("/metrics").
		Name("metrics").
		Handler(metrics.Handler(logger, gatherer))

	return router, nil
}

// NewServer returns an HTTP server initialized with the wallet API handler
func NewServer(api API, config Config, logger zerolog.Logger, restCollector module.RestMetrics, gatherer prometheus.Gatherer) (*http.Server, error) {
	router, err := NewRouter(api, logger, config, restCollector, gatherer)
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodHead},
	})

	return &http.Server{
		Addr:         config.ListenAddress,
		Handler:      c.Handler(router),
		WriteTimeout: config.WriteTimeout,
		ReadTimeout:  config.ReadTimeout,
		IdleTimeout:  config.IdleTimeout,
	}, nil
}
