package rest

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/tsswallet/tss-wallet/module"
)

// LoggingMiddleware creates a middleware which adds a logger interceptor to each request to log the request method, uri,
// duration and response code
func LoggingMiddleware(logger zerolog.Logger) mux.MiddlewareFunc {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			respWriter := newResponseWriter(w)
			handler.ServeHTTP(respWriter, req)
			event := logger.Info()
			if respWriter.statusCode >= http.StatusInternalServerError {
				event = logger.Error()
			} else if respWriter.statusCode >= http.StatusBadRequest {
				event = logger.Warn()
			}
			event.Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("client_ip", req.RemoteAddr).
				Str("user_agent", req.UserAgent()).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Int("response_code", respWriter.statusCode).
				Msg("api")
		})
	}
}

// MetricsMiddleware records the number and duration of requests per route.
func MetricsMiddleware(restMetrics module.RestMetrics) mux.MiddlewareFunc {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			respWriter := newResponseWriter(w)
			handler.ServeHTTP(respWriter, req)

			name := "unknown"
			if route := mux.CurrentRoute(req); route != nil && route.GetName() != "" {
				name = route.GetName()
			}
			restMetrics.ObserveRequest(name, respWriter.statusCode, time.Since(start))
		})
	}
}

// responseWriter is a wrapper around http.ResponseWriter and helps capture the response code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
