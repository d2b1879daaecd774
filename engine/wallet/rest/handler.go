package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// DefaultMaxRequestSize is the default maximum request body size in bytes.
const DefaultMaxRequestSize = 1 << 20 // 1MB

// Request wraps the http request with helpers to read its parameters.
type Request struct {
	*http.Request
}

// Decode parses the JSON body into v. An empty body leaves v untouched.
func (r *Request) Decode(v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// GetVar returns the value of the path variable name.
func (r *Request) GetVar(name string) string {
	return mux.Vars(r.Request)[name]
}

// GetIndex parses the path variable name as a key index.
func (r *Request) GetIndex(name string) (uint32, error) {
	raw := r.GetVar(name)
	index, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key index %q", raw)
	}
	return uint32(index), nil
}

// ApiHandlerFunc is a function that contains endpoint handling logic,
// it fetches necessary resources and returns an error or response model.
type ApiHandlerFunc func(r *Request) (interface{}, error)

// Handler is custom http handler implementing custom handler function.
// Handler function allows easier handling of errors and responses as it
// wraps functionality for handling error and responses outside of endpoint handling.
type Handler struct {
	logger         zerolog.Logger
	maxRequestSize int64
	status         int
	handlerFunc    ApiHandlerFunc
}

func NewHandler(logger zerolog.Logger, maxRequestSize int64, status int, handlerFunc ApiHandlerFunc) *Handler {
	return &Handler{
		logger:         logger,
		maxRequestSize: maxRequestSize,
		status:         status,
		handlerFunc:    handlerFunc,
	}
}

// ServerHTTP function acts as a wrapper to each request providing common handling functionality
// such as logging, error handling, request decorators
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// create a logger
	errLog := h.logger.With().Str("request_url", r.URL.String()).Logger()

	// limit requested body size
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestSize)

	response, err := h.handlerFunc(&Request{Request: r})
	if err != nil {
		h.errorHandler(w, err, errLog)
		return
	}

	h.jsonResponse(w, h.status, response, errLog)
}

func (h *Handler) errorHandler(w http.ResponseWriter, err error, errorLogger zerolog.Logger) {
	statusErr := ErrorToStatusError(err)
	if statusErr.Status() == http.StatusInternalServerError {
		errorLogger.Error().Err(err).Msg("internal error")
	} else {
		errorLogger.Debug().Err(err).Int("status", statusErr.Status()).Msg("request failed")
	}

	response := ErrorResponse{
		Code:    statusErr.Status(),
		Message: statusErr.UserMessage(),
	}
	var restErr *Error
	if errors.As(statusErr, &restErr) {
		response.Culprit = restErr.Culprit()
	}
	h.jsonResponse(w, statusErr.Status(), response, errorLogger)
}

// jsonResponse builds a JSON response and send it to the client
func (h *Handler) jsonResponse(w http.ResponseWriter, code int, response interface{}, errLogger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	// serialize response to JSON and handler errors
	encodedResponse, err := json.Marshal(response)
	if err != nil {
		errLogger.Error().Err(err).Str("response", fmt.Sprintf("%v", response)).Msg("failed to indent response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(code)
	// write response to response stream
	_, err = w.Write(encodedResponse)
	if err != nil {
		errLogger.Error().Err(err).Str("response", string(encodedResponse)).Msg("failed to write http response")
	}
}
