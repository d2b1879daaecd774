package rest

import (
	"errors"
	"net/http"

	moduletss "github.com/tsswallet/tss-wallet/module/tss"
)

// StatusError provides custom error with http status.
type StatusError interface {
	error                // this is the actual error that occurred
	Status() int         // the HTTP status code to return
	UserMessage() string // the error message to return to the client
}

// Error is implementation of status error.
type Error struct {
	status      int
	userMessage string
	culprit     *int
	err         error
}

// NewRestError creates an error returned to user with provided status
// user displayed message and internal error
func NewRestError(status int, msg string, err error) *Error {
	return &Error{
		status:      status,
		userMessage: msg,
		err:         err,
	}
}

// NewBadRequestError creates a new bad request rest error.
func NewBadRequestError(err error) *Error {
	return &Error{
		status:      http.StatusBadRequest,
		userMessage: err.Error(),
		err:         err,
	}
}

func (e *Error) UserMessage() string {
	return e.userMessage
}

// Status returns error http status code.
func (e *Error) Status() int {
	return e.status
}

// Culprit returns the participant an abort was attributed to, if any.
func (e *Error) Culprit() *int {
	return e.culprit
}

func (e *Error) Error() string {
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

// ErrorToStatusError maps wallet errors onto http status codes. Errors that
// are not part of the wallet's error taxonomy become internal server errors.
func ErrorToStatusError(err error) StatusError {
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return statusErr
	}

	if abort, ok := moduletss.AsIdentifiableAbort(err); ok {
		culprit := int(abort.Participant)
		return &Error{
			status:      http.StatusUnprocessableEntity,
			userMessage: err.Error(),
			culprit:     &culprit,
			err:         err,
		}
	}

	switch {
	case errors.Is(err, moduletss.ErrKeySetAlreadyExists),
		errors.Is(err, moduletss.ErrChildKeyExists),
		errors.Is(err, moduletss.ErrSessionBusy),
		errors.Is(err, moduletss.ErrPresignatureExhausted):
		return NewRestError(http.StatusConflict, err.Error(), err)
	case errors.Is(err, moduletss.ErrKeySetNotFound),
		errors.Is(err, moduletss.ErrChildKeyNotFound),
		errors.Is(err, moduletss.ErrJobNotFound):
		return NewRestError(http.StatusNotFound, err.Error(), err)
	case errors.Is(err, moduletss.ErrReservedIndex):
		return NewBadRequestError(err)
	case errors.Is(err, moduletss.ErrProtocolTimeout),
		errors.Is(err, moduletss.ErrCancelled):
		return NewRestError(http.StatusGatewayTimeout, err.Error(), err)
	case errors.Is(err, moduletss.ErrPhaseFailed):
		return NewRestError(http.StatusUnprocessableEntity, err.Error(), err)
	case errors.Is(err, moduletss.ErrJobsStopped):
		return NewRestError(http.StatusServiceUnavailable, err.Error(), err)
	default:
		return NewRestError(http.StatusInternalServerError, "internal server error", err)
	}
}
