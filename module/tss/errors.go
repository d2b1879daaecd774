package tss

import (
	"errors"
	"fmt"

	"github.com/tsswallet/tss-wallet/model/tss"
)

var (
	// ErrProtocolTimeout is returned when a phase exceeds the number of
	// rounds its engine declares without converging. It is handled as an abort.
	ErrProtocolTimeout = errors.New("protocol round bound exceeded")

	// ErrCancelled is returned when a phase run was stopped locally before
	// convergence. The phase is recorded as aborted with a local timeout.
	ErrCancelled = errors.New("phase cancelled: local timeout")

	// ErrPhaseFailed is returned when the engine aborted a phase without
	// identifying the responsible participant.
	ErrPhaseFailed = errors.New("phase aborted without identifiable culprit")

	ErrKeySetAlreadyExists   = errors.New("key-set already exists")
	ErrKeySetNotFound        = errors.New("key-set not found")
	ErrChildKeyNotFound      = errors.New("child key not found")
	ErrChildKeyExists        = errors.New("child key already exists")
	ErrReservedIndex         = errors.New("child index 0 is reserved for the root key")
	ErrPresignatureExhausted = errors.New("no unconsumed presignature available")
	ErrSessionBusy           = errors.New("another operation is running on this key-set")
)

// IdentifiableAbortError is returned when a participant's contribution failed
// verification. The phase can be re-run from scratch.
type IdentifiableAbortError struct {
	Phase       tss.Phase
	Participant tss.PartyID
	Reason      error
}

func (e IdentifiableAbortError) Error() string {
	return fmt.Sprintf("%s aborted by participant %d: %v", e.Phase, e.Participant, e.Reason)
}

func (e IdentifiableAbortError) Unwrap() error {
	return e.Reason
}

// NewIdentifiableAbort returns an IdentifiableAbortError naming participant as the culprit.
func NewIdentifiableAbort(phase tss.Phase, participant tss.PartyID, reason error) error {
	return IdentifiableAbortError{
		Phase:       phase,
		Participant: participant,
		Reason:      reason,
	}
}

// AsIdentifiableAbort returns the IdentifiableAbortError wrapped in err, if any.
func AsIdentifiableAbort(err error) (IdentifiableAbortError, bool) {
	var abort IdentifiableAbortError
	ok := errors.As(err, &abort)
	return abort, ok
}

// ProtocolSequenceError is returned when a message is delivered to a participant
// that is not running the message's phase or round. This indicates a routing
// defect and is never retried.
type ProtocolSequenceError struct {
	Participant tss.PartyID
	Phase       tss.Phase
	msg         string
}

func (e ProtocolSequenceError) Error() string {
	return fmt.Sprintf("protocol sequence error at participant %d during %s: %s", e.Participant, e.Phase, e.msg)
}

// NewProtocolSequenceErrorf returns a ProtocolSequenceError with a formatted message.
func NewProtocolSequenceErrorf(participant tss.PartyID, phase tss.Phase, msg string, args ...interface{}) error {
	return ProtocolSequenceError{
		Participant: participant,
		Phase:       phase,
		msg:         fmt.Sprintf(msg, args...),
	}
}

func IsProtocolSequenceError(err error) bool {
	var e ProtocolSequenceError
	return errors.As(err, &e)
}

// InvalidStateTransitionError happens when an invalid phase state transition is attempted.
type InvalidStateTransitionError struct {
	Phase tss.Phase
	From  tss.PhaseStatus
	To    tss.PhaseStatus
}

func (e InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition for %s from %s to %s", e.Phase, e.From, e.To)
}

func NewInvalidStateTransitionError(phase tss.Phase, from, to tss.PhaseStatus) error {
	return InvalidStateTransitionError{
		Phase: phase,
		From:  from,
		To:    to,
	}
}

func IsInvalidStateTransitionError(err error) bool {
	var e InvalidStateTransitionError
	return errors.As(err, &e)
}

// IsAbort returns true if err ended a phase run without output in a way that
// allows the phase to be re-run: identifiable aborts, unattributed engine
// failures, round bound violations and local cancellation.
func IsAbort(err error) bool {
	if _, ok := AsIdentifiableAbort(err); ok {
		return true
	}
	return errors.Is(err, ErrProtocolTimeout) || errors.Is(err, ErrCancelled) || errors.Is(err, ErrPhaseFailed)
}
