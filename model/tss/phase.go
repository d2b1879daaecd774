package tss

import (
	"fmt"
	"strconv"
)

// PartyID is the ordinal (0..N-1) of a simulated participant.
type PartyID int

func (id PartyID) String() string {
	return strconv.Itoa(int(id))
}

// Phase is one bounded multi-round sub-protocol of the threshold ECDSA pipeline.
type Phase int

const (
	PhaseKeygen Phase = iota + 1
	PhaseAuxInfo
	PhasePresign
	PhaseSign
)

// Phases lists every phase in execution order.
var Phases = []Phase{PhaseKeygen, PhaseAuxInfo, PhasePresign, PhaseSign}

func (p Phase) String() string {
	switch p {
	case PhaseKeygen:
		return "keygen"
	case PhaseAuxInfo:
		return "auxinfo"
	case PhasePresign:
		return "presign"
	case PhaseSign:
		return "sign"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Valid returns true if p is one of the known phases.
func (p Phase) Valid() bool {
	return p >= PhaseKeygen && p <= PhaseSign
}

// PhaseStatus is the lifecycle position of one phase of a key-set.
type PhaseStatus int

const (
	NotStarted PhaseStatus = iota
	InProgress
	Completed
	Aborted
)

func (s PhaseStatus) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// PhaseState is the state of one phase. Culprit and Reason are only set
// for Aborted; Culprit is nil when the abort could not be attributed.
type PhaseState struct {
	Status  PhaseStatus
	Culprit *PartyID
	Reason  string
}

func (s PhaseState) String() string {
	if s.Status != Aborted {
		return s.Status.String()
	}
	if s.Culprit == nil {
		return fmt.Sprintf("aborted(%s)", s.Reason)
	}
	return fmt.Sprintf("aborted(participant %d: %s)", *s.Culprit, s.Reason)
}
