package module

import (
	"context"

	"github.com/tsswallet/tss-wallet/model/messages"
	"github.com/tsswallet/tss-wallet/model/tss"
)

// ProtocolEngine is the threshold-ECDSA protocol implementation. It is a
// capability: given a participant's local state and inbound messages it
// produces outbound messages, a phase result, or an identifiable abort. The
// engine owns all protocol cryptography; callers only move its messages.
type ProtocolEngine interface {

	// MaxRounds returns the maximum number of message rounds the engine
	// needs to complete the given phase. Routers use it to bound a run.
	MaxRounds(phase tss.Phase) int

	// Start creates the local state of participant self for one run of the
	// given phase. The returned state is owned by the caller until Close.
	Start(phase tss.Phase, self tss.PartyID, input *tss.PhaseInput) (PartyState, error)
}

// PartyState is one participant's local protocol state for a single phase run.
type PartyState interface {

	// Advance consumes the inbound messages of the current round and returns
	// the messages the participant wants to send next. Calling Advance with
	// no messages returns the participant's initial messages. A non-nil
	// output means the participant has finished the phase.
	//
	// Expected error returns:
	//   - tss.IdentifiableAbortError if another participant's contribution failed verification
	//   - tss.ProtocolSequenceError if a message does not belong to the current round
	Advance(inbound []*messages.ProtocolMessage) ([]*messages.ProtocolMessage, *tss.PartyOutput, error)

	// Close discards the state. It is safe to call more than once.
	Close()
}

// PhaseRouter runs one phase to convergence among a fixed set of participants.
type PhaseRouter interface {

	// Run drives the participants listed in input.Parties through the phase
	// and returns the output of every participant that finished. No output
	// is returned unless the phase converged.
	Run(ctx context.Context, phase tss.Phase, input *tss.PhaseInput) (map[tss.PartyID]*tss.PartyOutput, error)
}
