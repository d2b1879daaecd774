package tss

import (
	"fmt"

	"github.com/tsswallet/tss-wallet/model/messages"
	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/module"
)

// Participant simulates one logical party for a single phase run. It wraps the
// party's engine state and guards it against messages of another phase and
// against being advanced after it produced its output. Participants never
// talk to each other directly; all messages go through the Router.
type Participant struct {
	id     tss.PartyID
	phase  tss.Phase
	state  module.PartyState
	output *tss.PartyOutput
	closed bool
}

// NewParticipant starts the engine state of participant id for phase.
func NewParticipant(engine module.ProtocolEngine, phase tss.Phase, id tss.PartyID, input *tss.PhaseInput) (*Participant, error) {
	state, err := engine.Start(phase, id, input)
	if err != nil {
		return nil, fmt.Errorf("could not start %s for participant %d: %w", phase, id, err)
	}
	return &Participant{
		id:    id,
		phase: phase,
		state: state,
	}, nil
}

func (p *Participant) ID() tss.PartyID {
	return p.id
}

// Done returns true once the participant has produced its phase output.
func (p *Participant) Done() bool {
	return p.output != nil
}

// Output returns the phase output, or nil if the participant has not finished.
func (p *Participant) Output() *tss.PartyOutput {
	return p.output
}

// Advance delivers the inbound messages of one round and returns the
// participant's outbound messages together with its output, if it finished.
//
// Expected error returns:
//   - ProtocolSequenceError if a message belongs to another phase, is not
//     addressed to this participant, or the participant already finished
//   - IdentifiableAbortError if the engine attributed a failure to a participant
func (p *Participant) Advance(inbound []*messages.ProtocolMessage) ([]*messages.ProtocolMessage, *tss.PartyOutput, error) {
	if p.closed {
		return nil, nil, NewProtocolSequenceErrorf(p.id, p.phase, "participant state was discarded")
	}
	if p.output != nil {
		return nil, nil, NewProtocolSequenceErrorf(p.id, p.phase, "advanced after producing output")
	}
	for _, msg := range inbound {
		if msg.Phase != p.phase {
			return nil, nil, NewProtocolSequenceErrorf(p.id, p.phase, "received %s message from participant %d", msg.Phase, msg.From)
		}
		if !msg.IsFor(p.id) {
			return nil, nil, NewProtocolSequenceErrorf(p.id, p.phase, "received message %s not addressed to it", msg)
		}
	}

	outbound, output, err := p.state.Advance(inbound)
	if err != nil {
		return nil, nil, err
	}
	for _, msg := range outbound {
		if msg.From != p.id || msg.Phase != p.phase {
			return nil, nil, NewProtocolSequenceErrorf(p.id, p.phase, "engine produced foreign message %s", msg)
		}
	}
	if output != nil {
		p.output = output
	}
	return outbound, output, nil
}

// Close discards the participant's local protocol state. Only phase outputs
// are ever persisted.
func (p *Participant) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.state.Close()
}
