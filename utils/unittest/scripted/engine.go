// Package scripted implements a deterministic, in-process threshold ECDSA
// protocol engine. Key shares are produced with Feldman verifiable secret
// sharing, but signing reveals the nonce and weighted key shares to the other
// signers, so the engine offers NO secrecy between participants. It is for
// tests only: it exercises orchestration, checkpointing and abort handling
// quickly and supports injecting faulty participants. Wallets always run the
// cmp engine.
package scripted

import (
	"fmt"
	"sync"

	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/module"
)

const rounds = 2

// Engine is the scripted protocol engine.
type Engine struct {
	mu     sync.Mutex
	faults map[tss.Phase]tss.PartyID
}

var _ module.ProtocolEngine = (*Engine)(nil)

func New() *Engine {
	return &Engine{
		faults: make(map[tss.Phase]tss.PartyID),
	}
}

// InjectFault makes participant misbehave during the next run of phase. The
// other participants detect the invalid contribution and abort naming it.
// The fault applies to a single run.
func (e *Engine) InjectFault(phase tss.Phase, participant tss.PartyID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults[phase] = participant
}

// takeFault reports whether self is the faulty participant of this phase run
// and clears the fault if so.
func (e *Engine) takeFault(phase tss.Phase, self tss.PartyID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	faulty, ok := e.faults[phase]
	if !ok || faulty != self {
		return false
	}
	delete(e.faults, phase)
	return true
}

func (e *Engine) MaxRounds(phase tss.Phase) int {
	return rounds
}

func (e *Engine) Start(phase tss.Phase, self tss.PartyID, input *tss.PhaseInput) (module.PartyState, error) {
	if !tss.Contains(input.Parties, self) {
		return nil, fmt.Errorf("participant %d is not part of the %s run", self, phase)
	}
	p := &party{
		phase:      phase,
		self:       self,
		input:      input,
		broadcasts: make(map[tss.PartyID][]byte),
		directs:    make(map[tss.PartyID][]byte),
	}

	var err error
	switch phase {
	case tss.PhaseKeygen:
		err = p.startKeygen()
	case tss.PhaseAuxInfo:
		err = p.startAuxInfo()
	case tss.PhasePresign:
		err = p.startPresign()
	case tss.PhaseSign:
		err = p.startSign()
	default:
		err = fmt.Errorf("unknown phase %s", phase)
	}
	if err != nil {
		return nil, err
	}
	p.faulty = e.takeFault(phase, self)
	return p, nil
}
