package tss_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsswallet/tss-wallet/model/messages"
	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/module"
	moduletss "github.com/tsswallet/tss-wallet/module/tss"
)

// echoEngine runs a single-round phase: every participant broadcasts its ID
// and finishes once it heard from everybody else.
type echoEngine struct {
	rounds int
	// forge makes participants sign their broadcast with the next ID
	forge bool
	// silent participants never send anything
	silent bool
}

func (e *echoEngine) MaxRounds(tss.Phase) int {
	if e.rounds == 0 {
		return 1
	}
	return e.rounds
}

func (e *echoEngine) Start(phase tss.Phase, self tss.PartyID, input *tss.PhaseInput) (module.PartyState, error) {
	return &echoState{
		engine: e,
		phase:  phase,
		self:   self,
		others: len(input.Parties) - 1,
		heard:  make(map[tss.PartyID]bool),
	}, nil
}

type echoState struct {
	engine *echoEngine
	phase  tss.Phase
	self   tss.PartyID
	others int
	heard  map[tss.PartyID]bool
	closed int
}

func (s *echoState) Advance(inbound []*messages.ProtocolMessage) ([]*messages.ProtocolMessage, *tss.PartyOutput, error) {
	if inbound == nil {
		if s.engine.silent {
			return nil, nil, nil
		}
		from := s.self
		if s.engine.forge {
			from++
		}
		return []*messages.ProtocolMessage{
			messages.NewBroadcastMessage(from, s.phase, 1, []byte{byte(s.self)}),
		}, nil, nil
	}
	for _, msg := range inbound {
		if s.heard[msg.From] {
			return nil, nil, moduletss.NewIdentifiableAbort(s.phase, msg.From, assert.AnError)
		}
		s.heard[msg.From] = true
	}
	if len(s.heard) < s.others {
		return nil, nil, nil
	}
	return nil, &tss.PartyOutput{Data: []byte{byte(s.self)}}, nil
}

func (s *echoState) Close() {
	s.closed++
}

func startEcho(t *testing.T, engine *echoEngine, id tss.PartyID) *moduletss.Participant {
	input := &tss.PhaseInput{Parties: tss.PartyRange(2), Threshold: 2}
	p, err := moduletss.NewParticipant(engine, tss.PhaseAuxInfo, id, input)
	require.NoError(t, err)
	return p
}

func TestParticipant_Advance(t *testing.T) {
	p := startEcho(t, &echoEngine{}, 0)
	assert.Equal(t, tss.PartyID(0), p.ID())
	assert.False(t, p.Done())

	out, output, err := p.Advance(nil)
	require.NoError(t, err)
	require.Nil(t, output)
	require.Len(t, out, 1)
	assert.True(t, out[0].Broadcast)

	msg := messages.NewBroadcastMessage(1, tss.PhaseAuxInfo, 1, []byte{1}).Copy(0)
	out, output, err = p.Advance([]*messages.ProtocolMessage{msg})
	require.NoError(t, err)
	assert.Empty(t, out)
	require.NotNil(t, output)
	assert.True(t, p.Done())
	assert.Equal(t, output, p.Output())

	t.Run("advancing a finished participant is a sequence error", func(t *testing.T) {
		_, _, err := p.Advance([]*messages.ProtocolMessage{msg})
		require.True(t, moduletss.IsProtocolSequenceError(err), err)
	})
}

func TestParticipant_SequenceErrors(t *testing.T) {
	t.Run("message of another phase", func(t *testing.T) {
		p := startEcho(t, &echoEngine{}, 0)
		msg := messages.NewDirectMessage(1, 0, tss.PhaseKeygen, 1, nil)
		_, _, err := p.Advance([]*messages.ProtocolMessage{msg})
		require.True(t, moduletss.IsProtocolSequenceError(err), err)
	})

	t.Run("message for another participant", func(t *testing.T) {
		p := startEcho(t, &echoEngine{}, 0)
		msg := messages.NewDirectMessage(0, 1, tss.PhaseAuxInfo, 1, nil)
		_, _, err := p.Advance([]*messages.ProtocolMessage{msg})
		require.True(t, moduletss.IsProtocolSequenceError(err), err)
	})

	t.Run("engine produces a message in another name", func(t *testing.T) {
		p := startEcho(t, &echoEngine{forge: true}, 0)
		_, _, err := p.Advance(nil)
		require.True(t, moduletss.IsProtocolSequenceError(err), err)
	})

	t.Run("advancing a closed participant", func(t *testing.T) {
		p := startEcho(t, &echoEngine{}, 0)
		p.Close()
		p.Close()
		_, _, err := p.Advance(nil)
		require.True(t, moduletss.IsProtocolSequenceError(err), err)
	})
}

func TestParticipant_IdentifiableAbort(t *testing.T) {
	p := startEcho(t, &echoEngine{}, 0)
	_, _, err := p.Advance(nil)
	require.NoError(t, err)

	msg := messages.NewBroadcastMessage(1, tss.PhaseAuxInfo, 1, nil).Copy(0)
	// a duplicate contribution is attributed to its sender
	_, _, err = p.Advance([]*messages.ProtocolMessage{msg, msg})
	abort, ok := moduletss.AsIdentifiableAbort(err)
	require.True(t, ok, err)
	assert.Equal(t, tss.PartyID(1), abort.Participant)
	assert.False(t, moduletss.IsProtocolSequenceError(err))
}
