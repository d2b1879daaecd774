// Package cmp adapts the CMP threshold-ECDSA protocol of
// github.com/taurusgroup/multi-party-sig to the module.ProtocolEngine
// interface. Phases map onto the library's protocols as follows:
//
//	Keygen   cmp.Keygen
//	AuxInfo  cmp.Refresh
//	Presign  cmp.Presign
//	Sign     cmp.PresignOnline
//
// The library counts its threshold as the number of tolerated corruptions,
// so a key-set signed by t participants is generated with threshold t-1.
package cmp

import (
	"fmt"
	"strconv"

	"github.com/taurusgroup/multi-party-sig/pkg/math/curve"
	"github.com/taurusgroup/multi-party-sig/pkg/party"
	"github.com/taurusgroup/multi-party-sig/pkg/pool"
	"github.com/taurusgroup/multi-party-sig/pkg/protocol"
	"github.com/taurusgroup/multi-party-sig/protocols/cmp"

	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/module"
)

// round bounds per phase, with headroom for the library's echo broadcasts
const (
	keygenRounds  = 7
	presignRounds = 9
	signRounds    = 4
)

var group = curve.Secp256k1{}

// Engine runs the CMP protocol in-process.
type Engine struct {
	pool *pool.Pool
}

var _ module.ProtocolEngine = (*Engine)(nil)

// New creates an engine. pl parallelizes the heavy arithmetic of a party and
// may be nil.
func New(pl *pool.Pool) *Engine {
	return &Engine{pool: pl}
}

func (e *Engine) MaxRounds(phase tss.Phase) int {
	switch phase {
	case tss.PhaseKeygen, tss.PhaseAuxInfo:
		return keygenRounds
	case tss.PhasePresign:
		return presignRounds
	default:
		return signRounds
	}
}

func (e *Engine) Start(phase tss.Phase, self tss.PartyID, input *tss.PhaseInput) (module.PartyState, error) {
	if !tss.Contains(input.Parties, self) {
		return nil, fmt.Errorf("participant %d is not part of the %s run", self, phase)
	}
	selfID := partyID(self)
	signers := partyIDs(input.Parties)

	var start protocol.StartFunc
	switch phase {
	case tss.PhaseKeygen:
		if input.Threshold < 1 || input.Threshold > len(input.Parties) {
			return nil, fmt.Errorf("invalid threshold %d for %d participants", input.Threshold, len(input.Parties))
		}
		start = cmp.Keygen(group, selfID, signers, input.Threshold-1, e.pool)

	case tss.PhaseAuxInfo:
		config, err := decodeConfig(input.State[self])
		if err != nil {
			return nil, fmt.Errorf("invalid key share of participant %d: %w", self, err)
		}
		start = cmp.Refresh(config, e.pool)

	case tss.PhasePresign:
		config, err := decodeConfig(input.State[self])
		if err != nil {
			return nil, fmt.Errorf("invalid auxiliary share of participant %d: %w", self, err)
		}
		err = applyTweak(config, input.Tweak)
		if err != nil {
			return nil, err
		}
		start = cmp.Presign(config, signers, e.pool)

	case tss.PhaseSign:
		config, err := decodeConfig(input.State[self])
		if err != nil {
			return nil, fmt.Errorf("invalid auxiliary share of participant %d: %w", self, err)
		}
		err = applyTweak(config, input.Tweak)
		if err != nil {
			return nil, err
		}
		presig, err := decodePresignature(input.Presignatures[self])
		if err != nil {
			return nil, fmt.Errorf("invalid presignature share of participant %d: %w", self, err)
		}
		start = cmp.PresignOnline(config, presig, input.Digest, e.pool)

	default:
		return nil, fmt.Errorf("unknown phase %s", phase)
	}

	handler, err := protocol.NewMultiHandler(start, input.SessionID)
	if err != nil {
		return nil, fmt.Errorf("could not start %s handler: %w", phase, err)
	}
	return &participant{
		phase:   phase,
		self:    self,
		handler: handler,
	}, nil
}

func partyID(id tss.PartyID) party.ID {
	return party.ID(id.String())
}

func partyIDs(ids []tss.PartyID) []party.ID {
	result := make([]party.ID, 0, len(ids))
	for _, id := range ids {
		result = append(result, partyID(id))
	}
	return result
}

func fromPartyID(id party.ID) (tss.PartyID, error) {
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return 0, fmt.Errorf("unexpected party id %q", id)
	}
	return tss.PartyID(n), nil
}
