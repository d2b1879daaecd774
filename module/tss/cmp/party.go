package cmp

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/multi-party-sig/pkg/ecdsa"
	"github.com/taurusgroup/multi-party-sig/pkg/protocol"
	"github.com/taurusgroup/multi-party-sig/protocols/cmp"

	"github.com/tsswallet/tss-wallet/model/messages"
	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/module/hd"
	moduletss "github.com/tsswallet/tss-wallet/module/tss"
)

// participant wraps the library's handler of one participant. The handler processes
// accepted messages synchronously, so after every Accept its outgoing channel
// holds everything the participant wants to send in the next round.
type participant struct {
	phase   tss.Phase
	self    tss.PartyID
	handler *protocol.MultiHandler
	done    bool
	closed  bool
}

func (p *participant) Advance(inbound []*messages.ProtocolMessage) ([]*messages.ProtocolMessage, *tss.PartyOutput, error) {
	if p.closed {
		return nil, nil, errors.New("participant state is closed")
	}
	for _, msg := range inbound {
		var frame protocol.Message
		err := cbor.Unmarshal(msg.Payload, &frame)
		if err != nil {
			return nil, nil, moduletss.NewIdentifiableAbort(p.phase, msg.From, fmt.Errorf("undecodable protocol message: %w", err))
		}
		if frame.From != partyID(msg.From) {
			return nil, nil, moduletss.NewIdentifiableAbort(p.phase, msg.From, fmt.Errorf("message claims origin %s", frame.From))
		}
		if !p.handler.CanAccept(&frame) {
			return nil, nil, moduletss.NewIdentifiableAbort(p.phase, msg.From, fmt.Errorf("message for round %d rejected", frame.RoundNumber))
		}
		p.handler.Accept(&frame)
	}

	outbound, err := p.drain()
	if err != nil {
		return nil, nil, err
	}
	if !p.done {
		return outbound, nil, nil
	}
	output, err := p.output()
	if err != nil {
		return nil, nil, err
	}
	return outbound, output, nil
}

// drain collects the messages the handler queued so far. It marks the party
// done once the handler closed its channel.
func (p *participant) drain() ([]*messages.ProtocolMessage, error) {
	var outbound []*messages.ProtocolMessage
	listen := p.handler.Listen()
	for {
		select {
		case frame, ok := <-listen:
			if !ok {
				p.done = true
				return outbound, nil
			}
			msg, err := p.frame(frame)
			if err != nil {
				return nil, err
			}
			outbound = append(outbound, msg)
		default:
			return outbound, nil
		}
	}
}

func (p *participant) frame(frame *protocol.Message) (*messages.ProtocolMessage, error) {
	payload, err := cbor.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("could not encode protocol message: %w", err)
	}
	round := int(frame.RoundNumber)
	if frame.Broadcast || frame.To == "" {
		return messages.NewBroadcastMessage(p.self, p.phase, round, payload), nil
	}
	to, err := fromPartyID(frame.To)
	if err != nil {
		return nil, err
	}
	return messages.NewDirectMessage(p.self, to, p.phase, round, payload), nil
}

// output converts the handler's result into the phase output. Failures the
// library attributes to participants become identifiable aborts.
func (p *participant) output() (*tss.PartyOutput, error) {
	result, err := p.handler.Result()
	if err != nil {
		var protocolErr *protocol.Error
		if errors.As(err, &protocolErr) && len(protocolErr.Culprits) > 0 {
			culprit, idErr := fromPartyID(protocolErr.Culprits[0])
			if idErr == nil {
				return nil, moduletss.NewIdentifiableAbort(p.phase, culprit, protocolErr.Err)
			}
		}
		return nil, fmt.Errorf("%w: %v", moduletss.ErrPhaseFailed, err)
	}

	switch p.phase {
	case tss.PhaseKeygen, tss.PhaseAuxInfo:
		config, ok := result.(*cmp.Config)
		if !ok {
			return nil, fmt.Errorf("unexpected %s result %T", p.phase, result)
		}
		data, err := cbor.Marshal(config)
		if err != nil {
			return nil, fmt.Errorf("could not encode key share: %w", err)
		}
		publicKey, err := config.PublicPoint().MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("could not encode public key: %w", err)
		}
		output := &tss.PartyOutput{Data: data, PublicKey: publicKey}
		if p.phase == tss.PhaseKeygen {
			output.ChainCode = chainCode(config)
		}
		return output, nil

	case tss.PhasePresign:
		presig, ok := result.(*ecdsa.PreSignature)
		if !ok {
			return nil, fmt.Errorf("unexpected %s result %T", p.phase, result)
		}
		data, err := cbor.Marshal(presig)
		if err != nil {
			return nil, fmt.Errorf("could not encode presignature share: %w", err)
		}
		return &tss.PartyOutput{Data: data}, nil

	default:
		sig, ok := result.(*ecdsa.Signature)
		if !ok {
			return nil, fmt.Errorf("unexpected %s result %T", p.phase, result)
		}
		r, err := sig.R.XScalar().MarshalBinary()
		if err != nil {
			return nil, err
		}
		s, err := sig.S.MarshalBinary()
		if err != nil {
			return nil, err
		}
		signature, err := hd.NewSignature(r, s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", moduletss.ErrPhaseFailed, err)
		}
		return &tss.PartyOutput{Signature: signature}, nil
	}
}

func (p *participant) Close() {
	p.closed = true
}
