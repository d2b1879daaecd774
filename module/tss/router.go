package tss

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/tsswallet/tss-wallet/model/messages"
	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/module"
)

// Router runs one phase to convergence among a fixed set of simulated
// participants. Its loop is synchronous: in every round all pending messages
// are delivered, participants are advanced one after the other in ascending
// order, and the messages they produce form the next round.
type Router struct {
	log     zerolog.Logger
	engine  module.ProtocolEngine
	metrics module.TSSMetrics

	delivered *atomic.Uint64 // point-to-point deliveries across all runs
}

var _ module.PhaseRouter = (*Router)(nil)

// NewRouter creates a router for engine.
func NewRouter(log zerolog.Logger, engine module.ProtocolEngine, metrics module.TSSMetrics) *Router {
	return &Router{
		log:       log.With().Str("component", "tss_router").Logger(),
		engine:    engine,
		metrics:   metrics,
		delivered: atomic.NewUint64(0),
	}
}

// Delivered returns the total number of messages delivered by the router.
func (r *Router) Delivered() uint64 {
	return r.delivered.Load()
}

// Run drives the participants in input.Parties through phase until enough of
// them produced output: all of them for Keygen and AuxInfo, input.Threshold
// of them for Presign and Sign. Any participant state is discarded when Run returns;
// nothing is returned unless the phase converged.
//
// Expected error returns:
//   - IdentifiableAbortError if a participant's contribution failed verification
//   - ErrPhaseFailed if the engine aborted without naming a culprit
//   - ErrProtocolTimeout if the phase exceeds the engine's round bound
//   - ErrCancelled if ctx is done before convergence
//   - ProtocolSequenceError on routing defects
func (r *Router) Run(ctx context.Context, phase tss.Phase, input *tss.PhaseInput) (map[tss.PartyID]*tss.PartyOutput, error) {
	quorum, err := quorum(phase, input)
	if err != nil {
		return nil, err
	}

	log := r.log.With().Str("phase", phase.String()).Int("parties", len(input.Parties)).Logger()
	start := time.Now()
	r.metrics.PhaseStarted(phase)

	outputs, rounds, deliveries, err := r.run(ctx, phase, input, quorum)
	r.delivered.Add(uint64(deliveries))
	r.metrics.MessagesRouted(phase, deliveries)
	if err != nil {
		reason := abortReason(err)
		r.metrics.PhaseAborted(phase, reason)
		event := log.Warn().Err(err).Int("rounds", rounds).Int64("duration_ms", time.Since(start).Milliseconds())
		if abort, ok := AsIdentifiableAbort(err); ok {
			event = event.Int("culprit", int(abort.Participant))
		}
		event.Msg("phase aborted")
		return nil, err
	}

	duration := time.Since(start)
	r.metrics.PhaseCompleted(phase, rounds, duration)
	log.Info().
		Int("rounds", rounds).
		Int("messages", deliveries).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("phase converged")
	return outputs, nil
}

func (r *Router) run(ctx context.Context, phase tss.Phase, input *tss.PhaseInput, quorum int) (map[tss.PartyID]*tss.PartyOutput, int, int, error) {
	participants := make([]*Participant, 0, len(input.Parties))
	defer func() {
		for _, p := range participants {
			p.Close()
		}
	}()
	for _, id := range input.Parties {
		p, err := NewParticipant(r.engine, phase, id, input)
		if err != nil {
			return nil, 0, 0, err
		}
		participants = append(participants, p)
	}

	outputs := make(map[tss.PartyID]*tss.PartyOutput, len(participants))

	// initial messages of every participant
	var pending []*messages.ProtocolMessage
	for _, p := range participants {
		out, output, err := p.Advance(nil)
		if err != nil {
			return nil, 0, 0, err
		}
		pending = append(pending, out...)
		if output != nil {
			outputs[p.ID()] = output
		}
	}

	maxRounds := r.engine.MaxRounds(phase)
	rounds, deliveries := 0, 0
	for len(outputs) < quorum {
		if ctx.Err() != nil {
			return nil, rounds, deliveries, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		if rounds >= maxRounds {
			return nil, rounds, deliveries, fmt.Errorf("%w: %s did not converge within %d rounds", ErrProtocolTimeout, phase, maxRounds)
		}
		if len(pending) == 0 {
			return nil, rounds, deliveries, fmt.Errorf("%w: %s stalled after %d rounds with %d of %d outputs",
				ErrProtocolTimeout, phase, rounds, len(outputs), quorum)
		}
		rounds++

		inboxes := r.expand(pending, participants)
		pending = nil
		for _, p := range participants {
			inbox := inboxes[p.ID()]
			if len(inbox) == 0 {
				continue
			}
			if p.Done() {
				r.log.Debug().Int("participant", int(p.ID())).Int("messages", len(inbox)).Msg("dropping messages for finished participant")
				continue
			}
			deliveries += len(inbox)
			out, output, err := p.Advance(inbox)
			if err != nil {
				return nil, rounds, deliveries, err
			}
			pending = append(pending, out...)
			if output != nil {
				outputs[p.ID()] = output
			}
		}
	}
	return outputs, rounds, deliveries, nil
}

// expand turns the pending messages into per-participant inboxes, copying
// broadcasts once per destination. Message order is preserved.
func (r *Router) expand(pending []*messages.ProtocolMessage, participants []*Participant) map[tss.PartyID][]*messages.ProtocolMessage {
	inboxes := make(map[tss.PartyID][]*messages.ProtocolMessage, len(participants))
	for _, msg := range pending {
		if !msg.Broadcast {
			inboxes[msg.To] = append(inboxes[msg.To], msg)
			continue
		}
		for _, p := range participants {
			if msg.IsFor(p.ID()) {
				inboxes[p.ID()] = append(inboxes[p.ID()], msg.Copy(p.ID()))
			}
		}
	}
	return inboxes
}

// quorum returns the number of participant outputs that complete phase.
func quorum(phase tss.Phase, input *tss.PhaseInput) (int, error) {
	parties := len(input.Parties)
	if parties == 0 {
		return 0, fmt.Errorf("no participants for %s", phase)
	}
	switch phase {
	case tss.PhaseKeygen, tss.PhaseAuxInfo:
		return parties, nil
	case tss.PhasePresign, tss.PhaseSign:
		if input.Threshold < 1 || input.Threshold > parties {
			return 0, fmt.Errorf("%s needs %d participants, got %d", phase, input.Threshold, parties)
		}
		return input.Threshold, nil
	default:
		return 0, fmt.Errorf("unknown phase %s", phase)
	}
}

func abortReason(err error) string {
	switch {
	case IsProtocolSequenceError(err):
		return "sequence"
	case IsAbort(err):
		if _, ok := AsIdentifiableAbort(err); ok {
			return "identifiable"
		}
		if errors.Is(err, ErrCancelled) {
			return "cancelled"
		}
		if errors.Is(err, ErrProtocolTimeout) {
			return "timeout"
		}
		return "engine"
	default:
		return "error"
	}
}
