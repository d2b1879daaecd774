package tss_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tsswallet/tss-wallet/model/messages"
	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/module"
	moduletss "github.com/tsswallet/tss-wallet/module/tss"
	"github.com/tsswallet/tss-wallet/storage/inmemory"
	"github.com/tsswallet/tss-wallet/utils/unittest"
	"github.com/tsswallet/tss-wallet/utils/unittest/scripted"
)

// countingMetrics records how often each phase was started, skipped and healed.
type countingMetrics struct {
	mu        sync.Mutex
	started   map[tss.Phase]int
	completed map[tss.Phase]int
	aborted   map[tss.Phase]int
	skipped   map[tss.Phase]int
	healed    map[tss.Phase]int
	routed    int
}

var _ module.TSSMetrics = (*countingMetrics)(nil)

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		started:   make(map[tss.Phase]int),
		completed: make(map[tss.Phase]int),
		aborted:   make(map[tss.Phase]int),
		skipped:   make(map[tss.Phase]int),
		healed:    make(map[tss.Phase]int),
	}
}

func (c *countingMetrics) PhaseStarted(phase tss.Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started[phase]++
}

func (c *countingMetrics) PhaseCompleted(phase tss.Phase, _ int, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed[phase]++
}

func (c *countingMetrics) PhaseAborted(phase tss.Phase, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aborted[phase]++
}

func (c *countingMetrics) PhaseSkipped(phase tss.Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped[phase]++
}

func (c *countingMetrics) MessagesRouted(_ tss.Phase, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routed += count
}

func (c *countingMetrics) CheckpointHealed(phase tss.Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healed[phase]++
}

// runs returns the number of started runs per phase, in phase order.
func (c *countingMetrics) runs() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	runs := make([]int, 0, len(tss.Phases))
	for _, phase := range tss.Phases {
		runs = append(runs, c.started[phase])
	}
	return runs
}

func (c *countingMetrics) healedCount(phase tss.Phase) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healed[phase]
}

type fixture struct {
	engine       *scripted.Engine
	store        *inmemory.Checkpoints
	metrics      *countingMetrics
	orchestrator *moduletss.Orchestrator
}

func newFixture(t *testing.T, config moduletss.Config) *fixture {
	return newFixtureWithEngine(t, config, nil)
}

// newFixtureWithEngine wraps the scripted engine with wrap, if set.
func newFixtureWithEngine(t *testing.T, config moduletss.Config, wrap func(module.ProtocolEngine) module.ProtocolEngine) *fixture {
	engine := scripted.New()
	var routed module.ProtocolEngine = engine
	if wrap != nil {
		routed = wrap(engine)
	}
	store := inmemory.NewCheckpoints()
	metrics := newCountingMetrics()
	router := moduletss.NewRouter(unittest.Logger(), routed, metrics)
	orchestrator, err := moduletss.NewOrchestrator(unittest.Logger(), config, store, router, metrics)
	require.NoError(t, err)
	return &fixture{
		engine:       engine,
		store:        store,
		metrics:      metrics,
		orchestrator: orchestrator,
	}
}

// blockingEngine holds the first Advance of every run until release is closed.
type blockingEngine struct {
	module.ProtocolEngine
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newBlockingEngine(engine module.ProtocolEngine) *blockingEngine {
	return &blockingEngine{
		ProtocolEngine: engine,
		started:        make(chan struct{}),
		release:        make(chan struct{}),
	}
}

func (b *blockingEngine) Start(phase tss.Phase, self tss.PartyID, input *tss.PhaseInput) (module.PartyState, error) {
	state, err := b.ProtocolEngine.Start(phase, self, input)
	if err != nil {
		return nil, err
	}
	return &blockingState{PartyState: state, engine: b}, nil
}

type blockingState struct {
	module.PartyState
	engine *blockingEngine
}

func (s *blockingState) Advance(inbound []*messages.ProtocolMessage) ([]*messages.ProtocolMessage, *tss.PartyOutput, error) {
	s.engine.once.Do(func() { close(s.engine.started) })
	<-s.engine.release
	return s.PartyState.Advance(inbound)
}

// boundedEngine overrides the round bound of the wrapped engine.
type boundedEngine struct {
	module.ProtocolEngine
	rounds int
}

func (b *boundedEngine) MaxRounds(tss.Phase) int {
	return b.rounds
}

// tamperingEngine alters the signature reported by the listed participants.
type tamperingEngine struct {
	module.ProtocolEngine
	tampered []tss.PartyID
}

func (e *tamperingEngine) Start(phase tss.Phase, self tss.PartyID, input *tss.PhaseInput) (module.PartyState, error) {
	state, err := e.ProtocolEngine.Start(phase, self, input)
	if err != nil || phase != tss.PhaseSign {
		return state, err
	}
	for _, id := range e.tampered {
		if id == self {
			return &tamperingState{PartyState: state}, nil
		}
	}
	return state, nil
}

type tamperingState struct {
	module.PartyState
}

func (s *tamperingState) Advance(inbound []*messages.ProtocolMessage) ([]*messages.ProtocolMessage, *tss.PartyOutput, error) {
	out, output, err := s.PartyState.Advance(inbound)
	if output != nil && output.Signature != nil {
		sig := append([]byte(nil), output.Signature.S...)
		sig[len(sig)-1] ^= 0x01
		output.Signature = &tss.Signature{R: output.Signature.R, S: sig}
	}
	return out, output, err
}
