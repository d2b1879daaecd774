package scripted_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/module/hd"
	"github.com/tsswallet/tss-wallet/module/metrics"
	moduletss "github.com/tsswallet/tss-wallet/module/tss"
	"github.com/tsswallet/tss-wallet/utils/unittest"
	"github.com/tsswallet/tss-wallet/utils/unittest/scripted"
)

// pipeline drives the scripted engine through its phases with a router,
// keeping the outputs of every phase.
type pipeline struct {
	t         *testing.T
	engine    *scripted.Engine
	router    *moduletss.Router
	parties   int
	threshold int

	publicKey []byte
	chainCode []byte
	keys      map[tss.PartyID][]byte
	aux       map[tss.PartyID][]byte
	signers   []tss.PartyID
	presigs   map[tss.PartyID][]byte
}

func newPipeline(t *testing.T, parties, threshold int) *pipeline {
	engine := scripted.New()
	return &pipeline{
		t:         t,
		engine:    engine,
		router:    moduletss.NewRouter(unittest.Logger(), engine, metrics.NewNoopCollector()),
		parties:   parties,
		threshold: threshold,
	}
}

func (p *pipeline) run(phase tss.Phase, input *tss.PhaseInput) (map[tss.PartyID]*tss.PartyOutput, error) {
	input.SessionID = unittest.RandomBytes(16)
	input.Threshold = p.threshold
	return p.router.Run(context.Background(), phase, input)
}

func data(outputs map[tss.PartyID]*tss.PartyOutput) map[tss.PartyID][]byte {
	result := make(map[tss.PartyID][]byte, len(outputs))
	for id, output := range outputs {
		result[id] = output.Data
	}
	return result
}

func (p *pipeline) keygen() error {
	outputs, err := p.run(tss.PhaseKeygen, &tss.PhaseInput{Parties: tss.PartyRange(p.parties)})
	if err != nil {
		return err
	}
	p.publicKey = outputs[0].PublicKey
	p.chainCode = outputs[0].ChainCode
	p.keys = data(outputs)
	return nil
}

func (p *pipeline) auxInfo() error {
	outputs, err := p.run(tss.PhaseAuxInfo, &tss.PhaseInput{Parties: tss.PartyRange(p.parties), State: p.keys})
	if err != nil {
		return err
	}
	p.aux = data(outputs)
	return nil
}

func (p *pipeline) presign(signers []tss.PartyID) error {
	outputs, err := p.run(tss.PhasePresign, &tss.PhaseInput{Parties: signers, State: p.aux})
	if err != nil {
		return err
	}
	p.signers = signers
	p.presigs = data(outputs)
	return nil
}

func (p *pipeline) sign(digest, tweak []byte) (*tss.Signature, error) {
	outputs, err := p.run(tss.PhaseSign, &tss.PhaseInput{
		Parties:       p.signers,
		State:         p.aux,
		Presignatures: p.presigs,
		Digest:        digest,
		Tweak:         tweak,
	})
	if err != nil {
		return nil, err
	}
	return outputs[p.signers[0]].Signature, nil
}

func (p *pipeline) prepare(signers []tss.PartyID) {
	require.NoError(p.t, p.keygen())
	require.NoError(p.t, p.auxInfo())
	require.NoError(p.t, p.presign(signers))
}

func TestEngine_Sign(t *testing.T) {
	p := newPipeline(t, 3, 3)
	p.prepare(tss.PartyRange(3))
	require.Len(t, p.publicKey, tss.PublicKeyLength)
	require.Len(t, p.chainCode, 32)

	digest := hd.Digest([]byte("message"))
	sig, err := p.sign(digest, nil)
	require.NoError(t, err)
	assert.True(t, hd.Verify(p.publicKey, digest, sig))
	assert.False(t, hd.Verify(p.publicKey, hd.Digest([]byte("other")), sig))
}

func TestEngine_ThresholdSubsets(t *testing.T) {
	p := newPipeline(t, 4, 2)
	require.NoError(t, p.keygen())
	require.NoError(t, p.auxInfo())

	digest := hd.Digest([]byte("message"))
	for _, signers := range [][]tss.PartyID{{0, 1}, {1, 3}, {0, 2}} {
		require.NoError(t, p.presign(signers))
		sig, err := p.sign(digest, nil)
		require.NoError(t, err, signers)
		assert.True(t, hd.Verify(p.publicKey, digest, sig), signers)
	}

	t.Run("too few signers", func(t *testing.T) {
		err := p.presign([]tss.PartyID{1})
		require.Error(t, err)
	})
}

func TestEngine_TweakedSign(t *testing.T) {
	p := newPipeline(t, 3, 2)
	p.prepare([]tss.PartyID{0, 2})

	tweak, err := hd.Tweak(p.publicKey, p.chainCode, 5)
	require.NoError(t, err)
	child, err := hd.TweakPublicKey(p.publicKey, tweak)
	require.NoError(t, err)

	digest := hd.Digest([]byte("message"))
	sig, err := p.sign(digest, tweak)
	require.NoError(t, err)
	assert.True(t, hd.Verify(child, digest, sig))
	assert.False(t, hd.Verify(p.publicKey, digest, sig))
}

func TestEngine_KeygenOutputsAgree(t *testing.T) {
	p := newPipeline(t, 5, 3)
	outputs, err := p.run(tss.PhaseKeygen, &tss.PhaseInput{Parties: tss.PartyRange(5)})
	require.NoError(t, err)
	require.Len(t, outputs, 5)
	for id, output := range outputs {
		assert.Equal(t, outputs[0].PublicKey, output.PublicKey, id)
		assert.Equal(t, outputs[0].ChainCode, output.ChainCode, id)
	}

	t.Run("invalid threshold", func(t *testing.T) {
		p := newPipeline(t, 2, 3)
		err := p.keygen()
		require.Error(t, err)
		assert.False(t, moduletss.IsAbort(err))
	})
}

// TestEngine_Faults verifies that a faulty participant is named by the
// others in every phase and that the fault applies to a single run.
func TestEngine_Faults(t *testing.T) {
	assertCulprit := func(t *testing.T, err error, phase tss.Phase, culprit tss.PartyID) {
		abort, ok := moduletss.AsIdentifiableAbort(err)
		require.True(t, ok, err)
		assert.Equal(t, phase, abort.Phase)
		assert.Equal(t, culprit, abort.Participant)
	}

	t.Run("keygen", func(t *testing.T) {
		p := newPipeline(t, 3, 2)
		p.engine.InjectFault(tss.PhaseKeygen, 1)
		assertCulprit(t, p.keygen(), tss.PhaseKeygen, 1)
		require.NoError(t, p.keygen())
	})

	t.Run("auxinfo", func(t *testing.T) {
		p := newPipeline(t, 3, 2)
		require.NoError(t, p.keygen())
		p.engine.InjectFault(tss.PhaseAuxInfo, 0)
		assertCulprit(t, p.auxInfo(), tss.PhaseAuxInfo, 0)
		require.NoError(t, p.auxInfo())
	})

	t.Run("presign", func(t *testing.T) {
		p := newPipeline(t, 3, 3)
		require.NoError(t, p.keygen())
		require.NoError(t, p.auxInfo())
		p.engine.InjectFault(tss.PhasePresign, 2)
		assertCulprit(t, p.presign(tss.PartyRange(3)), tss.PhasePresign, 2)
		require.NoError(t, p.presign(tss.PartyRange(3)))
	})

	t.Run("sign", func(t *testing.T) {
		p := newPipeline(t, 3, 3)
		p.prepare(tss.PartyRange(3))
		p.engine.InjectFault(tss.PhaseSign, 1)
		_, err := p.sign(hd.Digest([]byte("m")), nil)
		assertCulprit(t, err, tss.PhaseSign, 1)

		// a fault for a party outside the run is never triggered
		p.engine.InjectFault(tss.PhaseSign, 7)
		sig, err := p.sign(hd.Digest([]byte("m")), nil)
		require.NoError(t, err)
		assert.True(t, hd.Verify(p.publicKey, hd.Digest([]byte("m")), sig))
	})
}

func TestEngine_MissingState(t *testing.T) {
	engine := scripted.New()
	_, err := engine.Start(tss.PhaseAuxInfo, 0, &tss.PhaseInput{Parties: tss.PartyRange(2)})
	require.Error(t, err)

	_, err = engine.Start(tss.PhaseKeygen, 3, &tss.PhaseInput{Parties: tss.PartyRange(2), Threshold: 2})
	require.Error(t, err)
}
