package cmp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/module/hd"
	"github.com/tsswallet/tss-wallet/module/metrics"
	moduletss "github.com/tsswallet/tss-wallet/module/tss"
	"github.com/tsswallet/tss-wallet/module/tss/cmp"
	"github.com/tsswallet/tss-wallet/storage/inmemory"
	"github.com/tsswallet/tss-wallet/utils/unittest"
)

// TestEngine_EndToEnd runs every phase with the CMP protocol, including a
// signature under a derived child key. Paillier key generation makes it slow.
func TestEngine_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping CMP end-to-end run in short mode")
	}

	config := moduletss.Config{KeySet: "cmp", Parties: 2, Threshold: 2}
	collector := metrics.NewNoopCollector()
	router := moduletss.NewRouter(unittest.Logger(), cmp.New(nil), collector)
	orchestrator, err := moduletss.NewOrchestrator(unittest.Logger(), config, inmemory.NewCheckpoints(), router, collector)
	require.NoError(t, err)

	ctx := context.Background()
	keySet, err := orchestrator.Generate(ctx, false)
	require.NoError(t, err)
	require.Len(t, keySet.PublicKey, tss.PublicKeyLength)
	require.Len(t, keySet.ChainCode, 32)

	digest := hd.Digest([]byte("cmp"))
	sig, err := orchestrator.Sign(ctx, tss.RootIndex, digest)
	require.NoError(t, err)
	assert.True(t, hd.Verify(keySet.PublicKey, digest, sig))

	child, err := orchestrator.Derive(nil, "child", false)
	require.NoError(t, err)
	sig, err = orchestrator.Sign(ctx, child.Index, digest)
	require.NoError(t, err)
	assert.True(t, hd.Verify(child.PublicKey, digest, sig))
	assert.False(t, hd.Verify(keySet.PublicKey, digest, sig))
}

func TestEngine_Start(t *testing.T) {
	engine := cmp.New(nil)

	t.Run("unknown participant", func(t *testing.T) {
		_, err := engine.Start(tss.PhaseKeygen, 5, &tss.PhaseInput{Parties: tss.PartyRange(2), Threshold: 2})
		require.Error(t, err)
	})

	t.Run("invalid threshold", func(t *testing.T) {
		_, err := engine.Start(tss.PhaseKeygen, 0, &tss.PhaseInput{Parties: tss.PartyRange(2), Threshold: 3})
		require.Error(t, err)
	})

	t.Run("missing key share", func(t *testing.T) {
		_, err := engine.Start(tss.PhaseAuxInfo, 0, &tss.PhaseInput{Parties: tss.PartyRange(2), Threshold: 2})
		require.Error(t, err)
	})

	for _, phase := range tss.Phases {
		assert.Positive(t, engine.MaxRounds(phase), phase.String())
	}
}
