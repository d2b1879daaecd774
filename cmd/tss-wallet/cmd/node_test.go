package cmd

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-sig/pkg/pool"

	"github.com/tsswallet/tss-wallet/module"
	moduletss "github.com/tsswallet/tss-wallet/module/tss"
	"github.com/tsswallet/tss-wallet/module/tss/cmp"
	"github.com/tsswallet/tss-wallet/utils/unittest/scripted"
)

func configureWallet(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("datadir", t.TempDir())
	viper.Set("keyset", "test")
	viper.Set("parties", 3)
	viper.Set("threshold", 2)
	viper.Set("workers", 1)
	viper.Set("retained-jobs", moduletss.DefaultRetainedJobs)

	newProtocolEngine = func() (module.ProtocolEngine, *pool.Pool) {
		return scripted.New(), nil
	}
	t.Cleanup(func() {
		newProtocolEngine = cmpEngine
	})
}

func TestOpenWallet_Persists(t *testing.T) {
	configureWallet(t)
	ctx := context.Background()

	var publicKey []byte
	err := withWallet(func(node *walletNode) error {
		info, err := node.registry.GenerateKeys(ctx, false)
		if err != nil {
			return err
		}
		publicKey = info.PublicKey
		_, err = node.registry.DeriveChild(nil, "child", false)
		return err
	})
	require.NoError(t, err)

	err = withWallet(func(node *walletNode) error {
		keys, err := node.registry.ListKeys()
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.Equal(t, publicKey, keys[0].PublicKey)

		result, err := node.registry.Sign(ctx, []byte("hello"), 1)
		require.NoError(t, err)
		valid, err := node.registry.Verify([]byte("hello"), result.Signature, 1)
		require.NoError(t, err)
		assert.True(t, valid)
		return nil
	})
	require.NoError(t, err)

	err = withWallet(func(node *walletNode) error {
		_, err := node.registry.GenerateKeys(ctx, false)
		return err
	})
	require.ErrorIs(t, err, moduletss.ErrKeySetAlreadyExists)
}

func TestOpenWallet_InvalidConfig(t *testing.T) {
	configureWallet(t)
	viper.Set("threshold", 4)
	_, err := openWallet(noopMetrics())
	require.Error(t, err)

	configureWallet(t)
	viper.Set("parties", 0)
	_, err = openWallet(noopMetrics())
	require.Error(t, err)
}

func TestOpenWallet_RunsCMP(t *testing.T) {
	engine, pl := newProtocolEngine()
	defer pl.TearDown()
	assert.IsType(t, &cmp.Engine{}, engine)
}
