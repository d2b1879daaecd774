package tss_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/utils/unittest"
)

func TestKeySet_Validate(t *testing.T) {
	require.NoError(t, unittest.KeySetFixture().Validate())

	t.Run("public key", func(t *testing.T) {
		keySet := unittest.KeySetFixture(func(k *tss.KeySet) { k.PublicKey = k.PublicKey[1:] })
		assert.Error(t, keySet.Validate())
	})
	t.Run("chain code", func(t *testing.T) {
		keySet := unittest.KeySetFixture(func(k *tss.KeySet) { k.ChainCode = nil })
		assert.Error(t, keySet.Validate())
	})
	t.Run("threshold", func(t *testing.T) {
		keySet := unittest.KeySetFixture(func(k *tss.KeySet) { k.Threshold = 4 })
		assert.Error(t, keySet.Validate())
	})
	t.Run("empty share", func(t *testing.T) {
		keySet := unittest.KeySetFixture(func(k *tss.KeySet) { k.Shares[2] = nil })
		assert.Error(t, keySet.Validate())
	})
}

func TestKeySet_Parties(t *testing.T) {
	keySet := unittest.KeySetFixture()
	assert.Equal(t, tss.PartyRange(3), keySet.Parties())
}

func TestAuxInfo_Validate(t *testing.T) {
	aux := unittest.AuxInfoFixture()
	require.NoError(t, aux.Validate())

	aux.Shares = nil
	assert.Error(t, aux.Validate())
}

func TestPresignature_Validate(t *testing.T) {
	presig := unittest.PresignatureFixture(1)
	require.NoError(t, presig.Validate())

	presig.Signers = append(presig.Signers, 9)
	assert.Error(t, presig.Validate())

	presig = unittest.PresignatureFixture(1)
	delete(presig.Shares, presig.Signers[0])
	presig.Shares[9] = unittest.RandomBytes(8)
	assert.Error(t, presig.Validate())
}

func TestChildKey_Validate(t *testing.T) {
	require.NoError(t, unittest.ChildKeyFixture(1).Validate())
	assert.Error(t, unittest.ChildKeyFixture(tss.RootIndex).Validate())

	child := unittest.ChildKeyFixture(2)
	child.Tweak = child.Tweak[:16]
	assert.Error(t, child.Validate())
}

func TestSignature(t *testing.T) {
	raw := unittest.RandomBytes(2 * tss.ScalarLength)
	sig, err := tss.SignatureFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, sig.Bytes())
	assert.Len(t, sig.String(), 4*tss.ScalarLength)

	other, err := tss.SignatureFromBytes(sig.Bytes())
	require.NoError(t, err)
	assert.True(t, sig.Equal(other))
	other.S[0] ^= 0xff
	assert.False(t, sig.Equal(other))
	assert.False(t, sig.Equal(nil))

	_, err = tss.SignatureFromBytes(raw[1:])
	assert.Error(t, err)
}

func TestCodec(t *testing.T) {
	keySet := unittest.KeySetFixture(func(k *tss.KeySet) { k.CreatedAt = time.Unix(1700000000, 0).UTC() })
	first, err := tss.Encode(keySet)
	require.NoError(t, err)
	second, err := tss.Encode(keySet)
	require.NoError(t, err)
	assert.Equal(t, first, second, "encoding must be deterministic")

	var decoded tss.KeySet
	require.NoError(t, tss.Decode(first, &decoded))
	assert.Equal(t, keySet.PublicKey, decoded.PublicKey)
	assert.Equal(t, keySet.Shares, decoded.Shares)
	assert.True(t, keySet.CreatedAt.Equal(decoded.CreatedAt))

	assert.Error(t, tss.Decode([]byte{0xff}, &decoded))
}
