package hd

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/utils/unittest"
)

func TestDerive(t *testing.T) {
	root := unittest.KeySetFixture()

	t.Run("derivation is deterministic", func(t *testing.T) {
		first, err := Derive(root, 7, "x")
		require.NoError(t, err)
		second, err := Derive(root, 7, "x")
		require.NoError(t, err)
		assert.Equal(t, first.PublicKey, second.PublicKey)
		assert.Equal(t, first.Tweak, second.Tweak)
		assert.Len(t, first.PublicKey, tss.PublicKeyLength)
	})

	t.Run("label does not affect the key", func(t *testing.T) {
		first, err := Derive(root, 7, "x")
		require.NoError(t, err)
		second, err := Derive(root, 7, "y")
		require.NoError(t, err)
		assert.Equal(t, first.PublicKey, second.PublicKey)
		assert.Equal(t, "y", second.Label)
	})

	t.Run("child keys differ from the root and each other", func(t *testing.T) {
		first, err := Derive(root, 1, "")
		require.NoError(t, err)
		second, err := Derive(root, 2, "")
		require.NoError(t, err)
		assert.NotEqual(t, root.PublicKey, first.PublicKey)
		assert.NotEqual(t, first.PublicKey, second.PublicKey)
	})

	t.Run("index 0 is reserved", func(t *testing.T) {
		_, err := Derive(root, tss.RootIndex, "")
		require.ErrorIs(t, err, ErrRootIndex)
	})

	t.Run("chain code changes the derivation", func(t *testing.T) {
		other := *root
		other.ChainCode = unittest.RandomBytes(tss.ChainCodeLength)
		first, err := Derive(root, 1, "")
		require.NoError(t, err)
		second, err := Derive(&other, 1, "")
		require.NoError(t, err)
		assert.NotEqual(t, first.PublicKey, second.PublicKey)
	})
}

// TestDerive_MatchesPrivateTweak checks that the child public key equals
// (x + tweak)·G for the root secret x.
func TestDerive_MatchesPrivateTweak(t *testing.T) {
	sk, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	root := unittest.KeySetFixture(func(k *tss.KeySet) {
		k.PublicKey = sk.PubKey().SerializeCompressed()
	})

	child, err := Derive(root, 42, "child")
	require.NoError(t, err)

	var tweak btcec.ModNScalar
	require.False(t, tweak.SetByteSlice(child.Tweak))
	childSecret := new(btcec.ModNScalar).Set(&sk.Key).Add(&tweak)
	expected := btcec.PrivKeyFromScalar(childSecret).PubKey().SerializeCompressed()
	assert.Equal(t, expected, child.PublicKey)

	t.Run("signature under the child secret verifies only against the child key", func(t *testing.T) {
		digest := Digest([]byte("hello"))
		raw := ecdsa.Sign(btcec.PrivKeyFromScalar(childSecret), digest)
		compact := raw.Serialize()
		parsed, err := ecdsa.ParseDERSignature(compact)
		require.NoError(t, err)
		require.True(t, parsed.Verify(digest, btcec.PrivKeyFromScalar(childSecret).PubKey()))

		r, s := derComponents(t, compact)
		sig, err := NewSignature(r, s)
		require.NoError(t, err)
		assert.True(t, Verify(child.PublicKey, digest, sig))
		assert.False(t, Verify(root.PublicKey, digest, sig))
		assert.False(t, Verify(child.PublicKey, Digest([]byte("other")), sig))
	})
}

func TestNewSignature_LowS(t *testing.T) {
	var s btcec.ModNScalar
	s.SetInt(5)
	s.Negate() // n - 5, over half order
	sb := s.Bytes()

	sig, err := NewSignature(unittest.RandomBytes(31), sb[:])
	require.NoError(t, err)

	var normalized btcec.ModNScalar
	normalized.SetByteSlice(sig.S)
	assert.False(t, normalized.IsOverHalfOrder())
	assert.Len(t, sig.R, tss.ScalarLength)
}

func TestNextIndex(t *testing.T) {
	assert.Equal(t, uint32(1), NextIndex(nil))
	used := []*tss.ChildKey{{Index: 1}, {Index: 2}, {Index: 4}}
	assert.Equal(t, uint32(3), NextIndex(used))
}

// derComponents extracts the 32-byte r and s values from a DER signature.
func derComponents(t *testing.T, der []byte) ([]byte, []byte) {
	// 0x30 len 0x02 rlen r 0x02 slen s
	require.Equal(t, byte(0x30), der[0])
	rLen := int(der[3])
	r := der[4 : 4+rLen]
	sLen := int(der[5+rLen])
	s := der[6+rLen : 6+rLen+sLen]
	return trimScalar(r), trimScalar(s)
}

func trimScalar(b []byte) []byte {
	for len(b) > 32 && b[0] == 0 {
		b = b[1:]
	}
	return b
}
