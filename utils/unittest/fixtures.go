package unittest

import (
	crand "crypto/rand"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/tsswallet/tss-wallet/model/tss"
)

func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := crand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// PublicKeyFixture returns the compressed encoding of a random secp256k1 key.
func PublicKeyFixture() []byte {
	sk, err := btcec.NewPrivateKey()
	if err != nil {
		panic(err)
	}
	return sk.PubKey().SerializeCompressed()
}

func SharesFixture(parties []tss.PartyID) map[tss.PartyID][]byte {
	shares := make(map[tss.PartyID][]byte, len(parties))
	for _, id := range parties {
		shares[id] = RandomBytes(64)
	}
	return shares
}

func KeySetFixture(opts ...func(*tss.KeySet)) *tss.KeySet {
	keySet := &tss.KeySet{
		PublicKey: PublicKeyFixture(),
		ChainCode: RandomBytes(tss.ChainCodeLength),
		Threshold: 3,
		Shares:    SharesFixture(tss.PartyRange(3)),
		CreatedAt: time.Now().UTC(),
	}
	for _, apply := range opts {
		apply(keySet)
	}
	return keySet
}

func AuxInfoFixture() *tss.AuxInfo {
	return &tss.AuxInfo{
		Shares:    SharesFixture(tss.PartyRange(3)),
		CreatedAt: time.Now().UTC(),
	}
}

func PresignatureFixture(index uint32) *tss.Presignature {
	signers := tss.PartyRange(3)
	return &tss.Presignature{
		KeyIndex:  index,
		Signers:   signers,
		Shares:    SharesFixture(signers),
		CreatedAt: time.Now().UTC(),
	}
}

func ChildKeyFixture(index uint32, opts ...func(*tss.ChildKey)) *tss.ChildKey {
	child := &tss.ChildKey{
		Index:     index,
		Label:     "fixture",
		PublicKey: PublicKeyFixture(),
		Tweak:     RandomBytes(tss.ScalarLength),
		CreatedAt: time.Now().UTC(),
	}
	for _, apply := range opts {
		apply(child)
	}
	return child
}

func WithLabel(label string) func(*tss.ChildKey) {
	return func(c *tss.ChildKey) {
		c.Label = label
	}
}
