package hd

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/tsswallet/tss-wallet/model/tss"
)

// Digest returns the SHA-256 digest that is signed for message.
func Digest(message []byte) []byte {
	sum := sha256.Sum256(message)
	return sum[:]
}

// NewSignature builds a signature from big-endian r and s, normalizing s to
// the lower half of the group order.
func NewSignature(r, s []byte) (*tss.Signature, error) {
	var rs, ss btcec.ModNScalar
	if len(r) > tss.ScalarLength || len(s) > tss.ScalarLength {
		return nil, fmt.Errorf("signature component too long")
	}
	if rs.SetByteSlice(r) || ss.SetByteSlice(s) {
		return nil, fmt.Errorf("signature component not reduced")
	}
	if rs.IsZero() || ss.IsZero() {
		return nil, fmt.Errorf("signature component is zero")
	}
	if ss.IsOverHalfOrder() {
		ss.Negate()
	}
	rb, sb := rs.Bytes(), ss.Bytes()
	return &tss.Signature{R: rb[:], S: sb[:]}, nil
}

// Verify checks sig over digest against the compressed publicKey.
func Verify(publicKey, digest []byte, sig *tss.Signature) bool {
	if sig == nil || len(sig.R) != tss.ScalarLength || len(sig.S) != tss.ScalarLength {
		return false
	}
	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	var r, s btcec.ModNScalar
	if r.SetByteSlice(sig.R) || s.SetByteSlice(sig.S) {
		return false
	}
	return ecdsa.NewSignature(&r, &s).Verify(digest, pub)
}
