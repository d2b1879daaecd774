package hd

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/tsswallet/tss-wallet/model/tss"
)

var (
	// ErrInvalidTweak is returned in the negligible case where the derived
	// tweak is zero or the child key is the point at infinity.
	ErrInvalidTweak = errors.New("derived tweak is invalid for this index")

	// ErrRootIndex is returned when deriving index 0, which names the root key.
	ErrRootIndex = errors.New("index 0 is reserved for the root key")
)

// Tweak computes the additive tweak of child index:
//
//	HMAC-SHA256(key = chainCode, data = rootPublicKey || uint32be(index)) mod n
//
// The result is a 32-byte big-endian scalar.
func Tweak(rootPublicKey, chainCode []byte, index uint32) ([]byte, error) {
	if len(chainCode) != tss.ChainCodeLength {
		return nil, fmt.Errorf("invalid chain code length %d", len(chainCode))
	}
	if len(rootPublicKey) != tss.PublicKeyLength {
		return nil, fmt.Errorf("invalid root public key length %d", len(rootPublicKey))
	}

	mac := hmac.New(sha256.New, chainCode)
	mac.Write(rootPublicKey)
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)
	mac.Write(idx[:])
	material := mac.Sum(nil)

	var scalar btcec.ModNScalar
	scalar.SetByteSlice(material) // reduces modulo the group order
	if scalar.IsZero() {
		return nil, ErrInvalidTweak
	}
	b := scalar.Bytes()
	return b[:], nil
}

// TweakPublicKey returns the compressed point publicKey + tweak·G.
func TweakPublicKey(publicKey, tweak []byte) ([]byte, error) {
	root, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("could not parse public key: %w", err)
	}
	if len(tweak) != tss.ScalarLength {
		return nil, fmt.Errorf("invalid tweak length %d", len(tweak))
	}
	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(tweak); overflow {
		return nil, fmt.Errorf("tweak is not reduced: %w", ErrInvalidTweak)
	}

	var rootPoint, tweakPoint, child btcec.JacobianPoint
	root.AsJacobian(&rootPoint)
	btcec.ScalarBaseMultNonConst(&scalar, &tweakPoint)
	btcec.AddNonConst(&rootPoint, &tweakPoint, &child)
	if (child.X.IsZero() && child.Y.IsZero()) || child.Z.IsZero() {
		return nil, ErrInvalidTweak
	}
	child.ToAffine()
	return btcec.NewPublicKey(&child.X, &child.Y).SerializeCompressed(), nil
}

// Derive computes the child key of index from the root key-set. The result
// only depends on the root public key, the chain code and the index; label
// is carried as metadata.
func Derive(root *tss.KeySet, index uint32, label string) (*tss.ChildKey, error) {
	if index == tss.RootIndex {
		return nil, ErrRootIndex
	}
	tweak, err := Tweak(root.PublicKey, root.ChainCode, index)
	if err != nil {
		return nil, fmt.Errorf("could not compute tweak for index %d: %w", index, err)
	}
	publicKey, err := TweakPublicKey(root.PublicKey, tweak)
	if err != nil {
		return nil, fmt.Errorf("could not derive public key for index %d: %w", index, err)
	}
	return &tss.ChildKey{
		Index:     index,
		Label:     label,
		PublicKey: publicKey,
		Tweak:     tweak,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NextIndex returns the smallest index >= 1 that is not in used.
func NextIndex(used []*tss.ChildKey) uint32 {
	taken := make(map[uint32]struct{}, len(used))
	for _, key := range used {
		taken[key.Index] = struct{}{}
	}
	next := uint32(1)
	for {
		if _, ok := taken[next]; !ok {
			return next
		}
		next++
	}
}
