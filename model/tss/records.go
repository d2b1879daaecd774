package tss

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const (
	// PublicKeyLength is the size of a SEC1 compressed secp256k1 point.
	PublicKeyLength = 33
	// ChainCodeLength is the size of the chain code produced by key generation.
	ChainCodeLength = 32
	// ScalarLength is the size of an encoded secp256k1 scalar.
	ScalarLength = 32

	// RootIndex is the index under which the aggregated root key is listed.
	RootIndex uint32 = 0
	// RootLabel is the label reported for the root key.
	RootLabel = "Root Key"
)

var errEmptyShares = errors.New("no participant shares")

// KeySet is the output of a successful key generation. It holds the aggregated
// public key, the chain code used for child derivation and the opaque,
// engine-owned secret share of every participant.
//
// CAUTION: Shares is confidential material.
type KeySet struct {
	PublicKey []byte
	ChainCode []byte
	Threshold int
	Shares    map[PartyID][]byte
	CreatedAt time.Time
}

// Validate checks the structure of the key-set record.
func (k *KeySet) Validate() error {
	if len(k.PublicKey) != PublicKeyLength {
		return fmt.Errorf("invalid public key length %d", len(k.PublicKey))
	}
	if len(k.ChainCode) != ChainCodeLength {
		return fmt.Errorf("invalid chain code length %d", len(k.ChainCode))
	}
	if k.Threshold < 1 || k.Threshold > len(k.Shares) {
		return fmt.Errorf("invalid threshold %d for %d shares", k.Threshold, len(k.Shares))
	}
	return validateShares(k.Shares)
}

// Parties returns the ordered participant identities of the key-set.
func (k *KeySet) Parties() []PartyID {
	return sortedParties(k.Shares)
}

// AuxInfo is the per-participant auxiliary material produced by the AuxInfo phase.
//
// CAUTION: Shares is confidential material.
type AuxInfo struct {
	Shares    map[PartyID][]byte
	CreatedAt time.Time
}

func (a *AuxInfo) Validate() error {
	return validateShares(a.Shares)
}

// Presignature is single-use precomputed signing material bound to one key
// index. It must be consumed by exactly one Sign phase.
//
// CAUTION: Shares is confidential material.
type Presignature struct {
	KeyIndex  uint32
	Signers   []PartyID
	Shares    map[PartyID][]byte
	CreatedAt time.Time
}

func (p *Presignature) Validate() error {
	if len(p.Signers) != len(p.Shares) {
		return fmt.Errorf("presignature has %d signers but %d shares", len(p.Signers), len(p.Shares))
	}
	for _, id := range p.Signers {
		if _, ok := p.Shares[id]; !ok {
			return fmt.Errorf("missing presignature share of participant %d", id)
		}
	}
	return validateShares(p.Shares)
}

// ChildKey is a key derived from the root key-set by an additive tweak.
type ChildKey struct {
	Index     uint32
	Label     string
	PublicKey []byte
	Tweak     []byte
	CreatedAt time.Time
}

func (c *ChildKey) Validate() error {
	if c.Index == RootIndex {
		return errors.New("child index 0 is reserved for the root key")
	}
	if len(c.PublicKey) != PublicKeyLength {
		return fmt.Errorf("invalid child public key length %d", len(c.PublicKey))
	}
	if len(c.Tweak) != ScalarLength {
		return fmt.Errorf("invalid tweak length %d", len(c.Tweak))
	}
	return nil
}

// Signature is a standard two-component ECDSA signature with 32-byte
// big-endian R and S.
type Signature struct {
	R []byte
	S []byte
}

// Bytes returns the 64-byte R||S encoding.
func (s *Signature) Bytes() []byte {
	b := make([]byte, 0, 2*ScalarLength)
	b = append(b, s.R...)
	return append(b, s.S...)
}

func (s *Signature) String() string {
	return hex.EncodeToString(s.Bytes())
}

// SignatureFromBytes parses the R||S encoding.
func SignatureFromBytes(b []byte) (*Signature, error) {
	if len(b) != 2*ScalarLength {
		return nil, fmt.Errorf("invalid signature length %d", len(b))
	}
	return &Signature{
		R: append([]byte(nil), b[:ScalarLength]...),
		S: append([]byte(nil), b[ScalarLength:]...),
	}, nil
}

// Equal reports whether both signatures have the same components.
func (s *Signature) Equal(other *Signature) bool {
	if other == nil {
		return false
	}
	return bytes.Equal(s.R, other.R) && bytes.Equal(s.S, other.S)
}

func validateShares(shares map[PartyID][]byte) error {
	if len(shares) == 0 {
		return errEmptyShares
	}
	for id, share := range shares {
		if len(share) == 0 {
			return fmt.Errorf("empty share for participant %d", id)
		}
	}
	return nil
}
