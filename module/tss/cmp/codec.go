package cmp

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/multi-party-sig/pkg/ecdsa"
	"github.com/taurusgroup/multi-party-sig/protocols/cmp"

	"github.com/tsswallet/tss-wallet/model/tss"
)

func decodeConfig(data []byte) (*cmp.Config, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty key share")
	}
	config := cmp.EmptyConfig(group)
	err := cbor.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}
	return config, nil
}

func decodePresignature(data []byte) (*ecdsa.PreSignature, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty presignature share")
	}
	presig := ecdsa.EmptyPreSignature(group)
	err := cbor.Unmarshal(data, presig)
	if err != nil {
		return nil, err
	}
	return presig, nil
}

// chainCode is derived from the random identifier all parties agreed on
// during keygen.
func chainCode(config *cmp.Config) []byte {
	sum := sha256.Sum256([]byte(config.RID))
	return sum[:]
}

// applyTweak shifts the key share and every public share by tweak, so that
// the config signs for the child key P + tweak·G. Lagrange coefficients sum to
// one, hence adding the tweak to every share adds it once to the secret.
func applyTweak(config *cmp.Config, tweak []byte) error {
	if len(tweak) == 0 {
		return nil
	}
	if len(tweak) != tss.ScalarLength {
		return fmt.Errorf("invalid tweak length %d", len(tweak))
	}
	scalar := group.NewScalar()
	err := scalar.UnmarshalBinary(tweak)
	if err != nil {
		return fmt.Errorf("invalid tweak: %w", err)
	}

	config.ECDSA = group.NewScalar().Set(config.ECDSA).Add(scalar)
	for _, public := range config.Public {
		public.ECDSA = scalar.ActOnBase().Add(public.ECDSA)
	}
	return nil
}
