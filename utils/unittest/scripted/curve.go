package scripted

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/tsswallet/tss-wallet/model/tss"
)

var errInfinity = errors.New("point at infinity")

func randomScalar() (btcec.ModNScalar, error) {
	sk, err := btcec.NewPrivateKey()
	if err != nil {
		return btcec.ModNScalar{}, fmt.Errorf("could not sample scalar: %w", err)
	}
	return sk.Key, nil
}

func encodeScalar(s *btcec.ModNScalar) []byte {
	b := s.Bytes()
	return b[:]
}

func decodeScalar(b []byte) (btcec.ModNScalar, error) {
	var s btcec.ModNScalar
	if len(b) != tss.ScalarLength {
		return s, fmt.Errorf("invalid scalar length %d", len(b))
	}
	if s.SetByteSlice(b) {
		return s, errors.New("scalar overflows group order")
	}
	return s, nil
}

func isInfinity(p *btcec.JacobianPoint) bool {
	return (p.X.IsZero() && p.Y.IsZero()) || p.Z.IsZero()
}

func encodePoint(p *btcec.JacobianPoint) ([]byte, error) {
	if isInfinity(p) {
		return nil, errInfinity
	}
	var affine btcec.JacobianPoint
	affine.Set(p)
	affine.ToAffine()
	return btcec.NewPublicKey(&affine.X, &affine.Y).SerializeCompressed(), nil
}

func decodePoint(b []byte) (btcec.JacobianPoint, error) {
	var p btcec.JacobianPoint
	pub, err := btcec.ParsePubKey(b)
	if err != nil {
		return p, err
	}
	pub.AsJacobian(&p)
	return p, nil
}

func baseMult(s *btcec.ModNScalar) btcec.JacobianPoint {
	var p btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(s, &p)
	return p
}

func mult(s *btcec.ModNScalar, p *btcec.JacobianPoint) btcec.JacobianPoint {
	var result btcec.JacobianPoint
	btcec.ScalarMultNonConst(s, p, &result)
	return result
}

func add(p, q *btcec.JacobianPoint) btcec.JacobianPoint {
	var result btcec.JacobianPoint
	btcec.AddNonConst(p, q, &result)
	return result
}

func equalPoints(p, q *btcec.JacobianPoint) bool {
	if isInfinity(p) || isInfinity(q) {
		return isInfinity(p) && isInfinity(q)
	}
	var a, b btcec.JacobianPoint
	a.Set(p)
	b.Set(q)
	a.ToAffine()
	b.ToAffine()
	return a.X.Equals(&b.X) && a.Y.Equals(&b.Y)
}

// xCoordinate is the evaluation point of participant id in the sharing polynomial.
func xCoordinate(id tss.PartyID) btcec.ModNScalar {
	var x btcec.ModNScalar
	x.SetInt(uint32(id) + 1)
	return x
}

// evaluate returns f(x) for the polynomial with the given coefficients.
func evaluate(coefficients []btcec.ModNScalar, x *btcec.ModNScalar) btcec.ModNScalar {
	var result btcec.ModNScalar
	for i := len(coefficients) - 1; i >= 0; i-- {
		result.Mul(x).Add(&coefficients[i])
	}
	return result
}

// evaluateCommitments returns f(x)·G from the commitments a_k·G of f.
func evaluateCommitments(commitments []btcec.JacobianPoint, x *btcec.ModNScalar) btcec.JacobianPoint {
	var result btcec.JacobianPoint
	var power btcec.ModNScalar
	power.SetInt(1)
	for i := range commitments {
		term := mult(&power, &commitments[i])
		if i == 0 {
			result = term
		} else {
			result = add(&result, &term)
		}
		power.Mul(x)
	}
	return result
}

// lagrange returns the coefficient of participant self for interpolating at
// zero over the given signers.
func lagrange(self tss.PartyID, signers []tss.PartyID) btcec.ModNScalar {
	xi := xCoordinate(self)
	var num, den btcec.ModNScalar
	num.SetInt(1)
	den.SetInt(1)
	for _, id := range signers {
		if id == self {
			continue
		}
		xj := xCoordinate(id)
		num.Mul(&xj)
		var diff btcec.ModNScalar
		diff.NegateVal(&xi).Add(&xj)
		den.Mul(&diff)
	}
	return *num.Mul(den.InverseNonConst())
}
