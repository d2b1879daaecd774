package scripted

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/tsswallet/tss-wallet/model/messages"
	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/module/hd"
	moduletss "github.com/tsswallet/tss-wallet/module/tss"
)

const (
	chainContributionLength = 32
	auxNonceLength          = 32
)

// party is the local state of one participant. Every phase runs a single
// message round: initial messages are produced on the first Advance, and the
// output once a contribution from every other participant has arrived.
type party struct {
	phase  tss.Phase
	self   tss.PartyID
	input  *tss.PhaseInput
	faulty bool
	round  int
	closed bool

	broadcasts map[tss.PartyID][]byte
	directs    map[tss.PartyID][]byte

	// keygen
	coefficients []btcec.ModNScalar
	chain        []byte
	ownShare     btcec.ModNScalar

	// auxinfo, presign and sign
	aux      *auxShare
	nonce    btcec.ModNScalar
	auxNonce []byte

	// sign
	presig *presignShare
}

func (p *party) Advance(inbound []*messages.ProtocolMessage) ([]*messages.ProtocolMessage, *tss.PartyOutput, error) {
	if p.closed {
		return nil, nil, errors.New("participant state is closed")
	}
	if p.round == 0 {
		if len(inbound) > 0 {
			return nil, nil, moduletss.NewProtocolSequenceErrorf(p.self, p.phase, "received %d messages before starting", len(inbound))
		}
		p.round = 1
		return p.initial()
	}

	for _, msg := range inbound {
		if msg.Round != p.round {
			return nil, nil, moduletss.NewProtocolSequenceErrorf(p.self, p.phase, "received round %d message in round %d", msg.Round, p.round)
		}
		if !tss.Contains(p.input.Parties, msg.From) {
			return nil, nil, moduletss.NewProtocolSequenceErrorf(p.self, p.phase, "received message from non-participant %d", msg.From)
		}
		received := p.directs
		if msg.Broadcast {
			received = p.broadcasts
		}
		if _, ok := received[msg.From]; ok {
			return nil, nil, moduletss.NewIdentifiableAbort(p.phase, msg.From, errors.New("duplicate message"))
		}
		received[msg.From] = msg.Payload
	}

	others := len(p.input.Parties) - 1
	if len(p.broadcasts) < others {
		return nil, nil, nil
	}
	if p.phase == tss.PhaseKeygen && len(p.directs) < others {
		return nil, nil, nil
	}

	var output *tss.PartyOutput
	var err error
	switch p.phase {
	case tss.PhaseKeygen:
		output, err = p.finishKeygen()
	case tss.PhaseAuxInfo:
		output, err = p.finishAuxInfo()
	case tss.PhasePresign:
		output, err = p.finishPresign()
	case tss.PhaseSign:
		output, err = p.finishSign()
	}
	if err != nil {
		return nil, nil, err
	}
	p.round++
	return nil, output, nil
}

func (p *party) Close() {
	p.closed = true
	for i := range p.coefficients {
		p.coefficients[i].Zero()
	}
	p.ownShare.Zero()
	p.nonce.Zero()
}

func (p *party) initial() ([]*messages.ProtocolMessage, *tss.PartyOutput, error) {
	switch p.phase {
	case tss.PhaseKeygen:
		return p.initialKeygen()
	case tss.PhaseAuxInfo:
		return p.initialAuxInfo()
	case tss.PhasePresign:
		return p.initialPresign()
	default:
		return p.initialSign()
	}
}

func (p *party) others() []tss.PartyID {
	others := make([]tss.PartyID, 0, len(p.input.Parties)-1)
	for _, id := range p.input.Parties {
		if id != p.self {
			others = append(others, id)
		}
	}
	return others
}

func (p *party) broadcast(record interface{}) ([]*messages.ProtocolMessage, error) {
	payload, err := tss.Encode(record)
	if err != nil {
		return nil, err
	}
	return []*messages.ProtocolMessage{messages.NewBroadcastMessage(p.self, p.phase, p.round, payload)}, nil
}

func (p *party) abort(culprit tss.PartyID, format string, args ...interface{}) error {
	return moduletss.NewIdentifiableAbort(p.phase, culprit, fmt.Errorf(format, args...))
}

/*** keygen ***/

func (p *party) startKeygen() error {
	threshold := p.input.Threshold
	if threshold < 1 || threshold > len(p.input.Parties) {
		return fmt.Errorf("invalid threshold %d for %d participants", threshold, len(p.input.Parties))
	}
	p.coefficients = make([]btcec.ModNScalar, threshold)
	for i := range p.coefficients {
		c, err := randomScalar()
		if err != nil {
			return err
		}
		p.coefficients[i] = c
	}
	p.chain = make([]byte, chainContributionLength)
	_, err := rand.Read(p.chain)
	if err != nil {
		return fmt.Errorf("could not sample chain contribution: %w", err)
	}
	return nil
}

func (p *party) initialKeygen() ([]*messages.ProtocolMessage, *tss.PartyOutput, error) {
	commitment := keygenCommitment{Chain: p.chain}
	for i := range p.coefficients {
		point := baseMult(&p.coefficients[i])
		encoded, err := encodePoint(&point)
		if err != nil {
			return nil, nil, err
		}
		commitment.Commitments = append(commitment.Commitments, encoded)
	}
	out, err := p.broadcast(commitment)
	if err != nil {
		return nil, nil, err
	}

	x := xCoordinate(p.self)
	p.ownShare = evaluate(p.coefficients, &x)
	for _, id := range p.others() {
		x := xCoordinate(id)
		share := evaluate(p.coefficients, &x)
		if p.faulty {
			var one btcec.ModNScalar
			one.SetInt(1)
			share.Add(&one)
		}
		payload, err := tss.Encode(keygenShare{Share: encodeScalar(&share)})
		if err != nil {
			return nil, nil, err
		}
		out = append(out, messages.NewDirectMessage(p.self, id, p.phase, p.round, payload))
	}
	return out, nil, nil
}

func (p *party) finishKeygen() (*tss.PartyOutput, error) {
	commitments := map[tss.PartyID][]btcec.JacobianPoint{
		p.self: make([]btcec.JacobianPoint, len(p.coefficients)),
	}
	for i := range p.coefficients {
		commitments[p.self][i] = baseMult(&p.coefficients[i])
	}
	chains := map[tss.PartyID][]byte{p.self: p.chain}

	x := xCoordinate(p.self)
	secret := p.ownShare
	for _, id := range p.others() {
		var commitment keygenCommitment
		err := tss.Decode(p.broadcasts[id], &commitment)
		if err != nil {
			return nil, p.abort(id, "undecodable commitment: %v", err)
		}
		if len(commitment.Commitments) != len(p.coefficients) {
			return nil, p.abort(id, "expected %d commitments, got %d", len(p.coefficients), len(commitment.Commitments))
		}
		if len(commitment.Chain) != chainContributionLength {
			return nil, p.abort(id, "invalid chain contribution length %d", len(commitment.Chain))
		}
		points := make([]btcec.JacobianPoint, len(commitment.Commitments))
		for i, encoded := range commitment.Commitments {
			points[i], err = decodePoint(encoded)
			if err != nil {
				return nil, p.abort(id, "invalid commitment %d: %v", i, err)
			}
		}

		var direct keygenShare
		err = tss.Decode(p.directs[id], &direct)
		if err != nil {
			return nil, p.abort(id, "undecodable share: %v", err)
		}
		share, err := decodeScalar(direct.Share)
		if err != nil {
			return nil, p.abort(id, "invalid share: %v", err)
		}
		expected := evaluateCommitments(points, &x)
		actual := baseMult(&share)
		if !equalPoints(&expected, &actual) {
			return nil, p.abort(id, "share does not match commitments")
		}

		secret.Add(&share)
		commitments[id] = points
		chains[id] = commitment.Chain
	}

	result := keyShare{
		ID:           int(p.self),
		Threshold:    p.input.Threshold,
		Share:        encodeScalar(&secret),
		PublicShares: make(map[int][]byte, len(p.input.Parties)),
	}

	var public btcec.JacobianPoint
	hasher := sha256.New()
	for i, id := range p.input.Parties {
		result.Parties = append(result.Parties, int(id))
		if i == 0 {
			public = commitments[id][0]
		} else {
			public = add(&public, &commitments[id][0])
		}
		hasher.Write(chains[id])

		xm := xCoordinate(id)
		var publicShare btcec.JacobianPoint
		for j, dealer := range p.input.Parties {
			term := evaluateCommitments(commitments[dealer], &xm)
			if j == 0 {
				publicShare = term
			} else {
				publicShare = add(&publicShare, &term)
			}
		}
		encoded, err := encodePoint(&publicShare)
		if err != nil {
			return nil, fmt.Errorf("invalid public share of participant %d: %w", id, err)
		}
		result.PublicShares[int(id)] = encoded
	}

	ownPublic := baseMult(&secret)
	encodedOwn, err := encodePoint(&ownPublic)
	if err != nil || !bytes.Equal(encodedOwn, result.PublicShares[int(p.self)]) {
		return nil, fmt.Errorf("%w: local share is inconsistent with public shares", moduletss.ErrPhaseFailed)
	}

	result.PublicKey, err = encodePoint(&public)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregated key is the point at infinity", moduletss.ErrPhaseFailed)
	}
	result.ChainCode = hasher.Sum(nil)

	data, err := tss.Encode(result)
	if err != nil {
		return nil, err
	}
	return &tss.PartyOutput{
		Data:      data,
		PublicKey: result.PublicKey,
		ChainCode: result.ChainCode,
	}, nil
}

/*** auxinfo ***/

func (p *party) startAuxInfo() error {
	var key keyShare
	err := decodeState(p.input.State, p.self, &key)
	if err != nil {
		return err
	}
	p.aux = &auxShare{Key: key}
	p.auxNonce = make([]byte, auxNonceLength)
	_, err = rand.Read(p.auxNonce)
	if err != nil {
		return fmt.Errorf("could not sample aux nonce: %w", err)
	}
	return nil
}

func (p *party) initialAuxInfo() ([]*messages.ProtocolMessage, *tss.PartyOutput, error) {
	nonce := p.auxNonce
	if p.faulty {
		nonce = nonce[:auxNonceLength/2]
	}
	out, err := p.broadcast(auxContribution{Nonce: nonce})
	return out, nil, err
}

func (p *party) finishAuxInfo() (*tss.PartyOutput, error) {
	p.aux.Nonces = map[int][]byte{int(p.self): p.auxNonce}
	for _, id := range p.others() {
		var contribution auxContribution
		err := tss.Decode(p.broadcasts[id], &contribution)
		if err != nil {
			return nil, p.abort(id, "undecodable aux contribution: %v", err)
		}
		if len(contribution.Nonce) != auxNonceLength {
			return nil, p.abort(id, "invalid aux nonce length %d", len(contribution.Nonce))
		}
		p.aux.Nonces[int(id)] = contribution.Nonce
	}
	data, err := tss.Encode(p.aux)
	if err != nil {
		return nil, err
	}
	return &tss.PartyOutput{
		Data:      data,
		PublicKey: p.aux.Key.PublicKey,
	}, nil
}

/*** presign ***/

func (p *party) startPresign() error {
	var aux auxShare
	err := decodeState(p.input.State, p.self, &aux)
	if err != nil {
		return err
	}
	if len(p.input.Parties) < aux.Key.Threshold {
		return fmt.Errorf("%d signers is below threshold %d", len(p.input.Parties), aux.Key.Threshold)
	}
	for _, id := range p.input.Parties {
		if _, ok := aux.Key.PublicShares[int(id)]; !ok {
			return fmt.Errorf("signer %d holds no key share", id)
		}
	}
	p.aux = &aux
	p.nonce, err = randomScalar()
	return err
}

func (p *party) initialPresign() ([]*messages.ProtocolMessage, *tss.PartyOutput, error) {
	point := baseMult(&p.nonce)
	encoded, err := encodePoint(&point)
	if err != nil {
		return nil, nil, err
	}
	if p.faulty {
		encoded[0] = 0x05
	}
	out, err := p.broadcast(presignCommitment{Point: encoded})
	return out, nil, err
}

func (p *party) finishPresign() (*tss.PartyOutput, error) {
	own := baseMult(&p.nonce)
	ownEncoded, err := encodePoint(&own)
	if err != nil {
		return nil, err
	}
	result := presignShare{
		Nonce:  encodeScalar(&p.nonce),
		Points: map[int][]byte{int(p.self): ownEncoded},
	}

	r := own
	for _, id := range p.others() {
		var commitment presignCommitment
		err := tss.Decode(p.broadcasts[id], &commitment)
		if err != nil {
			return nil, p.abort(id, "undecodable nonce commitment: %v", err)
		}
		point, err := decodePoint(commitment.Point)
		if err != nil {
			return nil, p.abort(id, "invalid nonce commitment: %v", err)
		}
		r = add(&r, &point)
		result.Points[int(id)] = commitment.Point
	}
	for _, id := range p.input.Parties {
		result.Signers = append(result.Signers, int(id))
	}
	result.R, err = encodePoint(&r)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregated nonce is the point at infinity", moduletss.ErrPhaseFailed)
	}

	data, err := tss.Encode(result)
	if err != nil {
		return nil, err
	}
	return &tss.PartyOutput{Data: data}, nil
}

/*** sign ***/

func (p *party) startSign() error {
	var aux auxShare
	err := decodeState(p.input.State, p.self, &aux)
	if err != nil {
		return err
	}
	var presig presignShare
	err = decodeState(p.input.Presignatures, p.self, &presig)
	if err != nil {
		return err
	}
	if len(presig.Signers) != len(p.input.Parties) {
		return fmt.Errorf("presignature was made by %d signers, got %d", len(presig.Signers), len(p.input.Parties))
	}
	for i, id := range p.input.Parties {
		if presig.Signers[i] != int(id) {
			return fmt.Errorf("signer %d did not take part in the presignature", id)
		}
	}
	if len(p.input.Digest) != sha256.Size {
		return fmt.Errorf("invalid digest length %d", len(p.input.Digest))
	}
	if len(p.input.Tweak) != 0 && len(p.input.Tweak) != tss.ScalarLength {
		return fmt.Errorf("invalid tweak length %d", len(p.input.Tweak))
	}
	p.nonce, err = decodeScalar(presig.Nonce)
	if err != nil {
		return fmt.Errorf("invalid presignature nonce: %w", err)
	}
	p.aux = &aux
	p.presig = &presig
	return nil
}

func (p *party) weightedShare() (btcec.ModNScalar, error) {
	share, err := decodeScalar(p.aux.Key.Share)
	if err != nil {
		return share, fmt.Errorf("invalid key share: %w", err)
	}
	weight := lagrange(p.self, p.input.Parties)
	share.Mul(&weight)
	return share, nil
}

func (p *party) initialSign() ([]*messages.ProtocolMessage, *tss.PartyOutput, error) {
	share, err := p.weightedShare()
	if err != nil {
		return nil, nil, err
	}
	nonce := p.nonce
	if p.faulty {
		var one btcec.ModNScalar
		one.SetInt(1)
		nonce.Add(&one)
	}
	out, err := p.broadcast(signReveal{Nonce: encodeScalar(&nonce), Share: encodeScalar(&share)})
	return out, nil, err
}

func (p *party) finishSign() (*tss.PartyOutput, error) {
	k := p.nonce
	x, err := p.weightedShare()
	if err != nil {
		return nil, err
	}

	for _, id := range p.others() {
		var reveal signReveal
		err := tss.Decode(p.broadcasts[id], &reveal)
		if err != nil {
			return nil, p.abort(id, "undecodable reveal: %v", err)
		}
		nonce, err := decodeScalar(reveal.Nonce)
		if err != nil {
			return nil, p.abort(id, "invalid nonce: %v", err)
		}
		committed, err := decodePoint(p.presig.Points[int(id)])
		if err != nil {
			return nil, fmt.Errorf("invalid stored nonce commitment of %d: %w", id, err)
		}
		opened := baseMult(&nonce)
		if !equalPoints(&opened, &committed) {
			return nil, p.abort(id, "nonce does not match presignature commitment")
		}

		share, err := decodeScalar(reveal.Share)
		if err != nil {
			return nil, p.abort(id, "invalid key share: %v", err)
		}
		publicShare, err := decodePoint(p.aux.Key.PublicShares[int(id)])
		if err != nil {
			return nil, fmt.Errorf("invalid public share of %d: %w", id, err)
		}
		weight := lagrange(id, p.input.Parties)
		expected := mult(&weight, &publicShare)
		actual := baseMult(&share)
		if !equalPoints(&expected, &actual) {
			return nil, p.abort(id, "key share does not match public share")
		}

		k.Add(&nonce)
		x.Add(&share)
	}

	publicKey := p.aux.Key.PublicKey
	if len(p.input.Tweak) > 0 {
		tweak, err := decodeScalar(p.input.Tweak)
		if err != nil {
			return nil, err
		}
		x.Add(&tweak)
		publicKey, err = hd.TweakPublicKey(publicKey, p.input.Tweak)
		if err != nil {
			return nil, err
		}
	}

	point := baseMult(&k)
	point.ToAffine()
	var r btcec.ModNScalar
	r.SetByteSlice(point.X.Bytes()[:])
	var z btcec.ModNScalar
	z.SetByteSlice(p.input.Digest)

	// s = k^-1 (z + r·x)
	s := x
	s.Mul(&r).Add(&z).Mul(k.InverseNonConst())
	x.Zero()

	signature, err := hd.NewSignature(encodeScalar(&r), encodeScalar(&s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", moduletss.ErrPhaseFailed, err)
	}
	if !hd.Verify(publicKey, p.input.Digest, signature) {
		return nil, fmt.Errorf("%w: combined signature does not verify", moduletss.ErrPhaseFailed)
	}
	return &tss.PartyOutput{Signature: signature}, nil
}

func decodeState(state map[tss.PartyID][]byte, self tss.PartyID, record interface{}) error {
	data, ok := state[self]
	if !ok {
		return fmt.Errorf("no prior state for participant %d", self)
	}
	return tss.Decode(data, record)
}
