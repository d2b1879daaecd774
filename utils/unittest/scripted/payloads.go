package scripted

// keygenCommitment is broadcast in the first keygen round: the Feldman
// commitments a_k·G of the sender's sharing polynomial and its chain code
// contribution.
type keygenCommitment struct {
	Commitments [][]byte
	Chain       []byte
}

// keygenShare is sent directly to one participant: f_sender(x_receiver).
type keygenShare struct {
	Share []byte
}

// keyShare is the keygen output of one participant.
type keyShare struct {
	ID           int
	Threshold    int
	Parties      []int
	Share        []byte
	PublicKey    []byte
	PublicShares map[int][]byte
	ChainCode    []byte
}

type auxContribution struct {
	Nonce []byte
}

// auxShare is the AuxInfo output of one participant. It embeds the key share
// so that later phases only need the auxiliary record.
type auxShare struct {
	Key    keyShare
	Nonces map[int][]byte
}

type presignCommitment struct {
	Point []byte
}

// presignShare is the presignature share of one signer.
type presignShare struct {
	Signers []int
	Nonce   []byte
	Points  map[int][]byte
	R       []byte
}

// signReveal opens the signer's nonce and its Lagrange weighted key share.
type signReveal struct {
	Nonce []byte
	Share []byte
}
