package tss

import (
	"sort"
)

// PhaseInput is everything a protocol engine needs to start one phase for a
// set of participants. State and Presignatures are keyed by participant and
// each participant only ever reads its own entry.
type PhaseInput struct {
	// SessionID binds all messages of one phase run together.
	SessionID []byte
	// Parties are the participants running this phase, in routing order.
	Parties []PartyID
	// Threshold is the number of participants required to sign.
	Threshold int
	// State is the prior phase artifact of each participant (key share for
	// AuxInfo, auxiliary material for Presign and Sign).
	State map[PartyID][]byte
	// Presignatures holds the consumed presignature shares for Sign.
	Presignatures map[PartyID][]byte
	// Tweak is the 32-byte additive key adjustment for child keys; nil for the root.
	Tweak []byte
	// Digest is the 32-byte message digest for Sign.
	Digest []byte
}

// PartyOutput is the terminal result one participant reports for a phase.
type PartyOutput struct {
	// Data is the opaque engine-owned artifact of the participant.
	Data []byte
	// PublicKey is the SEC1 compressed aggregated key (Keygen, AuxInfo).
	PublicKey []byte
	// ChainCode is the shared chain code (Keygen).
	ChainCode []byte
	// Signature is set by the Sign phase.
	Signature *Signature
}

// Contains returns true if id is one of ids.
func Contains(ids []PartyID, id PartyID) bool {
	for _, other := range ids {
		if other == id {
			return true
		}
	}
	return false
}

// PartyRange returns the identities 0..n-1.
func PartyRange(n int) []PartyID {
	ids := make([]PartyID, n)
	for i := range ids {
		ids[i] = PartyID(i)
	}
	return ids
}

func sortedParties(shares map[PartyID][]byte) []PartyID {
	ids := make([]PartyID, 0, len(shares))
	for id := range shares {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
