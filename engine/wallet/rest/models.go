package rest

import (
	"encoding/hex"
	"time"

	"github.com/tsswallet/tss-wallet/engine/wallet"
	"github.com/tsswallet/tss-wallet/model/tss"
	moduletss "github.com/tsswallet/tss-wallet/module/tss"
)

type GenerateRequest struct {
	Regenerate bool `json:"regenerate"`
}

type PresignRequest struct {
	KeyIndex uint32 `json:"key_index"`
}

type SignRequest struct {
	Message  string `json:"message"`
	KeyIndex uint32 `json:"key_index"`
}

// VerifyRequest verifies SignatureHex, or the last signature made with
// KeyIndex if SignatureHex is empty.
type VerifyRequest struct {
	Message      string `json:"message"`
	SignatureHex string `json:"signature_hex"`
	KeyIndex     uint32 `json:"key_index"`
}

type DeriveRequest struct {
	Index     *uint32 `json:"index"`
	Label     string  `json:"label"`
	Overwrite bool    `json:"overwrite"`
}

type Key struct {
	Index        uint32 `json:"index"`
	Label        string `json:"label"`
	PublicKeyHex string `json:"public_key_hex"`
	CreatedAt    string `json:"created_at"`
}

func (k *Key) Build(info *wallet.KeyInfo) {
	k.Index = info.Index
	k.Label = info.Label
	k.PublicKeyHex = hex.EncodeToString(info.PublicKey)
	k.CreatedAt = info.CreatedAt.Format(time.RFC3339)
}

type Signature struct {
	KeyIndex     uint32 `json:"key_index"`
	DigestHex    string `json:"digest_hex"`
	SignatureHex string `json:"signature_hex"`
	RHex         string `json:"r"`
	SHex         string `json:"s"`
}

func (s *Signature) Build(result *wallet.SignResult) {
	s.KeyIndex = result.Index
	s.DigestHex = hex.EncodeToString(result.Digest)
	s.SignatureHex = result.Signature.String()
	s.RHex = hex.EncodeToString(result.Signature.R)
	s.SHex = hex.EncodeToString(result.Signature.S)
}

type Verification struct {
	KeyIndex     uint32 `json:"key_index"`
	SignatureHex string `json:"signature_hex"`
	Valid        bool   `json:"valid"`
}

type PhaseState struct {
	Status  string `json:"status"`
	Culprit *int   `json:"culprit,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (p *PhaseState) Build(state tss.PhaseState) {
	p.Status = state.Status.String()
	p.Reason = state.Reason
	if state.Culprit != nil {
		culprit := int(*state.Culprit)
		p.Culprit = &culprit
	}
}

type Status struct {
	KeySet        string                `json:"keyset"`
	Exists        bool                  `json:"exists"`
	PublicKeyHex  string                `json:"public_key_hex,omitempty"`
	Parties       int                   `json:"parties"`
	Threshold     int                   `json:"threshold"`
	Phases        map[string]PhaseState `json:"phases"`
	Presignatures []uint32              `json:"presignatures"`
	ChildKeys     int                   `json:"child_keys"`
}

func (s *Status) Build(status *wallet.Status) {
	s.KeySet = status.KeySet
	s.Exists = status.Exists
	if status.Exists {
		s.PublicKeyHex = hex.EncodeToString(status.PublicKey)
	}
	s.Parties = status.Parties
	s.Threshold = status.Threshold
	s.Phases = make(map[string]PhaseState, len(status.Phases))
	for phase, state := range status.Phases {
		var p PhaseState
		p.Build(state)
		s.Phases[phase.String()] = p
	}
	s.Presignatures = status.Presignatures
	if s.Presignatures == nil {
		s.Presignatures = []uint32{}
	}
	s.ChildKeys = status.ChildKeys
}

// Dashboard is a summary of the wallet for monitoring.
type Dashboard struct {
	Exists                 bool                  `json:"exists"`
	Keys                   int                   `json:"keys"`
	Phases                 map[string]PhaseState `json:"phases"`
	PresignaturesAvailable int                   `json:"presignatures_available"`
	CachedSignatures       int                   `json:"cached_signatures"`
}

type Job struct {
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	Status     string      `json:"status"`
	Error      string      `json:"error,omitempty"`
	Result     interface{} `json:"result,omitempty"`
	CreatedAt  string      `json:"created_at"`
	FinishedAt string      `json:"finished_at,omitempty"`
}

func (j *Job) Build(job moduletss.Job) {
	j.ID = job.ID
	j.Kind = job.Kind
	j.Status = string(job.Status)
	j.CreatedAt = job.CreatedAt.Format(time.RFC3339)
	if !job.Status.Finished() {
		return
	}
	j.FinishedAt = job.FinishedAt.Format(time.RFC3339)
	if job.Err != nil {
		j.Error = job.Err.Error()
		return
	}
	switch result := job.Result.(type) {
	case *wallet.KeyInfo:
		var key Key
		key.Build(result)
		j.Result = key
	case *wallet.SignResult:
		var sig Signature
		sig.Build(result)
		j.Result = sig
	}
}

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Culprit *int   `json:"culprit,omitempty"`
}
