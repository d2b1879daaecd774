package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/module/hd"
	moduletss "github.com/tsswallet/tss-wallet/module/tss"
)

// Job kinds started by the registry.
const (
	JobKindKeygen = "keygen"
	JobKindSign   = "sign"
)

// KeyInfo describes the root key or a derived child key.
type KeyInfo struct {
	Index     uint32
	Label     string
	PublicKey []byte
	CreatedAt time.Time
}

// Status reports whether a key-set exists together with the state of every
// phase and the key indexes that hold an unconsumed presignature.
type Status struct {
	KeySet        string
	Exists        bool
	PublicKey     []byte
	Parties       int
	Threshold     int
	Phases        map[tss.Phase]tss.PhaseState
	Presignatures []uint32
	ChildKeys     int
}

// SignResult is the result of a signing job.
type SignResult struct {
	Index     uint32
	Digest    []byte
	Signature *tss.Signature
}

// Registry is the boundary of the wallet: every operation maps onto one
// orchestrator operation. It performs no cryptography beyond hashing
// messages and verifying signatures.
type Registry struct {
	log          zerolog.Logger
	orchestrator *moduletss.Orchestrator
	jobs         *moduletss.Jobs
}

func NewRegistry(log zerolog.Logger, orchestrator *moduletss.Orchestrator, jobs *moduletss.Jobs) *Registry {
	return &Registry{
		log:          log.With().Str("component", "wallet_registry").Logger(),
		orchestrator: orchestrator,
		jobs:         jobs,
	}
}

// GenerateKeys creates the key-set. With regenerate set, an existing key-set
// and everything derived from it is deleted first.
func (r *Registry) GenerateKeys(ctx context.Context, regenerate bool) (*KeyInfo, error) {
	keySet, err := r.orchestrator.Generate(ctx, regenerate)
	if err != nil {
		return nil, err
	}
	return rootInfo(keySet), nil
}

// RunAuxInfo runs AuxInfo unless it already completed.
func (r *Registry) RunAuxInfo(ctx context.Context) error {
	_, err := r.orchestrator.EnsureAuxInfo(ctx)
	return err
}

// RunPresign prepares a presignature for the key at index.
func (r *Registry) RunPresign(ctx context.Context, index uint32) error {
	_, err := r.orchestrator.Presign(ctx, index)
	return err
}

// ListKeys returns the root key followed by all child keys ordered by index.
func (r *Registry) ListKeys() ([]KeyInfo, error) {
	keySet, err := r.orchestrator.KeySet()
	if err != nil {
		return nil, err
	}
	children, err := r.orchestrator.ChildKeys()
	if err != nil {
		return nil, fmt.Errorf("could not list child keys: %w", err)
	}
	keys := make([]KeyInfo, 0, len(children)+1)
	keys = append(keys, *rootInfo(keySet))
	for _, child := range children {
		keys = append(keys, *childInfo(child))
	}
	return keys, nil
}

// DeriveChild derives and stores the child key at index, or at the smallest
// unused index if index is nil.
func (r *Registry) DeriveChild(index *uint32, label string, overwrite bool) (*KeyInfo, error) {
	child, err := r.orchestrator.Derive(index, label, overwrite)
	if err != nil {
		return nil, err
	}
	return childInfo(child), nil
}

// Sign hashes message with SHA-256 and signs the digest with the key at index.
func (r *Registry) Sign(ctx context.Context, message []byte, index uint32) (*SignResult, error) {
	digest := hd.Digest(message)
	signature, err := r.orchestrator.Sign(ctx, index, digest)
	if err != nil {
		return nil, err
	}
	return &SignResult{
		Index:     index,
		Digest:    digest,
		Signature: signature,
	}, nil
}

// Verify checks signature over the SHA-256 digest of message against the key
// at index.
//
// Expected error returns:
//   - moduletss.ErrKeySetNotFound
//   - moduletss.ErrChildKeyNotFound
func (r *Registry) Verify(message []byte, signature *tss.Signature, index uint32) (bool, error) {
	publicKey, err := r.orchestrator.PublicKey(index)
	if err != nil {
		return false, err
	}
	return hd.Verify(publicKey, hd.Digest(message), signature), nil
}

// DeleteChild removes the child key at index.
func (r *Registry) DeleteChild(index uint32) error {
	return r.orchestrator.RemoveChild(index)
}

// DeleteAll removes the key-set with all child keys and checkpoints.
func (r *Registry) DeleteAll() error {
	return r.orchestrator.DeleteAll()
}

func (r *Registry) Status() (*Status, error) {
	config := r.orchestrator.Config()
	status := &Status{
		KeySet:    config.KeySet,
		Parties:   config.Parties,
		Threshold: config.Threshold,
		Phases:    r.orchestrator.States(),
	}

	keySet, err := r.orchestrator.KeySet()
	if errors.Is(err, moduletss.ErrKeySetNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, err
	}
	status.Exists = true
	status.PublicKey = keySet.PublicKey

	status.Presignatures, err = r.orchestrator.Presignatures()
	if err != nil {
		return nil, fmt.Errorf("could not list presignatures: %w", err)
	}
	children, err := r.orchestrator.ChildKeys()
	if err != nil {
		return nil, fmt.Errorf("could not list child keys: %w", err)
	}
	status.ChildKeys = len(children)
	return status, nil
}

// StartGenerate runs GenerateKeys as a background job and returns its ID.
func (r *Registry) StartGenerate(regenerate bool) (string, error) {
	return r.jobs.Start(JobKindKeygen, func(ctx context.Context) (interface{}, error) {
		return r.GenerateKeys(ctx, regenerate)
	})
}

// StartSign runs Sign as a background job and returns its ID.
func (r *Registry) StartSign(message []byte, index uint32) (string, error) {
	message = append([]byte(nil), message...)
	return r.jobs.Start(JobKindSign, func(ctx context.Context) (interface{}, error) {
		return r.Sign(ctx, message, index)
	})
}

// Job returns the state of a background job.
func (r *Registry) Job(id string) (moduletss.Job, error) {
	return r.jobs.Status(id)
}

// CancelJob stops a background job. A running phase is aborted.
func (r *Registry) CancelJob(id string) error {
	err := r.jobs.Cancel(id)
	if err != nil {
		return err
	}
	r.log.Info().Str("job_id", id).Msg("job cancelled")
	return nil
}

func rootInfo(keySet *tss.KeySet) *KeyInfo {
	return &KeyInfo{
		Index:     tss.RootIndex,
		Label:     tss.RootLabel,
		PublicKey: keySet.PublicKey,
		CreatedAt: keySet.CreatedAt,
	}
}

func childInfo(child *tss.ChildKey) *KeyInfo {
	return &KeyInfo{
		Index:     child.Index,
		Label:     child.Label,
		PublicKey: child.PublicKey,
		CreatedAt: child.CreatedAt,
	}
}
