package tss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/module"
	"github.com/tsswallet/tss-wallet/module/hd"
	"github.com/tsswallet/tss-wallet/storage"
)

// Orchestrator sequences the phases Keygen -> AuxInfo -> Presign -> Sign for
// one key-set. A phase is skipped when the checkpoint store holds its
// completion marker and a valid artifact; otherwise it is run through the
// PhaseRouter and its output is committed.
//
// Every mutating operation holds the session lock of the key-set for its whole
// duration. Concurrent callers are rejected with ErrSessionBusy.
type Orchestrator struct {
	log     zerolog.Logger
	config  Config
	store   storage.Checkpoints
	router  module.PhaseRouter
	metrics module.TSSMetrics
	states  *stateManager

	// session is held for the duration of every mutating operation
	session sync.Mutex
}

// NewOrchestrator creates the orchestrator of the key-set config.KeySet.
// The caller should run Recover before serving requests.
func NewOrchestrator(
	log zerolog.Logger,
	config Config,
	store storage.Checkpoints,
	router module.PhaseRouter,
	metrics module.TSSMetrics,
) (*Orchestrator, error) {
	err := config.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}

	logger := log.With().
		Str("component", "tss_orchestrator").
		Str("keyset", config.KeySet).
		Logger()

	return &Orchestrator{
		log:     logger,
		config:  config,
		store:   store,
		router:  router,
		metrics: metrics,
		states:  newStateManager(),
	}, nil
}

func (o *Orchestrator) lock() (func(), error) {
	if !o.session.TryLock() {
		return nil, ErrSessionBusy
	}
	return o.session.Unlock, nil
}

/*******************************************************************************
Operations
*******************************************************************************/

// Generate runs Keygen and commits the resulting key-set.
//
// Expected error returns:
//   - ErrKeySetAlreadyExists if a key-set exists and regenerate is false
//   - ErrSessionBusy
//   - phase aborts (see Router.Run)
func (o *Orchestrator) Generate(ctx context.Context, regenerate bool) (*tss.KeySet, error) {
	unlock, err := o.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	existing, err := o.loadKeySet()
	if err != nil && !errors.Is(err, ErrKeySetNotFound) {
		return nil, err
	}
	if existing != nil {
		if !regenerate {
			return nil, ErrKeySetAlreadyExists
		}
		o.log.Info().Msg("regenerating key-set, deleting existing records")
	}

	// without a valid key-set every other record of the key-set is orphaned
	err = o.deleteAll()
	if err != nil {
		return nil, err
	}

	keySet, err := o.runKeygen(ctx)
	if err != nil {
		return nil, err
	}

	o.log.Info().
		Hex("public_key", keySet.PublicKey).
		Int("parties", len(keySet.Shares)).
		Int("threshold", keySet.Threshold).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("key-set generated")
	return keySet, nil
}

// EnsureAuxInfo runs AuxInfo unless it already completed.
//
// Expected error returns:
//   - ErrKeySetNotFound
//   - ErrSessionBusy
//   - phase aborts (see Router.Run)
func (o *Orchestrator) EnsureAuxInfo(ctx context.Context) (*tss.AuxInfo, error) {
	unlock, err := o.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	keySet, err := o.loadKeySet()
	if err != nil {
		return nil, err
	}
	return o.ensureAuxInfo(ctx, keySet)
}

// Presign prepares a presignature for the key at index unless an unconsumed
// one is already stored.
//
// Expected error returns:
//   - ErrKeySetNotFound
//   - ErrChildKeyNotFound if index names no derived key
//   - ErrSessionBusy
//   - phase aborts (see Router.Run)
func (o *Orchestrator) Presign(ctx context.Context, index uint32) (*tss.Presignature, error) {
	unlock, err := o.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	keySet, err := o.loadKeySet()
	if err != nil {
		return nil, err
	}
	aux, err := o.ensureAuxInfo(ctx, keySet)
	if err != nil {
		return nil, err
	}
	return o.ensurePresign(ctx, keySet, aux, index)
}

// SignPrepared signs digest with the stored presignature of the key at index.
// The presignature is consumed before the Sign phase runs, so it is never
// used twice, even when the phase aborts.
//
// Expected error returns:
//   - ErrKeySetNotFound
//   - ErrChildKeyNotFound if index names no derived key
//   - ErrPresignatureExhausted if no unconsumed presignature is stored
//   - ErrSessionBusy
//   - phase aborts (see Router.Run)
func (o *Orchestrator) SignPrepared(ctx context.Context, index uint32, digest []byte) (*tss.Signature, error) {
	unlock, err := o.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	keySet, err := o.loadKeySet()
	if err != nil {
		return nil, err
	}
	aux, err := o.ensureAuxInfo(ctx, keySet)
	if err != nil {
		return nil, err
	}
	return o.signPrepared(ctx, keySet, aux, index, digest)
}

// Sign signs digest with the key at index, running only the phases whose
// checkpoints are missing: AuxInfo if it never ran, and Presign if no
// unconsumed presignature is stored for index.
//
// Expected error returns:
//   - ErrKeySetNotFound
//   - ErrChildKeyNotFound if index names no derived key
//   - ErrSessionBusy
//   - phase aborts (see Router.Run)
func (o *Orchestrator) Sign(ctx context.Context, index uint32, digest []byte) (*tss.Signature, error) {
	unlock, err := o.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	keySet, err := o.loadKeySet()
	if err != nil {
		return nil, err
	}
	aux, err := o.ensureAuxInfo(ctx, keySet)
	if err != nil {
		return nil, err
	}
	_, err = o.ensurePresign(ctx, keySet, aux, index)
	if err != nil {
		return nil, err
	}
	signature, err := o.signPrepared(ctx, keySet, aux, index, digest)
	if err != nil {
		return nil, err
	}

	o.log.Info().
		Uint32("key_index", index).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("message signed")
	return signature, nil
}

// Derive computes the child key at index and stores it. A nil index selects
// the smallest unused index >= 1. Derivation only reads the root key-set; no
// phase is run.
//
// Expected error returns:
//   - ErrKeySetNotFound
//   - ErrReservedIndex for index 0
//   - ErrChildKeyExists if index is in use and overwrite is false
//   - ErrSessionBusy
func (o *Orchestrator) Derive(index *uint32, label string, overwrite bool) (*tss.ChildKey, error) {
	unlock, err := o.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	keySet, err := o.loadKeySet()
	if err != nil {
		return nil, err
	}

	var next uint32
	if index != nil {
		next = *index
	} else {
		children, err := o.store.ChildKeys()
		if err != nil {
			return nil, fmt.Errorf("could not list child keys: %w", err)
		}
		next = hd.NextIndex(children)
	}
	if next == tss.RootIndex {
		return nil, ErrReservedIndex
	}

	child, err := hd.Derive(keySet, next, label)
	if err != nil {
		return nil, fmt.Errorf("could not derive child key %d: %w", next, err)
	}
	if overwrite {
		err = o.store.UpsertChildKey(child)
	} else {
		err = o.store.InsertChildKey(child)
	}
	if errors.Is(err, storage.ErrAlreadyExists) {
		return nil, fmt.Errorf("index %d: %w", next, ErrChildKeyExists)
	}
	if err != nil {
		return nil, err
	}

	o.log.Info().
		Uint32("key_index", next).
		Str("label", label).
		Hex("public_key", child.PublicKey).
		Msg("child key derived")
	return child, nil
}

// RemoveChild deletes the child key at index together with its presignature.
//
// Expected error returns:
//   - ErrReservedIndex for index 0
//   - ErrChildKeyNotFound
//   - ErrSessionBusy
func (o *Orchestrator) RemoveChild(index uint32) error {
	if index == tss.RootIndex {
		return ErrReservedIndex
	}
	unlock, err := o.lock()
	if err != nil {
		return err
	}
	defer unlock()

	err = o.store.RemoveChildKey(index)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("index %d: %w", index, ErrChildKeyNotFound)
	}
	if err != nil {
		return err
	}
	err = o.store.Discard(storage.PresignCheckpoint(index))
	if err != nil {
		return fmt.Errorf("could not discard presignature of removed child key %d: %w", index, err)
	}

	o.log.Info().Uint32("key_index", index).Msg("child key removed")
	return nil
}

// DeleteAll removes every record of the key-set, including child keys.
//
// Expected error returns:
//   - ErrSessionBusy
func (o *Orchestrator) DeleteAll() error {
	unlock, err := o.lock()
	if err != nil {
		return err
	}
	defer unlock()

	err = o.deleteAll()
	if err != nil {
		return err
	}
	o.log.Info().Msg("key-set deleted")
	return nil
}

// Recover validates every completion marker against its artifact. Stale
// markers are discarded so that their phases rerun, and phases with valid
// checkpoints are reported as Completed.
//
// Expected error returns:
//   - ErrSessionBusy
func (o *Orchestrator) Recover() error {
	unlock, err := o.lock()
	if err != nil {
		return err
	}
	defer unlock()

	markers, err := o.store.Markers()
	if err != nil {
		return fmt.Errorf("could not list completion markers: %w", err)
	}

	var result *multierror.Error
	for _, id := range markers {
		err := o.validate(id)
		if err == nil {
			o.states.Restore(id.Phase)
			continue
		}
		err = o.heal(id, err)
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	// aux info and presignatures are useless without a key-set
	keySet, err := o.loadKeySet()
	if err == nil && (keySet.Threshold != o.config.Threshold || len(keySet.Shares) != o.config.Parties) {
		o.log.Warn().
			Int("parties", len(keySet.Shares)).
			Int("threshold", keySet.Threshold).
			Msg("stored key-set differs from the configured parties or threshold, signing follows the key-set")
	}
	if errors.Is(err, ErrKeySetNotFound) && len(markers) > 0 {
		err = o.store.DeleteAll()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not remove orphaned records: %w", err))
		}
		o.states.Reset()
	}

	o.log.Info().Int("markers", len(markers)).Msg("checkpoint recovery finished")
	return result.ErrorOrNil()
}

/*******************************************************************************
Read-only accessors
*******************************************************************************/

func (o *Orchestrator) Config() Config {
	return o.config
}

// KeySet returns the stored key-set.
//
// Expected error returns:
//   - ErrKeySetNotFound
func (o *Orchestrator) KeySet() (*tss.KeySet, error) {
	id := storage.KeySetCheckpoint()
	marked, err := o.store.HasMarker(id)
	if err != nil {
		return nil, fmt.Errorf("could not check marker %s: %w", id, err)
	}
	if !marked {
		return nil, ErrKeySetNotFound
	}
	var keySet tss.KeySet
	err = o.read(id, &keySet)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrCorrupted) {
		return nil, ErrKeySetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &keySet, nil
}

// PublicKey returns the compressed public key of the root (index 0) or of a
// derived child key.
//
// Expected error returns:
//   - ErrKeySetNotFound
//   - ErrChildKeyNotFound
func (o *Orchestrator) PublicKey(index uint32) ([]byte, error) {
	keySet, err := o.KeySet()
	if err != nil {
		return nil, err
	}
	if index == tss.RootIndex {
		return keySet.PublicKey, nil
	}
	child, err := o.childKey(index)
	if err != nil {
		return nil, err
	}
	return child.PublicKey, nil
}

// ChildKeys returns all derived keys ordered by index.
func (o *Orchestrator) ChildKeys() ([]*tss.ChildKey, error) {
	return o.store.ChildKeys()
}

// States returns the state of every phase.
func (o *Orchestrator) States() map[tss.Phase]tss.PhaseState {
	return o.states.All()
}

// Presignatures returns the key indexes that have an unconsumed presignature.
func (o *Orchestrator) Presignatures() ([]uint32, error) {
	markers, err := o.store.Markers()
	if err != nil {
		return nil, err
	}
	var indexes []uint32
	for _, id := range markers {
		if id.Phase == tss.PhasePresign {
			indexes = append(indexes, id.Index)
		}
	}
	return indexes, nil
}

/*******************************************************************************
Phases
*******************************************************************************/

func (o *Orchestrator) runKeygen(ctx context.Context) (*tss.KeySet, error) {
	input := &tss.PhaseInput{
		SessionID: newSessionID(),
		Parties:   tss.PartyRange(o.config.Parties),
		Threshold: o.config.Threshold,
	}
	outputs, err := o.run(ctx, tss.PhaseKeygen, input)
	if err != nil {
		return nil, err
	}

	keySet := &tss.KeySet{
		Threshold: o.config.Threshold,
		Shares:    make(map[tss.PartyID][]byte, len(outputs)),
		CreatedAt: time.Now().UTC(),
	}
	for _, id := range input.Parties {
		output := outputs[id]
		if keySet.PublicKey == nil {
			keySet.PublicKey = output.PublicKey
			keySet.ChainCode = output.ChainCode
		}
		if !bytes.Equal(keySet.PublicKey, output.PublicKey) || !bytes.Equal(keySet.ChainCode, output.ChainCode) {
			return nil, o.fail(tss.PhaseKeygen, fmt.Errorf("%w: participant %d reported a different key-set", ErrPhaseFailed, id))
		}
		keySet.Shares[id] = output.Data
	}

	err = o.commit(storage.KeySetCheckpoint(), keySet)
	if err != nil {
		return nil, err
	}
	return keySet, nil
}

func (o *Orchestrator) ensureAuxInfo(ctx context.Context, keySet *tss.KeySet) (*tss.AuxInfo, error) {
	id := storage.AuxInfoCheckpoint()
	var aux tss.AuxInfo
	found, err := o.load(id, &aux)
	if err != nil {
		return nil, err
	}
	if found {
		o.skip(tss.PhaseAuxInfo)
		return &aux, nil
	}

	input := &tss.PhaseInput{
		SessionID: newSessionID(),
		Parties:   keySet.Parties(),
		Threshold: keySet.Threshold,
		State:     keySet.Shares,
	}
	outputs, err := o.run(ctx, tss.PhaseAuxInfo, input)
	if err != nil {
		return nil, err
	}
	aux = tss.AuxInfo{
		Shares:    make(map[tss.PartyID][]byte, len(outputs)),
		CreatedAt: time.Now().UTC(),
	}
	for id, output := range outputs {
		aux.Shares[id] = output.Data
	}

	// presignatures made with previous auxiliary material are unusable
	err = o.discardPresignatures()
	if err != nil {
		return nil, err
	}
	err = o.commit(id, &aux)
	if err != nil {
		return nil, err
	}
	return &aux, nil
}

func (o *Orchestrator) ensurePresign(ctx context.Context, keySet *tss.KeySet, aux *tss.AuxInfo, index uint32) (*tss.Presignature, error) {
	tweak, err := o.tweak(index)
	if err != nil {
		return nil, err
	}

	id := storage.PresignCheckpoint(index)
	var presig tss.Presignature
	found, err := o.load(id, &presig)
	if err != nil {
		return nil, err
	}
	if found && presig.KeyIndex != index {
		err = o.heal(id, fmt.Errorf("presignature is bound to key index %d", presig.KeyIndex))
		if err != nil {
			return nil, err
		}
		found = false
	}
	if found {
		o.skip(tss.PhasePresign)
		return &presig, nil
	}

	signers := keySet.Parties()[:keySet.Threshold]
	input := &tss.PhaseInput{
		SessionID: newSessionID(),
		Parties:   signers,
		Threshold: keySet.Threshold,
		State:     restrict(aux.Shares, signers),
		Tweak:     tweak,
	}
	outputs, err := o.run(ctx, tss.PhasePresign, input)
	if err != nil {
		return nil, err
	}
	presig = tss.Presignature{
		KeyIndex:  index,
		Signers:   signers,
		Shares:    make(map[tss.PartyID][]byte, len(signers)),
		CreatedAt: time.Now().UTC(),
	}
	for _, signer := range signers {
		output, ok := outputs[signer]
		if !ok {
			return nil, o.fail(tss.PhasePresign, fmt.Errorf("%w: no presignature share from signer %d", ErrPhaseFailed, signer))
		}
		presig.Shares[signer] = output.Data
	}

	err = o.commit(id, &presig)
	if err != nil {
		return nil, err
	}
	return &presig, nil
}

func (o *Orchestrator) signPrepared(ctx context.Context, keySet *tss.KeySet, aux *tss.AuxInfo, index uint32, digest []byte) (*tss.Signature, error) {
	tweak, err := o.tweak(index)
	if err != nil {
		return nil, err
	}
	publicKey := keySet.PublicKey
	if tweak != nil {
		publicKey, err = hd.TweakPublicKey(keySet.PublicKey, tweak)
		if err != nil {
			return nil, err
		}
	}

	id := storage.PresignCheckpoint(index)
	data, err := o.store.Consume(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("key index %d: %w", index, ErrPresignatureExhausted)
	}
	if errors.Is(err, storage.ErrCorrupted) {
		o.healed(id, err)
		return nil, fmt.Errorf("key index %d: %w", index, ErrPresignatureExhausted)
	}
	if err != nil {
		return nil, fmt.Errorf("could not consume presignature: %w", err)
	}
	var presig tss.Presignature
	err = decodeRecord(data, &presig)
	if err == nil && presig.KeyIndex != index {
		err = fmt.Errorf("presignature is bound to key index %d", presig.KeyIndex)
	}
	if err != nil {
		o.healed(id, err)
		return nil, fmt.Errorf("key index %d: %w", index, ErrPresignatureExhausted)
	}

	input := &tss.PhaseInput{
		SessionID:     newSessionID(),
		Parties:       presig.Signers,
		Threshold:     keySet.Threshold,
		State:         restrict(aux.Shares, presig.Signers),
		Presignatures: presig.Shares,
		Tweak:         tweak,
		Digest:        digest,
	}
	outputs, err := o.run(ctx, tss.PhaseSign, input)
	if err != nil {
		return nil, err
	}

	var signature *tss.Signature
	for _, output := range outputs {
		if output.Signature == nil || (signature != nil && !signature.Equal(output.Signature)) {
			return nil, o.fail(tss.PhaseSign, fmt.Errorf("%w: participants disagree on the signature", ErrPhaseFailed))
		}
		signature = output.Signature
	}
	if signature == nil || !hd.Verify(publicKey, digest, signature) {
		return nil, o.fail(tss.PhaseSign, fmt.Errorf("%w: signature does not verify against key index %d", ErrPhaseFailed, index))
	}
	return signature, nil
}

/*******************************************************************************
Helpers
*******************************************************************************/

// run routes one phase and records its state transitions.
func (o *Orchestrator) run(ctx context.Context, phase tss.Phase, input *tss.PhaseInput) (map[tss.PartyID]*tss.PartyOutput, error) {
	err := o.states.Start(phase)
	if err != nil {
		return nil, err
	}
	outputs, err := o.router.Run(ctx, phase, input)
	if err != nil {
		return nil, o.fail(phase, err)
	}
	err = o.states.Complete(phase)
	if err != nil {
		return nil, err
	}
	return outputs, nil
}

// fail records the abort of phase. It returns err.
func (o *Orchestrator) fail(phase tss.Phase, err error) error {
	if o.states.Get(phase).Status != tss.InProgress {
		_ = o.states.Start(phase)
	}
	stateErr := o.states.Abort(phase, err)
	if stateErr != nil {
		o.log.Error().Err(stateErr).Str("phase", phase.String()).Msg("could not record phase abort")
	}
	return err
}

func (o *Orchestrator) skip(phase tss.Phase) {
	o.states.Restore(phase)
	o.metrics.PhaseSkipped(phase)
	o.log.Debug().Str("phase", phase.String()).Msg("phase served from checkpoint")
}

// commit durably stores record as the artifact of id and sets its marker.
func (o *Orchestrator) commit(id storage.CheckpointID, record interface{}) error {
	data, err := tss.Encode(record)
	if err != nil {
		return err
	}
	err = o.store.Commit(id, data)
	if err != nil {
		return fmt.Errorf("could not commit checkpoint %s: %w", id, err)
	}
	return nil
}

// read decodes and validates the artifact of id without consulting its marker.
func (o *Orchestrator) read(id storage.CheckpointID, record validatable) error {
	data, err := o.store.Get(id)
	if err != nil {
		return err
	}
	return decodeRecord(data, record)
}

// load returns true if the marker of id is set and its artifact is valid.
// A marker whose artifact is missing or invalid is discarded, so that the
// phase is run again.
func (o *Orchestrator) load(id storage.CheckpointID, record validatable) (bool, error) {
	marked, err := o.store.HasMarker(id)
	if err != nil {
		return false, fmt.Errorf("could not check marker %s: %w", id, err)
	}
	if !marked {
		return false, nil
	}
	err = o.read(id, record)
	if err == nil {
		return true, nil
	}
	err = o.heal(id, err)
	if err != nil {
		return false, err
	}
	return false, nil
}

func (o *Orchestrator) loadKeySet() (*tss.KeySet, error) {
	var keySet tss.KeySet
	found, err := o.load(storage.KeySetCheckpoint(), &keySet)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrKeySetNotFound
	}
	o.states.Restore(tss.PhaseKeygen)
	return &keySet, nil
}

// validate checks the artifact behind the marker id.
func (o *Orchestrator) validate(id storage.CheckpointID) error {
	switch id.Phase {
	case tss.PhaseKeygen:
		return o.read(id, &tss.KeySet{})
	case tss.PhaseAuxInfo:
		return o.read(id, &tss.AuxInfo{})
	case tss.PhasePresign:
		var presig tss.Presignature
		err := o.read(id, &presig)
		if err != nil {
			return err
		}
		if presig.KeyIndex != id.Index {
			return fmt.Errorf("presignature is bound to key index %d", presig.KeyIndex)
		}
		return nil
	default:
		return fmt.Errorf("unexpected marker for %s", id.Phase)
	}
}

// heal discards the stale marker id whose artifact failed with cause.
func (o *Orchestrator) heal(id storage.CheckpointID, cause error) error {
	err := o.store.Discard(id)
	if err != nil {
		return fmt.Errorf("could not discard stale checkpoint %s: %w", id, err)
	}
	o.healed(id, cause)
	return nil
}

func (o *Orchestrator) healed(id storage.CheckpointID, cause error) {
	o.metrics.CheckpointHealed(id.Phase)
	o.log.Warn().
		Err(cause).
		Str("checkpoint", id.String()).
		Msg("discarded checkpoint without valid artifact, phase will rerun")
}

func (o *Orchestrator) discardPresignatures() error {
	indexes, err := o.Presignatures()
	if err != nil {
		return err
	}
	for _, index := range indexes {
		err = o.store.Discard(storage.PresignCheckpoint(index))
		if err != nil {
			return fmt.Errorf("could not discard presignature %d: %w", index, err)
		}
	}
	return nil
}

func (o *Orchestrator) deleteAll() error {
	err := o.store.DeleteAll()
	if err != nil {
		return fmt.Errorf("could not delete key-set: %w", err)
	}
	o.states.Reset()
	return nil
}

func (o *Orchestrator) childKey(index uint32) (*tss.ChildKey, error) {
	child, err := o.store.ChildKey(index)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("index %d: %w", index, ErrChildKeyNotFound)
	}
	if err != nil {
		return nil, err
	}
	return child, nil
}

// tweak returns the additive tweak of the key at index, nil for the root.
func (o *Orchestrator) tweak(index uint32) ([]byte, error) {
	if index == tss.RootIndex {
		return nil, nil
	}
	child, err := o.childKey(index)
	if err != nil {
		return nil, err
	}
	return child.Tweak, nil
}

type validatable interface {
	Validate() error
}

func decodeRecord(data []byte, record validatable) error {
	err := tss.Decode(data, record)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrCorrupted, err)
	}
	err = record.Validate()
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrCorrupted, err)
	}
	return nil
}

func restrict(shares map[tss.PartyID][]byte, parties []tss.PartyID) map[tss.PartyID][]byte {
	restricted := make(map[tss.PartyID][]byte, len(parties))
	for _, id := range parties {
		restricted[id] = shares[id]
	}
	return restricted
}

func newSessionID() []byte {
	id := uuid.New()
	return id[:]
}
