package operation

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v2"

	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/storage"
)

// Artifact is the stored form of a checkpoint artifact. The checksum is used
// to validate the artifact structurally before its marker is trusted.
type Artifact struct {
	Data     []byte
	Checksum []byte
	StoredAt time.Time
}

// NewArtifact wraps data with its checksum.
func NewArtifact(data []byte) *Artifact {
	sum := sha256.Sum256(data)
	return &Artifact{
		Data:     data,
		Checksum: sum[:],
		StoredAt: time.Now().UTC(),
	}
}

// Validate returns storage.ErrCorrupted if the data does not match its checksum.
func (a *Artifact) Validate() error {
	sum := sha256.Sum256(a.Data)
	if len(a.Data) == 0 || subtle.ConstantTimeCompare(sum[:], a.Checksum) != 1 {
		return storage.ErrCorrupted
	}
	return nil
}

// childKeyEntity is the stored form of a tss.ChildKey.
type childKeyEntity struct {
	Index     uint32
	Label     string
	PublicKey []byte
	Tweak     []byte
	CreatedAt time.Time
}

func toChildKeyEntity(key *tss.ChildKey) *childKeyEntity {
	return &childKeyEntity{
		Index:     key.Index,
		Label:     key.Label,
		PublicKey: key.PublicKey,
		Tweak:     key.Tweak,
		CreatedAt: key.CreatedAt,
	}
}

func (e *childKeyEntity) model() *tss.ChildKey {
	return &tss.ChildKey{
		Index:     e.Index,
		Label:     e.Label,
		PublicKey: e.PublicKey,
		Tweak:     e.Tweak,
		CreatedAt: e.CreatedAt,
	}
}

// UpsertArtifact stores the artifact of a checkpoint, replacing a previous one.
//
// CAUTION: artifacts contain confidential key material. They are only ever
// written through storage.Checkpoints.
func UpsertArtifact(keySet string, phase tss.Phase, index uint32, artifact *Artifact) func(*badger.Txn) error {
	return upsert(checkpointKey(codeCheckpointArtifact, keySet, phase, index), artifact)
}

// RetrieveArtifact retrieves and validates the artifact of a checkpoint.
// Error returns: storage.ErrNotFound, storage.ErrCorrupted
func RetrieveArtifact(keySet string, phase tss.Phase, index uint32, artifact *Artifact) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		err := retrieve(checkpointKey(codeCheckpointArtifact, keySet, phase, index), artifact)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err != nil {
			return fmt.Errorf("%w: %v", storage.ErrCorrupted, err)
		}
		return artifact.Validate()
	}
}

// OverwriteArtifact replaces the stored artifact bytes with zeros.
func OverwriteArtifact(keySet string, phase tss.Phase, index uint32) func(*badger.Txn) error {
	return overwrite(checkpointKey(codeCheckpointArtifact, keySet, phase, index))
}

// RemoveArtifact deletes the artifact of a checkpoint, if present.
func RemoveArtifact(keySet string, phase tss.Phase, index uint32) func(*badger.Txn) error {
	return forget(checkpointKey(codeCheckpointArtifact, keySet, phase, index))
}

// SetMarker sets the completion marker of a checkpoint. The artifact must
// already be stored.
// Error returns: storage.ErrNotFound if the artifact is missing
func SetMarker(keySet string, phase tss.Phase, index uint32) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var exists bool
		err := check(checkpointKey(codeCheckpointArtifact, keySet, phase, index), &exists)(tx)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("no artifact for %s/%d: %w", phase, index, storage.ErrNotFound)
		}
		return upsert(checkpointKey(codeCheckpointMarker, keySet, phase, index), true)(tx)
	}
}

// CheckMarker checks whether the completion marker of a checkpoint is set.
func CheckMarker(keySet string, phase tss.Phase, index uint32, exists *bool) func(*badger.Txn) error {
	return check(checkpointKey(codeCheckpointMarker, keySet, phase, index), exists)
}

// RemoveMarker clears the completion marker of a checkpoint, if set.
func RemoveMarker(keySet string, phase tss.Phase, index uint32) func(*badger.Txn) error {
	return forget(checkpointKey(codeCheckpointMarker, keySet, phase, index))
}

// LookupMarkers collects the phase and index of every set marker of the key-set.
func LookupMarkers(keySet string, markers *[]storage.CheckpointID) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var keys [][]byte
		err := collectKeys(makePrefix(codeCheckpointMarker, keySet), &keys)(tx)
		if err != nil {
			return err
		}
		for _, key := range keys {
			phase, index, err := parseCheckpointKey(key)
			if err != nil {
				return err
			}
			*markers = append(*markers, storage.CheckpointID{Phase: phase, Index: index})
		}
		return nil
	}
}

// InsertChildKey stores a new child key.
// Error returns: storage.ErrAlreadyExists
func InsertChildKey(keySet string, key *tss.ChildKey) func(*badger.Txn) error {
	return insert(makePrefix(codeChildKey, keySet, key.Index), toChildKeyEntity(key))
}

// UpsertChildKey stores a child key, replacing an existing one with the same index.
func UpsertChildKey(keySet string, key *tss.ChildKey) func(*badger.Txn) error {
	return upsert(makePrefix(codeChildKey, keySet, key.Index), toChildKeyEntity(key))
}

// RetrieveChildKey retrieves the child key with the given index.
// Error returns: storage.ErrNotFound
func RetrieveChildKey(keySet string, index uint32, key *tss.ChildKey) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var entity childKeyEntity
		err := retrieve(makePrefix(codeChildKey, keySet, index), &entity)(tx)
		if err != nil {
			return err
		}
		*key = *entity.model()
		return nil
	}
}

// RemoveChildKey deletes the child key with the given index.
// Error returns: storage.ErrNotFound
func RemoveChildKey(keySet string, index uint32) func(*badger.Txn) error {
	return remove(makePrefix(codeChildKey, keySet, index))
}

// TraverseChildKeys collects all child keys of the key-set in ascending index order.
func TraverseChildKeys(keySet string, keys *[]*tss.ChildKey) func(*badger.Txn) error {
	return traverse(makePrefix(codeChildKey, keySet), func() (checkFunc, createFunc, handleFunc) {
		check := func(key []byte) bool {
			return true
		}
		var entity childKeyEntity
		create := func() interface{} {
			return &entity
		}
		handle := func() error {
			*keys = append(*keys, entity.model())
			return nil
		}
		return check, create, handle
	})
}

// KeySetKeys collects every key stored for the key-set, across all codes.
func KeySetKeys(keySet string, keys *[][]byte) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		for _, code := range keySetCodes {
			err := collectKeys(makePrefix(code, keySet), keys)(tx)
			if err != nil {
				return fmt.Errorf("could not collect keys with code %d: %w", code, err)
			}
		}
		return nil
	}
}

// KeySetPrefixes returns the key prefixes owned by the key-set.
func KeySetPrefixes(keySet string) [][]byte {
	prefixes := make([][]byte, 0, len(keySetCodes))
	for _, code := range keySetCodes {
		prefixes = append(prefixes, makePrefix(code, keySet))
	}
	return prefixes
}

// ScrubKeys overwrites the values stored under keys with zeros.
func ScrubKeys(keys [][]byte) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		for _, key := range keys {
			err := overwrite(key)(tx)
			if err != nil {
				return err
			}
		}
		return nil
	}
}

// RemoveKeys deletes the given keys, ignoring missing ones.
func RemoveKeys(keys [][]byte) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		for _, key := range keys {
			err := forget(key)(tx)
			if err != nil {
				return err
			}
		}
		return nil
	}
}
