package storage

import (
	"fmt"

	"github.com/tsswallet/tss-wallet/model/tss"
)

// CheckpointID identifies one phase artifact of a key-set. Index scopes
// artifacts that belong to a single key (presignatures are bound to the root
// or to one child key); it is zero for key-set wide phases.
type CheckpointID struct {
	Phase tss.Phase
	Index uint32
}

// KeySetCheckpoint identifies the key-set record written by Keygen.
func KeySetCheckpoint() CheckpointID {
	return CheckpointID{Phase: tss.PhaseKeygen}
}

// AuxInfoCheckpoint identifies the auxiliary record written by AuxInfo.
func AuxInfoCheckpoint() CheckpointID {
	return CheckpointID{Phase: tss.PhaseAuxInfo}
}

// PresignCheckpoint identifies the presignature for key index.
func PresignCheckpoint(index uint32) CheckpointID {
	return CheckpointID{Phase: tss.PhasePresign, Index: index}
}

func (id CheckpointID) String() string {
	return fmt.Sprintf("%s/%d", id.Phase, id.Index)
}

// Checkpoints is the durable store of one key-set's phase artifacts,
// completion markers and derived child keys. A marker is the sole authority
// for skipping a phase, and the store never exposes a marker whose artifact
// is missing.
//
// CAUTION: artifacts contain confidential key material.
type Checkpoints interface {

	// Put stores the artifact for id, replacing any previous artifact. It
	// does not set the completion marker.
	// No errors are expected during normal operation.
	Put(id CheckpointID, artifact []byte) error

	// Get returns the artifact for id.
	// Error returns:
	//   - storage.ErrNotFound if no artifact is stored
	//   - storage.ErrCorrupted if the stored artifact fails validation
	Get(id CheckpointID) ([]byte, error)

	// HasMarker returns true if the completion marker for id is set.
	// No errors are expected during normal operation.
	HasMarker(id CheckpointID) (bool, error)

	// MarkComplete sets the completion marker for id.
	// Error returns:
	//   - storage.ErrNotFound if no artifact is stored for id
	MarkComplete(id CheckpointID) error

	// Commit durably stores the artifact and then sets its marker.
	// No errors are expected during normal operation.
	Commit(id CheckpointID, artifact []byte) error

	// Consume atomically returns the artifact for id, clears its marker and
	// scrubs the artifact. A consumed artifact can never be returned again.
	// Error returns:
	//   - storage.ErrNotFound if the marker is not set
	//   - storage.ErrCorrupted if the marker is set but the artifact is missing or invalid;
	//     the marker is cleared in that case
	Consume(id CheckpointID) ([]byte, error)

	// Discard clears the marker and scrubs the artifact for id, if present.
	// No errors are expected during normal operation.
	Discard(id CheckpointID) error

	// Markers returns every checkpoint whose marker is set.
	// No errors are expected during normal operation.
	Markers() ([]CheckpointID, error)

	// InsertChildKey stores a new child key.
	// Error returns:
	//   - storage.ErrAlreadyExists if a child key with the same index exists
	InsertChildKey(key *tss.ChildKey) error

	// UpsertChildKey stores a child key, replacing an existing one with the same index.
	// No errors are expected during normal operation.
	UpsertChildKey(key *tss.ChildKey) error

	// ChildKey returns the child key with the given index.
	// Error returns:
	//   - storage.ErrNotFound
	ChildKey(index uint32) (*tss.ChildKey, error)

	// ChildKeys returns all child keys ordered by index.
	// No errors are expected during normal operation.
	ChildKeys() ([]*tss.ChildKey, error)

	// RemoveChildKey deletes the child key with the given index.
	// Error returns:
	//   - storage.ErrNotFound
	RemoveChildKey(index uint32) error

	// DeleteAll removes every artifact, marker and child key of the key-set,
	// overwriting secret-bearing values before they are deleted.
	// No errors are expected during normal operation.
	DeleteAll() error
}
