package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/storage"
	"github.com/tsswallet/tss-wallet/storage/badger/operation"
)

const (
	conflictRetryBase = 10 * time.Millisecond
	conflictRetryMax  = 5
)

// Checkpoints implements storage.Checkpoints on badger for a single key-set.
// Every key is scoped by the key-set ID, so several key-sets can share one
// database.
type Checkpoints struct {
	log    zerolog.Logger
	db     *badger.DB
	keySet string
}

var _ storage.Checkpoints = (*Checkpoints)(nil)

// NewCheckpoints returns the checkpoint store of keySet inside db.
func NewCheckpoints(log zerolog.Logger, db *badger.DB, keySet string) *Checkpoints {
	return &Checkpoints{
		log:    log.With().Str("component", "checkpoint_store").Str("keyset", keySet).Logger(),
		db:     db,
		keySet: keySet,
	}
}

// Put stores the artifact for id without touching its marker.
func (c *Checkpoints) Put(id storage.CheckpointID, artifact []byte) error {
	err := c.update(operation.UpsertArtifact(c.keySet, id.Phase, id.Index, operation.NewArtifact(artifact)))
	if err != nil {
		return fmt.Errorf("could not store artifact %s: %w", id, err)
	}
	return nil
}

// Get returns the validated artifact for id.
func (c *Checkpoints) Get(id storage.CheckpointID) ([]byte, error) {
	var artifact operation.Artifact
	err := c.db.View(operation.RetrieveArtifact(c.keySet, id.Phase, id.Index, &artifact))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve artifact %s: %w", id, err)
	}
	return artifact.Data, nil
}

func (c *Checkpoints) HasMarker(id storage.CheckpointID) (bool, error) {
	var exists bool
	err := c.db.View(operation.CheckMarker(c.keySet, id.Phase, id.Index, &exists))
	if err != nil {
		return false, fmt.Errorf("could not check marker %s: %w", id, err)
	}
	return exists, nil
}

// MarkComplete sets the marker for id; the artifact must already be stored.
func (c *Checkpoints) MarkComplete(id storage.CheckpointID) error {
	err := c.update(operation.SetMarker(c.keySet, id.Phase, id.Index))
	if err != nil {
		return fmt.Errorf("could not set marker %s: %w", id, err)
	}
	return nil
}

// Commit writes the artifact in one transaction and the marker in a second
// one. With SyncWrites enabled (see InitSecret) each commit is durable when it
// returns, so a crash between the two leaves an unmarked artifact, which reads
// as an incomplete phase.
func (c *Checkpoints) Commit(id storage.CheckpointID, artifact []byte) error {
	err := c.Put(id, artifact)
	if err != nil {
		return err
	}
	return c.MarkComplete(id)
}

// Consume returns the artifact of id and clears it in the same transaction
// as the marker, so no other caller can obtain it.
func (c *Checkpoints) Consume(id storage.CheckpointID) ([]byte, error) {
	var data []byte
	err := c.update(func(tx *badger.Txn) error {
		var marked bool
		err := operation.CheckMarker(c.keySet, id.Phase, id.Index, &marked)(tx)
		if err != nil {
			return err
		}
		if !marked {
			return storage.ErrNotFound
		}

		var artifact operation.Artifact
		retrieveErr := operation.RetrieveArtifact(c.keySet, id.Phase, id.Index, &artifact)(tx)
		if retrieveErr != nil && !errors.Is(retrieveErr, storage.ErrNotFound) && !errors.Is(retrieveErr, storage.ErrCorrupted) {
			return retrieveErr
		}

		err = operation.RemoveMarker(c.keySet, id.Phase, id.Index)(tx)
		if err != nil {
			return err
		}
		err = operation.OverwriteArtifact(c.keySet, id.Phase, id.Index)(tx)
		if err != nil {
			return err
		}
		if retrieveErr != nil {
			data = nil
			return nil
		}
		data = append([]byte(nil), artifact.Data...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not consume %s: %w", id, err)
	}
	err = c.update(operation.RemoveArtifact(c.keySet, id.Phase, id.Index))
	if err != nil {
		return nil, fmt.Errorf("could not remove consumed artifact %s: %w", id, err)
	}
	if data == nil {
		return nil, fmt.Errorf("marker %s without valid artifact: %w", id, storage.ErrCorrupted)
	}
	return data, nil
}

// Discard clears the marker of id and scrubs its artifact.
func (c *Checkpoints) Discard(id storage.CheckpointID) error {
	err := c.update(func(tx *badger.Txn) error {
		err := operation.RemoveMarker(c.keySet, id.Phase, id.Index)(tx)
		if err != nil {
			return err
		}
		return operation.OverwriteArtifact(c.keySet, id.Phase, id.Index)(tx)
	})
	if err != nil {
		return fmt.Errorf("could not discard %s: %w", id, err)
	}
	err = c.update(operation.RemoveArtifact(c.keySet, id.Phase, id.Index))
	if err != nil {
		return fmt.Errorf("could not remove artifact %s: %w", id, err)
	}
	return nil
}

func (c *Checkpoints) Markers() ([]storage.CheckpointID, error) {
	var markers []storage.CheckpointID
	err := c.db.View(operation.LookupMarkers(c.keySet, &markers))
	if err != nil {
		return nil, fmt.Errorf("could not look up markers: %w", err)
	}
	return markers, nil
}

func (c *Checkpoints) InsertChildKey(key *tss.ChildKey) error {
	err := c.update(operation.InsertChildKey(c.keySet, key))
	if err != nil {
		return fmt.Errorf("could not insert child key %d: %w", key.Index, err)
	}
	return nil
}

func (c *Checkpoints) UpsertChildKey(key *tss.ChildKey) error {
	err := c.update(operation.UpsertChildKey(c.keySet, key))
	if err != nil {
		return fmt.Errorf("could not store child key %d: %w", key.Index, err)
	}
	return nil
}

func (c *Checkpoints) ChildKey(index uint32) (*tss.ChildKey, error) {
	var key tss.ChildKey
	err := c.db.View(operation.RetrieveChildKey(c.keySet, index, &key))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve child key %d: %w", index, err)
	}
	return &key, nil
}

func (c *Checkpoints) ChildKeys() ([]*tss.ChildKey, error) {
	var keys []*tss.ChildKey
	err := c.db.View(operation.TraverseChildKeys(c.keySet, &keys))
	if err != nil {
		return nil, fmt.Errorf("could not traverse child keys: %w", err)
	}
	return keys, nil
}

func (c *Checkpoints) RemoveChildKey(index uint32) error {
	err := c.update(operation.RemoveChildKey(c.keySet, index))
	if err != nil {
		return fmt.Errorf("could not remove child key %d: %w", index, err)
	}
	return nil
}

// DeleteAll overwrites every value of the key-set with zeros, deletes the
// keys, then drops the key-set prefixes so that older versions are removed
// from the LSM tree as well.
func (c *Checkpoints) DeleteAll() error {
	var keys [][]byte
	err := c.db.View(operation.KeySetKeys(c.keySet, &keys))
	if err != nil {
		return fmt.Errorf("could not collect key-set entries: %w", err)
	}

	err = c.update(operation.ScrubKeys(keys))
	if err != nil {
		return fmt.Errorf("could not scrub key-set entries: %w", err)
	}
	err = c.update(operation.RemoveKeys(keys))
	if err != nil {
		return fmt.Errorf("could not remove key-set entries: %w", err)
	}

	for _, prefix := range operation.KeySetPrefixes(c.keySet) {
		err = c.db.DropPrefix(prefix)
		if err != nil {
			return fmt.Errorf("could not drop key-set prefix: %w", err)
		}
	}

	// reclaim value log space holding the scrubbed versions; best effort
	for {
		if c.db.RunValueLogGC(0.5) != nil {
			break
		}
	}

	c.log.Info().Int("entries", len(keys)).Msg("deleted key-set")
	return nil
}

// update runs op in a read-write transaction, retrying on transaction conflicts.
func (c *Checkpoints) update(op func(*badger.Txn) error) error {
	backoff := retry.WithMaxRetries(conflictRetryMax, retry.NewExponential(conflictRetryBase))

	attempts := 0
	return retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		attempts++
		err := c.db.Update(op)
		if errors.Is(err, badger.ErrConflict) {
			c.log.Debug().Int("attempt", attempts).Msg("transaction conflict, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
}
