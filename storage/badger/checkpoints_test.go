package badger

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/storage"
	"github.com/tsswallet/tss-wallet/storage/badger/operation"
	"github.com/tsswallet/tss-wallet/utils/unittest"
)

func TestCheckpoints_CommitAndGet(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := NewCheckpoints(unittest.Logger(), db, "default")
		id := storage.KeySetCheckpoint()

		_, err := store.Get(id)
		require.ErrorIs(t, err, storage.ErrNotFound)

		marked, err := store.HasMarker(id)
		require.NoError(t, err)
		require.False(t, marked)

		artifact := unittest.RandomBytes(128)
		require.NoError(t, store.Commit(id, artifact))

		marked, err = store.HasMarker(id)
		require.NoError(t, err)
		require.True(t, marked)

		actual, err := store.Get(id)
		require.NoError(t, err)
		require.Equal(t, artifact, actual)

		markers, err := store.Markers()
		require.NoError(t, err)
		require.Equal(t, []storage.CheckpointID{id}, markers)
	})
}

// TestCheckpoints_CrashBeforeMarker verifies that an artifact stored without
// its marker (a crash between the two writes) reads as an incomplete phase.
func TestCheckpoints_CrashBeforeMarker(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		db := unittest.BadgerDB(t, dir)
		store := NewCheckpoints(unittest.Logger(), db, "default")
		id := storage.AuxInfoCheckpoint()
		require.NoError(t, store.Put(id, unittest.RandomBytes(64)))
		require.NoError(t, db.Close())

		db = unittest.BadgerDB(t, dir)
		defer db.Close()
		store = NewCheckpoints(unittest.Logger(), db, "default")

		marked, err := store.HasMarker(id)
		require.NoError(t, err)
		assert.False(t, marked)

		markers, err := store.Markers()
		require.NoError(t, err)
		assert.Empty(t, markers)
	})
}

func TestCheckpoints_MarkerRequiresArtifact(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := NewCheckpoints(unittest.Logger(), db, "default")
		err := store.MarkComplete(storage.PresignCheckpoint(3))
		require.ErrorIs(t, err, storage.ErrNotFound)

		marked, err := store.HasMarker(storage.PresignCheckpoint(3))
		require.NoError(t, err)
		require.False(t, marked)
	})
}

func TestCheckpoints_CorruptedArtifact(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := NewCheckpoints(unittest.Logger(), db, "default")
		id := storage.PresignCheckpoint(0)

		artifact := operation.NewArtifact(unittest.RandomBytes(32))
		artifact.Checksum = unittest.RandomBytes(32)
		require.NoError(t, db.Update(operation.UpsertArtifact("default", id.Phase, id.Index, artifact)))
		require.NoError(t, store.MarkComplete(id))

		_, err := store.Get(id)
		require.ErrorIs(t, err, storage.ErrCorrupted)

		t.Run("consuming a corrupted artifact clears its marker", func(t *testing.T) {
			_, err := store.Consume(id)
			require.ErrorIs(t, err, storage.ErrCorrupted)

			marked, err := store.HasMarker(id)
			require.NoError(t, err)
			require.False(t, marked)

			_, err = store.Get(id)
			require.ErrorIs(t, err, storage.ErrNotFound)
		})
	})
}

func TestCheckpoints_ConsumeIsSingleUse(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := NewCheckpoints(unittest.Logger(), db, "default")
		id := storage.PresignCheckpoint(7)
		artifact := unittest.RandomBytes(96)
		require.NoError(t, store.Commit(id, artifact))

		consumed, err := store.Consume(id)
		require.NoError(t, err)
		require.Equal(t, artifact, consumed)

		_, err = store.Consume(id)
		require.ErrorIs(t, err, storage.ErrNotFound)

		_, err = store.Get(id)
		require.ErrorIs(t, err, storage.ErrNotFound)

		marked, err := store.HasMarker(id)
		require.NoError(t, err)
		require.False(t, marked)
	})
}

func TestCheckpoints_Discard(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := NewCheckpoints(unittest.Logger(), db, "default")
		id := storage.PresignCheckpoint(2)
		require.NoError(t, store.Commit(id, unittest.RandomBytes(16)))

		require.NoError(t, store.Discard(id))
		// discarding twice is a no-op
		require.NoError(t, store.Discard(id))

		_, err := store.Get(id)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestCheckpoints_ChildKeys(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := NewCheckpoints(unittest.Logger(), db, "default")

		second := unittest.ChildKeyFixture(2)
		first := unittest.ChildKeyFixture(1, unittest.WithLabel("savings"))
		require.NoError(t, store.InsertChildKey(second))
		require.NoError(t, store.InsertChildKey(first))

		err := store.InsertChildKey(unittest.ChildKeyFixture(2))
		require.ErrorIs(t, err, storage.ErrAlreadyExists)

		keys, err := store.ChildKeys()
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.Equal(t, uint32(1), keys[0].Index)
		assert.Equal(t, "savings", keys[0].Label)
		assert.Equal(t, first.PublicKey, keys[0].PublicKey)
		assert.Equal(t, uint32(2), keys[1].Index)

		replacement := unittest.ChildKeyFixture(2, unittest.WithLabel("renamed"))
		require.NoError(t, store.UpsertChildKey(replacement))
		actual, err := store.ChildKey(2)
		require.NoError(t, err)
		assert.Equal(t, "renamed", actual.Label)
		assert.Equal(t, replacement.Tweak, actual.Tweak)

		require.NoError(t, store.RemoveChildKey(1))
		_, err = store.ChildKey(1)
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.ErrorIs(t, store.RemoveChildKey(1), storage.ErrNotFound)
	})
}

// TestCheckpoints_DeleteAll verifies that deletion removes every record of the
// key-set and leaves other key-sets untouched.
func TestCheckpoints_DeleteAll(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := NewCheckpoints(unittest.Logger(), db, "default")
		other := NewCheckpoints(unittest.Logger(), db, "other")

		for _, s := range []*Checkpoints{store, other} {
			require.NoError(t, s.Commit(storage.KeySetCheckpoint(), unittest.RandomBytes(64)))
			require.NoError(t, s.Commit(storage.AuxInfoCheckpoint(), unittest.RandomBytes(64)))
			require.NoError(t, s.Commit(storage.PresignCheckpoint(0), unittest.RandomBytes(64)))
			require.NoError(t, s.Put(storage.PresignCheckpoint(1), unittest.RandomBytes(64)))
			require.NoError(t, s.InsertChildKey(unittest.ChildKeyFixture(1)))
		}

		require.NoError(t, store.DeleteAll())

		var keys [][]byte
		require.NoError(t, db.View(operation.KeySetKeys("default", &keys)))
		assert.Empty(t, keys)

		markers, err := store.Markers()
		require.NoError(t, err)
		assert.Empty(t, markers)
		children, err := store.ChildKeys()
		require.NoError(t, err)
		assert.Empty(t, children)
		for _, phase := range []tss.Phase{tss.PhaseKeygen, tss.PhaseAuxInfo} {
			_, err = store.Get(storage.CheckpointID{Phase: phase})
			assert.ErrorIs(t, err, storage.ErrNotFound)
		}

		markers, err = other.Markers()
		require.NoError(t, err)
		assert.Len(t, markers, 3)
		children, err = other.ChildKeys()
		require.NoError(t, err)
		assert.Len(t, children, 1)
	})
}
