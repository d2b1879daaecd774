package badger

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v2"
)

// InitSecret opens the badger database holding key-set checkpoints. Writes are
// synced before a transaction commit returns, which the checkpoint
// artifact-then-marker ordering relies on.
func InitSecret(dir string) (*badger.DB, error) {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return nil, fmt.Errorf("could not create database directory: %w", err)
	}

	opts := badger.
		DefaultOptions(dir).
		WithSyncWrites(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	return db, nil
}
