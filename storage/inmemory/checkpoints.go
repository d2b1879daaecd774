package inmemory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/storage"
)

// Checkpoints is a storage.Checkpoints kept in memory. It offers the same
// guarantees as the badger store within one process and adds hooks to
// simulate crashes and corruption in tests.
type Checkpoints struct {
	mu        sync.RWMutex
	artifacts map[storage.CheckpointID][]byte
	corrupted map[storage.CheckpointID]bool
	markers   map[storage.CheckpointID]struct{}
	children  map[uint32]*tss.ChildKey
}

var _ storage.Checkpoints = (*Checkpoints)(nil)

func NewCheckpoints() *Checkpoints {
	return &Checkpoints{
		artifacts: make(map[storage.CheckpointID][]byte),
		corrupted: make(map[storage.CheckpointID]bool),
		markers:   make(map[storage.CheckpointID]struct{}),
		children:  make(map[uint32]*tss.ChildKey),
	}
}

func (c *Checkpoints) Put(id storage.CheckpointID, artifact []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scrub(id)
	c.artifacts[id] = append([]byte(nil), artifact...)
	return nil
}

func (c *Checkpoints) Get(id storage.CheckpointID) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.get(id)
}

func (c *Checkpoints) HasMarker(id storage.CheckpointID) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.markers[id]
	return ok, nil
}

func (c *Checkpoints) MarkComplete(id storage.CheckpointID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.artifacts[id]; !ok {
		return fmt.Errorf("no artifact for %s: %w", id, storage.ErrNotFound)
	}
	c.markers[id] = struct{}{}
	return nil
}

func (c *Checkpoints) Commit(id storage.CheckpointID, artifact []byte) error {
	err := c.Put(id, artifact)
	if err != nil {
		return err
	}
	return c.MarkComplete(id)
}

func (c *Checkpoints) Consume(id storage.CheckpointID) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.markers[id]; !ok {
		return nil, storage.ErrNotFound
	}
	data, err := c.get(id)
	delete(c.markers, id)
	c.scrub(id)
	if err != nil {
		return nil, fmt.Errorf("marker %s without valid artifact: %w", id, storage.ErrCorrupted)
	}
	return data, nil
}

func (c *Checkpoints) Discard(id storage.CheckpointID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markers, id)
	c.scrub(id)
	return nil
}

func (c *Checkpoints) Markers() ([]storage.CheckpointID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	markers := make([]storage.CheckpointID, 0, len(c.markers))
	for id := range c.markers {
		markers = append(markers, id)
	}
	sort.Slice(markers, func(i, j int) bool {
		if markers[i].Phase != markers[j].Phase {
			return markers[i].Phase < markers[j].Phase
		}
		return markers[i].Index < markers[j].Index
	})
	return markers, nil
}

func (c *Checkpoints) InsertChildKey(key *tss.ChildKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.children[key.Index]; ok {
		return storage.ErrAlreadyExists
	}
	c.children[key.Index] = copyChildKey(key)
	return nil
}

func (c *Checkpoints) UpsertChildKey(key *tss.ChildKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children[key.Index] = copyChildKey(key)
	return nil
}

func (c *Checkpoints) ChildKey(index uint32) (*tss.ChildKey, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.children[index]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyChildKey(key), nil
}

func (c *Checkpoints) ChildKeys() ([]*tss.ChildKey, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]*tss.ChildKey, 0, len(c.children))
	for _, key := range c.children {
		keys = append(keys, copyChildKey(key))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Index < keys[j].Index })
	return keys, nil
}

func (c *Checkpoints) RemoveChildKey(index uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.children[index]; !ok {
		return storage.ErrNotFound
	}
	delete(c.children, index)
	return nil
}

func (c *Checkpoints) DeleteAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.artifacts {
		c.scrub(id)
	}
	c.markers = make(map[storage.CheckpointID]struct{})
	c.corrupted = make(map[storage.CheckpointID]bool)
	c.children = make(map[uint32]*tss.ChildKey)
	return nil
}

// Len returns the number of stored artifacts, markers and child keys.
func (c *Checkpoints) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.artifacts) + len(c.markers) + len(c.children)
}

// Corrupt makes the artifact of id fail validation, as if its bytes had been damaged.
func (c *Checkpoints) Corrupt(id storage.CheckpointID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.corrupted[id] = true
}

// ForceMarker sets the marker of id without checking for its artifact. It
// simulates a store that lost an artifact after its marker was written.
func (c *Checkpoints) ForceMarker(id storage.CheckpointID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers[id] = struct{}{}
}

func (c *Checkpoints) get(id storage.CheckpointID) ([]byte, error) {
	data, ok := c.artifacts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if c.corrupted[id] || len(data) == 0 {
		return nil, storage.ErrCorrupted
	}
	return append([]byte(nil), data...), nil
}

// scrub zeroes the artifact of id before dropping it.
func (c *Checkpoints) scrub(id storage.CheckpointID) {
	data, ok := c.artifacts[id]
	if !ok {
		return
	}
	for i := range data {
		data[i] = 0
	}
	delete(c.artifacts, id)
	delete(c.corrupted, id)
}

func copyChildKey(key *tss.ChildKey) *tss.ChildKey {
	c := *key
	c.PublicKey = append([]byte(nil), key.PublicKey...)
	c.Tweak = append([]byte(nil), key.Tweak...)
	return &c
}
