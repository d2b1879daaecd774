package rest

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tsswallet/tss-wallet/model/tss"
)

// DefaultSignatureCacheSize is the default number of key indexes whose last
// signature is remembered.
const DefaultSignatureCacheSize = 128

// signatureCache remembers the last signature made with each key index, so
// that it can be verified without sending it back. Signatures are not
// persisted; the cache is lost on restart.
type signatureCache struct {
	cache *lru.Cache[uint32, *tss.Signature]
}

func newSignatureCache(size int) (*signatureCache, error) {
	cache, err := lru.New[uint32, *tss.Signature](size)
	if err != nil {
		return nil, fmt.Errorf("could not create signature cache: %w", err)
	}
	return &signatureCache{cache: cache}, nil
}

func (c *signatureCache) Add(index uint32, signature *tss.Signature) {
	c.cache.Add(index, signature)
}

func (c *signatureCache) Get(index uint32) (*tss.Signature, bool) {
	return c.cache.Get(index)
}

// Remove forgets the signatures of index, or of every key if all is set.
func (c *signatureCache) Remove(index uint32, all bool) {
	if all {
		c.cache.Purge()
		return
	}
	c.cache.Remove(index)
}

func (c *signatureCache) Len() int {
	return c.cache.Len()
}
