// Copyright (c) 2015 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sigs

import (
	"github.com/btcsuite/msgpool/wire"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"
)

// SigCache implements a signature verification cache keyed by the identity
// of the signed message.  Only valid signatures are added to the cache, so a
// message that is gossiped to us repeatedly is verified once.  The identity
// of a secp256k1 message covers its signature, so a cache hit implies the
// exact same signature was verified before.
type SigCache struct {
	validSigs *lru.Cache[cid.Cid, struct{}]
}

// NewSigCache creates and initializes a new instance of SigCache.  Its sole
// parameter 'maxEntries' represents the maximum number of entries allowed to
// exist in the SigCache at any particular moment.  The least recently used
// entries are evicted to make room for new ones.  A zero size disables the
// cache.
func NewSigCache(maxEntries uint) *SigCache {
	if maxEntries == 0 {
		return &SigCache{}
	}
	cache, err := lru.New[cid.Cid, struct{}](int(maxEntries))
	if err != nil {
		return &SigCache{}
	}
	return &SigCache{validSigs: cache}
}

// Verify checks the signature of sm, consulting and updating the cache.
//
// This function is safe for concurrent access.
func (s *SigCache) Verify(sm *wire.SignedMessage) error {
	if s == nil || s.validSigs == nil {
		return Verify(sm)
	}

	c, err := sm.Cid()
	if err != nil {
		return err
	}
	if s.validSigs.Contains(c) {
		return nil
	}
	if err := Verify(sm); err != nil {
		return err
	}
	s.validSigs.Add(c, struct{}{})
	return nil
}

// Len returns the number of cached signatures.
func (s *SigCache) Len() int {
	if s == nil || s.validSigs == nil {
		return 0
	}
	return s.validSigs.Len()
}
