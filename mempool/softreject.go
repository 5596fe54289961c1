// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/msgpool/wire"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"
)

// softReject is a message rejected for a reason that may go away once the
// chain advances.
type softReject struct {
	msg     *wire.SignedMessage
	local   bool
	retries int
}

// softRejectSet keeps softly rejected messages for a bounded number of
// retries.  The oldest entries are dropped when the set is full.  Messages
// in the set are not part of the pool and are never selected.
//
// softRejectSet is safe for concurrent access.
type softRejectSet struct {
	entries    *lru.Cache[cid.Cid, *softReject]
	maxRetries int
}

// newSoftRejectSet returns a set holding up to size messages.  A
// non-positive size disables the set.
func newSoftRejectSet(size, maxRetries int) *softRejectSet {
	s := &softRejectSet{maxRetries: maxRetries}
	if size <= 0 || maxRetries <= 0 {
		return s
	}
	entries, err := lru.New[cid.Cid, *softReject](size)
	if err != nil {
		return s
	}
	s.entries = entries
	return s
}

// Add records a softly rejected message.
func (s *softRejectSet) Add(c cid.Cid, sm *wire.SignedMessage, local bool) {
	if s.entries == nil {
		return
	}
	if _, ok := s.entries.Peek(c); ok {
		return
	}
	s.entries.Add(c, &softReject{msg: sm, local: local})
}

// Take removes and returns every message due for a retry.
func (s *softRejectSet) Take() map[cid.Cid]*softReject {
	if s.entries == nil {
		return nil
	}
	keys := s.entries.Keys()
	taken := make(map[cid.Cid]*softReject, len(keys))
	for _, c := range keys {
		entry, ok := s.entries.Peek(c)
		if !ok {
			continue
		}
		s.entries.Remove(c)
		taken[c] = entry
	}
	return taken
}

// Requeue puts back a message whose retry was rejected softly again,
// unless it has used up its retries.  It returns whether the message was
// kept.
func (s *softRejectSet) Requeue(c cid.Cid, entry *softReject) bool {
	if s.entries == nil {
		return false
	}
	entry.retries++
	if entry.retries >= s.maxRetries {
		return false
	}
	s.entries.Add(c, entry)
	return true
}

// Remove forgets a message, for example once it was admitted.
func (s *softRejectSet) Remove(c cid.Cid) {
	if s.entries == nil {
		return
	}
	s.entries.Remove(c)
}

// Len returns the number of messages waiting for a retry.
func (s *softRejectSet) Len() int {
	if s.entries == nil {
		return 0
	}
	return s.entries.Len()
}
