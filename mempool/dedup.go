// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/decred/dcrd/lru"
	"github.com/ipfs/go-cid"
)

// dedupCache remembers the identities of recently seen messages so repeated
// submissions are rejected without validation.  It is an anti flood layer
// and never authoritative for validity.
//
// Identities of messages that leave the pool are not forgotten right away.
// They are scheduled for removal after a grace period so a message that was
// just included in a block is not admitted again while the block is still
// young.  Adding an identity again cancels its scheduled removal.
type dedupCache struct {
	mtx    sync.Mutex
	seen   lru.Cache
	purges map[cid.Cid]time.Time

	// order holds scheduled purges by deadline.  Entries whose deadline
	// no longer matches purges were cancelled or rescheduled.
	order []scheduledPurge

	grace time.Duration
	clock clock.Clock
}

// scheduledPurge is one scheduled removal of an identity.
type scheduledPurge struct {
	c  cid.Cid
	at time.Time
}

// newDedupCache returns a cache remembering up to limit identities.
func newDedupCache(limit uint, grace time.Duration, clk clock.Clock) *dedupCache {
	return &dedupCache{
		seen:   lru.NewCache(limit),
		purges: make(map[cid.Cid]time.Time),
		grace:  grace,
		clock:  clk,
	}
}

// expire forgets every identity whose grace period has passed.
//
// This function MUST be called with the cache lock held.
func (d *dedupCache) expire() {
	now := d.clock.Now()
	for len(d.order) > 0 && !now.Before(d.order[0].at) {
		p := d.order[0]
		d.order[0] = scheduledPurge{}
		d.order = d.order[1:]

		if at, ok := d.purges[p.c]; ok && at.Equal(p.at) {
			d.seen.Delete(p.c)
			delete(d.purges, p.c)
		}
	}
}

// Contains returns whether the identity was seen and not yet forgotten.
//
// This function is safe for concurrent access.
func (d *dedupCache) Contains(c cid.Cid) bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.expire()
	return d.seen.Contains(c)
}

// Add records the identity and cancels any scheduled removal of it.
//
// This function is safe for concurrent access.
func (d *dedupCache) Add(c cid.Cid) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	delete(d.purges, c)
	d.seen.Add(c)
}

// SchedulePurge forgets the identity once the grace period has passed.
// With a zero grace period it is forgotten immediately.
//
// This function is safe for concurrent access.
func (d *dedupCache) SchedulePurge(c cid.Cid) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if d.grace <= 0 {
		d.seen.Delete(c)
		delete(d.purges, c)
		return
	}
	at := d.clock.Now().Add(d.grace)
	d.purges[c] = at
	d.order = append(d.order, scheduledPurge{c: c, at: at})
}

// PendingPurges returns the number of identities waiting for their grace
// period to pass.
//
// This function is safe for concurrent access.
func (d *dedupCache) PendingPurges() int {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.expire()
	return len(d.purges)
}
