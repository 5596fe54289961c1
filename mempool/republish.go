// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/btcsuite/msgpool/wire"
	mapset "github.com/deckarep/golang-set/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"
)

// republisher announces pending locally originated messages to the network
// again, periodically and whenever a block includes a message it announced
// last time.  It never changes the contents of the pool.
type republisher struct {
	publisher Publisher
	clock     clock.Clock
	interval  time.Duration

	// pending returns the pending local messages in sender and nonce
	// order.
	pending func() []*wire.SignedMessage

	// locals holds the identities of pending local messages.
	locals mapset.Set[cid.Cid]

	// republished holds the identities announced by the last run.
	republished mapset.Set[cid.Cid]

	// included holds the identities of local messages that left the pool
	// in an applied block, so a revert can restore them as local.  It is
	// nil when disabled.
	included *lru.Cache[cid.Cid, struct{}]

	trigger chan struct{}
}

// newRepublisher returns a republisher announcing through publisher, which
// may be nil to only track local messages.  Up to includedSize local
// messages of applied blocks are remembered for reverts.
func newRepublisher(publisher Publisher, clk clock.Clock, interval time.Duration,
	includedSize int, pending func() []*wire.SignedMessage) *republisher {

	var included *lru.Cache[cid.Cid, struct{}]
	if includedSize > 0 {
		included, _ = lru.New[cid.Cid, struct{}](includedSize)
	}
	return &republisher{
		publisher:   publisher,
		clock:       clk,
		interval:    interval,
		pending:     pending,
		locals:      mapset.NewSet[cid.Cid](),
		republished: mapset.NewSet[cid.Cid](),
		included:    included,
		trigger:     make(chan struct{}, 1),
	}
}

// Track records a pending local message.
func (r *republisher) Track(c cid.Cid) {
	r.locals.Add(c)
}

// Untrack forgets a message that left the pool.
func (r *republisher) Untrack(c cid.Cid) {
	r.locals.Remove(c)
}

// IsLocal returns whether c identifies a pending local message.
func (r *republisher) IsLocal(c cid.Cid) bool {
	return r.locals.Contains(c)
}

// Included records that a block applied c.  A pending local message is
// moved from the local set to the set of included local messages.
func (r *republisher) Included(c cid.Cid) {
	if !r.locals.Contains(c) {
		return
	}
	r.locals.Remove(c)
	if r.included != nil {
		r.included.Add(c, struct{}{})
	}
}

// Reclaim reports whether c is a local message a block applied earlier and
// forgets it, since it is about to be pending again.
func (r *republisher) Reclaim(c cid.Cid) bool {
	if r.included == nil {
		return false
	}
	return r.included.Remove(c)
}

// ForgetIncluded drops every remembered local message of applied blocks.
func (r *republisher) ForgetIncluded() {
	if r.included != nil {
		r.included.Purge()
	}
}

// WasRepublished returns whether the last run announced c.
func (r *republisher) WasRepublished(c cid.Cid) bool {
	return r.republished.Contains(c)
}

// Trigger requests a run as soon as possible.  Requests made while one is
// already queued are merged.
func (r *republisher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Announce publishes a single message.  Failures are logged since the
// message is announced again on the next run.
func (r *republisher) Announce(ctx context.Context, sm *wire.SignedMessage) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, sm); err != nil {
		log.Warnf("Unable to publish message %v: %v", sm, err)
	}
}

// Republish announces every pending local message and returns the number
// of messages published.
func (r *republisher) Republish(ctx context.Context) int {
	if r.publisher == nil {
		return 0
	}

	msgs := r.pending()
	r.republished.Clear()

	var published int
	for _, sm := range msgs {
		if ctx.Err() != nil {
			break
		}
		if err := r.publisher.Publish(ctx, sm); err != nil {
			log.Warnf("Unable to republish message %v: %v", sm, err)
			continue
		}
		r.republished.Add(sm.MustCid())
		published++
	}

	if published > 0 {
		log.Debugf("Republished %d local %s", published,
			pickNoun(published, "message", "messages"))
	}
	return published
}

// run republishes on every tick of the interval and on every trigger until
// quit is closed.
//
// It must be run as a goroutine.
func (r *republisher) run(ctx context.Context, quit <-chan struct{}) {
	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := r.clock.Ticker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

out:
	for {
		select {
		case <-tick:
			r.Republish(ctx)

		case <-r.trigger:
			r.Republish(ctx)

		case <-quit:
			break out
		}
	}

	log.Trace("Republisher done")
}
