// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"github.com/btcsuite/msgpool/address"
)

// InclusionTracker keeps an exponentially decaying average of how often each
// sender with pending messages gets a message included in an applied block.
// Senders flooding the pool with messages that never make it into blocks see
// their average, and with it their selection weight, fall towards the policy
// minimum.
//
// The history of a sender that runs out of pending messages is kept for
// InclusionRetention applied blocks so draining a queue does not restore
// full weight.
//
// InclusionTracker is not safe for concurrent access.  The pool owns it and
// guards it with its own lock.
type InclusionTracker struct {
	policy Policy
	ema    map[address.Address]float64

	// idle counts the applied blocks seen since a tracked sender last had
	// pending messages.
	idle map[address.Address]int
}

// NewInclusionTracker returns an empty tracker using the given policy.
func NewInclusionTracker(policy Policy) *InclusionTracker {
	return &InclusionTracker{
		policy: policy.sanitize(),
		ema:    make(map[address.Address]float64),
		idle:   make(map[address.Address]int),
	}
}

// Observe records one applied block.  Every sender in pending had messages
// waiting before the block was applied; included holds the senders that
// had at least one message in the block.
func (t *InclusionTracker) Observe(pending []address.Address,
	included map[address.Address]struct{}) {

	decay := t.policy.InclusionDecay
	for _, sender := range pending {
		prev, ok := t.ema[sender]
		if !ok {
			prev = 1
		}
		var hit float64
		if _, ok := included[sender]; ok {
			hit = 1
		}
		t.ema[sender] = decay*prev + (1-decay)*hit
		delete(t.idle, sender)
	}

	for sender, blocks := range t.idle {
		blocks++
		if blocks >= t.policy.InclusionRetention {
			delete(t.ema, sender)
			delete(t.idle, sender)
			continue
		}
		t.idle[sender] = blocks
	}
}

// Weight returns the selection weight of the sender, in
// [MinInclusionWeight, 1].
func (t *InclusionTracker) Weight(sender address.Address) float64 {
	ema, ok := t.ema[sender]
	if !ok {
		return 1
	}
	min := t.policy.MinInclusionWeight
	return min + (1-min)*ema
}

// Weights returns the weights of all tracked senders.
func (t *InclusionTracker) Weights() map[address.Address]float64 {
	weights := make(map[address.Address]float64, len(t.ema))
	for sender := range t.ema {
		weights[sender] = t.Weight(sender)
	}
	return weights
}

// Idle records that sender no longer has pending messages.  Its history
// is dropped after InclusionRetention applied blocks unless it has pending
// messages again by then.
func (t *InclusionTracker) Idle(sender address.Address) {
	if _, ok := t.ema[sender]; !ok {
		return
	}
	if _, ok := t.idle[sender]; !ok {
		t.idle[sender] = 0
	}
}

// Len returns the number of tracked senders.
func (t *InclusionTracker) Len() int {
	return len(t.ema)
}
