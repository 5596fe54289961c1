// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"context"
	"fmt"

	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/mining"
	"github.com/btcsuite/msgpool/wire"
	"github.com/ipfs/go-cid"
)

// deferredWork is the reconciliation postponed because the state it needs
// could not be resolved.  It is retried on the next head change.
type deferredWork struct {
	// blocks are reverted blocks whose messages still need to be
	// validated against the state before them.
	blocks []Block

	// senders still need their queues reconciled with the head state.
	senders map[address.Address]struct{}
}

// size returns the number of postponed items.
func (d *deferredWork) size() int {
	return len(d.blocks) + len(d.senders)
}

// checkHeadChange ensures the change starts at head and that both block
// lists are linked chains forking from the same parent.
func checkHeadChange(head Block, revert, apply []Block) error {
	base := head.Cid()
	switch {
	case len(revert) > 0:
		if last := revert[len(revert)-1]; !last.Cid().Equals(base) {
			str := fmt.Sprintf("reverted chain ends at %v, not at the "+
				"current head %v", last.Cid(), base)
			return ruleError(ErrStaleHeadUpdate, str)
		}
	case len(apply) > 0:
		if parent := apply[0].Parent(); !parent.Equals(base) {
			str := fmt.Sprintf("applied chain builds on %v, not on the "+
				"current head %v", parent, base)
			return ruleError(ErrStaleHeadUpdate, str)
		}
	}

	for _, blocks := range [][]Block{revert, apply} {
		for i := 1; i < len(blocks); i++ {
			if !blocks[i].Parent().Equals(blocks[i-1].Cid()) {
				str := fmt.Sprintf("block %v does not build on %v",
					blocks[i].Cid(), blocks[i-1].Cid())
				return ruleError(ErrStaleHeadUpdate, str)
			}
		}
	}

	if len(revert) > 0 && len(apply) > 0 &&
		!apply[0].Parent().Equals(revert[0].Parent()) {

		str := fmt.Sprintf("applied chain builds on %v, not on the fork "+
			"point %v", apply[0].Parent(), revert[0].Parent())
		return ruleError(ErrStaleHeadUpdate, str)
	}

	return nil
}

// HeadChange moves the pool to a new head.
//
// Messages of reverted blocks are validated against the state before their
// block and restored when still valid.  Messages of applied blocks leave the
// pool, as does every message of a touched sender whose nonce falls below
// its nonce at the new head.  Readers keep seeing the previous contents until
// the whole change is committed at once.
//
// Changes must be delivered in order.  A change that does not start at the
// current head is rejected with ErrStaleHeadUpdate and the pool resyncs with
// the head reported by the chain.  Reconciliation that needs state which
// cannot be resolved is deferred to the next change.
//
// This function is safe for concurrent access.
func (mp *Pool) HeadChange(ctx context.Context, revert, apply []Block) error {
	mp.headMtx.Lock()
	defer mp.headMtx.Unlock()

	if len(revert) == 0 && len(apply) == 0 {
		return nil
	}

	mp.mtx.RLock()
	oldHead, oldBaseFee := mp.head, mp.baseFee
	mp.mtx.RUnlock()

	if err := checkHeadChange(oldHead, revert, apply); err != nil {
		mp.metrics.headChanges.WithLabelValues("stale").Inc()
		if rerr := mp.resync(ctx); rerr != nil {
			log.Errorf("Unable to resync with the chain: %v", rerr)
		}
		return err
	}

	var newHead Block
	if len(apply) > 0 {
		newHead = apply[len(apply)-1]
	} else {
		var err error
		newHead, err = mp.cfg.Chain.LoadBlock(ctx, revert[0].Parent())
		if err != nil {
			mp.metrics.headChanges.WithLabelValues("failed").Inc()
			str := fmt.Sprintf("unable to load fork point %v",
				revert[0].Parent())
			return wrapRuleError(ErrStateUnavailable, str, err)
		}
	}

	deferred := deferredWork{senders: make(map[address.Address]struct{})}
	touched := make(map[address.Address]struct{})
	for sender := range mp.deferred.senders {
		touched[sender] = struct{}{}
	}

	// Walk back from the old head.  Blocks deferred by earlier changes
	// are retried first.
	blocks := make([]Block, 0, len(mp.deferred.blocks)+len(revert))
	blocks = append(blocks, mp.deferred.blocks...)
	for i := len(revert) - 1; i >= 0; i-- {
		blocks = append(blocks, revert[i])
	}
	var restore []*wire.SignedMessage
	for _, block := range blocks {
		for _, sm := range block.Messages() {
			touched[sm.Message.From] = struct{}{}
		}
		msgs, err := mp.revalidateBlock(ctx, block)
		if err != nil {
			log.Debugf("Deferring reverted block %v: %v", block.Cid(), err)
			deferred.blocks = append(deferred.blocks, block)
			continue
		}
		restore = append(restore, msgs...)
	}

	applied := make(map[cid.Cid]struct{})
	for _, block := range apply {
		for _, sm := range block.Messages() {
			touched[sm.Message.From] = struct{}{}
			if c, err := sm.Cid(); err == nil {
				applied[c] = struct{}{}
			}
		}
	}

	state := newHead.State()
	baseFee, err := mp.cfg.State.BaseFee(ctx, state)
	if err != nil {
		log.Warnf("Unable to resolve the base fee at %v, keeping %s: %v",
			newHead.Cid(), oldBaseFee, err)
		baseFee = oldBaseFee
	}
	actors := make(map[address.Address]*Actor, len(touched))
	for sender := range touched {
		actor, err := mp.resolveActor(ctx, sender, state)
		if err != nil {
			log.Debugf("Deferring reconciliation of %s: %v", sender, err)
			deferred.senders[sender] = struct{}{}
			continue
		}
		actors[sender] = actor
	}

	mp.mtx.Lock()
	for _, block := range apply {
		mp.applyBlock(block)
	}
	var restored int
	for _, sm := range restore {
		if mp.restoreMessage(sm, applied, actors, newHead.Height()) {
			restored++
		}
	}
	for sender, actor := range actors {
		mp.reconcileSender(sender, actor)
	}
	mp.head = newHead
	mp.baseFee = baseFee
	mp.headGen++
	size := mp.count
	mp.mtx.Unlock()

	mp.deferred = deferred
	mp.metrics.deferred.Set(float64(deferred.size()))
	mp.metrics.headChanges.WithLabelValues("applied").Inc()

	log.Debugf("Moved to head %v at height %d: reverted %d and applied %d "+
		"%s, restored %d %s, %d pending", newHead.Cid(), newHead.Height(),
		len(revert), len(apply), pickNoun(len(apply), "block", "blocks"),
		restored, pickNoun(restored, "message", "messages"), size)

	for c := range applied {
		if mp.republisher.WasRepublished(c) {
			mp.republisher.Trigger()
			break
		}
	}
	mp.RetrySoftRejects(ctx)

	return nil
}

// revalidateBlock returns the messages of a reverted block that are still
// valid against the state before the block.  Invalid messages are dropped
// silently.  An error is returned when the state cannot be resolved.
func (mp *Pool) revalidateBlock(ctx context.Context, block Block) ([]*wire.SignedMessage, error) {
	state := block.ParentState()
	baseFee, err := mp.cfg.State.BaseFee(ctx, state)
	if err != nil {
		return nil, err
	}

	actors := make(map[address.Address]*Actor)
	var valid []*wire.SignedMessage
	for _, sm := range block.Messages() {
		from := sm.Message.From
		actor, ok := actors[from]
		if !ok {
			actor, err = mp.resolveActor(ctx, from, state)
			if err != nil {
				return nil, err
			}
			actors[from] = actor
		}

		view := &AccountView{Actor: actor, BaseFee: baseFee}
		if err := mp.validator.Validate(sm, view, true); err != nil {
			log.Tracef("Not restoring message %v: %v", sm, err)
			continue
		}
		valid = append(valid, sm)
	}
	return valid, nil
}

// applyBlock removes the messages of an applied block and records the
// block in the inclusion history of the senders with pending messages.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *Pool) applyBlock(block Block) {
	msgs := block.Messages()

	included := make(map[address.Address]struct{}, len(msgs))
	for _, sm := range msgs {
		included[sm.Message.From] = struct{}{}
	}
	pending := make([]address.Address, 0, len(mp.queues))
	for sender := range mp.queues {
		pending = append(pending, sender)
	}
	mp.inclusion.Observe(pending, included)

	for _, sm := range msgs {
		c, err := sm.Cid()
		if err != nil {
			mp.removeMessage(sm.Message.From, sm.Message.Nonce)
			continue
		}
		mp.republisher.Included(c)
		mp.removeMessage(sm.Message.From, sm.Message.Nonce)

		// The included message is rejected for the grace period even
		// when it was never pending here.
		mp.dedup.Add(c)
		mp.dedup.SchedulePurge(c)
	}
}

// restoreMessage returns a message of a reverted block to the pool.  It is
// skipped when a block of the new chain includes it, when its nonce is
// already spent at the new head or when another message occupies its nonce.
// Capacity limits do not apply to restored messages.  Local messages of
// applied blocks come back as local.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *Pool) restoreMessage(sm *wire.SignedMessage, applied map[cid.Cid]struct{},
	actors map[address.Address]*Actor, height uint64) bool {

	c, err := sm.Cid()
	if err != nil {
		return false
	}
	if _, ok := applied[c]; ok {
		return false
	}

	from, nonce := sm.Message.From, sm.Message.Nonce
	actor, resolved := actors[from]
	if resolved && (actor == nil || nonce < actor.Nonce) {
		return false
	}

	q := mp.queues[from]
	if q != nil {
		if _, ok := q.Get(nonce); ok {
			return false
		}
	} else {
		chainNonce := nonce
		if actor != nil {
			chainNonce = actor.Nonce
		}
		q = newMsgQueue(from, chainNonce)
		mp.queues[from] = q
	}

	local := mp.republisher.Reclaim(c)
	q.Put(&mining.MsgDesc{
		Msg:    sm,
		Cid:    c,
		Added:  mp.cfg.Clock.Now(),
		Height: height,
		Local:  local,
	})
	mp.count++
	mp.dedup.Add(c)
	if local {
		mp.republisher.Track(c)
	}
	mp.touch()
	mp.bus.publish(&Update{Type: NTMsgAdded, Cid: c, From: from, Nonce: nonce})

	return true
}

// reconcileSender brings the queue of sender in line with its account at
// the head: messages with spent nonces are purged and, while the balance
// does not cover the queue, its highest nonces are dropped.  A sender
// without an account loses every message.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *Pool) reconcileSender(sender address.Address, actor *Actor) {
	q := mp.queues[sender]
	if q == nil {
		return
	}

	var dropped []*mining.MsgDesc
	if actor == nil {
		dropped = q.PruneBelow(^uint64(0))
		if tail, ok := q.Get(^uint64(0)); ok {
			q.Remove(tail.Nonce())
			dropped = append(dropped, tail)
		}
	} else {
		q.chainNonce = actor.Nonce
		dropped = q.PruneBelow(actor.Nonce)
		for q.Len() > 0 && actor.Balance.LessThan(q.requiredFunds) {
			tail := q.Tail()
			q.Remove(tail.Nonce())
			dropped = append(dropped, tail)
		}
	}

	for _, desc := range dropped {
		mp.count--
		mp.forgetMessage(desc)
	}
	if len(dropped) > 0 {
		log.Debugf("Dropped %d stale %s of %s", len(dropped),
			pickNoun(len(dropped), "message", "messages"), sender)
	}
	mp.dropQueueIfEmpty(q)
}

// resync reconciles every queue with the head currently reported by the
// chain.  Deferred blocks are discarded since the chain they belonged to is
// no longer known.
//
// This function MUST be called with the head lock held.
func (mp *Pool) resync(ctx context.Context) error {
	head, err := mp.cfg.Chain.Head(ctx)
	if err != nil {
		return fmt.Errorf("load head: %w", err)
	}
	state := head.State()

	mp.mtx.RLock()
	baseFee := mp.baseFee
	senders := make([]address.Address, 0, len(mp.queues))
	for sender := range mp.queues {
		senders = append(senders, sender)
	}
	mp.mtx.RUnlock()

	if fee, err := mp.cfg.State.BaseFee(ctx, state); err == nil {
		baseFee = fee
	} else {
		log.Warnf("Unable to resolve the base fee at %v: %v", head.Cid(),
			err)
	}

	deferred := deferredWork{senders: make(map[address.Address]struct{})}
	actors := make(map[address.Address]*Actor, len(senders))
	for _, sender := range senders {
		actor, err := mp.resolveActor(ctx, sender, state)
		if err != nil {
			deferred.senders[sender] = struct{}{}
			continue
		}
		actors[sender] = actor
	}

	mp.mtx.Lock()
	for sender, actor := range actors {
		mp.reconcileSender(sender, actor)
	}
	for sender := range mp.queues {
		if _, ok := actors[sender]; !ok {
			deferred.senders[sender] = struct{}{}
		}
	}
	mp.head = head
	mp.baseFee = baseFee
	mp.headGen++
	mp.mtx.Unlock()

	mp.deferred = deferred
	mp.metrics.deferred.Set(float64(deferred.size()))

	log.Infof("Resynced with chain head %v at height %d", head.Cid(),
		head.Height())

	return nil
}
