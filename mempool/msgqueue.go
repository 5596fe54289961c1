// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/mining"
	"github.com/btcsuite/msgpool/wire"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
)

// msgQueue holds the pending messages of one sender keyed by nonce.  There
// is at most one message per nonce.
//
// msgQueue is not safe for concurrent access.  It is owned by the pool and
// only used with the pool lock held.
type msgQueue struct {
	sender address.Address

	// msgs maps nonces to *mining.MsgDesc in ascending nonce order.
	msgs *treemap.Map

	// chainNonce is the nonce of the sender as of the pool head.
	chainNonce uint64

	// requiredFunds is the sum of the total cost of every queued message.
	requiredFunds wire.TokenAmount
}

// newMsgQueue returns an empty queue for sender.
func newMsgQueue(sender address.Address, chainNonce uint64) *msgQueue {
	return &msgQueue{
		sender:     sender,
		msgs:       treemap.NewWith(utils.UInt64Comparator),
		chainNonce: chainNonce,
	}
}

// Len returns the number of queued messages.
func (q *msgQueue) Len() int {
	return q.msgs.Size()
}

// Get returns the message queued at nonce.
func (q *msgQueue) Get(nonce uint64) (*mining.MsgDesc, bool) {
	v, ok := q.msgs.Get(nonce)
	if !ok {
		return nil, false
	}
	return v.(*mining.MsgDesc), true
}

// Put queues desc at its nonce and returns the message it replaced, if
// any.
func (q *msgQueue) Put(desc *mining.MsgDesc) *mining.MsgDesc {
	nonce := desc.Nonce()
	replaced, _ := q.Get(nonce)
	if replaced != nil {
		q.requiredFunds = q.requiredFunds.Sub(replaced.Msg.Message.TotalCost())
	}
	q.msgs.Put(nonce, desc)
	q.requiredFunds = q.requiredFunds.Add(desc.Msg.Message.TotalCost())
	return replaced
}

// Remove removes and returns the message queued at nonce.
func (q *msgQueue) Remove(nonce uint64) (*mining.MsgDesc, bool) {
	desc, ok := q.Get(nonce)
	if !ok {
		return nil, false
	}
	q.msgs.Remove(nonce)
	q.requiredFunds = q.requiredFunds.Sub(desc.Msg.Message.TotalCost())
	return desc, true
}

// Tail returns the message with the highest nonce.
func (q *msgQueue) Tail() *mining.MsgDesc {
	_, v := q.msgs.Max()
	if v == nil {
		return nil
	}
	return v.(*mining.MsgDesc)
}

// Ascending returns the queued messages in ascending nonce order.
func (q *msgQueue) Ascending() []*mining.MsgDesc {
	descs := make([]*mining.MsgDesc, 0, q.msgs.Size())
	it := q.msgs.Iterator()
	for it.Next() {
		descs = append(descs, it.Value().(*mining.MsgDesc))
	}
	return descs
}

// NextNonce returns the nonce following the run of consecutive queued
// nonces that starts at the chain nonce.  This is the nonce the next new
// message of the sender should use.
func (q *msgQueue) NextNonce() uint64 {
	next := q.chainNonce
	for {
		if _, ok := q.msgs.Get(next); !ok {
			return next
		}
		next++
	}
}

// PruneBelow removes and returns every message with a nonce below nonce.
func (q *msgQueue) PruneBelow(nonce uint64) []*mining.MsgDesc {
	var pruned []*mining.MsgDesc
	for {
		k, v := q.msgs.Min()
		if k == nil || k.(uint64) >= nonce {
			return pruned
		}
		desc := v.(*mining.MsgDesc)
		q.msgs.Remove(k)
		q.requiredFunds = q.requiredFunds.Sub(desc.Msg.Message.TotalCost())
		pruned = append(pruned, desc)
	}
}

// queueSnapshot returns a copy of the queue as seen by the block producer.
func (q *msgQueue) queueSnapshot() mining.SenderQueue {
	return mining.SenderQueue{
		Sender:     q.sender,
		ChainNonce: q.chainNonce,
		Msgs:       q.Ascending(),
	}
}
