// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package mempool provides a policy-enforced pool of unconfirmed messages.

A key responsibility of each node is to hold the signed messages that are
waiting to be included in a block, so block producers can pick from them and
so local messages keep being announced until they make it on chain.

Messages are admitted through Push, for messages originating at this node,
and Add, for messages received from the network.  Network messages are held
to stricter limits.  A message is admitted only when it is well formed, its
signature verifies against its sender, its nonce is not spent, its sender can
pay for it together with the sender's other pending messages and its gas fee
cap clears the floor derived from the current base fee.

Each sender has at most one pending message per nonce.  A message for an
occupied nonce replaces the pending one only when it raises the gas premium
by the configured percentage.  When a sender or the whole pool is at
capacity, the least valuable message is evicted in favour of a more valuable
one.

The pool follows the canonical head of the chain through HeadChange.  Messages
of reverted blocks are restored when still valid and messages of applied
blocks are removed.  Messages whose nonce became spent are purged.

# Errors

Errors returned by this package are either the raw errors provided by
underlying calls or of type mempool.RuleError.  A RuleError carries an
ErrorCode identifying the specific reason for the rejection.  Use IsErrorCode
to test for a code and IsTransient to tell whether a later head change may
lead to a different outcome.

# Events

Subscribe returns a stream of additions to and removals from the pending set.
Publishing never blocks the pool: a subscriber that falls behind by more than
its buffer is dropped and its channel is closed.
*/
package mempool
