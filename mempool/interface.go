// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"context"
	"time"

	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/wire"
	"github.com/ipfs/go-cid"
)

// Actor is the on-chain state of an account as far as the pool is
// concerned.
type Actor struct {
	// Nonce is the nonce the next executed message of the account must
	// carry.
	Nonce uint64

	// Balance is the spendable balance of the account.
	Balance wire.TokenAmount
}

// Block is a block of the chain as seen by the pool.
type Block interface {
	// Cid returns the identity of the block.
	Cid() cid.Cid

	// Parent returns the identity of the parent block.
	Parent() cid.Cid

	// Height returns the height of the block.
	Height() uint64

	// Messages returns the messages of the block in execution order.
	Messages() []*wire.SignedMessage

	// ParentState returns the state root as of immediately before the
	// messages of the block are executed.
	ParentState() cid.Cid

	// State returns the state root as of immediately after the messages
	// of the block are executed.
	State() cid.Cid
}

// HeadChange describes a move of the canonical head.  Revert holds the
// blocks leaving the canonical chain and Apply the blocks joining it, both
// oldest first.  The last reverted block is the previous head and the last
// applied block is the new head.
type HeadChange struct {
	Revert []Block
	Apply  []Block
}

// StateProvider resolves account state and the base fee at a state root.
//
// The interface contract requires that all of these methods are safe for
// concurrent access.
type StateProvider interface {
	// ResolveActor returns the account of addr at the given state root.
	// It returns ErrActorNotFound when the account does not exist.
	ResolveActor(ctx context.Context, addr address.Address,
		state cid.Cid) (*Actor, error)

	// BaseFee returns the base fee that applies to messages executed on
	// top of the given state root.
	BaseFee(ctx context.Context, state cid.Cid) (wire.TokenAmount, error)
}

// ChainSync is the chain synchronization collaborator that supplies the
// canonical head and its changes.
type ChainSync interface {
	// Head returns the current canonical head.
	Head(ctx context.Context) (Block, error)

	// LoadBlock returns the block with the given identity.
	LoadBlock(ctx context.Context, c cid.Cid) (Block, error)

	// SubscribeHeadChanges returns a channel receiving every head change
	// in delivery order along with a function that cancels the
	// subscription and closes the channel.
	SubscribeHeadChanges() (<-chan *HeadChange, func())
}

// Publisher announces messages to the network.
type Publisher interface {
	// Publish broadcasts a signed message to the network.
	Publish(ctx context.Context, sm *wire.SignedMessage) error
}

// MsgPool is the interface of the message pool used by the network intake
// and the notification server.
//
// The interface contract requires that all of these methods are safe for
// concurrent access.
type MsgPool interface {
	// Push validates a locally originated message, adds it to the pool
	// and announces it to the network.
	Push(ctx context.Context, sm *wire.SignedMessage) (cid.Cid, error)

	// Add validates a message received from the network and adds it to
	// the pool.
	Add(ctx context.Context, sm *wire.SignedMessage) (cid.Cid, error)

	// Remove removes the message of sender at nonce.  It is not an error
	// when no such message is pending.
	Remove(sender address.Address, nonce uint64) bool

	// PendingFor returns the pending messages of sender in ascending
	// nonce order.
	PendingFor(sender address.Address) []*wire.SignedMessage

	// Pending returns every pending message along with the head the pool
	// is validated against.
	Pending() ([]*wire.SignedMessage, Block)

	// Size returns the number of pending messages.
	Size() int

	// GetNonce returns the nonce the next message of sender should carry.
	GetNonce(ctx context.Context, sender address.Address) (uint64, error)

	// SelectForBlock returns the messages to propose for the next block
	// within the gas budget.
	SelectForBlock(whitelist []address.Address,
		gasBudget int64) []*wire.SignedMessage

	// Subscribe returns a subscription to changes of the pending set.
	Subscribe() *Subscription

	// LastUpdated returns the last time a message was added to or
	// removed from the pool.
	LastUpdated() time.Time
}
