// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2016 The Decred developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"time"

	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/wire"
	"github.com/ipfs/go-cid"
)

// MsgDesc is a descriptor about a message in a message source along with
// additional metadata.
type MsgDesc struct {
	// Msg is the signed message associated with the entry.
	Msg *wire.SignedMessage

	// Cid is the identity of the message.
	Cid cid.Cid

	// Added is the time when the entry was added to the source pool.
	Added time.Time

	// Height is the chain height when the entry was added to the source
	// pool.
	Height uint64

	// Local is set for messages submitted by this node rather than
	// received from the network.
	Local bool
}

// Nonce returns the sender sequence number of the message.
func (d *MsgDesc) Nonce() uint64 {
	return d.Msg.Message.Nonce
}

// GasLimit returns the gas limit of the message.
func (d *MsgDesc) GasLimit() int64 {
	return d.Msg.Message.GasLimit
}

// SenderQueue is the pending messages of one sender as seen by the block
// producer.
type SenderQueue struct {
	// Sender is the address all messages of the queue are sent from.
	Sender address.Address

	// ChainNonce is the nonce of the sender as of the current head.  Only
	// a message with exactly this nonce can be included next.
	ChainNonce uint64

	// Msgs holds the pending messages in ascending nonce order.
	Msgs []*MsgDesc
}

// SourceView is a consistent snapshot of a message source taken for the
// assembly of one block.
type SourceView struct {
	// BaseFee is the base fee of the block being assembled.
	BaseFee wire.TokenAmount

	// Queues holds one entry per sender with pending messages.
	Queues []SenderQueue

	// Weights maps senders to their inclusion weight.  Senders without an
	// entry have weight 1.
	Weights map[address.Address]float64
}

// MsgSource represents a source of messages to consider for inclusion in
// new blocks.
//
// The interface contract requires that all of these methods are safe for
// concurrent access with respect to the source.
type MsgSource interface {
	// LastUpdated returns the last time a message was added to or
	// removed from the source pool.
	LastUpdated() time.Time

	// MiningView returns a consistent snapshot of the pending messages
	// of the source pool.
	MiningView() *SourceView
}
