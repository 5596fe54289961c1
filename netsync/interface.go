// Copyright (c) 2017 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/btcsuite/msgpool/chaincfg"
	"github.com/btcsuite/msgpool/mempool"
	"github.com/btcsuite/msgpool/wire"
)

// NetMessage is a signed message received from the network.
type NetMessage struct {
	// From identifies the peer that forwarded the message.
	From string

	// Data is the encoded signed message.
	Data []byte

	// Msg is the decoded message when the transport already decoded it
	// and nil otherwise.
	Msg *wire.SignedMessage
}

// MessageStream is a subscription to the signed messages gossiped on the
// network.
type MessageStream interface {
	// Next blocks until the next message arrives, the context is done
	// or the stream fails.
	Next(ctx context.Context) (*NetMessage, error)

	// Cancel ends the subscription.
	Cancel()
}

// Network is the gossip transport of signed messages.
//
// The interface contract requires that all of these methods are safe for
// concurrent access.
type Network interface {
	// Publish gossips an encoded signed message to the network.
	Publish(ctx context.Context, data []byte) error

	// Subscribe returns a stream of the messages gossiped by other peers.
	Subscribe() (MessageStream, error)
}

// Config is a configuration struct used to initialize a new SyncManager.
type Config struct {
	// Network is the transport messages are received from.
	Network Network

	// MsgPool receives every message decoded from the network.
	MsgPool mempool.MsgPool

	// ChainParams identifies the network.
	ChainParams *chaincfg.Params

	// SubscribeAttempts is the number of attempts to subscribe to the
	// network before the manager gives up.
	SubscribeAttempts uint

	// SubscribeRetryDelay is the initial delay between subscription
	// attempts.  The delay doubles on every failed attempt.
	SubscribeRetryDelay time.Duration

	// Clock is used for progress logging.  It defaults to the wall clock.
	Clock clock.Clock
}
