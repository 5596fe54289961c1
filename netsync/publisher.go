// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"context"
	"fmt"

	"github.com/btcsuite/msgpool/mempool"
	"github.com/btcsuite/msgpool/wire"
)

// Publisher announces the messages of the pool to the network.
type Publisher struct {
	net Network
}

// Ensure Publisher implements the publisher interface of the pool.
var _ mempool.Publisher = (*Publisher)(nil)

// NewPublisher returns a publisher gossiping through net.
func NewPublisher(net Network) *Publisher {
	return &Publisher{net: net}
}

// Publish encodes the signed message and gossips it to the network.
//
// This function is safe for concurrent access.
func (p *Publisher) Publish(ctx context.Context, sm *wire.SignedMessage) error {
	data, err := sm.Serialize()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := p.net.Publish(ctx, data); err != nil {
		return fmt.Errorf("publish message %v: %w", sm.MustCid(), err)
	}
	return nil
}
