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
	"github.com/stretchr/testify/mock"
)

// MockPublisher is a mock implementation of the Publisher interface.
type MockPublisher struct {
	mock.Mock
}

// Ensure the MockPublisher implements the Publisher interface.
var _ Publisher = (*MockPublisher)(nil)

// Publish broadcasts a signed message to the network.
func (m *MockPublisher) Publish(ctx context.Context, sm *wire.SignedMessage) error {
	args := m.Called(ctx, sm)
	return args.Error(0)
}

// MockMsgPool is a mock implementation of the MsgPool interface.
type MockMsgPool struct {
	mock.Mock
}

// Ensure the MockMsgPool implements the MsgPool interface.
var _ MsgPool = (*MockMsgPool)(nil)

// Push validates a locally originated message and adds it to the pool.
func (m *MockMsgPool) Push(ctx context.Context, sm *wire.SignedMessage) (cid.Cid, error) {
	args := m.Called(ctx, sm)
	return args.Get(0).(cid.Cid), args.Error(1)
}

// Add validates a message received from the network and adds it to the
// pool.
func (m *MockMsgPool) Add(ctx context.Context, sm *wire.SignedMessage) (cid.Cid, error) {
	args := m.Called(ctx, sm)
	return args.Get(0).(cid.Cid), args.Error(1)
}

// Remove removes the message of sender at nonce.
func (m *MockMsgPool) Remove(sender address.Address, nonce uint64) bool {
	args := m.Called(sender, nonce)
	return args.Bool(0)
}

// PendingFor returns the pending messages of sender.
func (m *MockMsgPool) PendingFor(sender address.Address) []*wire.SignedMessage {
	args := m.Called(sender)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*wire.SignedMessage)
}

// Pending returns every pending message along with the pool head.
func (m *MockMsgPool) Pending() ([]*wire.SignedMessage, Block) {
	args := m.Called()

	var head Block
	if args.Get(1) != nil {
		head = args.Get(1).(Block)
	}
	if args.Get(0) == nil {
		return nil, head
	}
	return args.Get(0).([]*wire.SignedMessage), head
}

// Size returns the number of pending messages.
func (m *MockMsgPool) Size() int {
	args := m.Called()
	return args.Int(0)
}

// GetNonce returns the nonce the next message of sender should carry.
func (m *MockMsgPool) GetNonce(ctx context.Context,
	sender address.Address) (uint64, error) {

	args := m.Called(ctx, sender)
	return args.Get(0).(uint64), args.Error(1)
}

// SelectForBlock returns the messages to propose for the next block.
func (m *MockMsgPool) SelectForBlock(whitelist []address.Address,
	gasBudget int64) []*wire.SignedMessage {

	args := m.Called(whitelist, gasBudget)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*wire.SignedMessage)
}

// Subscribe returns a subscription to changes of the pending set.
func (m *MockMsgPool) Subscribe() *Subscription {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*Subscription)
}

// LastUpdated returns the last time the pool changed.
func (m *MockMsgPool) LastUpdated() time.Time {
	args := m.Called()
	return args.Get(0).(time.Time)
}
