// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"

	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/mining"
	"github.com/btcsuite/msgpool/wire"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// queueDesc returns a descriptor for an unsigned message of sender.
func queueDesc(t require.TestingT, sender address.Address, nonce,
	premium uint64) *mining.MsgDesc {

	msg := wire.Message{
		To:         sender,
		From:       sender,
		Nonce:      nonce,
		Value:      wire.NewTokenAmount(1),
		GasLimit:   10,
		GasFeeCap:  wire.NewTokenAmount(premium + 1),
		GasPremium: wire.NewTokenAmount(premium),
	}
	sm := wire.NewSignedMessage(msg, wire.Signature{
		Type: wire.SigTypeSecp256k1,
		Data: []byte{byte(nonce), byte(premium)},
	})
	c, err := sm.Cid()
	require.NoError(t, err)
	return &mining.MsgDesc{Msg: sm, Cid: c}
}

// TestMsgQueue ensures the queue keeps one message per nonce and tracks the
// funds its messages require.
func TestMsgQueue(t *testing.T) {
	t.Parallel()

	sender, err := address.NewIDAddress(5)
	require.NoError(t, err)
	q := newMsgQueue(sender, 2)

	for _, nonce := range []uint64{4, 2, 3, 7} {
		require.Nil(t, q.Put(queueDesc(t, sender, nonce, 1)))
	}
	require.Equal(t, 4, q.Len())
	require.EqualValues(t, 5, q.NextNonce())
	require.EqualValues(t, 7, q.Tail().Nonce())

	replacement := queueDesc(t, sender, 3, 9)
	replaced := q.Put(replacement)
	require.NotNil(t, replaced)
	require.EqualValues(t, 3, replaced.Nonce())
	got, ok := q.Get(3)
	require.True(t, ok)
	require.Equal(t, replacement, got)

	var nonces []uint64
	for _, desc := range q.Ascending() {
		nonces = append(nonces, desc.Nonce())
	}
	require.Equal(t, []uint64{2, 3, 4, 7}, nonces)

	pruned := q.PruneBelow(4)
	require.Len(t, pruned, 2)
	_, ok = q.Remove(7)
	require.True(t, ok)
	_, ok = q.Remove(7)
	require.False(t, ok)

	snapshot := q.queueSnapshot()
	require.Equal(t, sender, snapshot.Sender)
	require.Len(t, snapshot.Msgs, 1)
	require.Equal(t, q.Tail().Msg.Message.TotalCost(), q.requiredFunds)
}

// TestMsgQueueFundsProperty ensures the required funds always equal the
// total cost of the queued messages.
func TestMsgQueueFundsProperty(t *testing.T) {
	t.Parallel()

	sender, err := address.NewIDAddress(5)
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		q := newMsgQueue(sender, 0)
		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			nonce := rapid.Uint64Range(0, 10).Draw(rt, "nonce")
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				premium := rapid.Uint64Range(0, 100).Draw(rt, "premium")
				q.Put(queueDesc(rt, sender, nonce, premium))
			case 1:
				q.Remove(nonce)
			case 2:
				q.PruneBelow(nonce)
			}

			var want wire.TokenAmount
			for _, desc := range q.Ascending() {
				want = want.Add(desc.Msg.Message.TotalCost())
			}
			require.Equal(rt, want, q.requiredFunds)
		}
	})
}
