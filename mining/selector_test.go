// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"sort"
	"testing"

	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/wire"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const testBlockGasLimit = 10_000_000_000

func testSender(t require.TestingT, id uint64) address.Address {
	addr, err := address.NewIDAddress(id)
	require.NoError(t, err)
	return addr
}

// newDesc builds a descriptor for a message with the given parameters.  The
// signature is a placeholder; selection never looks at it.
func newDesc(t require.TestingT, from address.Address, nonce uint64, premium,
	feeCap uint64, gasLimit int64) *MsgDesc {

	sm := wire.NewSignedMessage(wire.Message{
		To:         testSender(t, 99),
		From:       from,
		Nonce:      nonce,
		GasLimit:   gasLimit,
		GasFeeCap:  wire.NewTokenAmount(feeCap),
		GasPremium: wire.NewTokenAmount(premium),
	}, wire.Signature{Type: wire.SigTypeSecp256k1, Data: []byte{1}})
	c, err := sm.Cid()
	require.NoError(t, err)
	return &MsgDesc{Msg: sm, Cid: c}
}

func nonces(descs []*MsgDesc) []uint64 {
	out := make([]uint64, 0, len(descs))
	for _, desc := range descs {
		out = append(out, desc.Nonce())
	}
	return out
}

// TestSelectNonceOrder checks that a sender's higher premium at a later
// nonce does not jump the queue.
func TestSelectNonceOrder(t *testing.T) {
	t.Parallel()

	a := testSender(t, 1)
	view := &SourceView{
		BaseFee: wire.NewTokenAmount(100),
		Queues: []SenderQueue{{
			Sender:     a,
			ChainNonce: 3,
			Msgs: []*MsgDesc{
				newDesc(t, a, 3, 10, 1000, 1_000_000),
				newDesc(t, a, 4, 12, 1000, 1_000_000),
			},
		}},
	}

	selected := SelectFromView(view, nil, testBlockGasLimit, testBlockGasLimit)
	require.Equal(t, []uint64{3, 4}, nonces(selected))
}

// TestSelectNonceGap checks that a sender whose lowest pending nonce is
// above its chain nonce has nothing selected.
func TestSelectNonceGap(t *testing.T) {
	t.Parallel()

	a := testSender(t, 1)
	b := testSender(t, 2)
	view := &SourceView{
		BaseFee: wire.NewTokenAmount(100),
		Queues: []SenderQueue{
			{
				Sender:     a,
				ChainNonce: 4,
				Msgs: []*MsgDesc{
					newDesc(t, a, 5, 50, 1000, 1000),
					newDesc(t, a, 6, 50, 1000, 1000),
					newDesc(t, a, 7, 50, 1000, 1000),
				},
			},
			{
				Sender:     b,
				ChainNonce: 0,
				Msgs: []*MsgDesc{
					newDesc(t, b, 0, 1, 1000, 1000),
					newDesc(t, b, 2, 1, 1000, 1000),
				},
			},
		},
	}

	selected := SelectFromView(view, nil, testBlockGasLimit, testBlockGasLimit)
	require.Len(t, selected, 1)
	require.Equal(t, b, selected[0].Msg.From())
	require.Equal(t, uint64(0), selected[0].Nonce())
}

// TestSelectBudget checks that selection stops at the first candidate that
// does not fit.
func TestSelectBudget(t *testing.T) {
	t.Parallel()

	a := testSender(t, 1)
	b := testSender(t, 2)
	view := &SourceView{
		BaseFee: wire.NewTokenAmount(100),
		Queues: []SenderQueue{
			{Sender: a, Msgs: []*MsgDesc{newDesc(t, a, 0, 90, 1000, 600)}},
			{Sender: b, Msgs: []*MsgDesc{newDesc(t, b, 0, 10, 1000, 300)}},
		},
	}

	// The best scoring message does not fit, so nothing is selected.
	require.Empty(t, SelectFromView(view, nil, 500, testBlockGasLimit))

	selected := SelectFromView(view, nil, 900, testBlockGasLimit)
	require.Len(t, selected, 2)
	require.Equal(t, a, selected[0].Msg.From())

	require.Empty(t, SelectFromView(view, nil, 0, testBlockGasLimit))
	require.Empty(t, SelectFromView(nil, nil, 900, testBlockGasLimit))
}

// TestSelectWhitelist checks that only whitelisted senders are selected.
func TestSelectWhitelist(t *testing.T) {
	t.Parallel()

	a := testSender(t, 1)
	b := testSender(t, 2)
	view := &SourceView{
		BaseFee: wire.NewTokenAmount(100),
		Queues: []SenderQueue{
			{Sender: a, Msgs: []*MsgDesc{newDesc(t, a, 0, 90, 1000, 100)}},
			{Sender: b, Msgs: []*MsgDesc{newDesc(t, b, 0, 10, 1000, 100)}},
		},
	}

	selected := SelectFromView(view, []address.Address{b},
		testBlockGasLimit, testBlockGasLimit)
	require.Len(t, selected, 1)
	require.Equal(t, b, selected[0].Msg.From())

	require.Empty(t, SelectFromView(view, []address.Address{},
		testBlockGasLimit, testBlockGasLimit))
}

// TestSelectTieBreak checks that equal scores are ordered by CID.
func TestSelectTieBreak(t *testing.T) {
	t.Parallel()

	var queues []SenderQueue
	for id := uint64(1); id <= 8; id++ {
		sender := testSender(t, id)
		queues = append(queues, SenderQueue{
			Sender: sender,
			Msgs:   []*MsgDesc{newDesc(t, sender, 0, 10, 1000, 100)},
		})
	}
	view := &SourceView{BaseFee: wire.NewTokenAmount(100), Queues: queues}

	selected := SelectFromView(view, nil, testBlockGasLimit, testBlockGasLimit)
	require.Len(t, selected, len(queues))
	require.True(t, sort.SliceIsSorted(selected, func(i, j int) bool {
		return string(selected[i].Cid.Bytes()) <
			string(selected[j].Cid.Bytes())
	}))

	// Reversing the input order does not change the result.
	for i, j := 0, len(queues)-1; i < j; i, j = i+1, j-1 {
		queues[i], queues[j] = queues[j], queues[i]
	}
	again := SelectFromView(view, nil, testBlockGasLimit, testBlockGasLimit)
	require.Equal(t, selected, again)
}

// TestSelectInclusionWeight checks that a poorly included sender loses
// against an equally paying sender with a clean history.
func TestSelectInclusionWeight(t *testing.T) {
	t.Parallel()

	spammer := testSender(t, 1)
	honest := testSender(t, 2)

	tracker := NewInclusionTracker(DefaultPolicy())
	for i := 0; i < 20; i++ {
		tracker.Observe([]address.Address{spammer, honest},
			map[address.Address]struct{}{honest: {}})
	}
	require.InDelta(t, 1.0, tracker.Weight(honest), 1e-9)
	require.Less(t, tracker.Weight(spammer), 0.5)
	require.GreaterOrEqual(t, tracker.Weight(spammer),
		DefaultMinInclusionWeight)

	view := &SourceView{
		BaseFee: wire.NewTokenAmount(100),
		Queues: []SenderQueue{
			{Sender: spammer, Msgs: []*MsgDesc{newDesc(t, spammer, 0, 10, 1000, 100)}},
			{Sender: honest, Msgs: []*MsgDesc{newDesc(t, honest, 0, 10, 1000, 100)}},
		},
		Weights: tracker.Weights(),
	}
	selected := SelectFromView(view, nil, 100, testBlockGasLimit)
	require.Len(t, selected, 1)
	require.Equal(t, honest, selected[0].Msg.From())

}

// TestInclusionRetention ensures a sender whose queue drained keeps its
// weight for the retention window and resumes from it when it has pending
// messages again.
func TestInclusionRetention(t *testing.T) {
	t.Parallel()

	spammer := testSender(t, 1)
	honest := testSender(t, 2)
	both := []address.Address{spammer, honest}
	hits := map[address.Address]struct{}{honest: {}}

	policy := DefaultPolicy()
	policy.InclusionRetention = 3
	tracker := NewInclusionTracker(policy)
	for i := 0; i < 10; i++ {
		tracker.Observe(both, hits)
	}
	weight := tracker.Weight(spammer)
	require.Less(t, weight, 0.5)

	// Draining the queue keeps the weight within the window.
	tracker.Idle(spammer)
	for i := 0; i < 2; i++ {
		tracker.Observe([]address.Address{honest}, hits)
		require.Equal(t, weight, tracker.Weight(spammer))
	}

	// Pending again, the sender continues from its history.
	tracker.Observe(both, hits)
	require.Less(t, tracker.Weight(spammer), weight)
	weight = tracker.Weight(spammer)

	// Idle for the whole window, the history is dropped.
	tracker.Idle(spammer)
	for i := 0; i < 2; i++ {
		tracker.Observe([]address.Address{honest}, hits)
	}
	require.Equal(t, weight, tracker.Weight(spammer))
	tracker.Observe([]address.Address{honest}, hits)
	require.Equal(t, 1.0, tracker.Weight(spammer))
	require.Equal(t, 1, tracker.Len())

	// Senders never tracked are not recorded as idle.
	tracker.Idle(testSender(t, 3))
	require.Equal(t, 1, tracker.Len())
}

// TestScore checks the scoring helpers.
func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		premium uint64
		feeCap  uint64
		baseFee uint64
		limit   int64
		weight  float64
		want    float64
	}{
		{"premium", 10, 1000, 100, 1000, 1, 10 * 1e7},
		{"capped premium", 500, 200, 100, 1000, 1, 100 * 1e7},
		{"half weight", 10, 1000, 100, 1000, 0.5, 5 * 1e7},
		{"below base fee", 10, 50, 100, 1000, 0.5, -100 * 1e7},
	}

	t.Logf("Running %d tests", len(tests))
	for _, test := range tests {
		msg := wire.Message{
			GasLimit:   test.limit,
			GasFeeCap:  wire.NewTokenAmount(test.feeCap),
			GasPremium: wire.NewTokenAmount(test.premium),
		}
		perf := GasPerformance(&msg, wire.NewTokenAmount(test.baseFee),
			testBlockGasLimit)
		require.InDelta(t, test.want, Score(perf, test.weight), 1e-3,
			test.name)
	}
}

// TestSelectProperties checks the budget bound and per sender nonce order on
// random views.
func TestSelectProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		numSenders := rapid.IntRange(1, 6).Draw(t, "senders")
		view := &SourceView{BaseFee: wire.NewTokenAmount(
			rapid.Uint64Range(0, 200).Draw(t, "basefee"))}
		for i := 0; i < numSenders; i++ {
			sender := testSender(t, uint64(i+1))
			chainNonce := rapid.Uint64Range(0, 3).Draw(t, "chainnonce")
			count := rapid.IntRange(0, 5).Draw(t, "count")
			q := SenderQueue{Sender: sender, ChainNonce: chainNonce}
			nonce := chainNonce + rapid.Uint64Range(0, 1).Draw(t, "gap")
			for j := 0; j < count; j++ {
				q.Msgs = append(q.Msgs, newDesc(t, sender, nonce,
					rapid.Uint64Range(0, 300).Draw(t, "premium"),
					rapid.Uint64Range(0, 300).Draw(t, "feecap"),
					rapid.Int64Range(1, 1000).Draw(t, "gaslimit")))
				nonce += 1 + rapid.Uint64Range(0, 1).Draw(t, "skip")
			}
			view.Queues = append(view.Queues, q)
		}
		budget := rapid.Int64Range(0, 3000).Draw(t, "budget")

		selected := SelectFromView(view, nil, budget, testBlockGasLimit)

		var gas int64
		next := make(map[address.Address]uint64)
		for _, q := range view.Queues {
			next[q.Sender] = q.ChainNonce
		}
		for _, desc := range selected {
			gas += desc.GasLimit()
			sender := desc.Msg.From()
			require.Equal(t, next[sender], desc.Nonce())
			next[sender]++
		}
		require.LessOrEqual(t, gas, budget)

		again := SelectFromView(view, nil, budget, testBlockGasLimit)
		require.Equal(t, selected, again)
	})
}
