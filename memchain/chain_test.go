// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memchain

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/chaincfg"
	"github.com/btcsuite/msgpool/mempool"
	"github.com/btcsuite/msgpool/sigs"
	"github.com/btcsuite/msgpool/wire"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

// testGasLimit is the gas limit of the test messages.
const testGasLimit = 1_000_000

// chainHarness holds a chain funding a single signing key.
type chainHarness struct {
	t      *testing.T
	key    *btcec.PrivateKey
	sender address.Address
	to     address.Address
	chain  *Chain
}

// newChainHarness returns a chain whose genesis funds one key with
// balance.
func newChainHarness(t *testing.T, balance wire.TokenAmount) *chainHarness {
	t.Helper()

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	sender, err := sigs.AddressOf(key)
	require.NoError(t, err)
	to, err := address.NewIDAddress(100)
	require.NoError(t, err)

	chain, err := New(&chaincfg.SimNetParams,
		map[address.Address]wire.TokenAmount{sender: balance})
	require.NoError(t, err)

	return &chainHarness{t: t, key: key, sender: sender, to: to, chain: chain}
}

// newMsg returns a signed transfer of value with the given nonce and
// premium.
func (h *chainHarness) newMsg(nonce, value, premium uint64) *wire.SignedMessage {
	h.t.Helper()

	baseFee := chaincfg.SimNetParams.InitialBaseFee
	sm, err := sigs.Sign(h.key, wire.Message{
		Version:    wire.MessageVersion,
		To:         h.to,
		From:       h.sender,
		Nonce:      nonce,
		Value:      wire.NewTokenAmount(value),
		GasLimit:   testGasLimit,
		GasFeeCap:  baseFee.Add(wire.NewTokenAmount(premium)),
		GasPremium: wire.NewTokenAmount(premium),
		Method:     wire.MethodSend,
	})
	require.NoError(h.t, err)
	return sm
}

// actor returns the account of addr at the state of block.
func (h *chainHarness) actor(block mempool.Block, addr address.Address) *mempool.Actor {
	h.t.Helper()

	actor, err := h.chain.ResolveActor(context.Background(), addr, block.State())
	require.NoError(h.t, err)
	return actor
}

// blockCids returns the identities of blocks.
func blockCids(blocks []mempool.Block) []cid.Cid {
	cids := make([]cid.Cid, 0, len(blocks))
	for _, b := range blocks {
		cids = append(cids, b.Cid())
	}
	return cids
}

// TestExecute ensures blocks execute messages in order, charge their gas
// and skip the ones that cannot be executed.
func TestExecute(t *testing.T) {
	t.Parallel()

	h := newChainHarness(t, wire.NewTokenAmount(1_000_000_000))
	genesis := h.chain.Genesis()

	msgs := []*wire.SignedMessage{
		h.newMsg(0, 10, 5),
		h.newMsg(2, 10, 5),
		h.newMsg(1, 20, 0),
	}
	block, err := h.chain.Extend(msgs)
	require.NoError(t, err)
	require.Equal(t, genesis.Cid(), block.Parent())
	require.Equal(t, genesis.State(), block.ParentState())
	require.EqualValues(t, 1, block.Height())
	require.Equal(t, []*wire.SignedMessage{msgs[0], msgs[2]}, block.Messages())

	// The sender paid the base fee plus the premium for each message.
	spent := uint64(10 + 105*testGasLimit + 20 + 100*testGasLimit)
	sender := h.actor(block, h.sender)
	require.EqualValues(t, 2, sender.Nonce)
	require.Equal(t, wire.NewTokenAmount(1_000_000_000-spent), sender.Balance)
	require.Equal(t, wire.NewTokenAmount(30), h.actor(block, h.to).Balance)

	// The genesis state is unaffected.
	require.Zero(t, h.actor(genesis, h.sender).Nonce)

	head, err := h.chain.Head(context.Background())
	require.NoError(t, err)
	require.Equal(t, block.Cid(), head.Cid())
}

// TestExecuteInsufficientFunds ensures a message the sender cannot cover
// is left out of the block.
func TestExecuteInsufficientFunds(t *testing.T) {
	t.Parallel()

	h := newChainHarness(t, wire.NewTokenAmount(200*testGasLimit))

	affordable := h.newMsg(0, 0, 0)
	unaffordable := h.newMsg(1, 0, 150)
	block, err := h.chain.Extend([]*wire.SignedMessage{affordable, unaffordable})
	require.NoError(t, err)
	require.Equal(t, []*wire.SignedMessage{affordable}, block.Messages())
	require.EqualValues(t, 1, h.actor(block, h.sender).Nonce)
}

// TestResolveActor ensures lookups of unknown accounts and state roots are
// reported distinctly.
func TestResolveActor(t *testing.T) {
	t.Parallel()

	h := newChainHarness(t, wire.Coins(1))
	ctx := context.Background()
	state := h.chain.Genesis().State()

	_, err := h.chain.ResolveActor(ctx, h.to, state)
	require.ErrorIs(t, err, mempool.ErrActorNotFound)

	_, err = h.chain.ResolveActor(ctx, h.sender, h.chain.Genesis().Cid())
	require.ErrorIs(t, err, ErrUnknownState)

	_, err = h.chain.LoadBlock(ctx, state)
	require.ErrorIs(t, err, ErrUnknownBlock)

	baseFee, err := h.chain.BaseFee(ctx, state)
	require.NoError(t, err)
	require.Equal(t, chaincfg.SimNetParams.InitialBaseFee, baseFee)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.chain.ResolveActor(canceled, h.sender, state)
	require.ErrorIs(t, err, context.Canceled)
}

// TestReorganize ensures moving the head across forks reverts and applies
// the right blocks, oldest first, and announces the change.
func TestReorganize(t *testing.T) {
	t.Parallel()

	h := newChainHarness(t, wire.Coins(1))
	genesis := h.chain.Genesis().Cid()

	changes, unsubscribe := h.chain.SubscribeHeadChanges()
	defer unsubscribe()

	a1, err := h.chain.NewBlock(genesis, nil)
	require.NoError(t, err)
	a2, err := h.chain.NewBlock(a1.Cid(), nil)
	require.NoError(t, err)
	b1, err := h.chain.NewBlock(genesis, nil)
	require.NoError(t, err)
	require.NotEqual(t, a1.Cid(), b1.Cid(), "sibling blocks share identity")
	b2, err := h.chain.NewBlock(b1.Cid(), nil)
	require.NoError(t, err)
	b3, err := h.chain.NewBlock(b2.Cid(), nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		head   *Block
		revert []cid.Cid
		apply  []cid.Cid
	}{{
		name:  "extend from genesis",
		head:  a2,
		apply: []cid.Cid{a1.Cid(), a2.Cid()},
	}, {
		name:   "switch to longer fork",
		head:   b3,
		revert: []cid.Cid{a1.Cid(), a2.Cid()},
		apply:  []cid.Cid{b1.Cid(), b2.Cid(), b3.Cid()},
	}, {
		name:   "rewind",
		head:   b1,
		revert: []cid.Cid{b2.Cid(), b3.Cid()},
		apply:  []cid.Cid{},
	}, {
		name:   "switch to shorter fork",
		head:   a1,
		revert: []cid.Cid{b1.Cid()},
		apply:  []cid.Cid{a1.Cid()},
	}}

	t.Logf("Running %d tests", len(tests))
	for _, test := range tests {
		hc, err := h.chain.SetHead(test.head.Cid())
		require.NoError(t, err, test.name)

		revert := test.revert
		if revert == nil {
			revert = []cid.Cid{}
		}
		require.Equal(t, revert, blockCids(hc.Revert), test.name)
		require.Equal(t, test.apply, blockCids(hc.Apply), test.name)
		require.Equal(t, test.head, h.chain.BestBlock(), test.name)

		select {
		case got := <-changes:
			require.Equal(t, hc, got, test.name)
		case <-time.After(time.Second):
			t.Fatalf("%s: head change not announced", test.name)
		}
	}

	// Setting the current head again is not announced.
	hc, err := h.chain.SetHead(a1.Cid())
	require.NoError(t, err)
	require.Empty(t, hc.Revert)
	require.Empty(t, hc.Apply)
	select {
	case got := <-changes:
		t.Fatalf("unexpected head change %v", got)
	default:
	}

	_, err = h.chain.SetHead(a1.State())
	require.ErrorIs(t, err, ErrUnknownBlock)
}

// TestUnsubscribe ensures a canceled subscription is closed and no longer
// delays head moves.
func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	h := newChainHarness(t, wire.Coins(1))
	changes, unsubscribe := h.chain.SubscribeHeadChanges()

	for i := 0; i < DefaultNotificationBuffer; i++ {
		_, err := h.chain.Extend(nil)
		require.NoError(t, err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.chain.Extend(nil)
		done <- err
	}()

	unsubscribe()
	unsubscribe()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("head move blocked by a canceled subscription")
	}

	var received int
	for range changes {
		received++
	}
	require.GreaterOrEqual(t, received, DefaultNotificationBuffer)
}

// TestNextBaseFee ensures the base fee tracks the gas used by the previous
// block and respects the network minimum.
func TestNextBaseFee(t *testing.T) {
	t.Parallel()

	params := chaincfg.SimNetParams
	params.MinimumBaseFee = wire.NewTokenAmount(100)
	target := params.BlockGasLimit / 2

	tests := []struct {
		name    string
		baseFee uint64
		gasUsed int64
		want    uint64
	}{
		{"at target", 1000, target, 1000},
		{"full block", 1000, params.BlockGasLimit, 1125},
		{"empty block", 1000, 0, 875},
		{"floor", 100, 0, 100},
		{"below floor", 50, target, 100},
	}

	t.Logf("Running %d tests", len(tests))
	for _, test := range tests {
		got := nextBaseFee(&params, wire.NewTokenAmount(test.baseFee),
			test.gasUsed)
		require.Equal(t, wire.NewTokenAmount(test.want), got, test.name)
	}
}
