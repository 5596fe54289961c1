// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/chaincfg"
	"github.com/btcsuite/msgpool/sigs"
	"github.com/btcsuite/msgpool/wire"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

// errStateUnavailable is returned by the fake chain for state roots marked
// unavailable.
var errStateUnavailable = errors.New("state unavailable")

// fakeBlock is a block of the fake chain.
type fakeBlock struct {
	cid         cid.Cid
	parent      cid.Cid
	height      uint64
	msgs        []*wire.SignedMessage
	parentState cid.Cid
	state       cid.Cid
}

func (b *fakeBlock) Cid() cid.Cid                    { return b.cid }
func (b *fakeBlock) Parent() cid.Cid                 { return b.parent }
func (b *fakeBlock) Height() uint64                  { return b.height }
func (b *fakeBlock) Messages() []*wire.SignedMessage { return b.msgs }
func (b *fakeBlock) ParentState() cid.Cid            { return b.parentState }
func (b *fakeBlock) State() cid.Cid                  { return b.state }

// fakeChain is used by the pool harness to provide accounts at every state
// root it produced along with a canonical head.  Blocks only bump the nonce
// and charge the total cost of their messages.
type fakeChain struct {
	sync.RWMutex
	head        Block
	blocks      map[cid.Cid]Block
	states      map[cid.Cid]map[address.Address]Actor
	baseFee     wire.TokenAmount
	unavailable map[cid.Cid]struct{}
	subs        []chan *HeadChange
	nextID      int

	// onResolve is called outside the lock before every account lookup.
	onResolve func(addr address.Address)
}

// newFakeChain returns a chain with a genesis block whose state funds the
// given accounts.
func newFakeChain(baseFee wire.TokenAmount,
	funded map[address.Address]Actor) *fakeChain {

	c := &fakeChain{
		blocks:      make(map[cid.Cid]Block),
		states:      make(map[cid.Cid]map[address.Address]Actor),
		baseFee:     baseFee,
		unavailable: make(map[cid.Cid]struct{}),
	}
	state := c.newCid("state")
	c.states[state] = funded
	genesis := &fakeBlock{
		cid:         c.newCid("block"),
		parentState: state,
		state:       state,
	}
	c.blocks[genesis.cid] = genesis
	c.head = genesis
	return c
}

// newCid returns a fresh identity.
//
// This function MUST be called with the chain lock held (for writes).
func (c *fakeChain) newCid(kind string) cid.Cid {
	c.nextID++
	id, err := wire.ComputeCid([]byte(fmt.Sprintf("%s-%d", kind, c.nextID)))
	if err != nil {
		panic(err)
	}
	return id
}

// ResolveActor returns the account of addr at the given state root.
//
// This function is safe for concurrent access.
func (c *fakeChain) ResolveActor(ctx context.Context, addr address.Address,
	state cid.Cid) (*Actor, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.RLock()
	hook := c.onResolve
	c.RUnlock()
	if hook != nil {
		hook(addr)
	}

	c.RLock()
	defer c.RUnlock()

	if _, ok := c.unavailable[state]; ok {
		return nil, errStateUnavailable
	}
	accounts, ok := c.states[state]
	if !ok {
		return nil, fmt.Errorf("unknown state %v", state)
	}
	actor, ok := accounts[addr]
	if !ok {
		return nil, ErrActorNotFound
	}
	return &actor, nil
}

// BaseFee returns the base fee of the chain, which is the same at every
// state root.
//
// This function is safe for concurrent access.
func (c *fakeChain) BaseFee(ctx context.Context, state cid.Cid) (wire.TokenAmount, error) {
	c.RLock()
	defer c.RUnlock()

	if _, ok := c.unavailable[state]; ok {
		return wire.TokenAmount{}, errStateUnavailable
	}
	return c.baseFee, nil
}

// Head returns the canonical head.
//
// This function is safe for concurrent access.
func (c *fakeChain) Head(ctx context.Context) (Block, error) {
	c.RLock()
	defer c.RUnlock()

	return c.head, nil
}

// LoadBlock returns a block the chain produced.
//
// This function is safe for concurrent access.
func (c *fakeChain) LoadBlock(ctx context.Context, id cid.Cid) (Block, error) {
	c.RLock()
	defer c.RUnlock()

	b, ok := c.blocks[id]
	if !ok {
		return nil, fmt.Errorf("unknown block %v", id)
	}
	return b, nil
}

// SubscribeHeadChanges returns a channel receiving every head change sent
// through notify.
//
// This function is safe for concurrent access.
func (c *fakeChain) SubscribeHeadChanges() (<-chan *HeadChange, func()) {
	c.Lock()
	defer c.Unlock()

	ch := make(chan *HeadChange, 16)
	c.subs = append(c.subs, ch)
	return ch, func() {}
}

// notify delivers a head change to the subscribers.
func (c *fakeChain) notify(hc *HeadChange) {
	c.RLock()
	defer c.RUnlock()

	for _, ch := range c.subs {
		ch <- hc
	}
}

// mine produces a block on top of parent executing msgs.  The canonical
// head is not changed.
func (c *fakeChain) mine(parent Block, msgs ...*wire.SignedMessage) Block {
	return c.mineCredit(parent, nil, msgs...)
}

// mineCredit is like mine and additionally credits the given accounts.
func (c *fakeChain) mineCredit(parent Block, credits map[address.Address]wire.TokenAmount,
	msgs ...*wire.SignedMessage) Block {

	c.Lock()
	defer c.Unlock()

	accounts := make(map[address.Address]Actor)
	for addr, actor := range c.states[parent.State()] {
		accounts[addr] = actor
	}
	for addr, amount := range credits {
		actor := accounts[addr]
		actor.Balance = actor.Balance.Add(amount)
		accounts[addr] = actor
	}
	for _, sm := range msgs {
		actor := accounts[sm.Message.From]
		actor.Nonce++
		actor.Balance = actor.Balance.Sub(sm.Message.TotalCost())
		accounts[sm.Message.From] = actor
	}

	state := c.newCid("state")
	c.states[state] = accounts
	b := &fakeBlock{
		cid:         c.newCid("block"),
		parent:      parent.Cid(),
		height:      parent.Height() + 1,
		msgs:        msgs,
		parentState: parent.State(),
		state:       state,
	}
	c.blocks[b.cid] = b
	return b
}

// setOnResolve installs a hook run before every account lookup.
func (c *fakeChain) setOnResolve(hook func(addr address.Address)) {
	c.Lock()
	c.onResolve = hook
	c.Unlock()
}

// setHead makes b the canonical head.
func (c *fakeChain) setHead(b Block) {
	c.Lock()
	c.head = b
	c.Unlock()
}

// setUnavailable marks a state root as unresolvable or resolvable again.
func (c *fakeChain) setUnavailable(state cid.Cid, unavailable bool) {
	c.Lock()
	defer c.Unlock()

	if unavailable {
		c.unavailable[state] = struct{}{}
	} else {
		delete(c.unavailable, state)
	}
}

// poolHarness provides a harness that includes functionality for creating
// and signing messages from funded accounts as well as a fake chain that
// provides state to the pool.
type poolHarness struct {
	t      *testing.T
	keys   []*btcec.PrivateKey
	addrs  []address.Address
	to     address.Address
	chain  *fakeChain
	clock  *clock.Mock
	params *chaincfg.Params
	pool   *Pool
}

// harnessBalance is the balance of every funded harness account.
var harnessBalance = wire.Coins(1000)

// newPoolHarness returns a pool on simnet with numKeys funded accounts.  The
// options may adjust the pool configuration before the pool is created.
func newPoolHarness(t *testing.T, policy Policy, numKeys int,
	options ...func(*Config)) *poolHarness {

	t.Helper()

	params := &chaincfg.SimNetParams
	h := &poolHarness{
		t:      t,
		clock:  clock.NewMock(),
		params: params,
	}

	funded := make(map[address.Address]Actor, numKeys)
	for i := 0; i < numKeys; i++ {
		key, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		addr, err := sigs.AddressOf(key)
		require.NoError(t, err)

		h.keys = append(h.keys, key)
		h.addrs = append(h.addrs, addr)
		funded[addr] = Actor{Balance: harnessBalance}
	}

	to, err := address.NewIDAddress(1000)
	require.NoError(t, err)
	h.to = to

	h.chain = newFakeChain(params.InitialBaseFee, funded)
	cfg := &Config{
		Policy:      policy,
		ChainParams: params,
		State:       h.chain,
		Chain:       h.chain,
		Clock:       h.clock,
	}
	for _, option := range options {
		option(cfg)
	}
	pool, err := New(context.Background(), cfg)
	require.NoError(t, err)
	h.pool = pool

	return h
}

// baseMsg returns an unsigned message from account idx with the given nonce
// and gas premium.  The fee cap leaves room for the premium above the base
// fee.
func (h *poolHarness) baseMsg(idx int, nonce, premium uint64) wire.Message {
	return wire.Message{
		Version:    wire.MessageVersion,
		To:         h.to,
		From:       h.addrs[idx],
		Nonce:      nonce,
		Value:      wire.NewTokenAmount(1),
		GasLimit:   1_000_000,
		GasFeeCap:  h.params.InitialBaseFee.Add(wire.NewTokenAmount(premium)),
		GasPremium: wire.NewTokenAmount(premium),
		Method:     wire.MethodSend,
	}
}

// sign signs msg with the key of account idx.
func (h *poolHarness) sign(idx int, msg wire.Message) *wire.SignedMessage {
	h.t.Helper()

	sm, err := sigs.Sign(h.keys[idx], msg)
	require.NoError(h.t, err)
	return sm
}

// newMsg returns a signed message from account idx with the given nonce and
// gas premium.
func (h *poolHarness) newMsg(idx int, nonce, premium uint64) *wire.SignedMessage {
	return h.sign(idx, h.baseMsg(idx, nonce, premium))
}

// push submits a local message and fails the test on rejection.
func (h *poolHarness) push(sm *wire.SignedMessage) cid.Cid {
	h.t.Helper()

	c, err := h.pool.Push(context.Background(), sm)
	require.NoError(h.t, err)
	return c
}

// mineOnHead produces a block on the canonical head, makes it the head and
// moves the pool to it.
func (h *poolHarness) mineOnHead(msgs ...*wire.SignedMessage) Block {
	h.t.Helper()

	ctx := context.Background()
	head, err := h.chain.Head(ctx)
	require.NoError(h.t, err)

	b := h.chain.mine(head, msgs...)
	h.chain.setHead(b)
	require.NoError(h.t, h.pool.HeadChange(ctx, nil, []Block{b}))
	return b
}

// nonces returns the nonces pending for account idx.
func (h *poolHarness) nonces(idx int) []uint64 {
	var nonces []uint64
	for _, sm := range h.pool.PendingFor(h.addrs[idx]) {
		nonces = append(nonces, sm.Message.Nonce)
	}
	return nonces
}

// checkInvariants ensures every sender queue holds distinct ascending
// nonces and the pool size matches the queues.
func checkInvariants(t require.TestingT, mp *Pool) {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	var total int
	for sender, q := range mp.queues {
		require.NotZero(t, q.Len(), "empty queue for %s", sender)
		var (
			last     uint64
			required wire.TokenAmount
		)
		for i, desc := range q.Ascending() {
			require.Equal(t, sender, desc.Msg.Message.From)
			if i > 0 {
				require.Greater(t, desc.Nonce(), last)
			}
			last = desc.Nonce()
			required = required.Add(desc.Msg.Message.TotalCost())
		}
		require.Equal(t, required, q.requiredFunds)
		total += q.Len()
	}
	require.Equal(t, total, mp.count)
}
