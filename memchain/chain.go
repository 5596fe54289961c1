// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memchain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/chaincfg"
	"github.com/btcsuite/msgpool/mempool"
	"github.com/btcsuite/msgpool/wire"
	"github.com/ipfs/go-cid"
)

// DefaultNotificationBuffer is the number of head changes buffered for a
// subscriber before the chain waits for it.
const DefaultNotificationBuffer = 64

var (
	// ErrUnknownBlock is returned when a block is not known to the chain.
	ErrUnknownBlock = errors.New("unknown block")

	// ErrUnknownState is returned when a state root is not known to the
	// chain.
	ErrUnknownState = errors.New("unknown state root")
)

// headSubscription is a registered receiver of head changes.
type headSubscription struct {
	c    chan *mempool.HeadChange
	quit chan struct{}
	once sync.Once
}

// Chain is an in-memory block chain with a state tree that tracks the
// nonce and balance of every account.  It supports forks and moving the
// head to any known block, announcing every move to its subscribers.
//
// Chain implements the chain synchronization and state collaborators of the
// message pool.
type Chain struct {
	params *chaincfg.Params

	mtx     sync.RWMutex
	genesis *Block
	head    *Block
	blocks  map[cid.Cid]*Block
	states  map[cid.Cid]*stateTree
	tickets uint64

	// notifyMtx serializes head moves with their announcement so that
	// subscribers observe the changes in order.
	notifyMtx sync.Mutex
	subsMtx   sync.Mutex
	subs      map[uint64]*headSubscription
	nextSubID uint64
}

// Ensure Chain implements the collaborator interfaces of the pool.
var (
	_ mempool.StateProvider = (*Chain)(nil)
	_ mempool.ChainSync     = (*Chain)(nil)
)

// New returns a chain holding only a genesis block whose state funds the
// given accounts.
func New(params *chaincfg.Params,
	alloc map[address.Address]wire.TokenAmount) (*Chain, error) {

	if params == nil {
		return nil, errors.New("memchain: chain parameters are required")
	}

	actors := make(map[address.Address]mempool.Actor, len(alloc))
	for addr, balance := range alloc {
		actors[addr] = mempool.Actor{Balance: balance}
	}
	state, err := newStateTree(actors, params.InitialBaseFee)
	if err != nil {
		return nil, err
	}
	genesis, err := newBlock(cid.Undef, 0, 0, state.root, state.root, nil)
	if err != nil {
		return nil, err
	}

	log.Infof("Created %s chain with genesis block %v funding %d %s",
		params.Name, genesis.Cid(), len(alloc),
		pickNoun(len(alloc), "account", "accounts"))

	return &Chain{
		params:  params,
		genesis: genesis,
		head:    genesis,
		blocks:  map[cid.Cid]*Block{genesis.Cid(): genesis},
		states:  map[cid.Cid]*stateTree{state.root: state},
		tickets: 1,
		subs:    make(map[uint64]*headSubscription),
	}, nil
}

// Genesis returns the genesis block.
func (c *Chain) Genesis() *Block {
	return c.genesis
}

// BestBlock returns the current head.
//
// This function is safe for concurrent access.
func (c *Chain) BestBlock() *Block {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	return c.head
}

// Head returns the current canonical head.
//
// This function is safe for concurrent access.
func (c *Chain) Head(ctx context.Context) (mempool.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.BestBlock(), nil
}

// LoadBlock returns the block with the given identity.
//
// This function is safe for concurrent access.
func (c *Chain) LoadBlock(ctx context.Context, id cid.Cid) (mempool.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mtx.RLock()
	defer c.mtx.RUnlock()

	block, ok := c.blocks[id]
	if !ok {
		return nil, fmt.Errorf("block %v: %w", id, ErrUnknownBlock)
	}
	return block, nil
}

// stateTree returns the snapshot with the given root.
//
// This function MUST be called with the chain lock held (for reads).
func (c *Chain) stateTree(root cid.Cid) (*stateTree, error) {
	state, ok := c.states[root]
	if !ok {
		return nil, fmt.Errorf("state %v: %w", root, ErrUnknownState)
	}
	return state, nil
}

// ResolveActor returns the account of addr at the given state root.  It
// returns mempool.ErrActorNotFound when the account does not exist.
//
// This function is safe for concurrent access.
func (c *Chain) ResolveActor(ctx context.Context, addr address.Address,
	root cid.Cid) (*mempool.Actor, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mtx.RLock()
	defer c.mtx.RUnlock()

	state, err := c.stateTree(root)
	if err != nil {
		return nil, err
	}
	actor, ok := state.actors[addr]
	if !ok {
		return nil, mempool.ErrActorNotFound
	}
	return &actor, nil
}

// BaseFee returns the base fee that applies to messages executed on top
// of the given state root.
//
// This function is safe for concurrent access.
func (c *Chain) BaseFee(ctx context.Context, root cid.Cid) (wire.TokenAmount, error) {
	if err := ctx.Err(); err != nil {
		return wire.TokenAmount{}, err
	}

	c.mtx.RLock()
	defer c.mtx.RUnlock()

	state, err := c.stateTree(root)
	if err != nil {
		return wire.TokenAmount{}, err
	}
	return state.baseFee, nil
}

// NewBlock executes msgs on top of the parent block and stores the
// resulting block without moving the head.  Messages that cannot be
// executed are left out of the block.
//
// This function is safe for concurrent access.
func (c *Chain) NewBlock(parent cid.Cid, msgs []*wire.SignedMessage) (*Block, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	prev, ok := c.blocks[parent]
	if !ok {
		return nil, fmt.Errorf("parent block %v: %w", parent, ErrUnknownBlock)
	}
	parentState, err := c.stateTree(prev.State())
	if err != nil {
		return nil, err
	}
	state, executed, err := parentState.execute(c.params, msgs)
	if err != nil {
		return nil, err
	}

	block, err := newBlock(prev.Cid(), prev.Height()+1, c.tickets,
		parentState.root, state.root, executed)
	if err != nil {
		return nil, err
	}
	c.tickets++
	c.blocks[block.Cid()] = block
	c.states[state.root] = state

	log.Debugf("Created block %v with %d %s (%d skipped)", block,
		len(executed), pickNoun(len(executed), "message", "messages"),
		len(msgs)-len(executed))

	return block, nil
}

// Extend executes msgs in a new block on top of the current head and makes
// it the new head.
//
// This function is safe for concurrent access.
func (c *Chain) Extend(msgs []*wire.SignedMessage) (*Block, error) {
	c.notifyMtx.Lock()
	defer c.notifyMtx.Unlock()

	block, err := c.NewBlock(c.BestBlock().Cid(), msgs)
	if err != nil {
		return nil, err
	}
	if _, err := c.setHead(block.Cid()); err != nil {
		return nil, err
	}
	return block, nil
}

// SetHead makes the block with the given identity the head of the chain
// and announces the resulting head change to every subscriber.  The head
// may move to any known block, including one on a different fork.
//
// This function is safe for concurrent access.
func (c *Chain) SetHead(id cid.Cid) (*mempool.HeadChange, error) {
	c.notifyMtx.Lock()
	defer c.notifyMtx.Unlock()

	return c.setHead(id)
}

// setHead moves the head and announces the change.
//
// This function MUST be called with the notification lock held.
func (c *Chain) setHead(id cid.Cid) (*mempool.HeadChange, error) {
	c.mtx.Lock()
	target, ok := c.blocks[id]
	if !ok {
		c.mtx.Unlock()
		return nil, fmt.Errorf("block %v: %w", id, ErrUnknownBlock)
	}
	revert, apply := c.getReorganizeBlocks(target)
	c.head = target
	c.mtx.Unlock()

	hc := &mempool.HeadChange{Revert: revert, Apply: apply}
	if len(revert) == 0 && len(apply) == 0 {
		return hc, nil
	}
	if len(revert) > 0 {
		log.Infof("Reorganized chain: reverted %d, applied %d %s, new "+
			"head %v", len(revert), len(apply),
			pickNoun(len(apply), "block", "blocks"), target)
	} else {
		log.Debugf("New head %v", target)
	}

	c.notify(hc)
	return hc, nil
}

// getReorganizeBlocks returns the blocks that leave and join the canonical
// chain when the head moves to target, both oldest first.
//
// This function MUST be called with the chain lock held (for reads).
func (c *Chain) getReorganizeBlocks(target *Block) ([]mempool.Block,
	[]mempool.Block) {

	var detach, attach []*Block
	oldNode, newNode := c.head, target
	for oldNode.Height() > newNode.Height() {
		detach = append(detach, oldNode)
		oldNode = c.blocks[oldNode.Parent()]
	}
	for newNode.Height() > oldNode.Height() {
		attach = append(attach, newNode)
		newNode = c.blocks[newNode.Parent()]
	}
	for oldNode != newNode {
		detach = append(detach, oldNode)
		attach = append(attach, newNode)
		oldNode = c.blocks[oldNode.Parent()]
		newNode = c.blocks[newNode.Parent()]
	}

	revert := make([]mempool.Block, 0, len(detach))
	for i := len(detach) - 1; i >= 0; i-- {
		revert = append(revert, detach[i])
	}
	apply := make([]mempool.Block, 0, len(attach))
	for i := len(attach) - 1; i >= 0; i-- {
		apply = append(apply, attach[i])
	}
	return revert, apply
}

// SubscribeHeadChanges returns a channel receiving every head change in
// order along with a function that cancels the subscription and closes the
// channel.  A subscriber that does not keep up delays later head moves.
//
// This function is safe for concurrent access.
func (c *Chain) SubscribeHeadChanges() (<-chan *mempool.HeadChange, func()) {
	sub := &headSubscription{
		c:    make(chan *mempool.HeadChange, DefaultNotificationBuffer),
		quit: make(chan struct{}),
	}

	c.subsMtx.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = sub
	c.subsMtx.Unlock()

	unsubscribe := func() {
		sub.once.Do(func() {
			close(sub.quit)

			// Wait for any announcement in flight before closing the
			// channel.
			c.notifyMtx.Lock()
			c.subsMtx.Lock()
			delete(c.subs, id)
			c.subsMtx.Unlock()
			close(sub.c)
			c.notifyMtx.Unlock()
		})
	}
	return sub.c, unsubscribe
}

// notify delivers the head change to every subscriber.
//
// This function MUST be called with the notification lock held.
func (c *Chain) notify(hc *mempool.HeadChange) {
	c.subsMtx.Lock()
	subs := make([]*headSubscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.subsMtx.Unlock()

	for _, sub := range subs {
		select {
		case sub.c <- hc:
		case <-sub.quit:
		}
	}
}
