// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memchain

import (
	"fmt"

	"github.com/btcsuite/msgpool/mempool"
	"github.com/btcsuite/msgpool/wire"
	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

// blockHeader is the encoded form of a block used to derive its identity.
type blockHeader struct {
	_           struct{} `cbor:",toarray"`
	Parent      []byte
	Height      uint64
	Ticket      uint64
	ParentState []byte
	State       []byte
	Messages    [][]byte
}

// Block is a block of the in-memory chain.  Blocks are immutable once
// created.
type Block struct {
	cid         cid.Cid
	parent      cid.Cid
	height      uint64
	ticket      uint64
	parentState cid.Cid
	state       cid.Cid
	msgs        []*wire.SignedMessage
}

// Ensure Block implements the block interface of the pool.
var _ mempool.Block = (*Block)(nil)

// newBlock returns the block with the given contents and derives its
// identity.  The ticket distinguishes sibling blocks with equal contents.
func newBlock(parent cid.Cid, height, ticket uint64, parentState,
	state cid.Cid, msgs []*wire.SignedMessage) (*Block, error) {

	hdr := blockHeader{
		Height:      height,
		Ticket:      ticket,
		ParentState: parentState.Bytes(),
		State:       state.Bytes(),
		Messages:    make([][]byte, 0, len(msgs)),
	}
	if parent.Defined() {
		hdr.Parent = parent.Bytes()
	}
	for _, sm := range msgs {
		c, err := sm.Cid()
		if err != nil {
			return nil, err
		}
		hdr.Messages = append(hdr.Messages, c.Bytes())
	}
	raw, err := cbor.Marshal(&hdr)
	if err != nil {
		return nil, fmt.Errorf("encode block header: %w", err)
	}
	c, err := wire.ComputeCid(raw)
	if err != nil {
		return nil, err
	}

	return &Block{
		cid:         c,
		parent:      parent,
		height:      height,
		ticket:      ticket,
		parentState: parentState,
		state:       state,
		msgs:        msgs,
	}, nil
}

// Cid returns the identity of the block.
func (b *Block) Cid() cid.Cid {
	return b.cid
}

// Parent returns the identity of the parent block.  It is undefined for
// the genesis block.
func (b *Block) Parent() cid.Cid {
	return b.parent
}

// Height returns the height of the block.
func (b *Block) Height() uint64 {
	return b.height
}

// Messages returns the messages executed by the block.
func (b *Block) Messages() []*wire.SignedMessage {
	return b.msgs
}

// ParentState returns the state root the messages were executed on.
func (b *Block) ParentState() cid.Cid {
	return b.parentState
}

// State returns the state root after the messages were executed.
func (b *Block) State() cid.Cid {
	return b.state
}

// String returns a short description of the block for logging.
func (b *Block) String() string {
	return fmt.Sprintf("%s (height %d)", b.cid, b.height)
}
