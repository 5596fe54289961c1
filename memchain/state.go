// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memchain

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/chaincfg"
	"github.com/btcsuite/msgpool/mempool"
	"github.com/btcsuite/msgpool/wire"
	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

// baseFeeMaxChangeDenom bounds the change of the base fee from one block
// to the next to 1/8 of its value.
const baseFeeMaxChangeDenom = 8

// accountEntry is the encoded form of one account of a state tree.
type accountEntry struct {
	_       struct{} `cbor:",toarray"`
	Address address.Address
	Nonce   uint64
	Balance wire.TokenAmount
}

// stateEntry is the encoded form of a state tree.
type stateEntry struct {
	_        struct{} `cbor:",toarray"`
	BaseFee  wire.TokenAmount
	Accounts []accountEntry
}

// stateTree is an immutable snapshot of every account along with the base
// fee for messages executed on top of it.
type stateTree struct {
	root    cid.Cid
	actors  map[address.Address]mempool.Actor
	baseFee wire.TokenAmount
}

// newStateTree returns the snapshot of the given accounts and derives its
// root.  The map is owned by the returned tree.
func newStateTree(actors map[address.Address]mempool.Actor,
	baseFee wire.TokenAmount) (*stateTree, error) {

	entry := stateEntry{
		BaseFee:  baseFee,
		Accounts: make([]accountEntry, 0, len(actors)),
	}
	for addr, actor := range actors {
		entry.Accounts = append(entry.Accounts, accountEntry{
			Address: addr,
			Nonce:   actor.Nonce,
			Balance: actor.Balance,
		})
	}
	sort.Slice(entry.Accounts, func(i, j int) bool {
		return bytes.Compare(entry.Accounts[i].Address.Bytes(),
			entry.Accounts[j].Address.Bytes()) < 0
	})

	raw, err := cbor.Marshal(&entry)
	if err != nil {
		return nil, fmt.Errorf("encode state tree: %w", err)
	}
	root, err := wire.ComputeCid(raw)
	if err != nil {
		return nil, err
	}

	return &stateTree{root: root, actors: actors, baseFee: baseFee}, nil
}

// execute applies msgs in order on top of the tree and returns the
// resulting tree along with the messages that were executed.  Messages
// with a wrong nonce, a fee cap below the base fee, insufficient funds or
// not fitting in the gas limit of the block are skipped.
func (s *stateTree) execute(params *chaincfg.Params,
	msgs []*wire.SignedMessage) (*stateTree, []*wire.SignedMessage, error) {

	actors := make(map[address.Address]mempool.Actor, len(s.actors))
	for addr, actor := range s.actors {
		actors[addr] = actor
	}

	var gasUsed int64
	executed := make([]*wire.SignedMessage, 0, len(msgs))
	for _, sm := range msgs {
		msg := &sm.Message
		from, ok := actors[msg.From]
		switch {
		case !ok:
			log.Debugf("Skipping message %v: unknown sender", sm.MustCid())
			continue

		case msg.Nonce != from.Nonce:
			log.Debugf("Skipping message %v: nonce %d, expected %d",
				sm.MustCid(), msg.Nonce, from.Nonce)
			continue

		case msg.GasFeeCap.LessThan(s.baseFee):
			log.Debugf("Skipping message %v: fee cap %v below base fee %v",
				sm.MustCid(), msg.GasFeeCap, s.baseFee)
			continue

		case from.Balance.LessThan(msg.TotalCost()):
			log.Debugf("Skipping message %v: insufficient funds",
				sm.MustCid())
			continue

		case msg.GasLimit <= 0 || gasUsed+msg.GasLimit > params.BlockGasLimit:
			log.Debugf("Skipping message %v: exceeds block gas limit",
				sm.MustCid())
			continue
		}

		gasPrice := s.baseFee.Add(msg.GasPremium).Min(msg.GasFeeCap)
		cost := msg.Value.Add(gasPrice.MulUint64(uint64(msg.GasLimit)))
		from.Balance = from.Balance.Sub(cost)
		from.Nonce++
		actors[msg.From] = from

		to := actors[msg.To]
		to.Balance = to.Balance.Add(msg.Value)
		actors[msg.To] = to

		gasUsed += msg.GasLimit
		executed = append(executed, sm)
	}

	next, err := newStateTree(actors, nextBaseFee(params, s.baseFee, gasUsed))
	if err != nil {
		return nil, nil, err
	}
	return next, executed, nil
}

// nextBaseFee returns the base fee following a block that used gasUsed.
// The fee moves toward keeping blocks half full and never drops below the
// network minimum.
func nextBaseFee(params *chaincfg.Params, baseFee wire.TokenAmount,
	gasUsed int64) wire.TokenAmount {

	target := params.BlockGasLimit / 2
	if target <= 0 {
		return baseFee.Max(params.MinimumBaseFee)
	}

	var next wire.TokenAmount
	if gasUsed >= target {
		delta := baseFee.MulUint64(uint64(gasUsed - target)).
			DivUint64(uint64(target)).DivUint64(baseFeeMaxChangeDenom)
		next = baseFee.Add(delta)
	} else {
		delta := baseFee.MulUint64(uint64(target - gasUsed)).
			DivUint64(uint64(target)).DivUint64(baseFeeMaxChangeDenom)
		next = baseFee.Sub(delta)
	}
	return next.Max(params.MinimumBaseFee)
}
