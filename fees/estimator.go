// Copyright (c) 2018-2020 The Decred developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fees

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/btcsuite/msgpool/chaincfg"
	"github.com/btcsuite/msgpool/mempool"
	"github.com/btcsuite/msgpool/wire"
	"github.com/ipfs/go-cid"
)

const (
	// DefaultMaxBlocks is the default number of recent blocks the
	// estimator keeps samples of.
	DefaultMaxBlocks = 40

	// DefaultMaxInclusionTarget is the largest inclusion target, in
	// blocks, accepted by EstimateGasPremium.
	DefaultMaxInclusionTarget = DefaultMaxBlocks / 2
)

var (
	// MinGasPremium is the lowest premium ever suggested.
	MinGasPremium = wire.NewTokenAmount(100_000)

	// ErrBadInclusionTarget is returned when an estimate is requested for
	// an inclusion target the estimator cannot cover.
	ErrBadInclusionTarget = errors.New("inclusion target out of range")
)

// gasSample is the premium and gas limit of one included message.
type gasSample struct {
	premium wire.TokenAmount
	limit   int64
}

// blockSamples holds the samples of the messages of one block.
type blockSamples struct {
	id      cid.Cid
	samples []gasSample
}

// Estimator suggests gas premiums from the premiums paid by the messages of
// recent blocks.  It follows the canonical chain through head changes, so
// reverted blocks stop counting once a reorganization is applied.
//
// The estimator is safe for concurrent access.
type Estimator struct {
	params    *chaincfg.Params
	maxBlocks int

	mtx    sync.RWMutex
	blocks []blockSamples // oldest first
}

// NewEstimator returns an estimator keeping samples of up to maxBlocks
// recent blocks.  DefaultMaxBlocks is used when maxBlocks is not positive.
func NewEstimator(params *chaincfg.Params, maxBlocks int) *Estimator {
	if maxBlocks <= 0 {
		maxBlocks = DefaultMaxBlocks
	}
	return &Estimator{params: params, maxBlocks: maxBlocks}
}

// newBlockSamples collects the samples of the messages of block.
func newBlockSamples(block mempool.Block) blockSamples {
	msgs := block.Messages()
	samples := make([]gasSample, 0, len(msgs))
	for _, sm := range msgs {
		samples = append(samples, gasSample{
			premium: sm.Message.GasPremium,
			limit:   sm.Message.GasLimit,
		})
	}
	return blockSamples{id: block.Cid(), samples: samples}
}

// applyBlock appends the samples of block, dropping the oldest block when
// the window is full.
//
// This function MUST be called with the lock held (for writes).
func (e *Estimator) applyBlock(block mempool.Block) {
	e.blocks = append(e.blocks, newBlockSamples(block))
	if excess := len(e.blocks) - e.maxBlocks; excess > 0 {
		e.blocks = append(e.blocks[:0:0], e.blocks[excess:]...)
	}
}

// revertBlock removes the samples of block when it is the newest tracked
// block.
//
// This function MUST be called with the lock held (for writes).
func (e *Estimator) revertBlock(block mempool.Block) {
	n := len(e.blocks)
	if n == 0 || !e.blocks[n-1].id.Equals(block.Cid()) {
		log.Debugf("Reverted block %v is not the newest tracked block",
			block.Cid())
		return
	}
	e.blocks = e.blocks[:n-1]
}

// ProcessHeadChange updates the samples for a head change.  Reverted blocks
// are removed newest first and applied blocks added oldest first.
//
// This function is safe for concurrent access.
func (e *Estimator) ProcessHeadChange(hc *mempool.HeadChange) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	for i := len(hc.Revert) - 1; i >= 0; i-- {
		e.revertBlock(hc.Revert[i])
	}
	for _, block := range hc.Apply {
		e.applyBlock(block)
	}
}

// Seed loads the samples of the blocks leading up to the current head of
// chain.  It replaces any samples held.
func (e *Estimator) Seed(ctx context.Context, chain mempool.ChainSync) error {
	head, err := chain.Head(ctx)
	if err != nil {
		return err
	}

	// Walk back from the head and keep the blocks oldest first.
	recent := make([]mempool.Block, 0, e.maxBlocks)
	for block := head; len(recent) < e.maxBlocks; {
		recent = append(recent, block)
		if block.Height() == 0 {
			break
		}
		block, err = chain.LoadBlock(ctx, block.Parent())
		if err != nil {
			return err
		}
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()

	e.blocks = e.blocks[:0]
	for i := len(recent) - 1; i >= 0; i-- {
		e.applyBlock(recent[i])
	}

	log.Debugf("Seeded gas premium estimator with %d blocks", len(recent))
	return nil
}

// Run seeds the estimator and keeps it following the head changes of chain
// until ctx is done.
//
// It blocks until the context is canceled.
func (e *Estimator) Run(ctx context.Context, chain mempool.ChainSync) error {
	changes, unsubscribe := chain.SubscribeHeadChanges()
	defer unsubscribe()

	if err := e.Seed(ctx, chain); err != nil {
		return err
	}

out:
	for {
		select {
		case hc, ok := <-changes:
			if !ok {
				break out
			}
			e.ProcessHeadChange(hc)

		case <-ctx.Done():
			break out
		}
	}

	log.Tracef("Gas premium estimator done")
	return nil
}

// NumBlocks returns the number of blocks the estimator holds samples of.
//
// This function is safe for concurrent access.
func (e *Estimator) NumBlocks() int {
	e.mtx.RLock()
	defer e.mtx.RUnlock()

	return len(e.blocks)
}

// EstimateGasPremium suggests a gas premium for a message to be included
// within nblocks blocks.
//
// The samples of the last 2*nblocks blocks are sorted by premium, highest
// first, and walked until their gas covers a little more than half the gas
// target of those blocks.  The suggestion is the mean of the premiums around
// that point, and never below MinGasPremium.
//
// This function is safe for concurrent access.
func (e *Estimator) EstimateGasPremium(nblocks uint64) (wire.TokenAmount, error) {
	if nblocks == 0 {
		nblocks = 1
	}
	if nblocks > uint64(e.maxBlocks)/2 {
		return wire.TokenAmount{}, ErrBadInclusionTarget
	}

	e.mtx.RLock()
	window := min(int(2*nblocks), len(e.blocks))
	var samples []gasSample
	for _, block := range e.blocks[len(e.blocks)-window:] {
		samples = append(samples, block.samples...)
	}
	e.mtx.RUnlock()

	premium := medianGasPremium(samples, window,
		e.params.BlockGasLimit/2)
	return premium.Max(MinGasPremium), nil
}

// medianGasPremium returns the premium paid around the point where the
// samples, highest premium first, use a little more than half the gas
// target of the given number of blocks.
func medianGasPremium(samples []gasSample, blocks int, gasTarget int64) wire.TokenAmount {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].premium.GreaterThan(samples[j].premium)
	})

	// Half the target moved another 5% along.
	at := gasTarget * int64(blocks) / 2
	at += gasTarget * int64(blocks) / (2 * 20)

	var prev1, prev2 wire.TokenAmount
	for _, sample := range samples {
		prev1, prev2 = sample.premium, prev1
		at -= sample.limit
		if at < 0 {
			break
		}
	}

	if prev2.IsZero() {
		return prev1
	}
	return prev1.Add(prev2).DivUint64(2)
}
