// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package simminer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/btcsuite/msgpool/chaincfg"
	"github.com/btcsuite/msgpool/memchain"
	"github.com/btcsuite/msgpool/mempool"
	"github.com/ipfs/go-cid"
)

// Config is a configuration struct used to initialize a new SimMiner.
type Config struct {
	// ChainParams identifies the network.  Only networks that support
	// in-process block generation are accepted.
	ChainParams *chaincfg.Params

	// Chain is the chain new blocks extend.
	Chain *memchain.Chain

	// MsgPool is the source of the messages of new blocks.
	MsgPool mempool.MsgPool

	// GasBudget bounds the gas of the messages of a block.  It defaults to
	// the block gas limit of the network.
	GasBudget int64

	// Clock paces block production.  It defaults to the wall clock.
	Clock clock.Clock
}

// SimMiner produces blocks for the simulation network in a
// concurrency-safe manner.  Every block delay of the network it selects
// messages from the pool and appends a block holding them to the chain.
// Blocks can also be generated on demand with GenerateNBlocks.
type SimMiner struct {
	sync.Mutex
	cfg             Config
	started         bool
	discreteMining  bool
	submitBlockLock sync.Mutex
	wg              sync.WaitGroup
	quit            chan struct{}
	blocksMined     atomic.Uint64
}

// New returns a new block producer.  Use Start to begin producing blocks
// periodically.
func New(config *Config) (*SimMiner, error) {
	if config.ChainParams == nil || config.Chain == nil ||
		config.MsgPool == nil {

		return nil, errors.New("simminer: chain parameters, chain and " +
			"message pool are required")
	}
	if !config.ChainParams.GenerateSupported {
		return nil, fmt.Errorf("no support for block generation on the "+
			"%s network", config.ChainParams.Name)
	}

	cfg := *config
	if cfg.GasBudget <= 0 || cfg.GasBudget > cfg.ChainParams.BlockGasLimit {
		cfg.GasBudget = cfg.ChainParams.BlockGasLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &SimMiner{cfg: cfg}, nil
}

// submitBlock selects messages from the pool and appends a block holding
// them to the chain.
func (m *SimMiner) submitBlock() (*memchain.Block, error) {
	m.submitBlockLock.Lock()
	defer m.submitBlockLock.Unlock()

	msgs := m.cfg.MsgPool.SelectForBlock(nil, m.cfg.GasBudget)
	block, err := m.cfg.Chain.Extend(msgs)
	if err != nil {
		return nil, err
	}
	m.blocksMined.Add(1)

	log.Infof("Produced block %v with %d of %d selected %s", block,
		len(block.Messages()), len(msgs),
		pickNoun(len(msgs), "message", "messages"))
	return block, nil
}

// generateBlocks produces a block on every tick until quit is closed.
//
// It must be run as a goroutine.
func (m *SimMiner) generateBlocks(ticker *clock.Ticker, quit chan struct{}) {
	defer m.wg.Done()
	defer ticker.Stop()

out:
	for {
		select {
		case <-ticker.C:
			if _, err := m.submitBlock(); err != nil {
				log.Errorf("Failed to produce block: %v", err)
			}

		case <-quit:
			break out
		}
	}

	log.Tracef("Block producer done")
}

// Start begins producing a block every block delay of the network.
// Calling this function when the producer has already been started will
// have no effect.
//
// This function is safe for concurrent access.
func (m *SimMiner) Start() {
	m.Lock()
	defer m.Unlock()

	// Nothing to do if the producer is already running or if running in
	// discrete mode (using GenerateNBlocks).
	if m.started || m.discreteMining {
		return
	}

	m.quit = make(chan struct{})
	ticker := m.cfg.Clock.Ticker(m.cfg.ChainParams.BlockDelay)
	m.wg.Add(1)
	go m.generateBlocks(ticker, m.quit)

	m.started = true
	log.Infof("Block producer started with a block delay of %v",
		m.cfg.ChainParams.BlockDelay)
}

// Stop gracefully stops block production.  Calling this function when the
// producer has not already been started will have no effect.
//
// This function is safe for concurrent access.
func (m *SimMiner) Stop() {
	m.Lock()
	defer m.Unlock()

	// Nothing to do if the producer is not currently running or if running
	// in discrete mode (using GenerateNBlocks).
	if !m.started || m.discreteMining {
		return
	}

	close(m.quit)
	m.wg.Wait()
	m.started = false
	log.Infof("Block producer stopped")
}

// IsMining returns whether or not the producer has been started and is
// therefore currently producing blocks.
//
// This function is safe for concurrent access.
func (m *SimMiner) IsMining() bool {
	m.Lock()
	defer m.Unlock()

	return m.started
}

// BlocksMined returns the number of blocks produced so far.
//
// This function is safe for concurrent access.
func (m *SimMiner) BlocksMined() uint64 {
	return m.blocksMined.Load()
}

// GenerateNBlocks produces the requested number of blocks right away and
// returns their identities.
//
// This function is safe for concurrent access.
func (m *SimMiner) GenerateNBlocks(n uint32) ([]cid.Cid, error) {
	m.Lock()

	// Respond with an error if the producer is already running.
	if m.started || m.discreteMining {
		m.Unlock()
		return nil, errors.New("block producer is already running, stop " +
			"it before generating blocks on demand")
	}
	m.discreteMining = true
	m.Unlock()

	defer func() {
		m.Lock()
		m.discreteMining = false
		m.Unlock()
	}()

	log.Tracef("Generating %d blocks", n)

	blockCids := make([]cid.Cid, 0, n)
	for i := uint32(0); i < n; i++ {
		block, err := m.submitBlock()
		if err != nil {
			return blockCids, err
		}
		blockCids = append(blockCids, block.Cid())
	}

	log.Tracef("Generated %d blocks", n)
	return blockCids, nil
}
