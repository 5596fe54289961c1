// Copyright (c) 2016-2017 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package integration

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/chaincfg"
	"github.com/btcsuite/msgpool/memchain"
	"github.com/btcsuite/msgpool/mempool"
	"github.com/btcsuite/msgpool/mining/simminer"
	"github.com/btcsuite/msgpool/netsync"
	"github.com/btcsuite/msgpool/sigs"
	"github.com/btcsuite/msgpool/wire"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
)

const (
	// DefaultRepublishInterval is the republish interval of harness pools.
	// It is short so messages published before the gossip mesh formed
	// still reach the other nodes quickly.
	DefaultRepublishInterval = 500 * time.Millisecond

	// listenAddr is the listener of harness hosts.
	listenAddr = "/ip4/127.0.0.1/tcp/0"
)

var (
	// testInstances is a private package-level map used to keep track of
	// all active test harnesses.  It can be used to shut down several
	// active harnesses after a test.
	testInstances = make(map[*Harness]struct{})

	// Used to protect concurrent access to above declared variables.
	harnessStateMtx sync.RWMutex
)

// Harness fully encapsulates an in-process message pool node.  Every
// harness has its own host, chain and pool.  Harnesses created with the
// same funding share their genesis block, so messages valid on one are
// valid on all of them until blocks are produced.
type Harness struct {
	// ActiveNet is the parameters of the network the harness belongs to.
	ActiveNet *chaincfg.Params

	Host    host.Host
	Network *netsync.GossipNetwork
	Chain   *memchain.Chain
	Pool    *mempool.Pool
	Sync    *netsync.SyncManager
	Miner   *simminer.SimMiner

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates and initializes a new harness on the given network with a
// genesis state funding alloc.
//
// This function is safe for concurrent access.
func New(activeNet *chaincfg.Params,
	alloc map[address.Address]wire.TokenAmount) (*Harness, error) {

	harnessStateMtx.Lock()
	defer harnessStateMtx.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	h := &Harness{ActiveNet: activeNet, ctx: ctx, cancel: cancel}
	if err := h.build(alloc); err != nil {
		h.close()
		return nil, err
	}

	testInstances[h] = struct{}{}
	return h, nil
}

// build creates every component of the node without starting any.
func (h *Harness) build(alloc map[address.Address]wire.TokenAmount) error {
	var err error
	h.Host, err = libp2p.New(libp2p.ListenAddrStrings(listenAddr))
	if err != nil {
		return fmt.Errorf("unable to create host: %w", err)
	}
	h.Network, err = netsync.NewGossipNetwork(h.ctx, h.Host, h.ActiveNet)
	if err != nil {
		return err
	}
	h.Chain, err = memchain.New(h.ActiveNet, alloc)
	if err != nil {
		return err
	}

	policy := mempool.DefaultPolicy()
	policy.RepublishInterval = DefaultRepublishInterval
	h.Pool, err = mempool.New(h.ctx, &mempool.Config{
		Policy:      policy,
		ChainParams: h.ActiveNet,
		State:       h.Chain,
		Chain:       h.Chain,
		Publisher:   netsync.NewPublisher(h.Network),
		SigCache:    sigs.NewSigCache(1000),
	})
	if err != nil {
		return err
	}
	h.Sync, err = netsync.New(&netsync.Config{
		Network:     h.Network,
		MsgPool:     h.Pool,
		ChainParams: h.ActiveNet,
	})
	if err != nil {
		return err
	}
	h.Miner, err = simminer.New(&simminer.Config{
		ChainParams: h.ActiveNet,
		Chain:       h.Chain,
		MsgPool:     h.Pool,
	})
	return err
}

// SetUp starts the pool and the network intake of the node.  Blocks are
// only produced on demand through Miner.GenerateNBlocks.
//
// NOTE: This method and TearDown should always be called from the same
// goroutine as they are not concurrent safe.
func (h *Harness) SetUp() error {
	h.Pool.Start()
	h.Sync.Start()

	log.Debugf("Harness %s set up", h.Host.ID())
	return nil
}

// close releases every component that was created.
func (h *Harness) close() error {
	var errs []error
	if h.Sync != nil {
		errs = append(errs, h.Sync.Stop())
	}
	if h.Pool != nil {
		h.Pool.Stop()
	}
	if h.Network != nil {
		errs = append(errs, h.Network.Close())
	}
	h.cancel()
	if h.Host != nil {
		errs = append(errs, h.Host.Close())
	}
	return errors.Join(errs...)
}

// tearDown stops the running node.
//
// This function MUST be called with the harness state mutex held (for
// writes).
func (h *Harness) tearDown() error {
	if _, ok := testInstances[h]; !ok {
		return nil
	}
	delete(testInstances, h)
	return h.close()
}

// TearDown stops the running node and releases its resources.
//
// NOTE: This method and SetUp should always be called from the same
// goroutine as they are not concurrent safe.
func (h *Harness) TearDown() error {
	harnessStateMtx.Lock()
	defer harnessStateMtx.Unlock()

	return h.tearDown()
}

// TearDownAll tears down all active test harnesses.
func TearDownAll() error {
	harnessStateMtx.Lock()
	defer harnessStateMtx.Unlock()

	var errs []error
	for h := range testInstances {
		errs = append(errs, h.tearDown())
	}
	return errors.Join(errs...)
}

// ActiveHarnesses returns a slice of all currently active test harnesses.
// A test harness if considered "active" if it has been created, but not yet
// torn down.
func ActiveHarnesses() []*Harness {
	harnessStateMtx.RLock()
	defer harnessStateMtx.RUnlock()

	activeNodes := make([]*Harness, 0, len(testInstances))
	for harness := range testInstances {
		activeNodes = append(activeNodes, harness)
	}
	return activeNodes
}

// P2PAddress returns the full multiaddr of the first listener of the node.
func (h *Harness) P2PAddress() string {
	return fmt.Sprintf("%s/p2p/%s", h.Host.Addrs()[0], h.Host.ID())
}

// ConnectNode establishes a connection from the first harness to the
// second and waits until both see each other on the message topic.
func ConnectNode(ctx context.Context, from *Harness, to *Harness) error {
	_, err := from.Network.ConnectPeers(ctx, []string{to.P2PAddress()})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if slices.Contains(from.Network.TopicPeers(), to.Host.ID()) &&
			slices.Contains(to.Network.TopicPeers(), from.Host.ID()) {

			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("nodes did not join each other on the "+
				"message topic: %w", ctx.Err())
		}
	}
}
