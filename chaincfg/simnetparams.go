// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2017 The Decred developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"time"

	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/wire"
)

// simBlockDelay is the target block time of the simulation network.
const simBlockDelay = 2 * time.Second

// SimNetParams defines the network parameters for the simulation test
// network.  This network is similar to the normal test network except it is
// intended for private use within a group of individuals doing simulation
// testing.  Blocks are produced in process by the daemon and only the nodes
// which are specifically specified are used to create the network rather
// than following normal discovery rules.
var SimNetParams = Params{
	Name:           "simnet",
	AddressNet:     address.Testnet,
	DefaultPort:    "21347",
	BootstrapPeers: []string{}, // NOTE: There must NOT be any seeds.

	BlockDelay:        simBlockDelay,
	BlockGasLimit:     BlockGasLimit,
	MinimumBaseFee:    wire.NewTokenAmount(100),
	InitialBaseFee:    wire.NewTokenAmount(100),
	MaxMessageSize:    MaxMessageSize,
	TotalSupply:       wire.Coins(TotalSupplyCoins),
	RepublishInterval: republishInterval(simBlockDelay),
	GenerateSupported: true,
}
