// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2017 The Decred developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/wire"
)

// TestNetParams defines the network parameters for the test network.  It
// follows the main network rules with the test address prefix.
var TestNetParams = Params{
	Name:           "calibnet",
	AddressNet:     address.Testnet,
	DefaultPort:    "11347",
	BootstrapPeers: []string{},

	BlockDelay:        mainBlockDelay,
	BlockGasLimit:     BlockGasLimit,
	MinimumBaseFee:    wire.NewTokenAmount(100),
	InitialBaseFee:    wire.NewTokenAmount(100_000_000),
	MaxMessageSize:    MaxMessageSize,
	TotalSupply:       wire.Coins(TotalSupplyCoins),
	RepublishInterval: republishInterval(mainBlockDelay),
	GenerateSupported: false,
}
