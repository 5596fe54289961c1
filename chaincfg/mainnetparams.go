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

// mainBlockDelay is the target block time of the main network.
const mainBlockDelay = 30 * time.Second

// MainNetParams defines the network parameters for the main network.
var MainNetParams = Params{
	Name:        "mainnet",
	AddressNet:  address.Mainnet,
	DefaultPort: "1347",
	// Bootstrap peers are supplied with --addpeer.
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
