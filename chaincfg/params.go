// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2018 The Decred developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"errors"
	"time"

	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/wire"
)

// These constants are shared by every default network.
const (
	// BlockGasLimit is the total gas all messages of a block may use.
	BlockGasLimit = 10_000_000_000

	// MaxMessageSize is the largest encoded signed message accepted from
	// any source.
	MaxMessageSize = 64 << 10

	// TotalSupplyCoins is the total number of coins that will ever exist.
	TotalSupplyCoins = 2_000_000_000

	// propagationDelay is the time allowed for a block to reach the
	// network before the next round starts.
	propagationDelay = 6 * time.Second
)

// Params defines a network by its parameters.  These parameters may be used
// by applications to differentiate networks as well as addresses intended
// for use on one network from those intended for use on another network.
type Params struct {
	// Name defines a human-readable identifier for the network.  It is
	// also used to scope the gossip topics of the network.
	Name string

	// AddressNet selects the address string prefix of the network.
	AddressNet address.Network

	// DefaultPort defines the default peer-to-peer port for the network.
	DefaultPort string

	// BootstrapPeers lists multiaddrs of peers that are dialed at startup.
	BootstrapPeers []string

	// BlockDelay is the target time between blocks.
	BlockDelay time.Duration

	// BlockGasLimit is the total gas all messages of a block may use.
	BlockGasLimit int64

	// MinimumBaseFee is the lowest base fee the chain can reach.
	MinimumBaseFee wire.TokenAmount

	// InitialBaseFee is the base fee of the genesis block.
	InitialBaseFee wire.TokenAmount

	// MaxMessageSize is the largest encoded signed message accepted.
	MaxMessageSize int

	// TotalSupply is the total number of atto coins that will ever exist.
	// No message value may exceed it.
	TotalSupply wire.TokenAmount

	// RepublishInterval is how often pending locally originated messages
	// are announced to the network again.
	RepublishInterval time.Duration

	// GenerateSupported specifies whether or not the in-process block
	// producer may be used on this network.
	GenerateSupported bool
}

// MessageTopic returns the gossip topic messages are announced on.
func (p *Params) MessageTopic() string {
	return "/fil/msgs/" + p.Name
}

// republishInterval derives the republish cadence from the block delay.
func republishInterval(blockDelay time.Duration) time.Duration {
	return 10*blockDelay + propagationDelay
}

var (
	// ErrDuplicateNet describes an error where the parameters for a
	// network could not be set due to the network already being a
	// standard network or previously-registered into this package.
	ErrDuplicateNet = errors.New("duplicate network")

	// ErrUnknownNet is returned by ParamsByName for networks that have
	// not been registered.
	ErrUnknownNet = errors.New("unknown network")
)

var registeredNets = make(map[string]*Params)

// Register registers the network parameters for a network.  This may error
// with ErrDuplicateNet if the network is already registered (either due to
// a previous Register call, or the network being one of the default
// networks).
//
// Network parameters should be registered into this package by a main
// package as early as possible.  Then, library packages may lookup networks
// or network parameters based on inputs and work regardless of the network
// being standard or not.
func Register(params *Params) error {
	if _, ok := registeredNets[params.Name]; ok {
		return ErrDuplicateNet
	}
	registeredNets[params.Name] = params
	return nil
}

// mustRegister performs the same function as Register except it panics if
// there is an error.  This should only be called from package init
// functions.
func mustRegister(params *Params) {
	if err := Register(params); err != nil {
		panic("failed to register network: " + err.Error())
	}
}

// ParamsByName returns the registered parameters of the named network.
func ParamsByName(name string) (*Params, error) {
	params, ok := registeredNets[name]
	if !ok {
		return nil, ErrUnknownNet
	}
	return params, nil
}

func init() {
	// Register all default networks when the package is initialized.
	mustRegister(&MainNetParams)
	mustRegister(&TestNetParams)
	mustRegister(&SimNetParams)
}
