// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestDefaultNets ensures the default networks are registered and carry
// consistent parameters.
func TestDefaultNets(t *testing.T) {
	tests := []*Params{&MainNetParams, &TestNetParams, &SimNetParams}

	t.Logf("Running %d tests", len(tests))
	for _, params := range tests {
		got, err := ParamsByName(params.Name)
		require.NoError(t, err, params.Name)
		require.Same(t, params, got)

		require.Equal(t, int64(BlockGasLimit), params.BlockGasLimit)
		require.Equal(t, "/fil/msgs/"+params.Name, params.MessageTopic())
		require.Equal(t, 10*params.BlockDelay+6*time.Second,
			params.RepublishInterval)
		require.False(t, params.InitialBaseFee.LessThan(params.MinimumBaseFee))
	}

	_, err := ParamsByName("nonesuch")
	require.ErrorIs(t, err, ErrUnknownNet)
}

// TestRegister ensures duplicate registrations are rejected.
func TestRegister(t *testing.T) {
	require.ErrorIs(t, Register(&MainNetParams), ErrDuplicateNet)

	custom := SimNetParams
	custom.Name = "customnet"
	require.NoError(t, Register(&custom))
	require.ErrorIs(t, Register(&custom), ErrDuplicateNet)
}
