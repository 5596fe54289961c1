// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sigs

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/wire"
	"github.com/stretchr/testify/require"
)

func newTestMessage(t *testing.T, key *btcec.PrivateKey) wire.Message {
	from, err := AddressOf(key)
	require.NoError(t, err)
	to, err := address.NewIDAddress(1000)
	require.NoError(t, err)

	return wire.Message{
		To:         to,
		From:       from,
		Nonce:      3,
		Value:      wire.NewTokenAmount(10),
		GasLimit:   100,
		GasFeeCap:  wire.NewTokenAmount(200),
		GasPremium: wire.NewTokenAmount(100),
	}
}

// TestSignVerify ensures signatures produced by Sign verify and tampering is
// detected.
func TestSignVerify(t *testing.T) {
	t.Parallel()

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	msg := newTestMessage(t, key)
	sm, err := Sign(key, msg)
	require.NoError(t, err)
	require.Len(t, sm.Signature.Data, Secp256k1SignatureSize)
	require.NoError(t, Verify(sm))

	// Changing the message invalidates the signature.
	tampered := wire.NewSignedMessage(sm.Message, sm.Signature)
	tampered.Message.Nonce++
	require.Error(t, Verify(tampered))

	// A signature from another key does not match the sender.
	forged, err := Sign(other, msg)
	require.NoError(t, err)
	require.ErrorIs(t, Verify(forged), ErrSignatureMismatch)

	// Truncated signatures are rejected.
	short := wire.NewSignedMessage(msg, wire.Signature{
		Type: wire.SigTypeSecp256k1,
		Data: sm.Signature.Data[:64],
	})
	require.Error(t, Verify(short))
}

// TestVerifyUnsupported ensures BLS and unknown signatures are rejected.
func TestVerifyUnsupported(t *testing.T) {
	t.Parallel()

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	msg := newTestMessage(t, key)

	tests := []wire.SigType{wire.SigTypeBLS, wire.SigTypeUnknown, 9}
	for _, sigType := range tests {
		sm := wire.NewSignedMessage(msg, wire.Signature{
			Type: sigType,
			Data: make([]byte, 96),
		})
		require.ErrorIs(t, Verify(sm), ErrUnsupportedSigType, sigType.String())
	}

	// A secp256k1 signature on a message from an ID address cannot be
	// checked against the sender.
	msg.From, err = address.NewIDAddress(5)
	require.NoError(t, err)
	sm := wire.NewSignedMessage(msg, wire.Signature{
		Type: wire.SigTypeSecp256k1,
		Data: make([]byte, Secp256k1SignatureSize),
	})
	require.ErrorIs(t, Verify(sm), ErrSigTypeMismatch)
}

// TestSigCache ensures valid signatures are cached and invalid ones are not.
func TestSigCache(t *testing.T) {
	t.Parallel()

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	cache := NewSigCache(2)
	msg := newTestMessage(t, key)
	for nonce := uint64(0); nonce < 3; nonce++ {
		msg.Nonce = nonce
		sm, err := Sign(key, msg)
		require.NoError(t, err)
		require.NoError(t, cache.Verify(sm))
	}
	require.Equal(t, 2, cache.Len())

	forged, err := Sign(other, msg)
	require.NoError(t, err)
	require.Error(t, cache.Verify(forged))
	require.Equal(t, 2, cache.Len())

	// A disabled cache still verifies.
	disabled := NewSigCache(0)
	require.Error(t, disabled.Verify(forged))
	require.Zero(t, disabled.Len())
}
