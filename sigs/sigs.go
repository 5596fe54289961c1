// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sigs

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/wire"
	"github.com/ipfs/go-cid"
	"golang.org/x/crypto/blake2b"
)

// Secp256k1SignatureSize is the length of an R || S || V secp256k1
// signature.
const Secp256k1SignatureSize = 65

// compactMagicOffset is added to the recovery id by the compact signature
// format of btcec.
const compactMagicOffset = 27

var (
	// ErrUnsupportedSigType is returned for signature schemes this node
	// cannot verify.
	ErrUnsupportedSigType = errors.New("unsupported signature type")

	// ErrSignatureMismatch is returned when a signature does not recover
	// to the claimed sender.
	ErrSignatureMismatch = errors.New("signature does not match sender")

	// ErrSigTypeMismatch is returned when the signature scheme does not
	// match the protocol of the sender address.
	ErrSigTypeMismatch = errors.New("signature type does not match sender address")
)

// signingDigest returns the 32 byte digest a message signature commits to.
func signingDigest(c cid.Cid) []byte {
	digest := blake2b.Sum256(c.Bytes())
	return digest[:]
}

// Sign signs the message with the secp256k1 private key and returns the
// signed message.  The sender of msg must be the address of key.
func Sign(key *btcec.PrivateKey, msg wire.Message) (*wire.SignedMessage, error) {
	c, err := msg.Cid()
	if err != nil {
		return nil, err
	}

	compact := ecdsa.SignCompact(key, signingDigest(c), false)

	// Reorder [V || R || S] into [R || S || V] with a bare recovery id.
	sig := make([]byte, Secp256k1SignatureSize)
	copy(sig, compact[1:])
	sig[64] = compact[0] - compactMagicOffset

	return wire.NewSignedMessage(msg, wire.Signature{
		Type: wire.SigTypeSecp256k1,
		Data: sig,
	}), nil
}

// AddressOf returns the secp256k1 address controlled by key.
func AddressOf(key *btcec.PrivateKey) (address.Address, error) {
	return address.NewSecp256k1Address(key.PubKey().SerializeUncompressed())
}

// recoverSender returns the address that produced sig over digest.
func recoverSender(sig, digest []byte) (address.Address, error) {
	if len(sig) != Secp256k1SignatureSize {
		return address.Undef, fmt.Errorf("signature has length %d, want %d",
			len(sig), Secp256k1SignatureSize)
	}
	if sig[64] > 3 {
		return address.Undef, fmt.Errorf("invalid recovery id %d", sig[64])
	}

	compact := make([]byte, Secp256k1SignatureSize)
	compact[0] = sig[64] + compactMagicOffset
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return address.Undef, err
	}
	return address.NewSecp256k1Address(pub.SerializeUncompressed())
}

// Verify checks that the signature of sm was produced by its sender.  Only
// secp256k1 signatures are supported; BLS signatures are reported with
// ErrUnsupportedSigType.
func Verify(sm *wire.SignedMessage) error {
	switch sm.Signature.Type {
	case wire.SigTypeSecp256k1:
	case wire.SigTypeBLS:
		return ErrUnsupportedSigType
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedSigType, sm.Signature.Type)
	}

	if sm.Message.From.Protocol() != address.SECP256K1 {
		return ErrSigTypeMismatch
	}

	c, err := sm.Message.Cid()
	if err != nil {
		return err
	}
	signer, err := recoverSender(sm.Signature.Data, signingDigest(c))
	if err != nil {
		return err
	}
	if signer != sm.Message.From {
		return ErrSignatureMismatch
	}
	return nil
}
