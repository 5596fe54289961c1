// Copyright (c) 2013-2024 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"errors"
	"fmt"

	"github.com/btcsuite/msgpool/address"
	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"golang.org/x/crypto/blake2b"
)

// MessageVersion is the only message version accepted by the chain.
const MessageVersion = 0

// MethodSend is the method number of a plain value transfer.
const MethodSend = 0

// MethodNum identifies the actor method a message invokes.
type MethodNum uint64

// ErrMessageTooBig is returned when a message encoding exceeds the maximum
// size allowed by the caller.
var ErrMessageTooBig = errors.New("message too big")

var (
	// encMode is the canonical CBOR encoding used for every message.
	// Struct fields are encoded as tuples and map keys, if any, are
	// sorted, so equal messages always produce equal bytes.
	encMode cbor.EncMode

	// decMode rejects trailing data and indefinite lengths so only the
	// canonical encoding round trips.
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("invalid CBOR encoding options: %v", err))
	}
	decMode, err = cbor.DecOptions{
		IndefLength: cbor.IndefLengthForbidden,
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("invalid CBOR decoding options: %v", err))
	}
}

// Message is an unsigned chain message.  Messages are values; once a
// message has been signed it must not be modified.
type Message struct {
	_          struct{} `cbor:",toarray"`
	Version    uint64
	To         address.Address
	From       address.Address
	Nonce      uint64
	Value      TokenAmount
	GasLimit   int64
	GasFeeCap  TokenAmount
	GasPremium TokenAmount
	Method     MethodNum
	Params     []byte
}

// Serialize returns the canonical encoding of the message.
func (m *Message) Serialize() ([]byte, error) {
	return encMode.Marshal(m)
}

// DecodeMessage decodes a message from its canonical encoding.
func DecodeMessage(raw []byte) (*Message, error) {
	var m Message
	if err := decMode.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &m, nil
}

// Cid returns the content identifier of the unsigned message.
func (m *Message) Cid() (cid.Cid, error) {
	raw, err := m.Serialize()
	if err != nil {
		return cid.Undef, err
	}
	return ComputeCid(raw)
}

// SerializeSize returns the number of bytes of the canonical encoding, or
// -1 when the message cannot be encoded.
func (m *Message) SerializeSize() int {
	raw, err := m.Serialize()
	if err != nil {
		return -1
	}
	return len(raw)
}

// RequiredFunds returns the most gas the message can cost:
// GasFeeCap * GasLimit.
func (m *Message) RequiredFunds() TokenAmount {
	if m.GasLimit <= 0 {
		return TokenAmount{}
	}
	return m.GasFeeCap.MulUint64(uint64(m.GasLimit))
}

// TotalCost returns the balance the sender needs to cover the message:
// Value + GasFeeCap * GasLimit.
func (m *Message) TotalCost() TokenAmount {
	return m.Value.Add(m.RequiredFunds())
}

// EffectivePremium returns the premium the block producer actually
// receives at the given base fee: min(GasPremium, GasFeeCap - baseFee).
// The second return is false when the fee cap is below the base fee, in
// which case the message would pay a penalty instead of a reward and the
// returned amount is baseFee - GasFeeCap.
func (m *Message) EffectivePremium(baseFee TokenAmount) (TokenAmount, bool) {
	if m.GasFeeCap.LessThan(baseFee) {
		return baseFee.Sub(m.GasFeeCap), false
	}
	return m.GasPremium.Min(m.GasFeeCap.Sub(baseFee)), true
}

// String returns a short description used in logs.
func (m *Message) String() string {
	return fmt.Sprintf("%s->%s nonce %d", m.From, m.To, m.Nonce)
}

// ComputeCid returns the CIDv1 (dag-cbor, blake2b-256) of an encoded
// object.
func ComputeCid(raw []byte) (cid.Cid, error) {
	digest := blake2b.Sum256(raw)
	mh, err := multihash.Encode(digest[:], multihash.BLAKE2B_MIN+31)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.DagCBOR, mh), nil
}
