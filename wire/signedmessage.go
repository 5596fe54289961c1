// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/btcsuite/msgpool/address"
	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

// SigType identifies the signature scheme of a signed message.
type SigType byte

// These constants define the signature schemes known to the chain.  The
// values match the first byte of the encoded signature.
const (
	SigTypeUnknown   SigType = 0
	SigTypeSecp256k1 SigType = 1
	SigTypeBLS       SigType = 2
)

// sigTypeStrings maps signature types back to their names.
var sigTypeStrings = map[SigType]string{
	SigTypeUnknown:   "unknown",
	SigTypeSecp256k1: "secp256k1",
	SigTypeBLS:       "bls",
}

// String returns the SigType in human-readable form.
func (s SigType) String() string {
	if str, ok := sigTypeStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("Unknown SigType (%d)", byte(s))
}

// ErrMalformedSignature is returned when decoding an empty signature.
var ErrMalformedSignature = errors.New("malformed signature")

// Signature is a typed signature over a message CID.
type Signature struct {
	Type SigType
	Data []byte
}

// MarshalCBOR encodes the signature as a byte string holding the type byte
// followed by the signature data.
func (s Signature) MarshalCBOR() ([]byte, error) {
	buf := make([]byte, 0, len(s.Data)+1)
	buf = append(buf, byte(s.Type))
	buf = append(buf, s.Data...)
	return cbor.Marshal(buf)
}

// UnmarshalCBOR decodes a signature from its byte string form.
func (s *Signature) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return ErrMalformedSignature
	}
	s.Type = SigType(raw[0])
	s.Data = append([]byte(nil), raw[1:]...)
	return nil
}

// SignedMessage is a message together with the sender's signature.  A
// SignedMessage must not be modified after it has been handed to the pool;
// its identity is computed once and cached.
type SignedMessage struct {
	_         struct{} `cbor:",toarray"`
	Message   Message
	Signature Signature

	cid atomic.Pointer[cid.Cid]
}

// NewSignedMessage pairs a message with its signature.
func NewSignedMessage(msg Message, sig Signature) *SignedMessage {
	return &SignedMessage{Message: msg, Signature: sig}
}

// Serialize returns the canonical encoding of the signed message.
func (sm *SignedMessage) Serialize() ([]byte, error) {
	return encMode.Marshal(sm)
}

// DecodeSignedMessage decodes a signed message from its canonical
// encoding.
func DecodeSignedMessage(raw []byte) (*SignedMessage, error) {
	sm := new(SignedMessage)
	if err := decMode.Unmarshal(raw, sm); err != nil {
		return nil, fmt.Errorf("decode signed message: %w", err)
	}
	return sm, nil
}

// Cid returns the identity of the signed message.  BLS messages are
// identified by the CID of the unsigned message since their signatures are
// aggregated in blocks; every other message is identified by the CID of its
// signed encoding.
func (sm *SignedMessage) Cid() (cid.Cid, error) {
	if c := sm.cid.Load(); c != nil {
		return *c, nil
	}

	var (
		c   cid.Cid
		err error
	)
	if sm.Signature.Type == SigTypeBLS {
		c, err = sm.Message.Cid()
	} else {
		var raw []byte
		raw, err = sm.Serialize()
		if err == nil {
			c, err = ComputeCid(raw)
		}
	}
	if err != nil {
		return cid.Undef, err
	}

	sm.cid.Store(&c)
	return c, nil
}

// MustCid is like Cid but panics on encoding failure.  It is intended for
// messages that have already been validated.
func (sm *SignedMessage) MustCid() cid.Cid {
	c, err := sm.Cid()
	if err != nil {
		panic(fmt.Sprintf("message cid: %v", err))
	}
	return c
}

// SerializeSize returns the number of bytes of the canonical encoding, or
// -1 when the message cannot be encoded.
func (sm *SignedMessage) SerializeSize() int {
	raw, err := sm.Serialize()
	if err != nil {
		return -1
	}
	return len(raw)
}

// From returns the sender of the message.
func (sm *SignedMessage) From() address.Address {
	return sm.Message.From
}

// Nonce returns the sender sequence number of the message.
func (sm *SignedMessage) Nonce() uint64 {
	return sm.Message.Nonce
}

// String returns a short description used in logs.
func (sm *SignedMessage) String() string {
	c, err := sm.Cid()
	if err != nil {
		return sm.Message.String()
	}
	return fmt.Sprintf("%s (%s)", c, sm.Message.String())
}
