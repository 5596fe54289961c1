// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package address

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/multiformats/go-base32"
	"github.com/multiformats/go-varint"
	"golang.org/x/crypto/blake2b"
)

// Protocol identifies how the payload of an address is interpreted.
type Protocol byte

// These constants define the address protocols known to the chain.
const (
	// ID addresses carry a uvarint encoded actor id.
	ID Protocol = iota

	// SECP256K1 addresses carry the blake2b-160 digest of an
	// uncompressed secp256k1 public key.
	SECP256K1

	// Actor addresses carry the blake2b-160 digest of actor
	// construction data.
	Actor

	// BLS addresses carry a raw BLS public key.
	BLS

	// Unknown is returned for malformed addresses.
	Unknown = Protocol(255)
)

// protocolStrings maps protocols back to their names for pretty printing.
var protocolStrings = map[Protocol]string{
	ID:        "ID",
	SECP256K1: "SECP256K1",
	Actor:     "Actor",
	BLS:       "BLS",
}

// String returns the Protocol in human-readable form.
func (p Protocol) String() string {
	if s, ok := protocolStrings[p]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Protocol (%d)", byte(p))
}

// Network selects the prefix used when rendering an address as a string.
type Network byte

const (
	// Mainnet renders addresses with the "f" prefix.
	Mainnet Network = iota

	// Testnet renders addresses with the "t" prefix.
	Testnet
)

const (
	// MainnetPrefix is the string prefix of mainnet addresses.
	MainnetPrefix = "f"

	// TestnetPrefix is the string prefix of testnet addresses.
	TestnetPrefix = "t"
)

const (
	// PayloadHashLength is the length of the hashed payload carried by
	// SECP256K1 and Actor addresses.
	PayloadHashLength = 20

	// ChecksumHashLength is the length of the checksum appended to the
	// payload in the string form.
	ChecksumHashLength = 4

	// BlsPublicKeyBytes is the length of a BLS public key.
	BlsPublicKeyBytes = 48

	// MaxAddressStringLength is the longest string form of any address.
	MaxAddressStringLength = 2 + 84

	// maxIDStringLength is the number of decimal digits of the largest
	// uint64.
	maxIDStringLength = 20
)

// CurrentNetwork is the network used by String.  The daemon sets it once at
// startup from the active chain parameters.
var CurrentNetwork = Testnet

var (
	// ErrUnknownNetwork is returned when an address string has an
	// unknown network prefix.
	ErrUnknownNetwork = errors.New("unknown address network")

	// ErrUnknownProtocol is returned when an address has an unknown
	// protocol byte or character.
	ErrUnknownProtocol = errors.New("unknown address protocol")

	// ErrInvalidPayload is returned when the payload length does not
	// match the protocol.
	ErrInvalidPayload = errors.New("invalid address payload")

	// ErrInvalidLength is returned when the encoded address is too short
	// or too long.
	ErrInvalidLength = errors.New("invalid address length")

	// ErrInvalidChecksum is returned when the checksum of a string
	// address does not match its payload.
	ErrInvalidChecksum = errors.New("invalid address checksum")
)

// addressEncoding is the lower case, unpadded base32 alphabet used for the
// string form of hashed and BLS addresses.
var addressEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").
	WithPadding(base32.NoPadding)

// Address is an account address.  The zero value is the undefined address.
// Address values are comparable and may be used as map keys.
type Address struct {
	// str holds the protocol byte followed by the payload.
	str string
}

// Undef is the undefined address.
var Undef = Address{}

// NewIDAddress returns an ID protocol address for the given actor id.
func NewIDAddress(id uint64) (Address, error) {
	return newAddress(ID, varint.ToUvarint(id))
}

// NewSecp256k1Address returns the address controlled by the given
// uncompressed secp256k1 public key.
func NewSecp256k1Address(pubkey []byte) (Address, error) {
	return newAddress(SECP256K1, addressHash(pubkey))
}

// NewActorAddress returns an Actor protocol address derived from data.
func NewActorAddress(data []byte) (Address, error) {
	return newAddress(Actor, addressHash(data))
}

// NewBLSAddress returns the address controlled by the given BLS public key.
func NewBLSAddress(pubkey []byte) (Address, error) {
	return newAddress(BLS, pubkey)
}

// NewFromBytes decodes the binary form of an address: a protocol byte
// followed by the payload.
func NewFromBytes(raw []byte) (Address, error) {
	if len(raw) < 2 {
		return Undef, ErrInvalidLength
	}
	return newAddress(Protocol(raw[0]), raw[1:])
}

// NewFromString decodes the string form of an address.
func NewFromString(s string) (Address, error) {
	if len(s) < 3 || len(s) > MaxAddressStringLength {
		return Undef, ErrInvalidLength
	}
	switch s[:1] {
	case MainnetPrefix, TestnetPrefix:
	default:
		return Undef, ErrUnknownNetwork
	}

	var protocol Protocol
	switch s[1] {
	case '0':
		protocol = ID
	case '1':
		protocol = SECP256K1
	case '2':
		protocol = Actor
	case '3':
		protocol = BLS
	default:
		return Undef, ErrUnknownProtocol
	}

	raw := s[2:]
	if protocol == ID {
		if len(raw) > maxIDStringLength {
			return Undef, ErrInvalidLength
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Undef, ErrInvalidPayload
		}
		return NewIDAddress(id)
	}

	decoded, err := addressEncoding.DecodeString(raw)
	if err != nil {
		return Undef, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(decoded) < ChecksumHashLength {
		return Undef, ErrInvalidLength
	}
	payload := decoded[:len(decoded)-ChecksumHashLength]
	cksum := decoded[len(decoded)-ChecksumHashLength:]

	ingest := append([]byte{byte(protocol)}, payload...)
	if !ValidateChecksum(ingest, cksum) {
		return Undef, ErrInvalidChecksum
	}

	return newAddress(protocol, payload)
}

// newAddress validates the payload against the protocol and builds the
// address.
func newAddress(protocol Protocol, payload []byte) (Address, error) {
	switch protocol {
	case ID:
		_, n, err := decodeID(payload)
		if err != nil {
			return Undef, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if n != len(payload) {
			return Undef, ErrInvalidPayload
		}
	case SECP256K1, Actor:
		if len(payload) != PayloadHashLength {
			return Undef, ErrInvalidPayload
		}
	case BLS:
		if len(payload) != BlsPublicKeyBytes {
			return Undef, ErrInvalidPayload
		}
	default:
		return Undef, ErrUnknownProtocol
	}

	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, byte(protocol))
	buf = append(buf, payload...)
	return Address{str: string(buf)}, nil
}

// Empty returns whether the address is the undefined address.
func (a Address) Empty() bool {
	return a == Undef
}

// Protocol returns the protocol of the address.
func (a Address) Protocol() Protocol {
	if len(a.str) == 0 {
		return Unknown
	}
	return Protocol(a.str[0])
}

// Payload returns the protocol specific payload.
func (a Address) Payload() []byte {
	if len(a.str) == 0 {
		return nil
	}
	return []byte(a.str[1:])
}

// Bytes returns the binary form of the address.
func (a Address) Bytes() []byte {
	return []byte(a.str)
}

// ID returns the actor id of an ID protocol address.
func (a Address) ID() (uint64, error) {
	if a.Protocol() != ID {
		return 0, fmt.Errorf("address %s is not an ID address", a)
	}
	id, _, err := decodeID(a.Payload())
	return id, err
}

// errIDOverflow is returned for an id payload that does not fit in 64 bits.
var errIDOverflow = errors.New("actor id overflows 64 bits")

// decodeID reads the minimally encoded uvarint actor id at the start of
// payload and returns it with the number of bytes read.  Ids span the full
// 64-bit range, which varint.FromUvarint caps at 63 bits.
func decodeID(payload []byte) (uint64, int, error) {
	id, n := binary.Uvarint(payload)
	switch {
	case n == 0:
		return 0, 0, varint.ErrUnderflow
	case n < 0:
		return 0, 0, errIDOverflow
	case n > 1 && payload[n-1] == 0:
		return 0, 0, varint.ErrNotMinimal
	}
	return id, n, nil
}

// Compare orders addresses by their binary form.
func (a Address) Compare(b Address) int {
	return bytes.Compare(a.Bytes(), b.Bytes())
}

// String returns the string form of the address for CurrentNetwork.
func (a Address) String() string {
	return a.Encode(CurrentNetwork)
}

// Encode returns the string form of the address for the given network.
func (a Address) Encode(network Network) string {
	if a.Empty() {
		return "<empty>"
	}

	prefix := TestnetPrefix
	if network == Mainnet {
		prefix = MainnetPrefix
	}

	protocol := a.Protocol()
	switch protocol {
	case ID:
		id, err := a.ID()
		if err != nil {
			return "<invalid>"
		}
		return prefix + "0" + strconv.FormatUint(id, 10)
	case SECP256K1, Actor, BLS:
		cksum := Checksum(a.Bytes())
		payload := append(a.Payload(), cksum...)
		return prefix + strconv.Itoa(int(protocol)) +
			addressEncoding.EncodeToString(payload)
	default:
		return "<invalid>"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	addr, err := NewFromString(string(text))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// MarshalCBOR encodes the address as a CBOR byte string holding its binary
// form.
func (a Address) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(a.Bytes())
}

// UnmarshalCBOR decodes an address from a CBOR byte string.
func (a *Address) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	addr, err := NewFromBytes(raw)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// Checksum returns the string form checksum of the protocol byte and
// payload.
func Checksum(ingest []byte) []byte {
	return hashSum(ingest, ChecksumHashLength)
}

// ValidateChecksum returns whether expect is the checksum of ingest.
func ValidateChecksum(ingest, expect []byte) bool {
	return bytes.Equal(Checksum(ingest), expect)
}

// addressHash returns the payload hash of data.
func addressHash(data []byte) []byte {
	return hashSum(data, PayloadHashLength)
}

// hashSum returns the blake2b digest of data with the given size.
func hashSum(data []byte, size int) []byte {
	h, err := blake2b.New(size, nil)
	if err != nil {
		// Only reachable with an invalid size, which is a programming
		// error given the fixed sizes used above.
		panic(err)
	}
	h.Write(data)
	return h.Sum(nil)
}
