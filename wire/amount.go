// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"errors"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/holiman/uint256"
)

// AttoPerCoin is the number of atto units in one coin.
const AttoPerCoin = 1_000_000_000_000_000_000

// ErrNegativeAmount is returned when decoding a token amount with the
// negative sign byte set.  Message amounts are never negative.
var ErrNegativeAmount = errors.New("negative token amount")

// ErrAmountOverflow is returned when an amount does not fit in 256 bits.
var ErrAmountOverflow = errors.New("token amount overflows 256 bits")

// TokenAmount is a non-negative quantity of atto coins.  The zero value is
// zero.
type TokenAmount struct {
	v uint256.Int
}

// NewTokenAmount returns the amount for n atto coins.
func NewTokenAmount(n uint64) TokenAmount {
	var a TokenAmount
	a.v.SetUint64(n)
	return a
}

// TokenAmountFromBig converts a big integer, failing for negative or
// oversized values.
func TokenAmountFromBig(b *big.Int) (TokenAmount, error) {
	if b.Sign() < 0 {
		return TokenAmount{}, ErrNegativeAmount
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return TokenAmount{}, ErrAmountOverflow
	}
	return TokenAmount{v: *v}, nil
}

// Coins returns the amount for n whole coins.
func Coins(n uint64) TokenAmount {
	var a TokenAmount
	a.v.Mul(uint256.NewInt(n), uint256.NewInt(AttoPerCoin))
	return a
}

// Add returns a + b, saturating at the maximum value.
func (a TokenAmount) Add(b TokenAmount) TokenAmount {
	var out TokenAmount
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow {
		out.v.SetAllOne()
	}
	return out
}

// Sub returns a - b, clamped at zero.
func (a TokenAmount) Sub(b TokenAmount) TokenAmount {
	var out TokenAmount
	if a.v.Lt(&b.v) {
		return out
	}
	out.v.Sub(&a.v, &b.v)
	return out
}

// Mul returns a * b, saturating at the maximum value.
func (a TokenAmount) Mul(b TokenAmount) TokenAmount {
	var out TokenAmount
	if _, overflow := out.v.MulOverflow(&a.v, &b.v); overflow {
		out.v.SetAllOne()
	}
	return out
}

// MulUint64 returns a * n, saturating at the maximum value.
func (a TokenAmount) MulUint64(n uint64) TokenAmount {
	return a.Mul(NewTokenAmount(n))
}

// DivUint64 returns a / n.  Division by zero yields zero.
func (a TokenAmount) DivUint64(n uint64) TokenAmount {
	var out TokenAmount
	out.v.Div(&a.v, uint256.NewInt(n))
	return out
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a TokenAmount) Cmp(b TokenAmount) int {
	return a.v.Cmp(&b.v)
}

// LessThan returns whether a < b.
func (a TokenAmount) LessThan(b TokenAmount) bool {
	return a.v.Lt(&b.v)
}

// GreaterThan returns whether a > b.
func (a TokenAmount) GreaterThan(b TokenAmount) bool {
	return a.v.Gt(&b.v)
}

// IsZero returns whether the amount is zero.
func (a TokenAmount) IsZero() bool {
	return a.v.IsZero()
}

// Max returns the larger of a and b.
func (a TokenAmount) Max(b TokenAmount) TokenAmount {
	if a.LessThan(b) {
		return b
	}
	return a
}

// Min returns the smaller of a and b.
func (a TokenAmount) Min(b TokenAmount) TokenAmount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Big returns the amount as a new big integer.
func (a TokenAmount) Big() *big.Int {
	return a.v.ToBig()
}

// Float64 returns the amount as a float64, losing precision for large
// values.
func (a TokenAmount) Float64() float64 {
	f, _ := new(big.Float).SetInt(a.v.ToBig()).Float64()
	return f
}

// String returns the amount in atto units as a decimal string.
func (a TokenAmount) String() string {
	return a.v.ToBig().String()
}

// Bytes returns the chain encoding of the amount: empty for zero, else a
// zero sign byte followed by the big-endian magnitude.
func (a TokenAmount) Bytes() []byte {
	if a.v.IsZero() {
		return []byte{}
	}
	mag := a.v.Bytes()
	out := make([]byte, 0, len(mag)+1)
	out = append(out, 0)
	return append(out, mag...)
}

// TokenAmountFromBytes decodes the chain encoding produced by Bytes.
func TokenAmountFromBytes(raw []byte) (TokenAmount, error) {
	var a TokenAmount
	if len(raw) == 0 {
		return a, nil
	}
	if raw[0] != 0 {
		return a, ErrNegativeAmount
	}
	if len(raw)-1 > 32 {
		return a, ErrAmountOverflow
	}
	a.v.SetBytes(raw[1:])
	return a, nil
}

// MarshalCBOR encodes the amount as a CBOR byte string.
func (a TokenAmount) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(a.Bytes())
}

// UnmarshalCBOR decodes an amount from a CBOR byte string.
func (a *TokenAmount) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := TokenAmountFromBytes(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalText renders the amount as a decimal string.
func (a TokenAmount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses a decimal string.
func (a *TokenAmount) UnmarshalText(text []byte) error {
	b, ok := new(big.Int).SetString(string(text), 10)
	if !ok {
		return errors.New("invalid token amount " + string(text))
	}
	v, err := TokenAmountFromBig(b)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
