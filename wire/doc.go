// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package wire implements the chain message types and their canonical encoding.

A Message is a value transfer or actor method call from one address to
another.  Messages carry a per-sender nonce, a gas limit and the two gas
price parameters used by the fee market: the fee cap, which is the most the
sender will pay per unit of gas, and the premium, which is the part of the
price paid to the block producer.

A SignedMessage pairs a Message with the signature of its sender.  Signed
messages are identified by a CID:

  - secp256k1 messages use the CID of the signed encoding
  - BLS messages use the CID of the unsigned message

All encodings are canonical CBOR tuples so equal values always produce equal
bytes and equal identities.

Amounts are expressed with TokenAmount, a non-negative 256-bit integer of atto
coins with saturating arithmetic.
*/
package wire
