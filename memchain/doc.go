// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package memchain implements an in-memory block chain for the simulation
network and for tests.

The chain keeps every block it ever created, so the head can be moved to any
of them, and a state tree per block holding the nonce and balance of each
account.  Executing a message transfers its value and charges its gas at
the base fee plus the premium.  Messages that cannot be executed are left
out of the block they were proposed for.

Every head move is announced to subscribers as the list of blocks leaving
and joining the canonical chain, which is exactly what the message pool
consumes.
*/
package memchain
