// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package simminer produces blocks for the simulation network.

The producer asks the message pool for the messages of the next block and
appends them to the in-memory chain, which in turn announces the new head to
the pool.  It runs either periodically at the block delay of the network or
on demand through GenerateNBlocks.
*/
package simminer
