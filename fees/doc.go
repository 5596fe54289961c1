// Copyright (c) 2018-2020 The Decred developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package fees suggests gas premiums for new messages from the premiums paid by
the messages of recent blocks.

# Outline of the Algorithm

The estimator keeps the premium and gas limit of every message of the last
blocks of the canonical chain.  It follows head changes, so the samples of
reverted blocks are dropped and those of applied blocks added.

To suggest a premium for inclusion within N blocks, the samples of the last
2N blocks are sorted by premium, highest first.  Walking that list, the gas
limits are summed until they exceed half the gas target of those blocks plus
another 5% of it.  The suggestion is the mean of the last two premiums
visited, so a message paying it would have been among the higher paying half
of recent traffic.  Suggestions never drop below MinGasPremium, which keeps
them useful on an idle chain.

The gas target of a block is half its gas limit, matching the target the
base fee adjusts toward.
*/
package fees
