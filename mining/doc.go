// Copyright (c) 2016 The Decred developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package mining selects pending messages for inclusion in new blocks.

# Overview

A MsgSource, normally the memory pool, hands out a consistent SourceView of
its pending messages grouped by sender.  MsgSelector scores the messages with
the versioned formula documented on SelectionFormulaVersion and greedily
fills a gas budget with the best candidates while keeping the messages of
every sender in strict nonce order.

InclusionTracker maintains the per sender inclusion averages that weight the
scores.
*/
package mining
