// Copyright (c) 2017 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package netsync connects the message pool to the network.

GossipNetwork gossips signed messages over a libp2p pubsub topic specific to
the network.  Publisher announces the messages of the pool through it.  The
SyncManager subscribes to the topic, decodes every message it receives and
hands it to the pool as untrusted intake.  When the subscription fails the
manager subscribes again with an exponential backoff.
*/
package netsync
