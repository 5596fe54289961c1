// Copyright (c) 2018 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package integration runs complete message pool nodes in process for end to
end tests.

Each Harness wires a loopback libp2p host, the gossip network, an in-memory
chain, the message pool, the network intake and a block producer the same
way the daemon does.  Several harnesses may be connected to test message
propagation between nodes.
*/
package integration
