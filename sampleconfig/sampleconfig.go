// Copyright (c) 2017 The Decred developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sampleconfig

// FileContents is a string containing the commented example config for
// msgpoold.
const FileContents = `[Application Options]

; ------------------------------------------------------------------------------
; Network settings
; ------------------------------------------------------------------------------

; Use testnet.
; testnet=1

; Use simnet.
; simnet=1

; Multiaddrs to listen for gossip peers on.  The default is all IPv4
; interfaces on the port of the network.  Multiple listeners may be given.
; listen=/ip4/0.0.0.0/tcp/21347
; listen=/ip6/::/tcp/21347

; Peers to connect with at startup, as multiaddrs including the peer id.
; addpeer=/ip4/192.168.1.2/tcp/21347/p2p/12D3KooW...

; Do not connect to the bootstrap peers of the network.
; nobootstrap=1


; ------------------------------------------------------------------------------
; Message pool settings
; ------------------------------------------------------------------------------

; Max number of pending messages per sender for local submissions.
; maxpendingpersender=1000

; Max number of pending messages per sender for messages from the network.
; maxuntrustedpersender=10

; Max number of pending messages in the pool.
; maxpoolsize=20000

; Minimum gas premium increase in percent for a message to replace the
; message pending at the same nonce.
; rbfpercent=25

; How often pending local messages are announced again.  The default depends
; on the network.
; republishinterval=1m

; The maximum number of entries in the signature verification cache.
; sigcachemaxsize=100000


; ------------------------------------------------------------------------------
; Notification and metrics settings
; ------------------------------------------------------------------------------

; Interface/port to serve pending message notifications on.  Clients connect
; to ws://<wslisten>/ws.
; wslisten=127.0.0.1:21350

; Disable the websocket notification server.
; nows=1

; Max number of websocket clients.
; wsmaxclients=100

; Interface/port to serve prometheus metrics on, under /metrics.
; metricslisten=127.0.0.1:21351

; Disable the metrics endpoint.
; nometrics=1


; ------------------------------------------------------------------------------
; Simulation settings
; ------------------------------------------------------------------------------

; Produce blocks at the block delay of the network.  Only the simulation
; network supports this.
; generate=1

; Fund accounts in the genesis state.  Multiple accounts may be funded.
; fund=t1abc...:1000000000000000000


; ------------------------------------------------------------------------------
; Debug
; ------------------------------------------------------------------------------

; Debug logging level.
; Valid levels are {trace, debug, info, warn, error, critical}
; You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set
; log level for individual subsystems.  Use msgpoold --debuglevel=show to list
; available subsystems.
; debuglevel=info

; The directory to store log files.  The network name is appended.
; logdir=~/.msgpoold/logs
`
