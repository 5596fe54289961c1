// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package wsnotify streams the changes of the pending message set to websocket
clients.

Clients speak JSON-RPC 2.0.  The subscribe_pending_updates method starts a
stream and returns its identifier, and unsubscribe_pending_updates ends it.
Every change of the pending set is pushed as a pending_update notification:

	{"jsonrpc":"2.0","method":"pending_update","params":{"subscription":"...",
	 "type":"add","cid":"bafy...","from":"t1...","nonce":7}}

When the pool ends a stream, for example because the client could not keep
up, a pending_updates_closed notification names the stream.
*/
package wsnotify
