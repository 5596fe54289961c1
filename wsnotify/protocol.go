// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wsnotify

import (
	"encoding/json"
	"fmt"

	"github.com/btcsuite/msgpool/mempool"
)

// Method names understood by the server.
const (
	// MethodSubscribePendingUpdates starts a stream of pending set
	// updates.  The result is the identifier of the subscription.
	MethodSubscribePendingUpdates = "subscribe_pending_updates"

	// MethodUnsubscribePendingUpdates ends the stream identified by the
	// only parameter.  The result tells whether the stream existed.
	MethodUnsubscribePendingUpdates = "unsubscribe_pending_updates"

	// MethodEstimateGasPremium suggests a gas premium for inclusion within
	// the number of blocks given as the only parameter.  The result is the
	// premium as a decimal string.  It is only served when the server has
	// a premium estimator.
	MethodEstimateGasPremium = "estimate_gas_premium"

	// MethodPendingUpdate is the notification carrying an update.
	MethodPendingUpdate = "pending_update"

	// MethodPendingUpdatesClosed is the notification sent when the pool
	// ends a stream, for example because the client fell behind.
	MethodPendingUpdatesClosed = "pending_updates_closed"
)

// Standard JSON-RPC 2.0 error codes along with the codes specific to the
// server.
const (
	ErrCodeParse                = -32700
	ErrCodeInvalidRequest       = -32600
	ErrCodeMethodNotFound       = -32601
	ErrCodeInvalidParams        = -32602
	ErrCodeTooManySubscriptions = -32000
)

// jsonrpcVersion is the protocol version tag of every message.
const jsonrpcVersion = "2.0"

// Request is a request sent by a client.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error is the error member of a response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Response is the reply to a request.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification is a message pushed by the server.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// PendingUpdate is the payload of a pending_update notification.
type PendingUpdate struct {
	Subscription string `json:"subscription"`
	Type         string `json:"type"`
	Cid          string `json:"cid"`
	From         string `json:"from"`
	Nonce        uint64 `json:"nonce"`
}

// SubscriptionClosed is the payload of a pending_updates_closed
// notification.
type SubscriptionClosed struct {
	Subscription string `json:"subscription"`
}

// updateTypes maps pool notification types to their wire names.
var updateTypes = map[mempool.NotificationType]string{
	mempool.NTMsgAdded:   "add",
	mempool.NTMsgRemoved: "remove",
}

// newPendingUpdate converts a pool update for the subscription subID.
func newPendingUpdate(subID string, u *mempool.Update) *PendingUpdate {
	typ, ok := updateTypes[u.Type]
	if !ok {
		typ = u.Type.String()
	}
	return &PendingUpdate{
		Subscription: subID,
		Type:         typ,
		Cid:          u.Cid.String(),
		From:         u.From.String(),
		Nonce:        u.Nonce,
	}
}

// marshalNotification returns the encoded notification.
func marshalNotification(method string, params interface{}) ([]byte, error) {
	return json.Marshal(&Notification{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  params,
	})
}

// marshalResponse returns the encoded response to the request with the
// given id.
func marshalResponse(id json.RawMessage, result interface{}, rpcErr *Error) ([]byte, error) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	resp := &Response{JSONRPC: jsonrpcVersion, ID: id, Error: rpcErr}
	if rpcErr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		resp.Result = raw
	}
	return json.Marshal(resp)
}
