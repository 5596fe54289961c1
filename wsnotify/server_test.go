// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wsnotify

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/mempool"
	"github.com/btcsuite/msgpool/wire"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// testStream is a pool update stream controlled by the test.
type testStream struct {
	c        chan *mempool.Update
	once     sync.Once
	canceled chan struct{}
}

func newTestStream() *testStream {
	return &testStream{
		c:        make(chan *mempool.Update, 8),
		canceled: make(chan struct{}),
	}
}

// close ends the stream as the pool would.
func (s *testStream) close() {
	s.once.Do(func() {
		close(s.c)
		close(s.canceled)
	})
}

func (s *testStream) subscription() *mempool.Subscription {
	return mempool.NewSubscription(s.c, s.close)
}

// testClient is a websocket client of a test server.
type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   int
}

// newTestServer starts a server over pool and returns a connected client.
func newTestServer(t *testing.T, pool mempool.MsgPool,
	maxSubs int) (*Server, *testClient) {

	t.Helper()

	return newTestServerWithConfig(t, &Config{
		MsgPool:                   pool,
		MaxSubscriptionsPerClient: maxSubs,
	})
}

// newTestServerWithConfig starts a server with cfg and returns a connected
// client.
func newTestServerWithConfig(t *testing.T, cfg *Config) (*Server, *testClient) {
	t.Helper()

	server, err := NewServer(cfg)
	require.NoError(t, err)
	httpServer := httptest.NewServer(server)
	t.Cleanup(func() {
		server.Stop()
		httpServer.Close()
	})

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return server.NumClients() == 1
	}, 5*time.Second, 5*time.Millisecond)

	return server, &testClient{t: t, conn: conn}
}

// call sends a request and returns the raw response.
func (c *testClient) call(method string, params interface{}) map[string]json.RawMessage {
	c.t.Helper()

	c.id++
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      c.id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	require.NoError(c.t, c.conn.WriteJSON(req))
	return c.read()
}

// read returns the next message from the server.
func (c *testClient) read() map[string]json.RawMessage {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]json.RawMessage
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return msg
}

// subscribe starts a stream and returns its identifier.
func (c *testClient) subscribe() string {
	c.t.Helper()

	resp := c.call(MethodSubscribePendingUpdates, nil)
	require.NotContains(c.t, resp, "error")
	var subID string
	require.NoError(c.t, json.Unmarshal(resp["result"], &subID))
	require.NotEmpty(c.t, subID)
	return subID
}

// rpcError decodes the error of a response.
func rpcError(t *testing.T, resp map[string]json.RawMessage) *Error {
	t.Helper()

	require.Contains(t, resp, "error")
	require.NotContains(t, resp, "result")
	var rpcErr Error
	require.NoError(t, json.Unmarshal(resp["error"], &rpcErr))
	return &rpcErr
}

// TestPendingUpdates ensures pool updates are streamed to the subscriber
// and that a stream ended by the pool is reported.
func TestPendingUpdates(t *testing.T) {
	t.Parallel()

	stream := newTestStream()
	pool := &mempool.MockMsgPool{}
	pool.On("Subscribe").Return(stream.subscription()).Once()

	_, client := newTestServer(t, pool, 0)
	subID := client.subscribe()

	from, err := address.NewIDAddress(7)
	require.NoError(t, err)
	c, err := wire.ComputeCid([]byte("message"))
	require.NoError(t, err)

	stream.c <- &mempool.Update{
		Type:  mempool.NTMsgAdded,
		Cid:   c,
		From:  from,
		Nonce: 3,
	}
	stream.c <- &mempool.Update{
		Type:  mempool.NTMsgRemoved,
		Cid:   c,
		From:  from,
		Nonce: 3,
	}

	for _, typ := range []string{"add", "remove"} {
		ntfn := client.read()
		require.JSONEq(t, `"`+MethodPendingUpdate+`"`, string(ntfn["method"]))

		var update PendingUpdate
		require.NoError(t, json.Unmarshal(ntfn["params"], &update))
		require.Equal(t, PendingUpdate{
			Subscription: subID,
			Type:         typ,
			Cid:          c.String(),
			From:         from.String(),
			Nonce:        3,
		}, update)
	}

	stream.close()
	ntfn := client.read()
	require.JSONEq(t, `"`+MethodPendingUpdatesClosed+`"`, string(ntfn["method"]))
	var closed SubscriptionClosed
	require.NoError(t, json.Unmarshal(ntfn["params"], &closed))
	require.Equal(t, subID, closed.Subscription)

	pool.AssertExpectations(t)
}

// TestUnsubscribe ensures a client can end its streams and that the
// number of streams per client is bounded.
func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	first, second, third := newTestStream(), newTestStream(), newTestStream()
	pool := &mempool.MockMsgPool{}
	pool.On("Subscribe").Return(first.subscription()).Once()
	pool.On("Subscribe").Return(second.subscription()).Once()
	pool.On("Subscribe").Return(third.subscription()).Once()

	_, client := newTestServer(t, pool, 2)
	firstID := client.subscribe()
	client.subscribe()

	resp := client.call(MethodSubscribePendingUpdates, nil)
	require.Equal(t, ErrCodeTooManySubscriptions, rpcError(t, resp).Code)

	resp = client.call(MethodUnsubscribePendingUpdates, []string{firstID})
	require.JSONEq(t, "true", string(resp["result"]))
	select {
	case <-first.canceled:
	case <-time.After(5 * time.Second):
		t.Fatal("stream not canceled")
	}

	resp = client.call(MethodUnsubscribePendingUpdates, []string{firstID})
	require.JSONEq(t, "false", string(resp["result"]))

	// The freed slot can be used again.
	client.subscribe()
	pool.AssertExpectations(t)
}

// TestBadRequests ensures malformed requests are answered with the proper
// errors without dropping the connection.
func TestBadRequests(t *testing.T) {
	t.Parallel()

	_, client := newTestServer(t, &mempool.MockMsgPool{}, 0)

	tests := []struct {
		name   string
		method string
		params interface{}
		code   int
	}{
		{"unknown method", "get_balance", nil, ErrCodeMethodNotFound},
		{"missing params", MethodUnsubscribePendingUpdates, nil,
			ErrCodeInvalidParams},
		{"wrong params", MethodUnsubscribePendingUpdates, []int{1, 2},
			ErrCodeInvalidParams},
	}

	t.Logf("Running %d tests", len(tests))
	for _, test := range tests {
		resp := client.call(test.method, test.params)
		require.Equal(t, test.code, rpcError(t, resp).Code, test.name)
	}

	require.NoError(t, client.conn.WriteMessage(websocket.TextMessage,
		[]byte("{not json")))
	resp := client.read()
	require.Equal(t, ErrCodeParse, rpcError(t, resp).Code)
	require.JSONEq(t, "null", string(resp["id"]))

	require.NoError(t, client.conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"id":1,"method":"subscribe_pending_updates"}`)))
	resp = client.read()
	require.Equal(t, ErrCodeInvalidRequest, rpcError(t, resp).Code)
}

// TestStop ensures stopping the server ends the streams of its clients and
// disconnects them.
func TestStop(t *testing.T) {
	t.Parallel()

	stream := newTestStream()
	pool := &mempool.MockMsgPool{}
	pool.On("Subscribe").Return(stream.subscription()).Once()

	server, client := newTestServer(t, pool, 0)
	client.subscribe()

	server.Stop()
	select {
	case <-stream.canceled:
	case <-time.After(5 * time.Second):
		t.Fatal("stream not canceled")
	}

	require.NoError(t, client.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := client.conn.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool {
		return server.NumClients() == 0
	}, 5*time.Second, 5*time.Millisecond)
}

// testEstimator suggests the premium of the number of blocks requested.
type testEstimator struct{}

func (testEstimator) EstimateGasPremium(nblocks uint64) (wire.TokenAmount, error) {
	if nblocks > 10 {
		return wire.TokenAmount{}, errors.New("too many blocks")
	}
	return wire.NewTokenAmount(1000 * nblocks), nil
}

// TestEstimateGasPremium ensures premium estimates are served when the
// server has an estimator.
func TestEstimateGasPremium(t *testing.T) {
	t.Parallel()

	_, client := newTestServerWithConfig(t, &Config{
		MsgPool:      &mempool.MockMsgPool{},
		FeeEstimator: testEstimator{},
	})

	resp := client.call(MethodEstimateGasPremium, []uint64{3})
	require.NotContains(t, resp, "error")
	require.JSONEq(t, `"3000"`, string(resp["result"]))

	resp = client.call(MethodEstimateGasPremium, []uint64{11})
	require.Equal(t, ErrCodeInvalidParams, rpcError(t, resp).Code)

	resp = client.call(MethodEstimateGasPremium, []string{"three"})
	require.Equal(t, ErrCodeInvalidParams, rpcError(t, resp).Code)

	// Without an estimator the method is unknown.
	_, plain := newTestServer(t, &mempool.MockMsgPool{}, 0)
	resp = plain.call(MethodEstimateGasPremium, []uint64{3})
	require.Equal(t, ErrCodeMethodNotFound, rpcError(t, resp).Code)
}

// TestNewServerValidation ensures the server requires a pool.
func TestNewServerValidation(t *testing.T) {
	t.Parallel()

	_, err := NewServer(&Config{})
	require.Error(t, err)
}
