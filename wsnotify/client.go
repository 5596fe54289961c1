// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wsnotify

import (
	"container/list"
	"encoding/json"
	"sync"
	"time"

	"github.com/btcsuite/msgpool/mempool"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// websocketSendBufferSize is the number of elements the send channel
	// can queue before blocking.  Note that this only applies to requests
	// handled directly in the websocket client input handler since
	// notifications have their own queueing mechanism independent of the
	// send channel buffer.
	websocketSendBufferSize = 50

	// writeWait is the time allowed to write a message to the client.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod is the interval of pings sent to the client.  It must be
	// less than pongWait.
	pingPeriod = pongWait * 9 / 10

	// maxRequestSize is the largest request accepted from a client.
	maxRequestSize = 4096
)

// wsResponse houses a message to send to a connected websocket client as
// well as a channel to reply on when the message is sent.
type wsResponse struct {
	msg      []byte
	doneChan chan bool
}

// wsClient provides an abstraction for handling a websocket client.  The
// overall data flow is split into 3 main goroutines.  Inbound requests are
// read and answered by the inHandler goroutine.  Responses to client
// requests use SendMessage which employs a buffered channel thereby
// limiting the number of outstanding requests that can be made.
// Notifications are sent via QueueNotification which implements a queue via
// notificationQueueHandler to ensure forwarding pool updates can't block.
// Ultimately, all messages are sent via the outHandler.
type wsClient struct {
	sync.Mutex

	// server is the server that is servicing the client.
	server *Server

	// conn is the underlying websocket connection.
	conn *websocket.Conn

	// id uniquely identifies the client for its lifetime.
	id uuid.UUID

	// addr is the remote address of the client.
	addr string

	// disconnected indicated whether or not the websocket client is
	// disconnected.
	disconnected bool

	// subs holds the pending update streams of the client keyed by their
	// identifier.
	subs map[string]*mempool.Subscription

	// Networking infrastructure.
	ntfnChan chan []byte
	sendChan chan wsResponse
	quit     chan struct{}
	wg       sync.WaitGroup
}

// newWebsocketClient returns a new websocket client for the connection.
// The returned client is ready to start.
func newWebsocketClient(server *Server, conn *websocket.Conn,
	remoteAddr string) *wsClient {

	return &wsClient{
		server:   server,
		conn:     conn,
		id:       uuid.New(),
		addr:     remoteAddr,
		subs:     make(map[string]*mempool.Subscription),
		ntfnChan: make(chan []byte, 1), // nonblocking sync
		sendChan: make(chan wsResponse, websocketSendBufferSize),
		quit:     make(chan struct{}),
	}
}

// handleMessage parses a request, executes it and sends the response.
func (c *wsClient) handleMessage(msg []byte) {
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		c.reply(nil, nil, &Error{
			Code:    ErrCodeParse,
			Message: "failed to parse request: " + err.Error(),
		})
		return
	}
	if req.JSONRPC != jsonrpcVersion || req.Method == "" {
		c.reply(req.ID, nil, &Error{
			Code:    ErrCodeInvalidRequest,
			Message: "invalid request",
		})
		return
	}

	log.Tracef("Received %s from client %s (%s)", req.Method, c.id, c.addr)

	switch req.Method {
	case MethodSubscribePendingUpdates:
		subID, rpcErr := c.subscribe()
		c.reply(req.ID, subID, rpcErr)

	case MethodUnsubscribePendingUpdates:
		var params []string
		if err := json.Unmarshal(req.Params, &params); err != nil ||
			len(params) != 1 {

			c.reply(req.ID, nil, &Error{
				Code:    ErrCodeInvalidParams,
				Message: "expected the subscription identifier",
			})
			return
		}
		c.reply(req.ID, c.unsubscribe(params[0]), nil)

	case MethodEstimateGasPremium:
		estimator := c.server.cfg.FeeEstimator
		if estimator == nil {
			c.reply(req.ID, nil, &Error{
				Code:    ErrCodeMethodNotFound,
				Message: "method not found: " + req.Method,
			})
			return
		}
		var params []uint64
		if err := json.Unmarshal(req.Params, &params); err != nil ||
			len(params) != 1 {

			c.reply(req.ID, nil, &Error{
				Code:    ErrCodeInvalidParams,
				Message: "expected the number of blocks",
			})
			return
		}
		premium, err := estimator.EstimateGasPremium(params[0])
		if err != nil {
			c.reply(req.ID, nil, &Error{
				Code:    ErrCodeInvalidParams,
				Message: err.Error(),
			})
			return
		}
		c.reply(req.ID, premium.String(), nil)

	default:
		c.reply(req.ID, nil, &Error{
			Code:    ErrCodeMethodNotFound,
			Message: "method not found: " + req.Method,
		})
	}
}

// reply sends the response to a request.
func (c *wsClient) reply(id json.RawMessage, result interface{}, rpcErr *Error) {
	msg, err := marshalResponse(id, result, rpcErr)
	if err != nil {
		log.Errorf("Unable to marshal reply for client %s: %v", c.id, err)
		return
	}
	c.SendMessage(msg, nil)
}

// subscribe starts a new stream of pool updates for the client.
func (c *wsClient) subscribe() (string, *Error) {
	c.Lock()
	if c.disconnected {
		c.Unlock()
		return "", &Error{Code: ErrCodeInvalidRequest, Message: "disconnected"}
	}
	if len(c.subs) >= c.server.cfg.MaxSubscriptionsPerClient {
		c.Unlock()
		return "", &Error{
			Code:    ErrCodeTooManySubscriptions,
			Message: "too many subscriptions",
		}
	}
	subID := uuid.NewString()
	sub := c.server.cfg.MsgPool.Subscribe()
	c.subs[subID] = sub
	c.Unlock()

	log.Debugf("Client %s subscribed to pending updates as %s", c.id, subID)

	c.wg.Add(1)
	go c.subscriptionHandler(subID, sub)
	return subID, nil
}

// unsubscribe ends the stream subID and returns whether it existed.
func (c *wsClient) unsubscribe(subID string) bool {
	c.Lock()
	sub, ok := c.subs[subID]
	delete(c.subs, subID)
	c.Unlock()

	if ok {
		sub.Unsubscribe()
	}
	return ok
}

// subscriptionHandler forwards the updates of sub until the stream ends.
// A stream closed by the pool is reported to the client.
//
// It must be run as a goroutine.
func (c *wsClient) subscriptionHandler(subID string, sub *mempool.Subscription) {
	defer c.wg.Done()

	for u := range sub.C {
		msg, err := marshalNotification(MethodPendingUpdate,
			newPendingUpdate(subID, u))
		if err != nil {
			log.Errorf("Unable to marshal update: %v", err)
			continue
		}
		c.QueueNotification(msg)
	}

	c.Lock()
	_, active := c.subs[subID]
	delete(c.subs, subID)
	disconnected := c.disconnected
	c.Unlock()

	// Streams ended on request of the client or because of the disconnect
	// are not reported.
	if !active || disconnected {
		return
	}

	log.Debugf("Pending update stream %s of client %s closed by the pool",
		subID, c.id)
	msg, err := marshalNotification(MethodPendingUpdatesClosed,
		&SubscriptionClosed{Subscription: subID})
	if err != nil {
		log.Errorf("Unable to marshal notification: %v", err)
		return
	}
	c.QueueNotification(msg)
}

// inHandler handles all incoming messages for the websocket connection.
//
// It must be run as a goroutine.
func (c *wsClient) inHandler() {
	c.conn.SetReadLimit(maxRequestSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

out:
	for {
		// Break out of the loop once the quit channel has been closed.
		// Use a non-blocking select here so we fall through otherwise.
		select {
		case <-c.quit:
			break out
		default:
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			// Log the error if it's not due to disconnecting.
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway) && !c.isDisconnected() {

				log.Errorf("Websocket receive error from %s: %v",
					c.addr, err)
			}
			break out
		}
		c.handleMessage(msg)
	}

	// Ensure the connection is closed.
	c.Disconnect()
	c.wg.Done()
	log.Tracef("Websocket client input handler done for %s", c.addr)
}

// notificationQueueHandler handles the queueing of outgoing notifications
// for the websocket client.  This runs as a muxer for various sources of
// input to ensure that queueing up notifications to be sent will not block.
// Otherwise, slow clients could bog down the pool update streams which are
// queueing the data.  The data is passed on to outHandler to actually be
// written.
//
// It must be run as a goroutine.
func (c *wsClient) notificationQueueHandler() {
	ntfnSentChan := make(chan bool, 1) // nonblocking sync

	// pendingNtfns is used as a queue for notifications that are ready to
	// be sent once there are no outstanding notifications currently being
	// sent.
	pendingNtfns := list.New()
	waiting := false
out:
	for {
		select {
		// This channel is notified when a message is being queued to
		// be sent across the network socket.  It will either send the
		// message immediately if a send is not already in progress, or
		// queue the message to be sent once the other pending messages
		// are sent.
		case msg := <-c.ntfnChan:
			if !waiting {
				c.SendMessage(msg, ntfnSentChan)
			} else {
				pendingNtfns.PushBack(msg)
			}
			waiting = true

		// This channel is notified when a notification has been sent
		// across the network socket.
		case <-ntfnSentChan:
			// No longer waiting if there are no more messages in
			// the pending messages queue.
			next := pendingNtfns.Front()
			if next == nil {
				waiting = false
				continue
			}

			// Notify the outHandler about the next item to
			// asynchronously send.
			msg := pendingNtfns.Remove(next).([]byte)
			c.SendMessage(msg, ntfnSentChan)

		case <-c.quit:
			break out
		}
	}

	// Drain any wait channels before exiting so nothing is left waiting
	// around to send.
cleanup:
	for {
		select {
		case <-c.ntfnChan:
		case <-ntfnSentChan:
		default:
			break cleanup
		}
	}
	c.wg.Done()
	log.Tracef("Websocket client notification queue handler done for %s",
		c.addr)
}

// outHandler handles all outgoing messages for the websocket connection.
// It uses a buffered channel to serialize output messages while allowing
// the sender to continue running asynchronously.  It also keeps the
// connection alive with pings.
//
// It must be run as a goroutine.
func (c *wsClient) outHandler() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

out:
	for {
		// Send any messages ready for send until the quit channel is
		// closed.
		select {
		case r := <-c.sendChan:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.TextMessage, r.msg)
			if err != nil {
				c.Disconnect()
				break out
			}
			if r.doneChan != nil {
				r.doneChan <- true
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				c.Disconnect()
				break out
			}

		case <-c.quit:
			break out
		}
	}

	// Drain any wait channels before exiting so nothing is left waiting
	// around to send.
cleanup:
	for {
		select {
		case r := <-c.sendChan:
			if r.doneChan != nil {
				r.doneChan <- false
			}
		default:
			break cleanup
		}
	}
	c.wg.Done()
	log.Tracef("Websocket client output handler done for %s", c.addr)
}

// SendMessage sends the passed json to the websocket client.  It is backed
// by a buffered channel, so it will not block until the send channel is
// full.  Note however that QueueNotification must be used for sending async
// notifications instead of the this function.  This approach allows a limit
// to the number of outstanding requests a client can make without
// preventing or blocking on async notifications.
func (c *wsClient) SendMessage(marshalledJSON []byte, doneChan chan bool) {
	// Don't queue the message if in the process of shutting down.
	select {
	case <-c.quit:
		if doneChan != nil {
			doneChan <- false
		}
		return
	default:
	}

	select {
	case c.sendChan <- wsResponse{msg: marshalledJSON, doneChan: doneChan}:
	case <-c.quit:
	}
}

// QueueNotification queues the passed notification to be sent to the
// websocket client.  This function, as the name implies, is only intended
// for notifications since it has additional logic to prevent the update
// streams from blocking even when the send channel is full.
func (c *wsClient) QueueNotification(marshalledJSON []byte) {
	select {
	case c.ntfnChan <- marshalledJSON:
	case <-c.quit:
	}
}

// isDisconnected returns whether the client was disconnected.
func (c *wsClient) isDisconnected() bool {
	c.Lock()
	defer c.Unlock()

	return c.disconnected
}

// Disconnect disconnects the websocket client and ends its update
// streams.
func (c *wsClient) Disconnect() {
	c.Lock()
	// Nothing to do if already disconnected.
	if c.disconnected {
		c.Unlock()
		return
	}
	c.disconnected = true
	subs := c.subs
	c.subs = make(map[string]*mempool.Subscription)
	c.Unlock()

	log.Tracef("Disconnecting websocket client %s", c.addr)
	close(c.quit)
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	c.conn.Close()
}

// Start begins processing input and output messages.
func (c *wsClient) Start() {
	log.Tracef("Starting websocket client %s", c.addr)

	// Start processing input and output.
	c.wg.Add(3)
	go c.inHandler()
	go c.notificationQueueHandler()
	go c.outHandler()
}

// WaitForShutdown blocks until the websocket client goroutines are stopped
// and the connection is closed.
func (c *wsClient) WaitForShutdown() {
	c.wg.Wait()
}
