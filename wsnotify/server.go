// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wsnotify

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/msgpool/mempool"
	"github.com/btcsuite/msgpool/wire"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultMaxClients is the default number of concurrent websocket
	// clients.
	DefaultMaxClients = 100

	// DefaultMaxSubscriptionsPerClient is the default number of pending
	// update streams a single client may hold.
	DefaultMaxSubscriptionsPerClient = 8
)

// FeeEstimator suggests gas premiums for new messages.
type FeeEstimator interface {
	// EstimateGasPremium suggests a gas premium for inclusion within
	// nblocks blocks.
	EstimateGasPremium(nblocks uint64) (wire.TokenAmount, error)
}

// Config is a configuration struct used to initialize a new Server.
type Config struct {
	// MsgPool is the pool whose pending set changes are streamed.
	MsgPool mempool.MsgPool

	// FeeEstimator answers gas premium estimate requests.  The requests
	// are refused when it is nil.
	FeeEstimator FeeEstimator

	// MaxClients is the maximum number of concurrent clients.
	MaxClients int

	// MaxSubscriptionsPerClient is the maximum number of pending update
	// streams of a single client.
	MaxSubscriptionsPerClient int

	// CheckOrigin decides whether the origin of an upgrade request is
	// acceptable.  When nil, requests with an Origin header must be from
	// the same host.
	CheckOrigin func(r *http.Request) bool
}

// Server streams the changes of the pending set of a message pool to
// websocket clients.  It implements http.Handler.
type Server struct {
	shutdown int32

	cfg      Config
	upgrader websocket.Upgrader

	mtx     sync.Mutex
	clients map[uuid.UUID]*wsClient
}

// Ensure Server implements http.Handler.
var _ http.Handler = (*Server)(nil)

// NewServer returns a new notification server for the pool in cfg.
func NewServer(config *Config) (*Server, error) {
	if config.MsgPool == nil {
		return nil, errors.New("wsnotify: message pool is required")
	}

	cfg := *config
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = DefaultMaxClients
	}
	if cfg.MaxSubscriptionsPerClient <= 0 {
		cfg.MaxSubscriptionsPerClient = DefaultMaxSubscriptionsPerClient
	}

	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		clients: make(map[uuid.UUID]*wsClient),
	}, nil
}

// ServeHTTP upgrades the request to a websocket connection and serves the
// client until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&s.shutdown) != 0 {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	if s.NumClients() >= s.cfg.MaxClients {
		log.Infof("Max websocket clients exceeded [%d] - disconnecting "+
			"client %s", s.cfg.MaxClients, r.RemoteAddr)
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied to the client.
		log.Debugf("Unable to upgrade connection from %s: %v",
			r.RemoteAddr, err)
		return
	}

	client := newWebsocketClient(s, conn, r.RemoteAddr)
	if !s.addClient(client) {
		conn.Close()
		return
	}
	log.Infof("New websocket client %s (%s)", client.id, client.addr)

	client.Start()
	client.WaitForShutdown()

	s.removeClient(client)
	log.Infof("Disconnected websocket client %s (%s)", client.id,
		client.addr)
}

// addClient registers the client unless the server is shutting down.
func (s *Server) addClient(c *wsClient) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if atomic.LoadInt32(&s.shutdown) != 0 {
		return false
	}
	s.clients[c.id] = c
	return true
}

// removeClient unregisters the client.
func (s *Server) removeClient(c *wsClient) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	delete(s.clients, c.id)
}

// NumClients returns the number of connected clients.
//
// This function is safe for concurrent access.
func (s *Server) NumClients() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return len(s.clients)
}

// Stop disconnects every client and refuses new ones.
func (s *Server) Stop() {
	if atomic.AddInt32(&s.shutdown, 1) != 1 {
		log.Warnf("Websocket server is already in the process of " +
			"shutting down")
		return
	}

	s.mtx.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mtx.Unlock()

	for _, c := range clients {
		c.Disconnect()
	}
	for _, c := range clients {
		c.WaitForShutdown()
	}
	log.Infof("Websocket server stopped")
}
