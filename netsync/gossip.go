// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/msgpool/chaincfg"
	"github.com/btcsuite/msgpool/wire"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// connectTimeout bounds the time spent connecting to a single peer.
const connectTimeout = 5 * time.Second

// GossipNetwork gossips signed messages over the libp2p pubsub topic of a
// network.  Messages that do not decode or exceed the maximum message size
// are rejected by the topic validator and never forwarded.
type GossipNetwork struct {
	host   host.Host
	params *chaincfg.Params
	ps     *pubsub.PubSub
	topic  *pubsub.Topic
}

// Ensure GossipNetwork implements the Network interface.
var _ Network = (*GossipNetwork)(nil)

// NewGossipNetwork starts gossipsub on h and joins the message topic of
// the network described by params.
func NewGossipNetwork(ctx context.Context, h host.Host,
	params *chaincfg.Params) (*GossipNetwork, error) {

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("start gossipsub: %w", err)
	}

	g := &GossipNetwork{host: h, params: params, ps: ps}
	topicName := params.MessageTopic()
	err = ps.RegisterTopicValidator(topicName, g.validate)
	if err != nil {
		return nil, fmt.Errorf("register validator for %s: %w", topicName, err)
	}
	g.topic, err = ps.Join(topicName)
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", topicName, err)
	}

	log.Infof("Joined message topic %s as peer %s", topicName, h.ID())
	return g, nil
}

// validate decodes a gossiped message and rejects it when it is malformed.
// The decoded message is kept on the pubsub message so it is not decoded
// again on delivery.
func (g *GossipNetwork) validate(_ context.Context, from peer.ID,
	msg *pubsub.Message) pubsub.ValidationResult {

	if len(msg.Data) > g.params.MaxMessageSize {
		log.Debugf("Rejecting oversized message (%d bytes) from %s",
			len(msg.Data), from)
		return pubsub.ValidationReject
	}
	sm, err := wire.DecodeSignedMessage(msg.Data)
	if err != nil {
		log.Debugf("Rejecting malformed message from %s: %v", from, err)
		return pubsub.ValidationReject
	}
	msg.ValidatorData = sm
	return pubsub.ValidationAccept
}

// Publish gossips an encoded signed message to the network.
//
// This function is safe for concurrent access.
func (g *GossipNetwork) Publish(ctx context.Context, data []byte) error {
	return g.topic.Publish(ctx, data)
}

// Subscribe returns a stream of the messages gossiped by other peers.
//
// This function is safe for concurrent access.
func (g *GossipNetwork) Subscribe() (MessageStream, error) {
	sub, err := g.topic.Subscribe()
	if err != nil {
		return nil, err
	}
	return &gossipStream{self: g.host.ID(), sub: sub}, nil
}

// ConnectPeers connects to every peer in addrs, given as multiaddrs that
// include the peer identity.  It returns the number of peers connected
// along with the errors of the failed attempts.
func (g *GossipNetwork) ConnectPeers(ctx context.Context, addrs []string) (int, error) {
	var (
		connected int
		errs      []error
	)
	for _, addr := range addrs {
		if err := connectOnce(ctx, g.host, addr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		connected++
	}
	return connected, errors.Join(errs...)
}

// TopicPeers returns the peers known to be subscribed to the message
// topic.
//
// This function is safe for concurrent access.
func (g *GossipNetwork) TopicPeers() []peer.ID {
	return g.topic.ListPeers()
}

// Close leaves the message topic.
func (g *GossipNetwork) Close() error {
	return g.topic.Close()
}

// connectOnce dials the peer at addr.
func connectOnce(ctx context.Context, h host.Host, addr string) error {
	maAddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(maAddr)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return h.Connect(ctx, *info)
}

// gossipStream adapts a pubsub subscription to a MessageStream.  Messages
// published by the local host are skipped.
type gossipStream struct {
	self peer.ID
	sub  *pubsub.Subscription
}

// Next blocks until the next message of another peer arrives.
func (s *gossipStream) Next(ctx context.Context) (*NetMessage, error) {
	for {
		msg, err := s.sub.Next(ctx)
		if err != nil {
			return nil, err
		}
		if msg.ReceivedFrom == s.self {
			continue
		}

		nm := &NetMessage{From: msg.ReceivedFrom.String(), Data: msg.Data}
		if sm, ok := msg.ValidatorData.(*wire.SignedMessage); ok {
			nm.Msg = sm
		}
		return nm, nil
	}
}

// Cancel ends the subscription.
func (s *gossipStream) Cancel() {
	s.sub.Cancel()
}
