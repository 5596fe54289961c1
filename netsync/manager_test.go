// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/chaincfg"
	"github.com/btcsuite/msgpool/mempool"
	"github.com/btcsuite/msgpool/sigs"
	"github.com/btcsuite/msgpool/wire"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// errStreamClosed is returned by fake streams once they are failed.
var errStreamClosed = errors.New("stream closed")

// fakeStream is a message stream fed by a channel.
type fakeStream struct {
	msgs     chan *NetMessage
	failed   chan struct{}
	failOnce sync.Once
}

func (s *fakeStream) Next(ctx context.Context) (*NetMessage, error) {
	select {
	case nm := <-s.msgs:
		return nm, nil
	case <-s.failed:
		return nil, errStreamClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeStream) Cancel() {}

// fail makes the stream return an error.
func (s *fakeStream) fail() {
	s.failOnce.Do(func() { close(s.failed) })
}

// fakeNetwork hands out fake streams and records published data.  The
// first subscribeErrs subscriptions fail.
type fakeNetwork struct {
	mtx           sync.Mutex
	subscribeErrs int
	subscribes    int
	streams       chan *fakeStream
	published     [][]byte
	publishErr    error
}

func newFakeNetwork(subscribeErrs int) *fakeNetwork {
	return &fakeNetwork{
		subscribeErrs: subscribeErrs,
		streams:       make(chan *fakeStream, 8),
	}
}

func (n *fakeNetwork) Publish(_ context.Context, data []byte) error {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	if n.publishErr != nil {
		return n.publishErr
	}
	n.published = append(n.published, data)
	return nil
}

func (n *fakeNetwork) Subscribe() (MessageStream, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	n.subscribes++
	if n.subscribes <= n.subscribeErrs {
		return nil, errors.New("no peers")
	}
	s := &fakeStream{
		msgs:   make(chan *NetMessage, 8),
		failed: make(chan struct{}),
	}
	n.streams <- s
	return s, nil
}

// nextStream waits for the next subscription.
func (n *fakeNetwork) nextStream(t *testing.T) *fakeStream {
	t.Helper()

	select {
	case s := <-n.streams:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for subscription")
		return nil
	}
}

// testMessage returns a signed message with the given nonce.
func testMessage(t *testing.T, nonce uint64) *wire.SignedMessage {
	t.Helper()

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	from, err := sigs.AddressOf(key)
	require.NoError(t, err)
	to, err := address.NewIDAddress(100)
	require.NoError(t, err)

	sm, err := sigs.Sign(key, wire.Message{
		Version:    wire.MessageVersion,
		To:         to,
		From:       from,
		Nonce:      nonce,
		Value:      wire.NewTokenAmount(1),
		GasLimit:   1_000_000,
		GasFeeCap:  wire.NewTokenAmount(200),
		GasPremium: wire.NewTokenAmount(10),
		Method:     wire.MethodSend,
	})
	require.NoError(t, err)
	return sm
}

// newTestManager returns a started manager over net and pool.
func newTestManager(t *testing.T, net Network,
	pool mempool.MsgPool) *SyncManager {

	t.Helper()

	sm, err := New(&Config{
		Network:             net,
		MsgPool:             pool,
		ChainParams:         &chaincfg.SimNetParams,
		SubscribeAttempts:   5,
		SubscribeRetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	sm.Start()
	t.Cleanup(func() { require.NoError(t, sm.Stop()) })
	return sm
}

// TestNewValidation ensures the manager requires its collaborators.
func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(&Config{MsgPool: &mempool.MockMsgPool{}})
	require.Error(t, err)
	_, err = New(&Config{Network: newFakeNetwork(0)})
	require.Error(t, err)
}

// TestIntake ensures messages received from the network are decoded and
// offered to the pool as untrusted intake.
func TestIntake(t *testing.T) {
	t.Parallel()

	accepted := testMessage(t, 0)
	rejected := testMessage(t, 1)
	predecoded := testMessage(t, 2)

	pool := &mempool.MockMsgPool{}
	matches := func(want *wire.SignedMessage) interface{} {
		return mock.MatchedBy(func(sm *wire.SignedMessage) bool {
			return sm.MustCid() == want.MustCid()
		})
	}
	pool.On("Add", mock.Anything, matches(accepted)).
		Return(accepted.MustCid(), nil).Once()
	pool.On("Add", mock.Anything, matches(rejected)).
		Return(cid.Undef, mempool.RuleError{
			ErrorCode: mempool.ErrNonceTooLow,
		}).Once()
	pool.On("Add", mock.Anything, predecoded).
		Return(predecoded.MustCid(), nil).Once()

	net := newFakeNetwork(0)
	sm := newTestManager(t, net, pool)
	stream := net.nextStream(t)

	for _, msg := range []*wire.SignedMessage{accepted, rejected} {
		data, err := msg.Serialize()
		require.NoError(t, err)
		stream.msgs <- &NetMessage{From: "peer", Data: data}
	}
	stream.msgs <- &NetMessage{From: "peer", Data: []byte{0xff, 0x00}}
	stream.msgs <- &NetMessage{From: "peer", Msg: predecoded}

	want := IntakeStats{Received: 4, Accepted: 2, Rejected: 1, Malformed: 1}
	require.Eventually(t, func() bool {
		return sm.Stats() == want
	}, 5*time.Second, 5*time.Millisecond)
	pool.AssertExpectations(t)
}

// TestResubscribe ensures the manager retries failed subscriptions and
// subscribes again when its stream fails.
func TestResubscribe(t *testing.T) {
	t.Parallel()

	msg := testMessage(t, 0)
	pool := &mempool.MockMsgPool{}
	pool.On("Add", mock.Anything, msg).Return(msg.MustCid(), nil).Once()

	net := newFakeNetwork(2)
	sm := newTestManager(t, net, pool)

	first := net.nextStream(t)
	first.fail()

	second := net.nextStream(t)
	second.msgs <- &NetMessage{From: "peer", Msg: msg}
	require.Eventually(t, func() bool {
		return sm.Stats().Accepted == 1
	}, 5*time.Second, 5*time.Millisecond)

	net.mtx.Lock()
	require.Equal(t, 4, net.subscribes)
	net.mtx.Unlock()
	pool.AssertExpectations(t)
}

// TestGiveUp ensures the manager stops trying once the subscription
// attempts run out and still shuts down cleanly.
func TestGiveUp(t *testing.T) {
	t.Parallel()

	net := newFakeNetwork(100)
	sm, err := New(&Config{
		Network:             net,
		MsgPool:             &mempool.MockMsgPool{},
		SubscribeAttempts:   3,
		SubscribeRetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	sm.Start()

	require.Eventually(t, func() bool {
		net.mtx.Lock()
		defer net.mtx.Unlock()
		return net.subscribes == 3
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, sm.Stop())
	require.NoError(t, sm.Stop())

	net.mtx.Lock()
	require.Equal(t, 3, net.subscribes)
	net.mtx.Unlock()
}

// TestPublisher ensures the publisher gossips the encoded message.
func TestPublisher(t *testing.T) {
	t.Parallel()

	msg := testMessage(t, 0)
	net := newFakeNetwork(0)
	pub := NewPublisher(net)
	require.NoError(t, pub.Publish(context.Background(), msg))

	want, err := msg.Serialize()
	require.NoError(t, err)
	require.Equal(t, [][]byte{want}, net.published)

	decoded, err := wire.DecodeSignedMessage(net.published[0])
	require.NoError(t, err)
	require.Equal(t, msg.MustCid(), decoded.MustCid())

	net.publishErr = errors.New("no peers")
	err = pub.Publish(context.Background(), msg)
	require.ErrorIs(t, err, net.publishErr)
}
