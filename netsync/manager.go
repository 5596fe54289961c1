// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2018 The Decred developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/benbjohnson/clock"
	"github.com/btcsuite/msgpool/mempool"
	"github.com/btcsuite/msgpool/wire"
)

const (
	// DefaultSubscribeAttempts is the default number of attempts to
	// subscribe to the network.
	DefaultSubscribeAttempts = 10

	// DefaultSubscribeRetryDelay is the default initial delay between
	// subscription attempts.
	DefaultSubscribeRetryDelay = 500 * time.Millisecond

	// maxSubscribeRetryDelay caps the delay between subscription
	// attempts.
	maxSubscribeRetryDelay = 30 * time.Second
)

// IntakeStats holds the totals of the messages received from the network.
type IntakeStats struct {
	Received  uint64
	Accepted  uint64
	Rejected  uint64
	Malformed uint64
}

// SyncManager feeds the messages gossiped on the network into the message
// pool.  Network messages are admitted as untrusted intake.
type SyncManager struct {
	started  int32
	shutdown int32

	cfg            Config
	progressLogger *intakeProgressLogger

	received  atomic.Uint64
	accepted  atomic.Uint64
	rejected  atomic.Uint64
	malformed atomic.Uint64

	wg     sync.WaitGroup
	quit   chan struct{}
	cancel context.CancelFunc
}

// New returns a new network intake manager.
// Use Start to begin processing messages from the network.
func New(config *Config) (*SyncManager, error) {
	if config.Network == nil {
		return nil, errors.New("netsync: network is required")
	}
	if config.MsgPool == nil {
		return nil, errors.New("netsync: message pool is required")
	}

	cfg := *config
	if cfg.SubscribeAttempts == 0 {
		cfg.SubscribeAttempts = DefaultSubscribeAttempts
	}
	if cfg.SubscribeRetryDelay <= 0 {
		cfg.SubscribeRetryDelay = DefaultSubscribeRetryDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	return &SyncManager{
		cfg: cfg,
		progressLogger: newIntakeProgressLogger("Processed", log,
			cfg.Clock),
		quit: make(chan struct{}),
	}, nil
}

// Start begins the processing of network messages.
func (sm *SyncManager) Start() {
	// Already started?
	if atomic.AddInt32(&sm.started, 1) != 1 {
		return
	}

	log.Trace("Starting network intake")
	ctx, cancel := context.WithCancel(context.Background())
	sm.cancel = cancel

	sm.wg.Add(1)
	go sm.intakeHandler(ctx)
}

// Stop gracefully shuts down the intake by stopping all goroutines and
// waiting for them to finish.
func (sm *SyncManager) Stop() error {
	if atomic.AddInt32(&sm.shutdown, 1) != 1 {
		log.Warnf("Network intake is already in the process of " +
			"shutting down")
		return nil
	}

	log.Infof("Network intake shutting down")
	close(sm.quit)
	if sm.cancel != nil {
		sm.cancel()
	}
	sm.wg.Wait()
	return nil
}

// Stats returns the totals of the messages received so far.
//
// This function is safe for concurrent access.
func (sm *SyncManager) Stats() IntakeStats {
	return IntakeStats{
		Received:  sm.received.Load(),
		Accepted:  sm.accepted.Load(),
		Rejected:  sm.rejected.Load(),
		Malformed: sm.malformed.Load(),
	}
}

// subscribe subscribes to the network, retrying with an exponential
// backoff until it succeeds, the attempts run out or the manager stops.
func (sm *SyncManager) subscribe(ctx context.Context) (MessageStream, error) {
	var stream MessageStream
	err := retry.Do(
		func() error {
			var err error
			stream, err = sm.cfg.Network.Subscribe()
			return err
		},
		retry.Context(ctx),
		retry.Attempts(sm.cfg.SubscribeAttempts),
		retry.Delay(sm.cfg.SubscribeRetryDelay),
		retry.MaxDelay(maxSubscribeRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warnf("Unable to subscribe to the network (attempt "+
				"%d): %v", n+1, err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// intakeHandler receives messages from the network and hands them to the
// pool.  A failed subscription is replaced by a new one.
//
// It must be run as a goroutine.
func (sm *SyncManager) intakeHandler(ctx context.Context) {
	defer sm.wg.Done()

out:
	for {
		stream, err := sm.subscribe(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Errorf("Giving up on network intake: %v", err)
			}
			break out
		}

		for {
			nm, err := stream.Next(ctx)
			if err != nil {
				stream.Cancel()
				if ctx.Err() != nil {
					break out
				}
				log.Warnf("Network message stream failed: %v", err)
				continue out
			}
			sm.handleMessage(ctx, nm)
		}
	}

	log.Trace("Network intake handler done")
}

// handleMessage decodes a network message and offers it to the pool.
func (sm *SyncManager) handleMessage(ctx context.Context, nm *NetMessage) {
	sm.received.Add(1)

	msg := nm.Msg
	if msg == nil {
		var err error
		msg, err = wire.DecodeSignedMessage(nm.Data)
		if err != nil {
			sm.malformed.Add(1)
			log.Debugf("Malformed message from %s: %v", nm.From, err)
			sm.progressLogger.LogMessage(false)
			return
		}
	}

	c, err := sm.cfg.MsgPool.Add(ctx, msg)
	switch {
	case err == nil:
		sm.accepted.Add(1)
		log.Debugf("Accepted message %v from %s", c, nm.From)

	default:
		sm.rejected.Add(1)
		var rerr mempool.RuleError
		if errors.As(err, &rerr) {
			log.Debugf("Rejected message %v from %s: %v", msg,
				nm.From, err)
		} else if ctx.Err() == nil {
			log.Warnf("Unable to process message %v from %s: %v",
				msg, nm.From, err)
		}
	}
	sm.progressLogger.LogMessage(err == nil)
}
