// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/chaincfg"
	"github.com/btcsuite/msgpool/mining"
	"github.com/btcsuite/msgpool/sigs"
	"github.com/btcsuite/msgpool/wire"
	"github.com/ipfs/go-cid"
	"github.com/prometheus/client_golang/prometheus"
)

// Config is a descriptor containing the memory pool configuration.
type Config struct {
	// Policy defines the various mempool configuration options related
	// to policy.
	Policy Policy

	// MiningPolicy defines how the inclusion history of senders weighs
	// into block selection.
	MiningPolicy mining.Policy

	// ChainParams identifies which chain parameters the pool is
	// associated with.
	ChainParams *chaincfg.Params

	// State resolves accounts and base fees at state roots.
	State StateProvider

	// Chain supplies the canonical head and its changes.
	Chain ChainSync

	// Publisher announces local messages to the network.  It may be nil,
	// in which case nothing is published.
	Publisher Publisher

	// SigCache defines a signature cache to use.  It may be nil.
	SigCache *sigs.SigCache

	// Clock is the time source of the pool.  The wall clock is used when
	// it is nil.
	Clock clock.Clock

	// Registerer receives the pool metrics.  Metrics are not registered
	// when it is nil.
	Registerer prometheus.Registerer
}

// Pool is used as a source of messages that need to be included in blocks.
// It holds at most one message per sender and nonce, validated against the
// head it tracks, and orders nothing itself: ordering is left to the block
// selector.
type Pool struct {
	// The following variables must only be used atomically.
	lastUpdated atomic.Int64 // last time pool was updated
	started     int32
	shutdown    int32

	cfg       Config
	validator *Validator

	mtx       sync.RWMutex
	queues    map[address.Address]*msgQueue
	count     int
	head      Block
	headGen   uint64
	baseFee   wire.TokenAmount
	inclusion *mining.InclusionTracker

	// headMtx serializes head changes.  It is always acquired before mtx.
	headMtx  sync.Mutex
	deferred deferredWork

	dedup       *dedupCache
	softRejects *softRejectSet
	bus         *eventBus
	republisher *republisher
	metrics     *poolMetrics

	wg     sync.WaitGroup
	quit   chan struct{}
	cancel context.CancelFunc
}

// Ensure the Pool type implements the mining.MsgSource interface.
var _ mining.MsgSource = (*Pool)(nil)

// Ensure the Pool type implements the MsgPool interface.
var _ MsgPool = (*Pool)(nil)

// New returns a new memory pool for validating and storing standalone
// messages until they are included in a block.  The pool starts out at the
// current head of the chain.
func New(ctx context.Context, cfg *Config) (*Pool, error) {
	if cfg.ChainParams == nil || cfg.State == nil || cfg.Chain == nil {
		return nil, errors.New("mempool: chain params, state and chain " +
			"are required")
	}

	c := *cfg
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.MiningPolicy == (mining.Policy{}) {
		c.MiningPolicy = mining.DefaultPolicy()
	}
	if c.Policy.RepublishInterval == 0 {
		c.Policy.RepublishInterval = c.ChainParams.RepublishInterval
	}

	head, err := c.Chain.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("mempool: load head: %w", err)
	}
	baseFee, err := c.State.BaseFee(ctx, head.State())
	if err != nil {
		return nil, fmt.Errorf("mempool: load base fee: %w", err)
	}

	mp := &Pool{
		cfg:       c,
		validator: NewValidator(c.ChainParams, &c.Policy, c.SigCache),
		queues:    make(map[address.Address]*msgQueue),
		head:      head,
		baseFee:   baseFee,
		inclusion: mining.NewInclusionTracker(c.MiningPolicy),
		dedup: newDedupCache(c.Policy.DedupCacheSize,
			c.Policy.DedupGracePeriod, c.Clock),
		softRejects: newSoftRejectSet(c.Policy.SoftRejectCacheSize,
			c.Policy.SoftRejectMaxRetries),
		metrics: newPoolMetrics(c.Registerer),
		quit:    make(chan struct{}),
	}
	mp.bus = newEventBus(c.Policy.SubscriberBuffer, func() {
		mp.metrics.droppedSubscribers.Inc()
	})
	mp.republisher = newRepublisher(c.Publisher, c.Clock,
		c.Policy.RepublishInterval, int(c.Policy.DedupCacheSize), mp.localPending)
	mp.lastUpdated.Store(c.Clock.Now().UnixNano())

	log.Infof("Message pool started at head %v (height %d)", head.Cid(),
		head.Height())

	return mp, nil
}

// Start begins republishing local messages and following head changes of
// the chain.
func (mp *Pool) Start() {
	if atomic.AddInt32(&mp.started, 1) != 1 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	mp.cancel = cancel

	changes, unsubscribe := mp.cfg.Chain.SubscribeHeadChanges()
	mp.wg.Add(2)
	go mp.headChangeHandler(ctx, changes, unsubscribe)
	go func() {
		defer mp.wg.Done()
		mp.republisher.run(ctx, mp.quit)
	}()
}

// Stop gracefully stops the pool goroutines and closes every event
// subscription.
func (mp *Pool) Stop() {
	if atomic.AddInt32(&mp.shutdown, 1) != 1 {
		log.Warnf("Message pool is already in the process of shutting down")
		return
	}

	close(mp.quit)
	if mp.cancel != nil {
		mp.cancel()
	}
	mp.wg.Wait()
	mp.bus.closeAll()
}

// headChangeHandler applies the head changes delivered by the chain in
// order until the pool is stopped.
//
// It must be run as a goroutine.
func (mp *Pool) headChangeHandler(ctx context.Context,
	changes <-chan *HeadChange, unsubscribe func()) {

	defer mp.wg.Done()
	defer unsubscribe()

out:
	for {
		select {
		case hc, ok := <-changes:
			if !ok {
				break out
			}
			if err := mp.HeadChange(ctx, hc.Revert, hc.Apply); err != nil {
				log.Warnf("Unable to process head change: %v", err)
			}

		case <-mp.quit:
			break out
		}
	}

	log.Trace("Head change handler done")
}

// Push validates a locally originated message, adds it to the pool and
// announces it to the network.  Local messages are held to the trusted
// limits of the policy.
//
// This function is safe for concurrent access.
func (mp *Pool) Push(ctx context.Context, sm *wire.SignedMessage) (cid.Cid, error) {
	c, err := mp.addMessage(ctx, sm, true)
	if err != nil {
		return cid.Undef, err
	}
	mp.republisher.Announce(ctx, sm)
	return c, nil
}

// Add validates a message received from the network and adds it to the
// pool.  Network messages are held to the untrusted limits of the policy.
//
// This function is safe for concurrent access.
func (mp *Pool) Add(ctx context.Context, sm *wire.SignedMessage) (cid.Cid, error) {
	return mp.addMessage(ctx, sm, false)
}

// addMessage is the common implementation of Push and Add.  Messages
// rejected for a reason the next head change may clear are kept for a
// bounded number of retries.
func (mp *Pool) addMessage(ctx context.Context, sm *wire.SignedMessage,
	local bool) (cid.Cid, error) {

	c, err := sm.Cid()
	if err != nil {
		err = wrapRuleError(ErrMalformed, "message cannot be encoded", err)
		mp.metrics.admissions.WithLabelValues(admissionResult(err)).Inc()
		return cid.Undef, err
	}

	err = mp.maybeAcceptMessage(ctx, sm, c, local)
	mp.metrics.admissions.WithLabelValues(admissionResult(err)).Inc()
	if err != nil {
		if IsTransient(err) && ctx.Err() == nil {
			mp.softRejects.Add(c, sm, local)
		}
		log.Debugf("Rejected message %v: %v", c, err)
		return cid.Undef, err
	}

	mp.softRejects.Remove(c)
	return c, nil
}

// maybeAcceptMessage validates the message and commits it to the pool.
//
// The checks that do not depend on pool contents run without the pool
// lock against a snapshot of the head.  The commit decision runs under the
// lock and is retried once against the fresh head when a head change
// landed in between.  Nothing is changed when any check fails or the
// context is done before the commit.
func (mp *Pool) maybeAcceptMessage(ctx context.Context, sm *wire.SignedMessage,
	c cid.Cid, local bool) error {

	if mp.dedup.Contains(c) {
		str := fmt.Sprintf("already have message %v", c)
		return ruleError(ErrDuplicate, str)
	}
	if err := CheckMessageSanity(sm, mp.cfg.ChainParams); err != nil {
		return err
	}
	if err := mp.validator.CheckSignature(sm); err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		mp.mtx.RLock()
		head, gen, baseFee := mp.head, mp.headGen, mp.baseFee
		mp.mtx.RUnlock()

		actor, err := mp.resolveActor(ctx, sm.Message.From, head.State())
		if err != nil {
			return err
		}
		view := &AccountView{Actor: actor, BaseFee: baseFee}
		if err := mp.validator.CheckState(sm, view, local); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		mp.mtx.Lock()
		if mp.headGen != gen {
			mp.mtx.Unlock()
			if attempt == 0 {
				log.Debugf("Head changed while validating %v, "+
					"retrying", c)
				continue
			}
			str := fmt.Sprintf("head changed twice while validating %v",
				c)
			return ruleError(ErrStateUnavailable, str)
		}
		err = mp.commitMessage(sm, c, actor, local, head.Height())
		mp.mtx.Unlock()
		return err
	}
}

// resolveActor looks up the sender at the given state root within the
// state timeout of the policy.  A sender that does not exist resolves to a
// nil actor.
//
// This function is safe for concurrent access.
func (mp *Pool) resolveActor(ctx context.Context, addr address.Address,
	state cid.Cid) (*Actor, error) {

	if timeout := mp.cfg.Policy.StateTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	actor, err := mp.cfg.State.ResolveActor(ctx, addr, state)
	switch {
	case errors.Is(err, ErrActorNotFound):
		return nil, nil

	case err != nil:
		str := fmt.Sprintf("unable to resolve sender %s at state %v",
			addr, state)
		return nil, wrapRuleError(ErrStateUnavailable, str, err)
	}
	return actor, nil
}

// commitMessage decides whether the validated message enters the pool and
// applies the decision.  All checks run before the first change so a
// rejected message leaves the pool untouched.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *Pool) commitMessage(sm *wire.SignedMessage, c cid.Cid, actor *Actor,
	local bool, height uint64) error {

	msg := &sm.Message
	from := msg.From
	nonce := msg.Nonce
	policy := &mp.cfg.Policy

	q := mp.queues[from]

	// A message occupying the nonce must be outbid by the configured
	// percentage.
	var replaced *mining.MsgDesc
	if q != nil {
		replaced, _ = q.Get(nonce)
	}
	if replaced != nil {
		if replaced.Cid.Equals(c) {
			str := fmt.Sprintf("already have message %v", c)
			return ruleError(ErrDuplicate, str)
		}
		minPremium := ComputeMinRBF(replaced.Msg.Message.GasPremium,
			policy.ReplaceByFeePercent)
		if msg.GasPremium.LessThan(minPremium) {
			str := fmt.Sprintf("replacement %v for nonce %d of %s "+
				"has gas premium %s, need at least %s", c, nonce,
				from, msg.GasPremium, minPremium)
			return ruleError(ErrReplacementUnderpriced, str)
		}
	}

	// Network messages may not run too far ahead of the sender.
	if !local && replaced == nil {
		next := actor.Nonce
		if q != nil {
			next = q.NextNonce()
		}
		if nonce > next+policy.MaxNonceGapUntrusted {
			str := fmt.Sprintf("nonce %d of %s is more than %d ahead "+
				"of the next nonce %d", nonce, from,
				policy.MaxNonceGapUntrusted, next)
			return ruleError(ErrNonceGap, str)
		}
	}

	// The highest nonce of a full queue is worth less than any lower
	// nonce since it is the last to become includable.
	var victims []*mining.MsgDesc
	if replaced == nil && q != nil && q.Len() >= policy.senderLimit(local) {
		tail := q.Tail()
		if nonce > tail.Nonce() || (!local && tail.Local) {
			str := fmt.Sprintf("sender %s already has %d pending "+
				"messages", from, q.Len())
			return ruleError(ErrQueueFull, str)
		}
		victims = append(victims, tail)
	}

	// A full pool only makes room for a message worth more than the
	// least valuable tail.
	if replaced == nil && mp.count-len(victims) >= policy.MaxPoolSize {
		victim := mp.lowestValueTail(from, nonce, local)
		if victim == nil ||
			!msg.GasPremium.GreaterThan(victim.Msg.Message.GasPremium) {

			str := fmt.Sprintf("pool is full with %d messages", mp.count)
			return ruleError(ErrPoolFull, str)
		}
		victims = append(victims, victim)
	}

	// The balance must cover every pending message of the sender.
	var required wire.TokenAmount
	if q != nil {
		required = q.requiredFunds
		if replaced != nil {
			required = required.Sub(replaced.Msg.Message.TotalCost())
		}
		for _, victim := range victims {
			if victim.Msg.Message.From == from {
				required = required.Sub(victim.Msg.Message.TotalCost())
			}
		}
	}
	required = required.Add(msg.TotalCost())
	if actor.Balance.LessThan(required) {
		str := fmt.Sprintf("balance %s of %s does not cover %s required "+
			"by its pending messages", actor.Balance, from, required)
		return ruleError(ErrInsufficientFunds, str)
	}

	for _, victim := range victims {
		log.Debugf("Evicting message %v to make room for %v", victim.Cid, c)
		mp.removeMessage(victim.Msg.Message.From, victim.Nonce())
		mp.metrics.evictions.Inc()
	}

	// Evicting the only message of the sender drops its queue.
	q = mp.queues[from]
	if q == nil {
		q = newMsgQueue(from, actor.Nonce)
		mp.queues[from] = q
	}
	desc := &mining.MsgDesc{
		Msg:    sm,
		Cid:    c,
		Added:  mp.cfg.Clock.Now(),
		Height: height,
		Local:  local,
	}
	if old := q.Put(desc); old != nil {
		log.Debugf("Replaced message %v with %v", old.Cid, c)
		mp.forgetMessage(old)
	} else {
		mp.count++
	}

	mp.dedup.Add(c)
	if local {
		mp.republisher.Track(c)
	}
	mp.touch()
	mp.bus.publish(&Update{Type: NTMsgAdded, Cid: c, From: from, Nonce: nonce})

	log.Debugf("Accepted message %v (pool size %d)", c, mp.count)

	return nil
}

// lowestValueTail returns the least valuable message that may be evicted
// for a message from sender with the given nonce: the tail with the lowest
// gas premium, then the highest nonce, then the highest identity.  Tails
// below the incoming nonce of the same sender are skipped since evicting
// them would leave a gap, and network messages never evict local ones.
//
// This function MUST be called with the mempool lock held (for reads).
func (mp *Pool) lowestValueTail(sender address.Address, nonce uint64,
	local bool) *mining.MsgDesc {

	var lowest *mining.MsgDesc
	for addr, q := range mp.queues {
		tail := q.Tail()
		if tail == nil {
			continue
		}
		if addr == sender && tail.Nonce() < nonce {
			continue
		}
		if !local && tail.Local {
			continue
		}
		if lowest == nil || lessValuable(tail, lowest) {
			lowest = tail
		}
	}
	return lowest
}

// lessValuable returns whether a is worth less than b for eviction.
func lessValuable(a, b *mining.MsgDesc) bool {
	pa, pb := a.Msg.Message.GasPremium, b.Msg.Message.GasPremium
	if cmp := pa.Cmp(pb); cmp != 0 {
		return cmp < 0
	}
	if a.Nonce() != b.Nonce() {
		return a.Nonce() > b.Nonce()
	}
	return bytes.Compare(a.Cid.Bytes(), b.Cid.Bytes()) > 0
}

// removeMessage removes the message of sender at nonce and returns it.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *Pool) removeMessage(sender address.Address,
	nonce uint64) (*mining.MsgDesc, bool) {

	q := mp.queues[sender]
	if q == nil {
		return nil, false
	}
	desc, ok := q.Remove(nonce)
	if !ok {
		return nil, false
	}
	mp.count--
	mp.forgetMessage(desc)
	mp.dropQueueIfEmpty(q)
	return desc, true
}

// forgetMessage releases everything the pool tracks about a message that
// left it and notifies subscribers.  Its identity keeps rejecting
// resubmissions for the dedup grace period.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *Pool) forgetMessage(desc *mining.MsgDesc) {
	mp.dedup.SchedulePurge(desc.Cid)
	mp.republisher.Untrack(desc.Cid)
	mp.touch()
	mp.bus.publish(&Update{
		Type:  NTMsgRemoved,
		Cid:   desc.Cid,
		From:  desc.Msg.Message.From,
		Nonce: desc.Nonce(),
	})
}

// dropQueueIfEmpty deletes the queue of a sender without pending messages.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *Pool) dropQueueIfEmpty(q *msgQueue) {
	if q.Len() > 0 {
		return
	}
	delete(mp.queues, q.sender)
	mp.inclusion.Idle(q.sender)
}

// touch records that the pool changed.
func (mp *Pool) touch() {
	mp.lastUpdated.Store(mp.cfg.Clock.Now().UnixNano())
	mp.metrics.size.Set(float64(mp.count))
}

// Remove removes the message of sender at nonce from the pool.  Removing a
// message that is not pending is not an error.  It returns whether a
// message was removed.
//
// This function is safe for concurrent access.
func (mp *Pool) Remove(sender address.Address, nonce uint64) bool {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	_, ok := mp.removeMessage(sender, nonce)
	return ok
}

// PendingFor returns the pending messages of sender in ascending nonce
// order.
//
// This function is safe for concurrent access.
func (mp *Pool) PendingFor(sender address.Address) []*wire.SignedMessage {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	q := mp.queues[sender]
	if q == nil {
		return nil
	}
	descs := q.Ascending()
	msgs := make([]*wire.SignedMessage, 0, len(descs))
	for _, desc := range descs {
		msgs = append(msgs, desc.Msg)
	}
	return msgs
}

// Pending returns every pending message ordered by sender and then nonce
// along with the head the pool is validated against.
//
// This function is safe for concurrent access.
func (mp *Pool) Pending() ([]*wire.SignedMessage, Block) {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	msgs := make([]*wire.SignedMessage, 0, mp.count)
	for _, q := range mp.sortedQueues() {
		for _, desc := range q.Ascending() {
			msgs = append(msgs, desc.Msg)
		}
	}
	return msgs, mp.head
}

// sortedQueues returns the queues ordered by sender.
//
// This function MUST be called with the mempool lock held (for reads).
func (mp *Pool) sortedQueues() []*msgQueue {
	queues := make([]*msgQueue, 0, len(mp.queues))
	for _, q := range mp.queues {
		queues = append(queues, q)
	}
	sort.Slice(queues, func(i, j int) bool {
		return queues[i].sender.Compare(queues[j].sender) < 0
	})
	return queues
}

// localPending returns the pending local messages ordered by sender and
// then nonce.
//
// This function is safe for concurrent access.
func (mp *Pool) localPending() []*wire.SignedMessage {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	var msgs []*wire.SignedMessage
	for _, q := range mp.sortedQueues() {
		for _, desc := range q.Ascending() {
			if mp.republisher.IsLocal(desc.Cid) {
				msgs = append(msgs, desc.Msg)
			}
		}
	}
	return msgs
}

// Size returns the number of pending messages.
//
// This function is safe for concurrent access.
func (mp *Pool) Size() int {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return mp.count
}

// Head returns the head the pool is currently validated against.
//
// This function is safe for concurrent access.
func (mp *Pool) Head() Block {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return mp.head
}

// GetNonce returns the nonce the next message of sender should carry,
// taking its pending messages into account.
//
// This function is safe for concurrent access.
func (mp *Pool) GetNonce(ctx context.Context, sender address.Address) (uint64, error) {
	mp.mtx.RLock()
	q := mp.queues[sender]
	var next uint64
	if q != nil {
		next = q.NextNonce()
	}
	head := mp.head
	mp.mtx.RUnlock()

	if q != nil {
		return next, nil
	}

	actor, err := mp.resolveActor(ctx, sender, head.State())
	if err != nil {
		return 0, err
	}
	if actor == nil {
		return 0, fmt.Errorf("sender %s: %w", sender, ErrActorNotFound)
	}
	return actor.Nonce, nil
}

// Clear removes every message received from the network and, when local is
// set, every local message as well.
//
// This function is safe for concurrent access.
func (mp *Pool) Clear(local bool) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	var removed int
	for _, q := range mp.sortedQueues() {
		for _, desc := range q.Ascending() {
			if desc.Local && !local {
				continue
			}
			mp.removeMessage(q.sender, desc.Nonce())
			removed++
		}
	}
	if local {
		mp.republisher.ForgetIncluded()
	}

	log.Infof("Cleared %d %s from the pool", removed,
		pickNoun(removed, "message", "messages"))
}

// Subscribe returns a subscription to every subsequent change of the
// pending set.
//
// This function is safe for concurrent access.
func (mp *Pool) Subscribe() *Subscription {
	return mp.bus.subscribe()
}

// LastUpdated returns the last time a message was added to or removed from
// the pool.
//
// This function is safe for concurrent access.
func (mp *Pool) LastUpdated() time.Time {
	return time.Unix(0, mp.lastUpdated.Load())
}

// MiningView returns a consistent snapshot of the pending messages for the
// block selector.
//
// This is part of the mining.MsgSource interface implementation and is safe
// for concurrent access as required by the interface contract.
func (mp *Pool) MiningView() *mining.SourceView {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	view := &mining.SourceView{
		BaseFee: mp.baseFee,
		Queues:  make([]mining.SenderQueue, 0, len(mp.queues)),
		Weights: mp.inclusion.Weights(),
	}
	for _, q := range mp.sortedQueues() {
		view.Queues = append(view.Queues, q.queueSnapshot())
	}
	return view
}

// SelectForBlock returns the messages to propose for the next block within
// the gas budget, in inclusion order.  A nil whitelist admits every sender.
//
// This function is safe for concurrent access.
func (mp *Pool) SelectForBlock(whitelist []address.Address,
	gasBudget int64) []*wire.SignedMessage {

	selector := mining.NewMsgSelector(mp.cfg.ChainParams.BlockGasLimit, mp)
	descs := selector.Select(whitelist, gasBudget)
	msgs := make([]*wire.SignedMessage, 0, len(descs))
	for _, desc := range descs {
		msgs = append(msgs, desc.Msg)
	}
	return msgs
}

// RetrySoftRejects runs the softly rejected messages through admission
// again.  Messages that are rejected softly once more stay for another
// attempt until they run out of retries.
//
// This function is safe for concurrent access.
func (mp *Pool) RetrySoftRejects(ctx context.Context) {
	for c, entry := range mp.softRejects.Take() {
		err := mp.maybeAcceptMessage(ctx, entry.msg, c, entry.local)
		mp.metrics.admissions.WithLabelValues(admissionResult(err)).Inc()
		switch {
		case err == nil:
			log.Debugf("Accepted previously rejected message %v", c)
			if entry.local {
				mp.republisher.Announce(ctx, entry.msg)
			}

		case IsTransient(err):
			if !mp.softRejects.Requeue(c, entry) {
				log.Debugf("Giving up on message %v: %v", c, err)
			}

		default:
			log.Debugf("Dropping previously rejected message %v: %v",
				c, err)
		}
	}
}
