// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"sync"

	"github.com/btcsuite/msgpool/address"
	"github.com/ipfs/go-cid"
)

// NotificationType represents the type of a notification message.
type NotificationType int

// Constants for the type of a notification message.
const (
	// NTMsgAdded indicates a message entered the pool.
	NTMsgAdded NotificationType = iota

	// NTMsgRemoved indicates a message left the pool.
	NTMsgRemoved
)

// notificationTypeStrings is a map of notification types back to their constant
// names for pretty printing.
var notificationTypeStrings = map[NotificationType]string{
	NTMsgAdded:   "NTMsgAdded",
	NTMsgRemoved: "NTMsgRemoved",
}

// String returns the NotificationType in human-readable form.
func (n NotificationType) String() string {
	if s, ok := notificationTypeStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Notification Type (%d)", int(n))
}

// Update describes a change of the pending set.
type Update struct {
	Type  NotificationType
	Cid   cid.Cid
	From  address.Address
	Nonce uint64
}

// Subscription is a bounded stream of pool updates.  The channel is closed
// when the subscription is cancelled or when the subscriber fell so far
// behind that its buffer filled up.
type Subscription struct {
	// C receives the updates in the order the pool applied them.
	C <-chan *Update

	cancel func()
}

// NewSubscription returns a subscription receiving from c.  cancel is
// called by Unsubscribe and must close c.  It is intended for alternative
// MsgPool implementations.
func NewSubscription(c <-chan *Update, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

// Unsubscribe cancels the subscription and closes its channel.  It is safe
// to call more than once and after the subscriber was dropped.
func (s *Subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}

// eventBus fans pool updates out to subscribers without ever blocking the
// publisher.
type eventBus struct {
	mtx     sync.Mutex
	subs    map[uint64]chan *Update
	nextID  uint64
	buffer  int
	dropped func()
}

// newEventBus returns a bus giving every subscriber buffer slots.  dropped
// is called for every subscriber dropped for falling behind.
func newEventBus(buffer int, dropped func()) *eventBus {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &eventBus{
		subs:    make(map[uint64]chan *Update),
		buffer:  buffer,
		dropped: dropped,
	}
}

// subscribe registers a new subscriber.
func (b *eventBus) subscribe() *Subscription {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	ch := make(chan *Update, b.buffer)
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return NewSubscription(ch, func() { b.remove(id) })
}

// remove unregisters a subscriber and closes its channel.
func (b *eventBus) remove(id uint64) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// publish delivers the update to every subscriber with buffer space left.
// Subscribers without space are dropped.
func (b *eventBus) publish(u *Update) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- u:
		default:
			log.Warnf("Dropping event subscriber %d: buffer of %d "+
				"updates is full", id, b.buffer)
			delete(b.subs, id)
			close(ch)
			if b.dropped != nil {
				b.dropped()
			}
		}
	}
}

// closeAll closes every subscription.
func (b *eventBus) closeAll() {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Len returns the number of active subscribers.
func (b *eventBus) Len() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	return len(b.subs)
}
