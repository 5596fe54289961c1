// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"time"

	"github.com/btcsuite/msgpool/wire"
)

const (
	// DefaultMaxPendingPerSender is the default number of pending messages
	// a sender may have when submitting locally.
	DefaultMaxPendingPerSender = 1000

	// DefaultMaxUntrustedPerSender is the default number of pending
	// messages a sender may have when its messages arrive from the
	// network.
	DefaultMaxUntrustedPerSender = 10

	// DefaultMaxPoolSize is the default number of pending messages the
	// pool holds across all senders.
	DefaultMaxPoolSize = 20000

	// DefaultReplaceByFeePercent is the default percentage by which a
	// replacement must raise the gas premium of the message it replaces.
	DefaultReplaceByFeePercent = 25

	// DefaultDedupCacheSize is the default number of message identities
	// remembered for duplicate detection.
	DefaultDedupCacheSize = 1 << 16

	// DefaultDedupGracePeriod is the default delay between a message
	// leaving the pool and its identity being forgotten.
	DefaultDedupGracePeriod = 30 * time.Second

	// DefaultStateTimeout is the default bound on resolving chain state
	// for one submission.
	DefaultStateTimeout = 5 * time.Second

	// DefaultSoftRejectCacheSize is the default number of softly rejected
	// messages kept for retry.
	DefaultSoftRejectCacheSize = 1024

	// DefaultSoftRejectMaxRetries is the default number of head changes a
	// softly rejected message is retried on.
	DefaultSoftRejectMaxRetries = 3

	// DefaultBaseFeeLowerBoundFactor divides the base fee to get the
	// lowest fee cap accepted from local submissions.
	DefaultBaseFeeLowerBoundFactor = 10

	// DefaultBaseFeeLowerBoundFactorUntrusted divides the base fee to get
	// the lowest fee cap accepted from the network.
	DefaultBaseFeeLowerBoundFactorUntrusted = 100

	// DefaultMaxNonceGapUntrusted is the default largest gap allowed
	// between the next expected nonce of a sender and the nonce of a
	// message arriving from the network.
	DefaultMaxNonceGapUntrusted = 4

	// DefaultSubscriberBuffer is the default number of updates buffered
	// for each event subscriber before it is dropped.
	DefaultSubscriberBuffer = 256
)

// Policy houses the policy (configuration parameters) which is used to
// control the mempool.
type Policy struct {
	// MaxPendingPerSender is the maximum number of pending messages of
	// one sender for local submissions.
	MaxPendingPerSender int

	// MaxUntrustedPerSender is the maximum number of pending messages of
	// one sender for messages received from the network.
	MaxUntrustedPerSender int

	// MaxPoolSize is the maximum number of pending messages overall.
	MaxPoolSize int

	// ReplaceByFeePercent is the minimum percentage by which a message
	// must raise the gas premium of the message occupying its nonce to
	// replace it.
	ReplaceByFeePercent uint64

	// DedupCacheSize is the number of message identities remembered for
	// duplicate detection.
	DedupCacheSize uint

	// DedupGracePeriod is how long the identity of a removed message
	// keeps rejecting resubmissions.
	DedupGracePeriod time.Duration

	// StateTimeout bounds the resolution of chain state for one
	// submission.
	StateTimeout time.Duration

	// RepublishInterval is how often pending local messages are
	// announced again.  Zero disables periodic republishing.
	RepublishInterval time.Duration

	// SoftRejectCacheSize bounds the number of softly rejected messages
	// kept for retry after head changes.  Zero disables retries.
	SoftRejectCacheSize int

	// SoftRejectMaxRetries is the number of head changes a softly
	// rejected message is retried on before it is dropped.
	SoftRejectMaxRetries int

	// BaseFeeLowerBoundFactor divides the base fee to get the lowest
	// fee cap accepted from local submissions.
	BaseFeeLowerBoundFactor uint64

	// BaseFeeLowerBoundFactorUntrusted divides the base fee to get the
	// lowest fee cap accepted from the network.
	BaseFeeLowerBoundFactorUntrusted uint64

	// MaxNonceGapUntrusted is the largest allowed gap between the next
	// expected nonce of a sender and a message from the network.
	MaxNonceGapUntrusted uint64

	// SubscriberBuffer is the number of updates buffered for each event
	// subscriber.
	SubscriberBuffer int
}

// DefaultPolicy returns the default mempool policy.  The republish interval
// is left to the caller since it depends on the network.
func DefaultPolicy() Policy {
	return Policy{
		MaxPendingPerSender:              DefaultMaxPendingPerSender,
		MaxUntrustedPerSender:            DefaultMaxUntrustedPerSender,
		MaxPoolSize:                      DefaultMaxPoolSize,
		ReplaceByFeePercent:              DefaultReplaceByFeePercent,
		DedupCacheSize:                   DefaultDedupCacheSize,
		DedupGracePeriod:                 DefaultDedupGracePeriod,
		StateTimeout:                     DefaultStateTimeout,
		SoftRejectCacheSize:              DefaultSoftRejectCacheSize,
		SoftRejectMaxRetries:             DefaultSoftRejectMaxRetries,
		BaseFeeLowerBoundFactor:          DefaultBaseFeeLowerBoundFactor,
		BaseFeeLowerBoundFactorUntrusted: DefaultBaseFeeLowerBoundFactorUntrusted,
		MaxNonceGapUntrusted:             DefaultMaxNonceGapUntrusted,
		SubscriberBuffer:                 DefaultSubscriberBuffer,
	}
}

// senderLimit returns the per sender cap for trusted or untrusted intake.
func (p *Policy) senderLimit(local bool) int {
	if local {
		return p.MaxPendingPerSender
	}
	return p.MaxUntrustedPerSender
}

// ComputeMinRBF returns the lowest gas premium that replaces a message with
// the given premium: the premium raised by bumpPercent, and always at least
// one atto more.
func ComputeMinRBF(current wire.TokenAmount, bumpPercent uint64) wire.TokenAmount {
	min := current.MulUint64(100 + bumpPercent).DivUint64(100)
	if !min.GreaterThan(current) {
		min = current.Add(wire.NewTokenAmount(1))
	}
	return min
}

// BaseFeeLowerBound returns the lowest gas fee cap accepted at the given
// base fee: the base fee divided by factor, but never less than the
// network minimum.
func BaseFeeLowerBound(baseFee wire.TokenAmount, factor uint64,
	minimum wire.TokenAmount) wire.TokenAmount {

	if factor == 0 {
		factor = 1
	}
	return baseFee.DivUint64(factor).Max(minimum)
}
