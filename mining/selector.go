// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"bytes"

	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/wire"
	"github.com/emirpasic/gods/trees/binaryheap"
)

// SelectionFormulaVersion identifies the scoring formula implemented by
// MsgSelector.  It must be bumped whenever the scoring changes so block
// producers can tell which economics a selection followed.
//
// Version 1:
//
//	effPremium = min(gasPremium, gasFeeCap - baseFee)
//	gasPerf    = effPremium * blockGasLimit / gasLimit
//	weight     = minWeight + (1 - minWeight) * inclusionAverage
//	score      = gasPerf * weight   when gasPerf >= 0
//	score      = gasPerf / weight   otherwise
//
// Equal scores are ordered by ascending message CID bytes.
const SelectionFormulaVersion = 1

// msgPrioItem houses a message along with its score for use in the
// selection priority queue.
type msgPrioItem struct {
	desc     *MsgDesc
	cidBytes []byte
	score    float64

	// queue and next locate the following message of the same sender.
	queue *SenderQueue
	next  int
}

// msgPrioComparator orders the priority queue by descending score and then
// ascending CID so the head of the queue is the next message to select.
func msgPrioComparator(a, b interface{}) int {
	ia := a.(*msgPrioItem)
	ib := b.(*msgPrioItem)
	switch {
	case ia.score > ib.score:
		return -1
	case ia.score < ib.score:
		return 1
	}
	return bytes.Compare(ia.cidBytes, ib.cidBytes)
}

// GasPerformance returns the premium the block producer earns per unit of
// gas of the message, scaled to a full block, at the given base fee.  It is
// negative when the fee cap is below the base fee.
func GasPerformance(msg *wire.Message, baseFee wire.TokenAmount,
	blockGasLimit int64) float64 {

	if msg.GasLimit <= 0 {
		return 0
	}
	premium, positive := msg.EffectivePremium(baseFee)
	perf := premium.Float64() * float64(blockGasLimit) / float64(msg.GasLimit)
	if !positive {
		perf = -perf
	}
	return perf
}

// Score applies a sender weight to a gas performance value.  The weight
// always moves the score of a poorly included sender down.
func Score(gasPerf, weight float64) float64 {
	if weight <= 0 {
		weight = DefaultMinInclusionWeight
	}
	if gasPerf >= 0 {
		return gasPerf * weight
	}
	return gasPerf / weight
}

// MsgSelector selects pending messages from a message source for inclusion
// in a new block.
type MsgSelector struct {
	blockGasLimit int64
	source        MsgSource
}

// NewMsgSelector returns a selector that reads from source and scores
// messages relative to the given block gas limit.
func NewMsgSelector(blockGasLimit int64, source MsgSource) *MsgSelector {
	return &MsgSelector{
		blockGasLimit: blockGasLimit,
		source:        source,
	}
}

// Select returns the messages to propose for the next block, in inclusion
// order.  See SelectFromView for details.
//
// This function is safe for concurrent access.
func (s *MsgSelector) Select(whitelist []address.Address,
	gasBudget int64) []*MsgDesc {

	return SelectFromView(s.source.MiningView(), whitelist, gasBudget,
		s.blockGasLimit)
}

// eligibleRun returns the prefix of the queue that can be included in
// order: the messages with consecutive nonces starting at the chain nonce of
// the sender.  A queue whose lowest nonce is above the chain nonce has no
// eligible messages.
func eligibleRun(q *SenderQueue) []*MsgDesc {
	expected := q.ChainNonce
	n := 0
	for _, desc := range q.Msgs {
		if desc.Nonce() != expected {
			break
		}
		expected++
		n++
	}
	return q.Msgs[:n]
}

// SelectFromView greedily selects messages from the view.
//
// Only the lowest eligible nonce of every sender competes at any time.  The
// best scoring candidate is taken, then the next nonce of the same sender
// becomes a candidate.  Selection ends when the best candidate no longer
// fits in the remaining gas budget or no candidates remain.  A nil whitelist
// admits every sender.
//
// The result only depends on the contents of the view and the arguments.
func SelectFromView(view *SourceView, whitelist []address.Address,
	gasBudget int64, blockGasLimit int64) []*MsgDesc {

	if view == nil || gasBudget <= 0 {
		return nil
	}

	var allowed map[address.Address]struct{}
	if whitelist != nil {
		allowed = make(map[address.Address]struct{}, len(whitelist))
		for _, sender := range whitelist {
			allowed[sender] = struct{}{}
		}
	}

	newItem := func(q *SenderQueue, idx int) *msgPrioItem {
		desc := q.Msgs[idx]
		weight, ok := view.Weights[q.Sender]
		if !ok {
			weight = 1
		}
		perf := GasPerformance(&desc.Msg.Message, view.BaseFee,
			blockGasLimit)
		return &msgPrioItem{
			desc:     desc,
			cidBytes: desc.Cid.Bytes(),
			score:    Score(perf, weight),
			queue:    q,
			next:     idx + 1,
		}
	}

	candidates := binaryheap.NewWith(msgPrioComparator)
	for i := range view.Queues {
		q := view.Queues[i]
		if allowed != nil {
			if _, ok := allowed[q.Sender]; !ok {
				continue
			}
		}
		run := eligibleRun(&q)
		if len(run) == 0 {
			continue
		}
		q.Msgs = run
		candidates.Push(newItem(&q, 0))
	}

	var (
		selected []*MsgDesc
		gasUsed  int64
	)
	for {
		top, ok := candidates.Pop()
		if !ok {
			break
		}
		item := top.(*msgPrioItem)
		gasLimit := item.desc.GasLimit()
		if gasLimit > gasBudget-gasUsed {
			log.Tracef("Stopping selection at %v: gas limit %d exceeds "+
				"remaining budget %d", item.desc.Cid, gasLimit,
				gasBudget-gasUsed)
			break
		}

		selected = append(selected, item.desc)
		gasUsed += gasLimit

		if item.next < len(item.queue.Msgs) {
			candidates.Push(newItem(item.queue, item.next))
		}
	}

	log.Debugf("Selected %d messages using %d gas of %d", len(selected),
		gasUsed, gasBudget)

	return selected
}
