// Copyright (c) 2014-2015 The btcsuite developers
// Copyright (c) 2016 The Decred developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

const (
	// DefaultInclusionDecay is the default weight of the previous value of
	// a sender's inclusion average on every applied block.
	DefaultInclusionDecay = 0.9

	// DefaultMinInclusionWeight is the default weight of a sender whose
	// messages are never included.
	DefaultMinInclusionWeight = 0.25

	// DefaultInclusionRetention is the default number of applied blocks
	// the inclusion history of a sender is kept after its last pending
	// message left the pool.
	DefaultInclusionRetention = 20
)

// Policy houses the policy (configuration parameters) which is used to control
// the selection of messages for new blocks.  See the documentation for
// MsgSelector for details on how each parameter is used.
type Policy struct {
	// InclusionDecay is the factor applied to a sender's inclusion
	// average on every applied block before the new observation is
	// mixed in.  It must be in [0, 1).
	InclusionDecay float64

	// MinInclusionWeight is the weight of a sender with an inclusion
	// average of zero.  It must be in (0, 1].
	MinInclusionWeight float64

	// InclusionRetention is the number of applied blocks the history of a
	// sender without pending messages is kept, so a sender cannot reset
	// its weight by letting its queue drain.  It must be positive.
	InclusionRetention int
}

// DefaultPolicy returns the default selection policy.
func DefaultPolicy() Policy {
	return Policy{
		InclusionDecay:     DefaultInclusionDecay,
		MinInclusionWeight: DefaultMinInclusionWeight,
		InclusionRetention: DefaultInclusionRetention,
	}
}

// sanitize returns a copy of the policy with out of range values replaced by
// the defaults.
func (p Policy) sanitize() Policy {
	if p.InclusionDecay < 0 || p.InclusionDecay >= 1 {
		p.InclusionDecay = DefaultInclusionDecay
	}
	if p.MinInclusionWeight <= 0 || p.MinInclusionWeight > 1 {
		p.MinInclusionWeight = DefaultMinInclusionWeight
	}
	if p.InclusionRetention <= 0 {
		p.InclusionRetention = DefaultInclusionRetention
	}
	return p
}
