// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"errors"
	"fmt"

	"github.com/btcsuite/msgpool/address"
	"github.com/btcsuite/msgpool/chaincfg"
	"github.com/btcsuite/msgpool/sigs"
	"github.com/btcsuite/msgpool/wire"
)

// AccountView is the resolved state a message is validated against.
type AccountView struct {
	// Actor is the sender account, or nil when the sender does not
	// exist in the state.
	Actor *Actor

	// BaseFee is the base fee of the next block.
	BaseFee wire.TokenAmount
}

// Validator checks messages for admission.  It holds no mutable state of
// its own and is safe for concurrent access.
type Validator struct {
	params   *chaincfg.Params
	policy   *Policy
	sigCache *sigs.SigCache
}

// NewValidator returns a validator for the given network and policy.  The
// signature cache is optional.
func NewValidator(params *chaincfg.Params, policy *Policy,
	sigCache *sigs.SigCache) *Validator {

	return &Validator{params: params, policy: policy, sigCache: sigCache}
}

// checkAddress ensures addr is a well formed address of a known protocol.
func checkAddress(addr address.Address, what string) error {
	if addr.Empty() {
		return ruleError(ErrMalformed, what+" address is empty")
	}
	if _, err := address.NewFromBytes(addr.Bytes()); err != nil {
		return wrapRuleError(ErrMalformed, what+" address is invalid", err)
	}
	return nil
}

// CheckMessageSanity performs the structural checks on a message that do
// not depend on chain state.
func CheckMessageSanity(sm *wire.SignedMessage, params *chaincfg.Params) error {
	msg := &sm.Message

	if msg.Version != wire.MessageVersion {
		str := fmt.Sprintf("message version %d is not supported",
			msg.Version)
		return ruleError(ErrMalformed, str)
	}
	if err := checkAddress(msg.To, "recipient"); err != nil {
		return err
	}
	if err := checkAddress(msg.From, "sender"); err != nil {
		return err
	}

	if msg.GasLimit <= 0 {
		str := fmt.Sprintf("gas limit %d is not positive", msg.GasLimit)
		return ruleError(ErrMalformed, str)
	}
	if msg.GasLimit > params.BlockGasLimit {
		str := fmt.Sprintf("gas limit %d exceeds the block gas limit %d",
			msg.GasLimit, params.BlockGasLimit)
		return ruleError(ErrMalformed, str)
	}
	if msg.GasFeeCap.LessThan(msg.GasPremium) {
		str := fmt.Sprintf("gas fee cap %s is below gas premium %s",
			msg.GasFeeCap, msg.GasPremium)
		return ruleError(ErrMalformed, str)
	}
	if msg.Value.GreaterThan(params.TotalSupply) {
		str := fmt.Sprintf("value %s exceeds the total supply", msg.Value)
		return ruleError(ErrMalformed, str)
	}

	size := sm.SerializeSize()
	if size < 0 {
		return ruleError(ErrMalformed, "message cannot be encoded")
	}
	if size > params.MaxMessageSize {
		str := fmt.Sprintf("message size %d exceeds the maximum of %d",
			size, params.MaxMessageSize)
		return wrapRuleError(ErrMalformed, str, wire.ErrMessageTooBig)
	}

	return nil
}

// CheckSignature verifies the signature of the message against its
// sender.
func (v *Validator) CheckSignature(sm *wire.SignedMessage) error {
	var err error
	if v.sigCache != nil {
		err = v.sigCache.Verify(sm)
	} else {
		err = sigs.Verify(sm)
	}
	if err != nil {
		str := "signature verification failed"
		if errors.Is(err, sigs.ErrUnsupportedSigType) {
			str = fmt.Sprintf("%v signatures are not supported",
				sm.Signature.Type)
		}
		return wrapRuleError(ErrInvalidSignature, str, err)
	}
	return nil
}

// CheckState performs the checks that depend on chain state: the nonce
// and balance of the sender and the gas fee cap floor derived from the base
// fee.  Untrusted messages are held to the stricter fee floor.
func (v *Validator) CheckState(sm *wire.SignedMessage, view *AccountView,
	local bool) error {

	msg := &sm.Message

	if view.Actor == nil {
		str := fmt.Sprintf("sender %s has no account", msg.From)
		return ruleError(ErrInsufficientFunds, str)
	}
	if msg.Nonce < view.Actor.Nonce {
		str := fmt.Sprintf("nonce %d is below the sender nonce %d",
			msg.Nonce, view.Actor.Nonce)
		return ruleError(ErrNonceTooLow, str)
	}
	if cost := msg.TotalCost(); view.Actor.Balance.LessThan(cost) {
		str := fmt.Sprintf("balance %s does not cover the cost %s",
			view.Actor.Balance, cost)
		return ruleError(ErrInsufficientFunds, str)
	}

	factor := v.policy.BaseFeeLowerBoundFactor
	if !local {
		factor = v.policy.BaseFeeLowerBoundFactorUntrusted
	}
	floor := BaseFeeLowerBound(view.BaseFee, factor, v.params.MinimumBaseFee)
	if msg.GasFeeCap.LessThan(floor) {
		str := fmt.Sprintf("gas fee cap %s is below the minimum %s",
			msg.GasFeeCap, floor)
		return ruleError(ErrGasFeeCapTooLow, str)
	}

	return nil
}

// Validate runs every admission check in order and returns the first
// failure.  The checks are the structure of the message, its signature, the
// nonce and balance of the sender and the gas fee cap floor.
func (v *Validator) Validate(sm *wire.SignedMessage, view *AccountView,
	local bool) error {

	if err := CheckMessageSanity(sm, v.params); err != nil {
		return err
	}
	if err := v.CheckSignature(sm); err != nil {
		return err
	}
	return v.CheckState(sm, view, local)
}
