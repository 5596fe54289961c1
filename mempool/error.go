// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"errors"
	"fmt"
)

// ErrActorNotFound is returned by state providers when an address has no
// account in the requested state.
var ErrActorNotFound = errors.New("actor not found")

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrMalformed indicates a message failed a structural check such as
	// an empty address, a non-positive gas limit or an oversized
	// encoding.
	ErrMalformed ErrorCode = iota

	// ErrInvalidSignature indicates the signature of a message does not
	// verify against its sender.  Such messages are never admitted.
	ErrInvalidSignature

	// ErrNonceTooLow indicates the message nonce is below the on-chain
	// nonce of the sender.  The message can never be executed.
	ErrNonceTooLow

	// ErrInsufficientFunds indicates the sender balance does not cover
	// the value and maximum gas cost of the message together with the
	// sender's other pending messages.  The rejection is soft: the pool
	// retries the message after the next head change.
	ErrInsufficientFunds

	// ErrGasFeeCapTooLow indicates the gas fee cap is below the minimum
	// acceptable value derived from the current base fee.
	ErrGasFeeCapTooLow

	// ErrReplacementUnderpriced indicates a message for an occupied nonce
	// does not raise the gas premium by the required percentage.
	ErrReplacementUnderpriced

	// ErrDuplicate indicates the message was already seen.
	ErrDuplicate

	// ErrQueueFull indicates the sender already has the maximum number of
	// pending messages and the new message is not worth more than the
	// highest queued nonce.
	ErrQueueFull

	// ErrPoolFull indicates the pool is at capacity and the new message
	// is not worth more than the least valuable evictable message.
	ErrPoolFull

	// ErrNonceGap indicates an untrusted message leaves too large a gap
	// after the sender's next expected nonce.
	ErrNonceGap

	// ErrStateUnavailable indicates the chain state needed to validate a
	// message could not be resolved in time.  The rejection is soft.
	ErrStateUnavailable

	// ErrStaleHeadUpdate indicates a head change whose base does not
	// match the current head of the pool.
	ErrStaleHeadUpdate

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrMalformed:              "ErrMalformed",
	ErrInvalidSignature:       "ErrInvalidSignature",
	ErrNonceTooLow:            "ErrNonceTooLow",
	ErrInsufficientFunds:      "ErrInsufficientFunds",
	ErrGasFeeCapTooLow:        "ErrGasFeeCapTooLow",
	ErrReplacementUnderpriced: "ErrReplacementUnderpriced",
	ErrDuplicate:              "ErrDuplicate",
	ErrQueueFull:              "ErrQueueFull",
	ErrPoolFull:               "ErrPoolFull",
	ErrNonceGap:               "ErrNonceGap",
	ErrStateUnavailable:       "ErrStateUnavailable",
	ErrStaleHeadUpdate:        "ErrStaleHeadUpdate",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a rule violation.  It is used to indicate that
// processing of a message or head change failed due to one of the many
// validation rules.  The caller can use errors.As to determine if a failure
// was specifically due to a rule violation and access the ErrorCode field to
// ascertain the specific reason for the rule violation.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying cause, if any
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying cause of the error.
func (e RuleError) Unwrap() error {
	return e.Err
}

// ruleError creates an RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// wrapRuleError creates a RuleError carrying an underlying cause.
func wrapRuleError(c ErrorCode, desc string, err error) RuleError {
	return RuleError{ErrorCode: c, Description: desc, Err: err}
}

// IsErrorCode returns whether err is a RuleError with the given code.
func IsErrorCode(err error, c ErrorCode) bool {
	var rerr RuleError
	return errors.As(err, &rerr) && rerr.ErrorCode == c
}

// IsTransient returns whether err is a soft rejection that may succeed once
// the chain advances.
func IsTransient(err error) bool {
	return IsErrorCode(err, ErrInsufficientFunds) ||
		IsErrorCode(err, ErrStateUnavailable)
}
