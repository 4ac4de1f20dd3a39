// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrInsufficientFunds defines that inputs do not cover fee, carrier output and non-dust change.
var ErrInsufficientFunds = errors.New("insufficient funds")

// InsufficientError is the error type to describe insufficient funds errors with details.
type InsufficientError struct {
	Need *big.Int // in Satoshi.
	Have *big.Int // in Satoshi.
}

// NewInsufficientError is a constructor for InsufficientError.
func NewInsufficientError(need, have *big.Int) *InsufficientError {
	return &InsufficientError{Need: need, Have: have}
}

// Error returns error description.
func (e *InsufficientError) Error() string {
	var errMsg = ErrInsufficientFunds.Error()

	if e.Have != nil && e.Need != nil {
		errMsg += fmt.Sprintf(": need %s sat, have %s sat", e.Need, e.Have)
	}

	return errMsg
}

// Is implements comparator method for [errors] package.
func (e *InsufficientError) Is(target error) bool {
	if target == ErrInsufficientFunds {
		return true
	}

	var insufficientErr *InsufficientError
	if errors.As(target, &insufficientErr) {
		return e.Error() == insufficientErr.Error()
	}

	return false
}

// Shortfall returns amount in satoshi missing to build transaction.
func (e *InsufficientError) Shortfall() *big.Int {
	if e.Have == nil || e.Need == nil {
		return nil
	}

	return new(big.Int).Sub(e.Need, e.Have)
}
